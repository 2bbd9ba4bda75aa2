package meeting

import "time"

// DateRange is an immutable half-open time interval [Start, End) in the
// caller's local timezone. The zero value means "no date filter".
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls within [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DayRange returns the single-day range containing t, midnight to midnight
// in t's location.
func DayRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekRange returns the Monday-through-Sunday week containing t, Monday
// 00:00:00 to the following Monday 00:00:00 in t's location.
func WeekRange(t time.Time) DateRange {
	// time.Weekday numbers Sunday as 0; shift so Monday is the week anchor.
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthRange returns the full calendar month range for the given year and
// month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearRange returns the full calendar year range in loc.
func YearRange(year int, loc *time.Location) DateRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(1, 0, 0)}
}
