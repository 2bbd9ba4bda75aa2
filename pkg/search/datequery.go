// Package search implements the query-resolution engine: natural-language
// date parsing, multi-field relevance search with fallback, merging of
// historical and upcoming meeting sources, and pattern analysis.
package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// DateQuery is the result of parsing a free-text query for date intent.
type DateQuery struct {
	// Range is the resolved date range. Zero when no date intent was found.
	Range meeting.DateRange

	// Matched reports whether a date pattern was recognized.
	Matched bool

	// Remainder is the non-date text of the query, usable as a secondary
	// keyword filter. Empty when the query was purely a date phrase.
	Remainder string
}

var (
	monthPattern = regexp.MustCompile(`\b(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sep|october|oct|november|nov|december|dec)\b(?:\s+(\d{4}))?`)
	yearPattern  = regexp.MustCompile(`\b(20\d{2})\b`)

	monthsByName = map[string]time.Month{
		"january": time.January, "jan": time.January,
		"february": time.February, "feb": time.February,
		"march": time.March, "mar": time.March,
		"april": time.April, "apr": time.April,
		"may":  time.May,
		"june": time.June, "jun": time.June,
		"july": time.July, "jul": time.July,
		"august": time.August, "aug": time.August,
		"september": time.September, "sep": time.September,
		"october": time.October, "oct": time.October,
		"november": time.November, "nov": time.November,
		"december": time.December, "dec": time.December,
	}

	// queryFiller are words stripped from the remainder so that a phrase
	// like "meetings in November" date-filters without also demanding the
	// word "meetings" appear in every field.
	queryFiller = map[string]struct{}{
		"a": {}, "all": {}, "any": {}, "about": {}, "during": {}, "find": {},
		"for": {}, "from": {}, "in": {}, "list": {}, "me": {}, "meeting": {},
		"meetings": {}, "my": {}, "of": {}, "on": {}, "search": {},
		"show": {}, "the": {}, "what": {}, "which": {},
	}

	foldCaser = cases.Fold()
)

// ParseDateQuery extracts date intent from a free-text query, anchored at the
// reference instant now in the caller's timezone loc. Patterns are evaluated
// in priority order with one tie-break: an explicit month/year phrase beats
// the bare keywords when both appear in the same query.
func ParseDateQuery(query string, now time.Time, loc *time.Location) DateQuery {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	folded := foldCaser.String(query)

	// Month (optionally with year) is the most specific pattern.
	if m := monthPattern.FindStringSubmatchIndex(folded); m != nil {
		name := folded[m[2]:m[3]]
		year := local.Year()
		if m[4] >= 0 {
			year, _ = strconv.Atoi(folded[m[4]:m[5]])
		}
		return DateQuery{
			Range:     meeting.MonthRange(year, monthsByName[name], loc),
			Matched:   true,
			Remainder: remainderOf(folded, folded[m[0]:m[1]]),
		}
	}

	switch {
	case strings.Contains(folded, "today"):
		return DateQuery{
			Range:     meeting.DayRange(local),
			Matched:   true,
			Remainder: remainderOf(folded, "today"),
		}
	case strings.Contains(folded, "yesterday"):
		return DateQuery{
			Range:     meeting.DayRange(local.AddDate(0, 0, -1)),
			Matched:   true,
			Remainder: remainderOf(folded, "yesterday"),
		}
	case strings.Contains(folded, "this week"):
		return DateQuery{
			Range:     meeting.WeekRange(local),
			Matched:   true,
			Remainder: remainderOf(folded, "this week"),
		}
	case strings.Contains(folded, "last week"):
		return DateQuery{
			Range:     meeting.WeekRange(local.AddDate(0, 0, -7)),
			Matched:   true,
			Remainder: remainderOf(folded, "last week"),
		}
	}

	if m := yearPattern.FindStringSubmatch(folded); m != nil {
		year, _ := strconv.Atoi(m[1])
		return DateQuery{
			Range:     meeting.YearRange(year, loc),
			Matched:   true,
			Remainder: remainderOf(folded, m[1]),
		}
	}

	return DateQuery{Remainder: strings.TrimSpace(query)}
}

// remainderOf strips the matched date phrase and query filler words from the
// folded query, leaving the keyword portion.
func remainderOf(folded, matched string) string {
	rest := strings.Replace(folded, matched, " ", 1)
	var keep []string
	for _, w := range strings.Fields(rest) {
		if _, filler := queryFiller[w]; !filler {
			keep = append(keep, w)
		}
	}
	return strings.Join(keep, " ")
}
