package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

func TestMerge_OrderingAndPartition(t *testing.T) {
	now := utc(time.November, 14, 12)

	historical := []meeting.Meeting{
		{ID: "p1", Title: "Standup", Start: utc(time.November, 13, 9), Source: meeting.SourceHistorical},
		{ID: "p2", Title: "Planning", Start: utc(time.November, 10, 9), Source: meeting.SourceHistorical},
	}
	upcoming := []meeting.Meeting{
		{ID: "u2", Title: "Review", Start: utc(time.November, 16, 15)},
		{ID: "u1", Title: "1:1", Start: utc(time.November, 15, 10)},
	}

	merged := Merge(historical, upcoming, now)

	require.Len(t, merged, 4)
	// Upcoming first, soonest first; then past, most recent first.
	assert.Equal(t, []string{"u1", "u2", "p1", "p2"}, ids(merged))

	// Upcoming strictly non-decreasing, past strictly non-increasing.
	assert.True(t, merged[0].Start.Before(merged[1].Start) || merged[0].Start.Equal(merged[1].Start))
	assert.True(t, merged[2].Start.After(merged[3].Start) || merged[2].Start.Equal(merged[3].Start))

	for _, m := range merged[:2] {
		assert.Equal(t, meeting.SourceUpcoming, m.Source)
	}
	for _, m := range merged[2:] {
		assert.Equal(t, meeting.SourceHistorical, m.Source)
	}
}

func TestMerge_DeduplicatesByID(t *testing.T) {
	now := utc(time.November, 14, 12)
	m := meeting.Meeting{ID: "same", Title: "Sync", Start: utc(time.November, 13, 9)}

	merged := Merge([]meeting.Meeting{m}, []meeting.Meeting{m}, now)

	assert.Len(t, merged, 1)
}

func TestMerge_HeuristicDedupPrefersHistorical(t *testing.T) {
	now := utc(time.November, 14, 12)

	historical := []meeting.Meeting{{
		ID: "granola-1", Title: "Weekly Sync", Start: utc(time.November, 13, 9),
		Transcript: &meeting.Transcript{MeetingID: "granola-1", Content: "notes"},
		Source:     meeting.SourceHistorical,
	}}
	// Same logical meeting from the calendar: different id, same title,
	// start a few minutes off.
	upcoming := []meeting.Meeting{{
		ID: "gcal-xyz", Title: "Weekly Sync",
		Start: time.Date(2025, time.November, 13, 9, 5, 0, 0, time.UTC),
	}}

	merged := Merge(historical, upcoming, now)

	require.Len(t, merged, 1)
	assert.Equal(t, "granola-1", merged[0].ID, "historical record wins")
	assert.True(t, merged[0].HasTranscript())
}

func TestMerge_FutureDuplicateKeepsUpcomingProvenance(t *testing.T) {
	now := utc(time.November, 14, 12)

	// A calendar invite that already has a (pre-created) historical record
	// but has not happened yet.
	historical := []meeting.Meeting{{
		ID: "granola-2", Title: "Board Prep", Start: utc(time.November, 15, 9),
		Source: meeting.SourceHistorical,
	}}
	upcoming := []meeting.Meeting{{
		ID: "gcal-abc", Title: "Board Prep", Start: utc(time.November, 15, 9),
	}}

	merged := Merge(historical, upcoming, now)

	require.Len(t, merged, 1)
	assert.Equal(t, "granola-2", merged[0].ID)
	assert.Equal(t, meeting.SourceUpcoming, merged[0].Source)
}

func TestMerge_NoUpcomingIsNormal(t *testing.T) {
	now := utc(time.November, 14, 12)
	historical := []meeting.Meeting{
		{ID: "p1", Title: "Standup", Start: utc(time.November, 13, 9)},
	}

	merged := Merge(historical, nil, now)

	require.Len(t, merged, 1)
	assert.Equal(t, "p1", merged[0].ID)
}

func TestMerge_NeverEmitsDuplicateIDs(t *testing.T) {
	now := utc(time.November, 14, 12)
	var historical, upcoming []meeting.Meeting
	for day := 1; day <= 10; day++ {
		historical = append(historical, meeting.Meeting{
			ID: "h" + string(rune('0'+day%10)), Title: "M", Start: utc(time.November, day, 9),
		})
		upcoming = append(upcoming, meeting.Meeting{
			ID: "h" + string(rune('0'+day%10)), Title: "M", Start: utc(time.November, day, 9),
		})
	}

	merged := Merge(historical, upcoming, now)

	seen := make(map[string]bool)
	for _, m := range merged {
		if seen[m.ID] {
			t.Fatalf("duplicate id %q in merged output", m.ID)
		}
		seen[m.ID] = true
	}
}

func ids(ms []meeting.Meeting) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
