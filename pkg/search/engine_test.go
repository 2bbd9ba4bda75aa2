package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// memLoader feeds a fixed meeting set into an index.
type memLoader struct {
	meetings []meeting.Meeting
}

func (l *memLoader) Load(ctx context.Context) ([]meeting.Meeting, error) {
	return l.meetings, nil
}

func loadedIndex(t *testing.T, meetings []meeting.Meeting) *meeting.Index {
	t.Helper()
	ix := meeting.NewIndex(&memLoader{meetings: meetings})
	require.NoError(t, ix.Load(context.Background()))
	return ix
}

func utc(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

func testMeetings() []meeting.Meeting {
	return []meeting.Meeting{
		{
			ID: "m-roadmap", Title: "Roadmap Review", Start: utc(time.November, 3, 14),
			Participants: []string{"Ada Lovelace", "Grace Hopper"},
			Transcript:   &meeting.Transcript{MeetingID: "m-roadmap", Content: "We discussed the acme account at length."},
		},
		{
			ID: "m-retro", Title: "Sprint Retro", Start: utc(time.November, 20, 9),
			Participants: []string{"Grace Hopper"},
		},
		{
			ID: "m-old", Title: "Acme Kickoff", Start: utc(time.March, 5, 10),
			Documents: []meeting.Document{{ID: "d1", MeetingID: "m-old", Content: "Kickoff notes for Acme."}},
		},
	}
}

func fixedClock(t time.Time) EngineOption {
	return WithClock(func() time.Time { return t })
}

func TestEngine_DateQueryReturnsMeetingsInRange(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "November 2025", 10)
	require.NoError(t, err)

	require.Len(t, res.Meetings, 2)
	assert.False(t, res.Fallback)
	// Date results are ordered by recency.
	assert.Equal(t, "m-retro", res.Meetings[0].ID)
	assert.Equal(t, "m-roadmap", res.Meetings[1].ID)
	assert.False(t, res.Range.IsZero())
}

func TestEngine_EmptyDateRangeFallsBackToRecent(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "November 2024", 2)
	require.NoError(t, err)

	assert.True(t, res.Fallback, "zero matches must be marked as fallback")
	require.Len(t, res.Meetings, 2, "fallback returns exactly limit most-recent meetings")
	assert.Equal(t, "m-retro", res.Meetings[0].ID)
	assert.Equal(t, "m-roadmap", res.Meetings[1].ID)
}

func TestEngine_KeywordSearchAcrossFields(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		// Title match scores above a transcript mention.
		{"title_beats_transcript", "acme", []string{"m-old", "m-roadmap"}},
		{"participant", "grace hopper", []string{"m-retro", "m-roadmap"}},
		{"document_content", "kickoff notes", []string{"m-old"}},
		{"case_insensitive", "ROADMAP", []string{"m-roadmap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Search(context.Background(), tt.query, 10)
			require.NoError(t, err)
			require.False(t, res.Fallback)

			gotIDs := make([]string, len(res.Meetings))
			for i, m := range res.Meetings {
				gotIDs[i] = m.ID
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}
}

func TestEngine_DateRangeWithSecondaryKeyword(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "retro November 2025", 10)
	require.NoError(t, err)

	require.Len(t, res.Meetings, 1)
	assert.Equal(t, "m-retro", res.Meetings[0].ID)
}

func TestEngine_UnmatchedKeywordFallsBack(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "zebra migration", 1)
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	require.Len(t, res.Meetings, 1)
	assert.Equal(t, "m-retro", res.Meetings[0].ID, "most recent meeting substitutes")
}

func TestEngine_EmptyQueryFallsBack(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Len(t, res.Meetings, 3)
}

func TestEngine_EmptyIndexFallbackIsEmpty(t *testing.T) {
	ix := loadedIndex(t, nil)
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Empty(t, res.Meetings)
}

func TestEngine_UnloadedIndexIsSourceUnavailable(t *testing.T) {
	ix := meeting.NewIndex(&memLoader{})
	e := NewEngine(ix, time.UTC, nil)

	_, err := e.Search(context.Background(), "anything", 10)
	assert.True(t, gmerrors.IsSourceUnavailable(err))
}

func TestEngine_LimitTruncates(t *testing.T) {
	ix := loadedIndex(t, testMeetings())
	e := NewEngine(ix, time.UTC, nil, fixedClock(utc(time.November, 25, 12)))

	res, err := e.Search(context.Background(), "November 2025", 1)
	require.NoError(t, err)
	assert.Len(t, res.Meetings, 1)
	assert.False(t, res.Fallback)
}
