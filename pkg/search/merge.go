package search

import (
	"sort"
	"time"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// sameMeetingWindow is how close two start times must be before records with
// the same title are treated as one logical meeting across sources. Calendar
// invites and recordings of the same meeting rarely drift further than this.
const sameMeetingWindow = 30 * time.Minute

// Merge combines historical search results with upcoming calendar events
// into one ordered sequence with provenance tags:
//
//   - entries are deduplicated by identifier, and by a title+start-proximity
//     heuristic for the same logical meeting seen from both sources; the
//     historical record wins (richer content), but keeps the upcoming
//     provenance tag when the meeting is still in the future;
//   - upcoming entries (start after now) come first, soonest first;
//   - past entries follow, most recent first.
//
// Callers with no calendar configured pass an empty upcoming slice; that is
// a normal state, not an error.
func Merge(historical, upcoming []meeting.Meeting, now time.Time) []meeting.Meeting {
	type key struct {
		title  string
		bucket int64
	}
	heuristicKey := func(m meeting.Meeting) key {
		return key{
			title:  foldCaser.String(m.Title),
			bucket: m.Start.Unix() / int64(sameMeetingWindow/time.Second),
		}
	}

	seenID := make(map[string]struct{}, len(historical)+len(upcoming))
	seenKey := make(map[key]struct{}, len(historical)+len(upcoming))
	merged := make([]meeting.Meeting, 0, len(historical)+len(upcoming))

	add := func(m meeting.Meeting) {
		if _, dup := seenID[m.ID]; dup {
			return
		}
		k := heuristicKey(m)
		// Neighbor buckets catch pairs that straddle a bucket boundary.
		for _, b := range []int64{k.bucket - 1, k.bucket, k.bucket + 1} {
			if _, dup := seenKey[key{title: k.title, bucket: b}]; dup {
				return
			}
		}
		seenID[m.ID] = struct{}{}
		seenKey[k] = struct{}{}
		merged = append(merged, m)
	}

	// Historical first so it wins every dedup collision.
	for _, m := range historical {
		if m.Start.After(now) {
			// A recorded entry that is somehow still in the future keeps
			// the upcoming provenance tag.
			m.Source = meeting.SourceUpcoming
		}
		add(m)
	}
	for _, m := range upcoming {
		m.Source = meeting.SourceUpcoming
		add(m)
	}

	var future, past []meeting.Meeting
	for _, m := range merged {
		if m.Start.After(now) {
			future = append(future, m)
		} else {
			past = append(past, m)
		}
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].Start.Before(future[j].Start)
	})
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].Start.After(past[j].Start)
	})

	return append(future, past...)
}
