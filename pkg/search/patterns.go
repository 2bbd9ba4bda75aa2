package search

import (
	"sort"
	"strings"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// PatternType selects which aggregation AnalyzePatterns performs.
type PatternType string

const (
	PatternTopics       PatternType = "topics"
	PatternParticipants PatternType = "participants"
	PatternFrequency    PatternType = "frequency"
)

// ParsePatternType validates a pattern type argument.
func ParsePatternType(s string) (PatternType, error) {
	switch PatternType(s) {
	case PatternTopics, PatternParticipants, PatternFrequency:
		return PatternType(s), nil
	default:
		return "", gmerrors.InvalidArgumentf("unknown pattern_type %q, want one of topics, participants, frequency", s)
	}
}

// PatternEntry is one row of a frequency table.
type PatternEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PatternReport is the result of a pattern analysis over a meeting set.
type PatternReport struct {
	Type     PatternType    `json:"type"`
	Meetings int            `json:"meetings"`
	Entries  []PatternEntry `json:"entries"`

	// Pairs holds participant co-occurrence counts, only for the
	// participants pattern.
	Pairs []CoOccurrence `json:"pairs,omitempty"`
}

// CoOccurrence counts how often two participants appeared in the same meeting.
type CoOccurrence struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// titleStopwords are words too generic to count as topics.
var titleStopwords = map[string]struct{}{
	"meeting": {}, "call": {}, "sync": {}, "with": {}, "and": {}, "the": {},
	"weekly": {}, "daily": {}, "catch": {}, "chat": {},
}

const (
	maxTopicEntries       = 15
	maxParticipantEntries = 10
)

// AnalyzePatterns aggregates over the given meeting set. It is purely
// derived and stateless; the caller applies any date filtering beforehand.
func AnalyzePatterns(meetings []meeting.Meeting, pt PatternType) (PatternReport, error) {
	switch pt {
	case PatternParticipants:
		return analyzeParticipants(meetings), nil
	case PatternFrequency:
		return analyzeFrequency(meetings), nil
	case PatternTopics:
		return analyzeTopics(meetings), nil
	default:
		return PatternReport{}, gmerrors.InvalidArgumentf("unknown pattern_type %q", pt)
	}
}

func analyzeParticipants(meetings []meeting.Meeting) PatternReport {
	counts := make(map[string]int)
	pairCounts := make(map[[2]string]int)

	for _, m := range meetings {
		for _, p := range m.Participants {
			counts[p]++
		}
		// Co-occurrence across the meeting's participant list.
		for i := 0; i < len(m.Participants); i++ {
			for j := i + 1; j < len(m.Participants); j++ {
				a, b := m.Participants[i], m.Participants[j]
				if a > b {
					a, b = b, a
				}
				pairCounts[[2]string{a, b}]++
			}
		}
	}

	report := PatternReport{
		Type:     PatternParticipants,
		Meetings: len(meetings),
		Entries:  topEntries(counts, maxParticipantEntries),
	}
	for pair, n := range pairCounts {
		report.Pairs = append(report.Pairs, CoOccurrence{A: pair[0], B: pair[1], Count: n})
	}
	sort.Slice(report.Pairs, func(i, j int) bool {
		if report.Pairs[i].Count != report.Pairs[j].Count {
			return report.Pairs[i].Count > report.Pairs[j].Count
		}
		if report.Pairs[i].A != report.Pairs[j].A {
			return report.Pairs[i].A < report.Pairs[j].A
		}
		return report.Pairs[i].B < report.Pairs[j].B
	})
	if len(report.Pairs) > maxParticipantEntries {
		report.Pairs = report.Pairs[:maxParticipantEntries]
	}
	return report
}

// analyzeFrequency buckets meeting counts by calendar month.
func analyzeFrequency(meetings []meeting.Meeting) PatternReport {
	counts := make(map[string]int)
	for _, m := range meetings {
		counts[m.Start.Format("2006-01")]++
	}

	entries := make([]PatternEntry, 0, len(counts))
	for k, n := range counts {
		entries = append(entries, PatternEntry{Key: k, Count: n})
	}
	// Chronological, not by count: frequency reads as a timeline.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	return PatternReport{
		Type:     PatternFrequency,
		Meetings: len(meetings),
		Entries:  entries,
	}
}

func analyzeTopics(meetings []meeting.Meeting) PatternReport {
	counts := make(map[string]int)
	for _, m := range meetings {
		text := m.Title
		for _, d := range m.Documents {
			if strings.HasPrefix(d.Content, "Summary: ") {
				text += " " + d.Content
			}
		}
		for _, word := range strings.Fields(foldCaser.String(text)) {
			word = strings.Trim(word, ".,:;!?()[]\"'")
			if len(word) <= 3 {
				continue
			}
			if _, stop := titleStopwords[word]; stop {
				continue
			}
			counts[word]++
		}
	}

	return PatternReport{
		Type:     PatternTopics,
		Meetings: len(meetings),
		Entries:  topEntries(counts, maxTopicEntries),
	}
}

// topEntries converts a count map into the n highest-count entries, ties
// broken alphabetically for stable output.
func topEntries(counts map[string]int, n int) []PatternEntry {
	entries := make([]PatternEntry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, PatternEntry{Key: k, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
