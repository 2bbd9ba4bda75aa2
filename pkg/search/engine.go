package search

import (
	"context"
	"sort"
	"strings"
	"time"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// DefaultLimit is the result limit applied when the caller does not set one.
const DefaultLimit = 10

// Results is an ordered set of historical meetings resolved for a query.
type Results struct {
	// Meetings are the selected records, best match first.
	Meetings []meeting.Meeting

	// Fallback is true when the literal query matched nothing and the most
	// recent meetings were substituted. The caller must be able to tell a
	// real match from a consolation set.
	Fallback bool

	// Range is the date range the query resolved to, zero when the query
	// carried no date intent.
	Range meeting.DateRange
}

// Engine resolves a query string into a ranked, filtered set of historical
// meetings drawn from the meeting index.
type Engine struct {
	index  *meeting.Index
	loc    *time.Location
	logger logging.Logger
	now    func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClock overrides the reference-now source, used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a search engine over the given index. loc is the
// caller's timezone for date-query resolution; nil means the system zone.
func NewEngine(index *meeting.Index, loc *time.Location, logger logging.Logger, opts ...EngineOption) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := &Engine{index: index, loc: loc, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the engine's query timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now returns the engine's reference instant.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Search resolves query into at most limit meetings. A limit <= 0 selects
// DefaultLimit. An empty or unparseable query is not an error: it degrades
// to keyword search and then to the recency fallback.
func (e *Engine) Search(ctx context.Context, query string, limit int) (Results, error) {
	if err := ctx.Err(); err != nil {
		return Results{}, err
	}
	if !e.index.Loaded() {
		return Results{}, gmerrors.ErrSourceUnavailable
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	dq := ParseDateQuery(query, e.now(), e.loc)

	var matched []scored
	if dq.Matched {
		matched = e.searchByDate(dq)
	} else {
		matched = e.searchByKeyword(dq.Remainder)
	}

	if len(matched) == 0 {
		e.logger.Debug("query matched nothing, falling back to recency",
			logging.F("query", query))
		return Results{
			Meetings: e.index.MostRecent(limit),
			Fallback: true,
			Range:    dq.Range,
		}, nil
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]meeting.Meeting, len(matched))
	for i, s := range matched {
		out[i] = s.m
	}
	return Results{Meetings: out, Range: dq.Range}, nil
}

type scored struct {
	m     meeting.Meeting
	score int
}

// searchByDate filters the index to the resolved range, then applies the
// residual keywords as a secondary filter. Date results are ordered by
// recency.
func (e *Engine) searchByDate(dq DateQuery) []scored {
	var matched []scored
	for _, m := range e.index.All() {
		if !dq.Range.Contains(m.Start) {
			continue
		}
		score := 1
		if dq.Remainder != "" {
			score = fieldMatches(m, dq.Remainder)
			if score == 0 {
				continue
			}
		}
		matched = append(matched, scored{m: m, score: score})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].m.Start.After(matched[j].m.Start)
	})
	return matched
}

// searchByKeyword scores every meeting by the number of matched fields, then
// orders by score and recency.
func (e *Engine) searchByKeyword(keywords string) []scored {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return nil
	}

	var matched []scored
	for _, m := range e.index.All() {
		if score := fieldMatches(m, keywords); score > 0 {
			matched = append(matched, scored{m: m, score: score})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].m.Start.After(matched[j].m.Start)
	})
	return matched
}

// fieldMatches counts how many meeting fields contain the query, folded for
// case-insensitive comparison. The title counts double: a title hit is a far
// stronger signal than a transcript mention.
func fieldMatches(m meeting.Meeting, query string) int {
	needle := foldCaser.String(query)
	score := 0

	if strings.Contains(foldCaser.String(m.Title), needle) {
		score += 2
	}
	for _, p := range m.Participants {
		if strings.Contains(foldCaser.String(p), needle) {
			score++
			break
		}
	}
	if m.HasTranscript() && strings.Contains(foldCaser.String(m.Transcript.Content), needle) {
		score++
	}
	for _, d := range m.Documents {
		if strings.Contains(foldCaser.String(d.Content), needle) {
			score++
			break
		}
	}
	return score
}
