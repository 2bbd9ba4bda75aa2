package mcp

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/otherjamesbrown/granola-mcp/pkg/calendar"
	"github.com/otherjamesbrown/granola-mcp/pkg/classify"
	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
	"github.com/otherjamesbrown/granola-mcp/pkg/observability"
	"github.com/otherjamesbrown/granola-mcp/pkg/search"
	"github.com/otherjamesbrown/granola-mcp/pkg/semantic"
)

// Service executes tool calls against the meeting index, search engine,
// calendar adapter, and classification cache. It owns the degradation
// rules: a missing source fails the call, a failing calendar or
// classifier narrows the result instead.
type Service struct {
	index      *meeting.Index
	engine     *search.Engine
	calendar   calendar.Source
	classifier *classify.Cache
	finder     *semantic.Finder
	logger     logging.Logger
	metrics    *observability.Metrics
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithServiceMetrics enables search and calendar metrics.
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the tool executor. calendar may be calendar.Disabled{}
// and finder may be a name-match-only finder; classifier is required.
func NewService(index *meeting.Index, engine *search.Engine, cal calendar.Source, classifier *classify.Cache, finder *semantic.Finder, logger logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cal == nil {
		cal = calendar.Disabled{}
	}
	if finder == nil {
		finder = semantic.NewFinder()
	}
	s := &Service{
		index:      index,
		engine:     engine,
		calendar:   cal,
		classifier: classifier,
		finder:     finder,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MeetingSummary is the wire shape for one meeting in tool output.
type MeetingSummary struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Start         string   `json:"start,omitempty"`
	End           string   `json:"end,omitempty"`
	Participants  []string `json:"participants,omitempty"`
	Source        string   `json:"source"`
	Location      string   `json:"location,omitempty"`
	HasTranscript bool     `json:"has_transcript"`
	Documents     int      `json:"documents"`
	Tags          []string `json:"tags,omitempty"`
}

func (s *Service) toSummary(m meeting.Meeting) MeetingSummary {
	out := MeetingSummary{
		ID:            m.ID,
		Title:         m.Title,
		Participants:  m.Participants,
		Source:        string(m.Source),
		Location:      m.Location,
		HasTranscript: m.HasTranscript(),
		Documents:     len(m.Documents),
	}
	if !m.Start.IsZero() {
		out.Start = m.Start.Format(time.RFC3339)
	}
	if !m.End.IsZero() {
		out.End = m.End.Format(time.RFC3339)
	}
	if rec, ok := s.classifier.Lookup(m.ID); ok && rec.Resolved() {
		out.Tags = rec.Tags
	}
	return out
}

func (s *Service) toSummaries(meetings []meeting.Meeting) []MeetingSummary {
	out := make([]MeetingSummary, len(meetings))
	for i, m := range meetings {
		out[i] = s.toSummary(m)
	}
	return out
}

// SearchResponse is the search_meetings tool result.
type SearchResponse struct {
	Meetings []MeetingSummary `json:"meetings"`
	Count    int              `json:"count"`
	// Fallback is true when nothing matched and the most recent
	// meetings were substituted.
	Fallback bool `json:"fallback,omitempty"`
	// Range echoes the resolved date range for date queries.
	RangeStart string `json:"range_start,omitempty"`
	RangeEnd   string `json:"range_end,omitempty"`
	// CalendarDegraded is true when upcoming results were requested
	// but the calendar adapter failed; historical results still stand.
	CalendarDegraded bool `json:"calendar_degraded,omitempty"`
}

// SearchMeetings resolves a natural-language query. Date queries whose
// range reaches past now also consult the calendar adapter, and the two
// result sets merge with historical records winning duplicates.
func (s *Service) SearchMeetings(ctx context.Context, query string, limit int) (SearchResponse, error) {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	res, err := s.engine.Search(ctx, query, limit)
	if err != nil {
		return SearchResponse{}, err
	}

	resp := SearchResponse{Fallback: res.Fallback}
	kind := "keyword"
	if !res.Range.IsZero() {
		kind = "date"
		resp.RangeStart = res.Range.Start.Format(time.RFC3339)
		resp.RangeEnd = res.Range.End.Format(time.RFC3339)
	}
	if s.metrics != nil {
		s.metrics.SearchesTotal.WithLabelValues(kind, strconv.FormatBool(res.Fallback)).Inc()
	}

	meetings := res.Meetings
	now := s.engine.Now()
	if s.calendar.Enabled() && !res.Range.IsZero() && res.Range.End.After(now) {
		upcoming, calErr := s.calendar.Events(ctx, res.Range)
		if s.metrics != nil {
			status := "ok"
			if calErr != nil {
				status = "error"
			}
			s.metrics.CalendarRequestsTotal.WithLabelValues(status).Inc()
		}
		switch {
		case calErr != nil:
			// Upcoming results degrade to empty; the historical side
			// of the answer still stands.
			s.logger.Warn("calendar unavailable, returning historical results only", logging.Err(calErr))
			resp.CalendarDegraded = true
		case len(upcoming) > 0:
			historical := res.Meetings
			if res.Fallback {
				// Real events in the requested range beat a
				// consolation set of unrelated recent meetings.
				historical = nil
				resp.Fallback = false
			}
			meetings = search.Merge(historical, upcoming, now)
			if len(meetings) > limit {
				meetings = meetings[:limit]
			}
		}
	}

	resp.Meetings = s.toSummaries(meetings)
	resp.Count = len(resp.Meetings)
	return resp, nil
}

// MeetingDetails is the get_meeting_details tool result.
type MeetingDetails struct {
	MeetingSummary
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	DocumentTitles  []string `json:"document_titles,omitempty"`
	// Classification is the tier that produced the tags, or
	// "unresolved" when no tier has succeeded yet.
	Classification string `json:"classification"`
}

// GetMeetingDetails returns one meeting with its classification. The
// classifier runs synchronously here; if it cannot resolve, the details
// still return with an unresolved classification.
func (s *Service) GetMeetingDetails(ctx context.Context, id string) (MeetingDetails, error) {
	m, err := s.index.Get(id)
	if err != nil {
		return MeetingDetails{}, err
	}

	rec, err := s.classifier.Classify(ctx, m)
	if err != nil {
		s.logger.Debug("classification unavailable for meeting details",
			logging.F("meeting_id", id), logging.Err(err))
	}

	details := MeetingDetails{
		MeetingSummary:  s.toSummary(m),
		Description:     m.Description,
		DurationMinutes: int(m.Duration().Minutes()),
		Classification:  string(rec.Tier),
	}
	details.Tags = rec.Tags
	for _, doc := range m.Documents {
		if doc.Title != "" {
			details.DocumentTitles = append(details.DocumentTitles, doc.Title)
		}
	}
	return details, nil
}

// TranscriptResponse is the get_meeting_transcript tool result.
type TranscriptResponse struct {
	MeetingID     string   `json:"meeting_id"`
	Title         string   `json:"title"`
	HasTranscript bool     `json:"has_transcript"`
	Content       string   `json:"content,omitempty"`
	Speakers      []string `json:"speakers,omitempty"`
}

// GetMeetingTranscript returns a meeting's transcript. A meeting
// without one is not an error; the response just says so.
func (s *Service) GetMeetingTranscript(_ context.Context, id string) (TranscriptResponse, error) {
	m, err := s.index.Get(id)
	if err != nil {
		return TranscriptResponse{}, err
	}

	resp := TranscriptResponse{MeetingID: m.ID, Title: m.Title}
	if m.HasTranscript() {
		resp.HasTranscript = true
		resp.Content = m.Transcript.Content
		resp.Speakers = m.Transcript.Speakers
	}
	return resp, nil
}

// DocumentSummary is the wire shape for one meeting document.
type DocumentSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
}

// DocumentsResponse is the get_meeting_documents tool result.
type DocumentsResponse struct {
	MeetingID string            `json:"meeting_id"`
	Title     string            `json:"title"`
	Documents []DocumentSummary `json:"documents"`
}

// GetMeetingDocuments returns the notes and documents attached to one
// meeting.
func (s *Service) GetMeetingDocuments(_ context.Context, id string) (DocumentsResponse, error) {
	m, err := s.index.Get(id)
	if err != nil {
		return DocumentsResponse{}, err
	}

	resp := DocumentsResponse{
		MeetingID: m.ID,
		Title:     m.Title,
		Documents: make([]DocumentSummary, 0, len(m.Documents)),
	}
	for _, doc := range m.Documents {
		resp.Documents = append(resp.Documents, DocumentSummary{
			ID:      doc.ID,
			Title:   doc.Title,
			Type:    doc.Type,
			Content: doc.Content,
		})
	}
	return resp, nil
}

// AnalyzePatterns runs recurring-pattern analysis across the meetings a
// query selects, or the whole index when the query is empty.
func (s *Service) AnalyzePatterns(ctx context.Context, patternType, query string) (search.PatternReport, error) {
	pt, err := search.ParsePatternType(patternType)
	if err != nil {
		return search.PatternReport{}, err
	}
	if !s.index.Loaded() {
		return search.PatternReport{}, gmerrors.ErrSourceUnavailable
	}

	meetings := s.index.All()
	if strings.TrimSpace(query) != "" {
		res, err := s.engine.Search(ctx, query, s.index.Len())
		if err != nil {
			return search.PatternReport{}, err
		}
		// A fallback set is unrelated recent meetings; analyzing it
		// would report patterns the query never asked about.
		if !res.Fallback {
			meetings = res.Meetings
		}
	}

	return search.AnalyzePatterns(meetings, pt)
}

// CategoryResponse is the search_by_category tool result.
type CategoryResponse struct {
	Category string           `json:"category"`
	Meetings []MeetingSummary `json:"meetings"`
	Count    int              `json:"count"`
	// Pending counts meetings still waiting for background
	// classification; repeating the query later may return more.
	Pending int `json:"pending,omitempty"`
}

// SearchByCategory returns meetings tagged with category. Unclassified
// meetings are queued for background classification rather than blocking
// the call, so results can grow on a repeated query.
func (s *Service) SearchByCategory(_ context.Context, category string, limit int) (CategoryResponse, error) {
	if !s.index.Loaded() {
		return CategoryResponse{}, gmerrors.ErrSourceUnavailable
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	matched, err := s.classifier.SearchByCategory(category, s.index.All())
	if err != nil {
		return CategoryResponse{}, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Start.After(matched[j].Start)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return CategoryResponse{
		Category: category,
		Meetings: s.toSummaries(matched),
		Count:    len(matched),
		Pending:  s.classifier.QueueDepth(),
	}, nil
}

// CategoriesResponse is the list_categories tool result.
type CategoriesResponse struct {
	Categories []classify.CategoryCount `json:"categories"`
	Count      int                      `json:"count"`
}

// ListCategories returns the distinct categories across all classified
// meetings.
func (s *Service) ListCategories(context.Context) (CategoriesResponse, error) {
	categories := s.classifier.Categories()
	return CategoriesResponse{Categories: categories, Count: len(categories)}, nil
}

// SimilarCompany is one entry in the find_similar_companies result.
type SimilarCompany struct {
	Company  string           `json:"company"`
	Score    float64          `json:"score"`
	Meetings []MeetingSummary `json:"meetings"`
}

// SimilarCompaniesResponse is the find_similar_companies tool result.
type SimilarCompaniesResponse struct {
	Company   string           `json:"company"`
	Similar   []SimilarCompany `json:"similar"`
	Count     int              `json:"count"`
}

// FindSimilarCompanies ranks companies from the meeting history by
// similarity to company.
func (s *Service) FindSimilarCompanies(ctx context.Context, company string, limit int) (SimilarCompaniesResponse, error) {
	if strings.TrimSpace(company) == "" {
		return SimilarCompaniesResponse{}, gmerrors.InvalidArgumentf("company must not be empty")
	}
	if !s.index.Loaded() {
		return SimilarCompaniesResponse{}, gmerrors.ErrSourceUnavailable
	}

	matches, err := s.finder.SimilarCompanies(ctx, company, s.index.All(), limit)
	if err != nil {
		return SimilarCompaniesResponse{}, err
	}

	resp := SimilarCompaniesResponse{Company: company, Count: len(matches)}
	for _, match := range matches {
		resp.Similar = append(resp.Similar, SimilarCompany{
			Company:  match.Company,
			Score:    match.Score,
			Meetings: s.toSummaries(match.Meetings),
		})
	}
	return resp, nil
}

// RefreshResponse is the refresh_cache tool result.
type RefreshResponse struct {
	Meetings int    `json:"meetings"`
	LoadedAt string `json:"loaded_at"`
}

// RefreshCache rereads the meeting source and restarts background
// classification for anything new.
func (s *Service) RefreshCache(ctx context.Context) (RefreshResponse, error) {
	if err := s.index.Refresh(ctx); err != nil {
		return RefreshResponse{}, err
	}

	// Fill classifications for new meetings off the request path.
	all := s.index.All()
	go s.classifier.ClassifyAll(context.Background(), all)

	return RefreshResponse{
		Meetings: s.index.Len(),
		LoadedAt: s.index.LoadedAt().Format(time.RFC3339),
	}, nil
}
