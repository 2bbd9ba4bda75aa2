package mcp

import (
	"context"
	"math"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
)

const maxQuerySize = 10 << 10 // 10KB

// ToolHandler dispatches MCP tool calls to the service.
type ToolHandler struct {
	service *Service
}

// NewToolHandler creates a tool handler.
func NewToolHandler(service *Service) *ToolHandler {
	return &ToolHandler{service: service}
}

// Handle dispatches one tool call by name.
func (h *ToolHandler) Handle(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case "search_meetings":
		return h.handleSearch(ctx, args)
	case "get_meeting_details":
		return h.handleDetails(ctx, args)
	case "get_meeting_transcript":
		return h.handleTranscript(ctx, args)
	case "get_meeting_documents":
		return h.handleDocuments(ctx, args)
	case "analyze_meeting_patterns":
		return h.handlePatterns(ctx, args)
	case "search_by_category":
		return h.handleCategory(ctx, args)
	case "list_categories":
		return h.service.ListCategories(ctx)
	case "find_similar_companies":
		return h.handleSimilarCompanies(ctx, args)
	case "refresh_cache":
		return h.service.RefreshCache(ctx)
	default:
		return nil, gmerrors.InvalidArgumentf("unknown tool %q", name)
	}
}

// limitArg validates an optional limit argument. Absent means the
// default; present means a positive integer.
func limitArg(args map[string]interface{}) (int, error) {
	raw, ok := args["limit"]
	if !ok {
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, gmerrors.InvalidArgumentf("limit must be an integer")
	}
	limit := int(f)
	if limit < 1 {
		return 0, gmerrors.InvalidArgumentf("limit must be at least 1, got %d", limit)
	}
	return limit, nil
}

func stringArg(args map[string]interface{}, key string, required bool) (string, error) {
	raw, present := args[key]
	if !present {
		if required {
			return "", gmerrors.InvalidArgumentf("%s is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", gmerrors.InvalidArgumentf("%s must be a string", key)
	}
	if required && s == "" {
		return "", gmerrors.InvalidArgumentf("%s must not be empty", key)
	}
	return s, nil
}

func (h *ToolHandler) handleSearch(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, err := stringArg(args, "query", true)
	if err != nil {
		return nil, err
	}
	if len(query) > maxQuerySize {
		return nil, gmerrors.InvalidArgumentf("query exceeds maximum size of 10KB")
	}
	limit, err := limitArg(args)
	if err != nil {
		return nil, err
	}
	return h.service.SearchMeetings(ctx, query, limit)
}

func (h *ToolHandler) handleDetails(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := stringArg(args, "meeting_id", true)
	if err != nil {
		return nil, err
	}
	return h.service.GetMeetingDetails(ctx, id)
}

func (h *ToolHandler) handleTranscript(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := stringArg(args, "meeting_id", true)
	if err != nil {
		return nil, err
	}
	return h.service.GetMeetingTranscript(ctx, id)
}

func (h *ToolHandler) handleDocuments(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := stringArg(args, "meeting_id", true)
	if err != nil {
		return nil, err
	}
	return h.service.GetMeetingDocuments(ctx, id)
}

func (h *ToolHandler) handlePatterns(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	patternType, err := stringArg(args, "pattern_type", true)
	if err != nil {
		return nil, err
	}
	query, err := stringArg(args, "query", false)
	if err != nil {
		return nil, err
	}
	return h.service.AnalyzePatterns(ctx, patternType, query)
}

func (h *ToolHandler) handleCategory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	category, err := stringArg(args, "category", true)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args)
	if err != nil {
		return nil, err
	}
	return h.service.SearchByCategory(ctx, category, limit)
}

func (h *ToolHandler) handleSimilarCompanies(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	company, err := stringArg(args, "company", true)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args)
	if err != nil {
		return nil, err
	}
	return h.service.FindSimilarCompanies(ctx, company, limit)
}

// getToolDefinitions returns the MCP tool definitions.
func getToolDefinitions() []Tool {
	meetingIDSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"meeting_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the meeting",
			},
		},
		"required": []string{"meeting_id"},
	}

	return []Tool{
		{
			Name:        "search_meetings",
			Description: "Search meetings by natural-language query: dates (today, yesterday, this week, last week, November 2025), keywords, or both",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query, e.g. \"meetings last week\" or \"acme pricing\"",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum results (default 10)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_meeting_details",
			Description: "Get full details for one meeting, including its classification",
			InputSchema: meetingIDSchema,
		},
		{
			Name:        "get_meeting_transcript",
			Description: "Get the transcript of a meeting, if one was recorded",
			InputSchema: meetingIDSchema,
		},
		{
			Name:        "get_meeting_documents",
			Description: "Get the notes and documents attached to a meeting",
			InputSchema: meetingIDSchema,
		},
		{
			Name:        "analyze_meeting_patterns",
			Description: "Analyze recurring patterns across meetings: topics, participants, or frequency",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern_type": map[string]interface{}{
						"type":        "string",
						"description": "One of: topics, participants, frequency",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Optional query to narrow the meetings analyzed",
					},
				},
				"required": []string{"pattern_type"},
			},
		},
		{
			Name:        "search_by_category",
			Description: "Find meetings tagged with a category such as sales, engineering, or hiring",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Category tag to search for",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum results (default 10)",
					},
				},
				"required": []string{"category"},
			},
		},
		{
			Name:        "list_categories",
			Description: "List the categories seen across classified meetings, with counts",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "find_similar_companies",
			Description: "Find companies from the meeting history similar to a given company",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"company": map[string]interface{}{
						"type":        "string",
						"description": "Company name to compare against",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum results (default unbounded)",
					},
				},
				"required": []string{"company"},
			},
		},
		{
			Name:        "refresh_cache",
			Description: "Reload the meeting cache from disk and reclassify new meetings",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
