package granola

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// writeCache writes a cache-v3 style file: the state document is JSON-encoded
// into a string stored under the "cache" key, as Granola does on disk.
func writeCache(t *testing.T, state map[string]interface{}) string {
	t.Helper()

	inner, err := json.Marshal(map[string]interface{}{"state": state})
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]interface{}{"cache": string(inner)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache-v3.json")
	require.NoError(t, os.WriteFile(path, outer, 0o600))
	return path
}

func TestCacheLoader_Load(t *testing.T) {
	path := writeCache(t, map[string]interface{}{
		"documents": map[string]interface{}{
			"m1": map[string]interface{}{
				"title":      "Roadmap Review",
				"created_at": "2025-11-03T14:00:00Z",
				"people": []map[string]string{
					{"name": "Ada Lovelace"},
					{"name": "Grace Hopper"},
				},
				"notes_plain": "Discussed Q1 roadmap.",
				"overview":    "Quarterly planning",
			},
			"m2": map[string]interface{}{
				"title":      "",
				"created_at": "2025-11-20T09:30:00Z",
			},
		},
		"transcripts": map[string]interface{}{
			"m1": []map[string]string{
				{"text": "Welcome everyone.", "source": "microphone"},
				{"text": "Let's begin.", "source": "system"},
				{"text": "   ", "source": "system"},
			},
		},
	})

	loader := NewCacheLoader(path, logging.NewNopLogger())
	meetings, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, meetings, 2)

	byID := make(map[string]meeting.Meeting)
	for _, m := range meetings {
		byID[m.ID] = m
	}

	m1 := byID["m1"]
	assert.Equal(t, "Roadmap Review", m1.Title)
	assert.Equal(t, time.Date(2025, time.November, 3, 14, 0, 0, 0, time.UTC), m1.Start)
	assert.Equal(t, []string{"Ada Lovelace", "Grace Hopper"}, m1.Participants)
	assert.Equal(t, meeting.SourceHistorical, m1.Source)

	require.True(t, m1.HasTranscript())
	assert.Equal(t, "Welcome everyone. Let's begin.", m1.Transcript.Content)
	assert.Equal(t, []string{"microphone", "system"}, m1.Transcript.Speakers)

	require.Len(t, m1.Documents, 1)
	assert.Contains(t, m1.Documents[0].Content, "Discussed Q1 roadmap.")
	assert.Contains(t, m1.Documents[0].Content, "Overview: Quarterly planning")

	m2 := byID["m2"]
	assert.Equal(t, "Untitled Meeting", m2.Title)
	assert.False(t, m2.HasTranscript())
	assert.Empty(t, m2.Documents)
}

func TestCacheLoader_SkipsMalformedRecords(t *testing.T) {
	path := writeCache(t, map[string]interface{}{
		"documents": map[string]interface{}{
			"good": map[string]interface{}{
				"title":      "Kept",
				"created_at": "2025-11-03T14:00:00Z",
			},
			"bad": map[string]interface{}{
				"title":      "Dropped",
				"created_at": "not a timestamp",
			},
		},
	})

	meetings, err := NewCacheLoader(path, logging.NewNopLogger()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "good", meetings[0].ID)
}

func TestCacheLoader_MissingFileIsSourceUnavailable(t *testing.T) {
	loader := NewCacheLoader(filepath.Join(t.TempDir(), "absent.json"), logging.NewNopLogger())

	_, err := loader.Load(context.Background())

	require.Error(t, err)
	assert.True(t, gmerrors.IsSourceUnavailable(err))
}

func TestCacheLoader_CorruptFileIsSourceUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache-v3.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewCacheLoader(path, logging.NewNopLogger()).Load(context.Background())

	require.Error(t, err)
	assert.True(t, gmerrors.IsSourceUnavailable(err))
}

func TestCacheLoader_UnwrappedStateStillParses(t *testing.T) {
	// Some cache exports carry the state directly without the string envelope.
	body, err := json.Marshal(map[string]interface{}{
		"state": map[string]interface{}{
			"documents": map[string]interface{}{
				"m1": map[string]interface{}{
					"title":      "Direct",
					"created_at": "2025-11-03T14:00:00Z",
				},
			},
		},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cache-v3.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	meetings, err := NewCacheLoader(path, logging.NewNopLogger()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "Direct", meetings[0].Title)
}

func TestExtractStructuredNotes(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "doc",
		"content": [
			{"type": "paragraph", "content": [
				{"type": "text", "text": "First point."},
				{"type": "text", "text": "Second point."}
			]},
			{"type": "bulletList", "content": [
				{"type": "listItem", "content": [
					{"type": "paragraph", "content": [{"type": "text", "text": "Action item"}]}
				]}
			]}
		]
	}`)

	got := extractStructuredNotes(raw)
	assert.Equal(t, "First point. Second point. Action item", got)

	assert.Empty(t, extractStructuredNotes(json.RawMessage(`"just a string"`)))
	assert.Empty(t, extractStructuredNotes(json.RawMessage(`{bad`)))
}
