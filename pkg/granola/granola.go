// Package granola reads the local Granola cache file and produces the full
// set of historical meeting records.
//
// The cache is an append-only JSON file (cache-v3.json). The interesting data
// sits two levels deep: the top-level object has a "cache" key whose value is
// itself a JSON-encoded string, which decodes to an object with a "state" key
// holding the documents and transcripts maps. Malformed individual records
// are skipped with a warning; a missing or undecodable file is a hard
// ErrSourceUnavailable.
package granola

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// DefaultCachePath returns the Granola cache location for the current user.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cache-v3.json"
	}
	return filepath.Join(home, "Library", "Application Support", "Granola", "cache-v3.json")
}

// CacheLoader loads meeting records from a Granola cache file. It implements
// meeting.Loader.
type CacheLoader struct {
	path   string
	logger logging.Logger
}

// NewCacheLoader creates a loader for the cache file at path. An empty path
// uses the default Granola location.
func NewCacheLoader(path string, logger logging.Logger) *CacheLoader {
	if path == "" {
		path = DefaultCachePath()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CacheLoader{path: path, logger: logger}
}

// Path returns the cache file path the loader reads from.
func (l *CacheLoader) Path() string {
	return l.path
}

// rawDocument is the Granola document shape we consume. Documents double as
// meeting metadata and note containers.
type rawDocument struct {
	Title         string          `json:"title"`
	CreatedAt     string          `json:"created_at"`
	Type          string          `json:"type"`
	People        []rawPerson     `json:"people"`
	NotesPlain    string          `json:"notes_plain"`
	NotesMarkdown string          `json:"notes_markdown"`
	Notes         json.RawMessage `json:"notes"`
	Overview      string          `json:"overview"`
	Summary       string          `json:"summary"`
}

type rawPerson struct {
	Name string `json:"name"`
}

// rawSegment is one speech segment of a Granola transcript.
type rawSegment struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type rawState struct {
	Documents   map[string]rawDocument     `json:"documents"`
	Transcripts map[string]json.RawMessage `json:"transcripts"`
}

// Load reads and parses the cache file. The returned meetings carry their
// transcripts and documents; ordering is unspecified.
func (l *CacheLoader) Load(ctx context.Context) ([]meeting.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", gmerrors.ErrSourceUnavailable, l.path, err)
	}

	state, err := decodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", gmerrors.ErrSourceUnavailable, l.path, err)
	}

	meetings := make([]meeting.Meeting, 0, len(state.Documents))
	for id, doc := range state.Documents {
		m, err := l.buildMeeting(id, doc)
		if err != nil {
			l.logger.Warn("skipping malformed meeting record",
				logging.F("meeting_id", id), logging.Err(err))
			continue
		}
		if tr, ok := l.parseTranscript(id, state.Transcripts[id]); ok {
			m.Transcript = &tr
		}
		meetings = append(meetings, m)
	}

	l.logger.Info("granola cache loaded",
		logging.F("path", l.path),
		logging.F("meetings", len(meetings)),
		logging.F("transcripts", len(state.Transcripts)))
	return meetings, nil
}

// decodeEnvelope unwraps the nested cache structure down to the state.
func decodeEnvelope(raw []byte) (*rawState, error) {
	var outer struct {
		Cache json.RawMessage `json:"cache"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("decoding outer object: %w", err)
	}

	body := raw
	if len(outer.Cache) > 0 {
		// The cache value is a JSON string containing another JSON document.
		var inner string
		if err := json.Unmarshal(outer.Cache, &inner); err == nil {
			body = []byte(inner)
		} else {
			body = outer.Cache
		}
	}

	var withState struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(body, &withState); err != nil {
		return nil, fmt.Errorf("decoding cache body: %w", err)
	}
	if len(withState.State) > 0 {
		body = withState.State
	}

	var state rawState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &state, nil
}

func (l *CacheLoader) buildMeeting(id string, doc rawDocument) (meeting.Meeting, error) {
	start, err := parseCreatedAt(doc.CreatedAt)
	if err != nil {
		return meeting.Meeting{}, err
	}

	var participants []string
	for _, p := range doc.People {
		if p.Name != "" {
			participants = append(participants, p.Name)
		}
	}

	title := doc.Title
	if title == "" {
		title = "Untitled Meeting"
	}

	m := meeting.Meeting{
		ID:           id,
		Title:        title,
		Start:        start,
		Participants: participants,
		Source:       meeting.SourceHistorical,
	}

	if content := extractNoteContent(doc); content != "" {
		m.Documents = []meeting.Document{{
			ID:        id,
			MeetingID: id,
			Title:     title,
			Content:   content,
			Type:      "meeting_notes",
			CreatedAt: start,
		}}
	}
	return m, nil
}

// parseCreatedAt parses Granola's ISO timestamps, tolerating a bare Z suffix.
func parseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing created_at")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", s)
}

// extractNoteContent collects note text for a document from the several
// fields Granola may populate, preferring plain text over markdown over the
// structured editor format.
func extractNoteContent(doc rawDocument) string {
	var parts []string

	if s := strings.TrimSpace(doc.NotesPlain); s != "" {
		parts = append(parts, s)
	} else if s := strings.TrimSpace(doc.NotesMarkdown); s != "" {
		parts = append(parts, s)
	} else if len(doc.Notes) > 0 {
		if s := strings.TrimSpace(extractStructuredNotes(doc.Notes)); s != "" {
			parts = append(parts, s)
		}
	}

	if s := strings.TrimSpace(doc.Overview); s != "" {
		parts = append(parts, "Overview: "+s)
	}
	if s := strings.TrimSpace(doc.Summary); s != "" {
		parts = append(parts, "Summary: "+s)
	}
	return strings.Join(parts, "\n\n")
}

// parseTranscript joins the speech segments of a transcript into full text
// and collects the distinct speaker sources. Granola also has a legacy
// object form with a single content field.
func (l *CacheLoader) parseTranscript(meetingID string, raw json.RawMessage) (meeting.Transcript, bool) {
	if len(raw) == 0 {
		return meeting.Transcript{}, false
	}

	var segments []rawSegment
	if err := json.Unmarshal(raw, &segments); err == nil {
		var parts []string
		speakerSet := make(map[string]struct{})
		for _, seg := range segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			parts = append(parts, text)
			if seg.Source != "" {
				speakerSet[seg.Source] = struct{}{}
			}
		}
		if len(parts) == 0 {
			return meeting.Transcript{}, false
		}
		speakers := make([]string, 0, len(speakerSet))
		for s := range speakerSet {
			speakers = append(speakers, s)
		}
		sort.Strings(speakers)
		return meeting.Transcript{
			MeetingID: meetingID,
			Content:   strings.Join(parts, " "),
			Speakers:  speakers,
		}, true
	}

	var legacy struct {
		Content    string `json:"content"`
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		l.logger.Warn("skipping malformed transcript", logging.F("meeting_id", meetingID), logging.Err(err))
		return meeting.Transcript{}, false
	}
	content := legacy.Content
	if content == "" {
		content = legacy.Text
	}
	if content == "" {
		content = legacy.Transcript
	}
	if content == "" {
		return meeting.Transcript{}, false
	}
	return meeting.Transcript{MeetingID: meetingID, Content: content}, true
}
