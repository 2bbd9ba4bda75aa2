// Package meeting defines the core domain types for granola-mcp: meeting
// records, transcripts, documents, and the in-memory meeting index.
package meeting

import "time"

// Source identifies where a meeting record came from.
type Source string

const (
	// SourceHistorical is a recorded past meeting ingested from the local
	// Granola cache, with transcript and document content.
	SourceHistorical Source = "historical"
	// SourceUpcoming is a scheduled future event retrieved from an external
	// calendar.
	SourceUpcoming Source = "upcoming"
)

// Meeting is an immutable meeting record. Historical meetings are owned by
// the Index; upcoming meetings are produced per-call by the calendar adapter.
// Records are never mutated after construction and are safe for concurrent
// reads.
type Meeting struct {
	// ID is an opaque identifier, unique within a merged result set.
	ID string `json:"id"`

	// Title is the meeting title ("Untitled Meeting" when the source has none).
	Title string `json:"title"`

	// Start is the meeting start instant. Always present for historical
	// meetings; may be estimated for upcoming ones.
	Start time.Time `json:"start"`

	// End is the meeting end instant. Zero when unknown.
	End time.Time `json:"end,omitempty"`

	// Participants are the attendee names or addresses, in source order.
	Participants []string `json:"participants,omitempty"`

	// Transcript is the meeting transcript, nil when none was recorded.
	Transcript *Transcript `json:"transcript,omitempty"`

	// Documents are the notes and documents attached to the meeting.
	Documents []Document `json:"documents,omitempty"`

	// Source tags the record's provenance.
	Source Source `json:"source"`

	// Location and Description carry calendar event fields for upcoming
	// meetings. Empty for historical ones.
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Duration returns the meeting duration, or zero when the end is unknown.
func (m Meeting) Duration() time.Duration {
	if m.End.IsZero() || m.End.Before(m.Start) {
		return 0
	}
	return m.End.Sub(m.Start)
}

// HasTranscript reports whether the meeting has transcript content.
func (m Meeting) HasTranscript() bool {
	return m.Transcript != nil && m.Transcript.Content != ""
}

// Transcript is the lazily materialized transcript of a recorded meeting.
type Transcript struct {
	// MeetingID ties the transcript back to its meeting.
	MeetingID string `json:"meeting_id"`

	// Content is the full transcript text, speech segments joined in order.
	Content string `json:"content"`

	// Speakers are the distinct speaker sources seen in the segments.
	Speakers []string `json:"speakers,omitempty"`
}

// Document is a note or document blob attached to a meeting.
type Document struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
