package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

const (
	remoteMaxRetries   = 3
	remoteInitialDelay = 1 * time.Second
	remoteMaxBodyBytes = 1 << 20

	// How much meeting text to send. Titles plus the opening of the
	// notes are enough to categorize; full transcripts blow the token
	// budget for no gain.
	remoteContentLimit = 2000
)

// RemoteClassifier resolves categories for meetings the heuristic tier
// could not tag.
type RemoteClassifier interface {
	Classify(ctx context.Context, m meeting.Meeting) ([]string, error)
}

// LLMClassifier calls an OpenAI-compatible chat completions endpoint
// and asks the model for a JSON array of category tags.
type LLMClassifier struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewLLMClassifier creates a remote classifier. baseURL should point at
// a chat completions endpoint; model names the model to use.
func NewLLMClassifier(baseURL, apiKey, model string) *LLMClassifier {
	return &LLMClassifier{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

const classifyPrompt = `You label business meetings with short category tags such as ` +
	`"sales", "engineering", "hiring", "planning", "customer", "one-on-one", "company". ` +
	`Respond with a JSON array of lowercase tag strings and nothing else. ` +
	`Use existing tags where they fit; invent a new short tag only when none fit.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify sends the meeting to the model and parses the returned tag
// list. All failures come back wrapped in ErrClassificationUnavailable
// so callers degrade instead of aborting.
func (c *LLMClassifier) Classify(ctx context.Context, m meeting.Meeting) ([]string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: meetingPrompt(m)},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding classification request: %w", err)
	}

	// Retry with exponential backoff; rate limits and transient server
	// errors are the common failure here.
	var lastErr error
	for attempt := 0; attempt < remoteMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * remoteInitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", gmerrors.ErrClassificationUnavailable, ctx.Err())
			}
		}

		tags, retryable, err := c.send(ctx, body)
		if err == nil {
			return tags, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", gmerrors.ErrClassificationUnavailable, lastErr)
}

func (c *LLMClassifier) send(ctx context.Context, body []byte) (tags []string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating classification request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, remoteMaxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("reading classifier response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, fmt.Errorf("parsing classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, fmt.Errorf("classifier returned no choices")
	}

	tags, err = parseTagList(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, false, err
	}
	return tags, false, nil
}

// parseTagList extracts a JSON string array from model output,
// tolerating surrounding prose or a code fence.
func parseTagList(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("classifier output has no tag array: %q", content)
	}
	var tags []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &tags); err != nil {
		return nil, fmt.Errorf("parsing classifier tags: %w", err)
	}
	return sortedTags(tags), nil
}

func meetingPrompt(m meeting.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", m.Title)
	if len(m.Participants) > 0 {
		fmt.Fprintf(&b, "Participants: %s\n", strings.Join(m.Participants, ", "))
	}
	content := meetingText(m)
	if len(content) > remoteContentLimit {
		content = content[:remoteContentLimit]
	}
	if content != "" {
		fmt.Fprintf(&b, "Notes:\n%s\n", content)
	}
	return b.String()
}

// meetingText collects the meeting's textual content for prompting.
func meetingText(m meeting.Meeting) string {
	var parts []string
	for _, doc := range m.Documents {
		if doc.Content != "" {
			parts = append(parts, doc.Content)
		}
	}
	if m.HasTranscript() {
		parts = append(parts, m.Transcript.Content)
	}
	return strings.Join(parts, "\n")
}
