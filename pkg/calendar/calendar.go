// Package calendar fetches upcoming meetings from Google Calendar.
//
// The adapter is optional: without credentials it reports itself
// disabled and queries proceed on historical data alone. Any failure
// at the calendar boundary wraps ErrCalendarUnavailable so callers
// degrade to empty upcoming results instead of failing the query.
package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

const (
	// defaultRequestTimeout bounds one calendar fetch inside an
	// interactive call.
	defaultRequestTimeout = 10 * time.Second

	defaultCalendarID = "primary"
)

// Source provides upcoming meetings for a time range.
type Source interface {
	// Events returns meetings within r, marked SourceUpcoming. A
	// degraded adapter returns an error wrapping ErrCalendarUnavailable.
	Events(ctx context.Context, r meeting.DateRange) ([]meeting.Meeting, error)
	// Enabled reports whether the adapter has credentials at all.
	Enabled() bool
}

// Disabled is the Source used when no Google credentials are
// configured. It returns empty results without error so queries stay
// purely historical.
type Disabled struct{}

func (Disabled) Events(context.Context, meeting.DateRange) ([]meeting.Meeting, error) {
	return nil, nil
}

func (Disabled) Enabled() bool { return false }

// OAuthConfig builds the OAuth2 config for the read-only calendar scope.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{gcal.CalendarReadonlyScope},
		Endpoint:     googleauth.Endpoint,
	}
}

// Client fetches events from the Google Calendar API.
type Client struct {
	service    *gcal.Service
	calendarID string
	timeout    time.Duration
	logger     logging.Logger
}

// ClientOption configures the calendar client.
type ClientOption func(*Client)

// WithCalendarID selects which calendar to read. Defaults to "primary".
func WithCalendarID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.calendarID = id
		}
	}
}

// WithRequestTimeout bounds each fetch.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an authenticated calendar client. The token's
// refresh token keeps the client valid across runs; the oauth2 client
// refreshes access tokens transparently.
func NewClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token, opts ...ClientOption) (*Client, error) {
	httpClient := config.Client(ctx, token)
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	c := &Client{
		service:    service,
		calendarID: defaultCalendarID,
		timeout:    defaultRequestTimeout,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Enabled() bool { return true }

// Events fetches events within r from the configured calendar. All-day
// events without a concrete start time are skipped.
func (c *Client) Events(ctx context.Context, r meeting.DateRange) ([]meeting.Meeting, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("fetching calendar events",
		logging.F("calendar_id", c.calendarID),
		logging.F("from", r.Start.Format(time.RFC3339)),
		logging.F("to", r.End.Format(time.RFC3339)))

	events, err := c.service.Events.List(c.calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(r.Start.Format(time.RFC3339)).
		TimeMax(r.End.Format(time.RFC3339)).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, gmerrors.CalendarUnavailablef("listing events: %v", err)
	}

	meetings := toMeetings(events.Items)
	c.logger.Debug("fetched calendar events", logging.F("count", len(meetings)))
	return meetings, nil
}

func toMeetings(items []*gcal.Event) []meeting.Meeting {
	var meetings []meeting.Meeting
	for _, item := range items {
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		var end time.Time
		if item.End != nil && item.End.DateTime != "" {
			end, _ = time.Parse(time.RFC3339, item.End.DateTime)
		}

		var attendees []string
		for _, a := range item.Attendees {
			if a.Email != "" {
				attendees = append(attendees, a.Email)
			}
		}

		meetings = append(meetings, meeting.Meeting{
			ID:           item.Id,
			Title:        item.Summary,
			Description:  item.Description,
			Location:     item.Location,
			Start:        start,
			End:          end,
			Participants: attendees,
			Source:       meeting.SourceUpcoming,
		})
	}
	return meetings
}
