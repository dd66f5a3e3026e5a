// Package calendar reads events from the Google Calendar REST API using
// OAuth2 credentials stored on disk.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	readonlyScope  = "https://www.googleapis.com/auth/calendar.readonly"

	defaultCalendarID = "primary"
	defaultMaxResults = 50
	defaultTimeout    = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// Event is a single calendar entry. Start and End hold either an RFC3339
// timestamp or a bare date for all-day events.
type Event struct {
	Summary     string
	Start       string
	End         string
	Location    string
	Description string
}

// Config holds client settings. CredentialsPath and TokenPath are required;
// the rest fall back to defaults.
type Config struct {
	CredentialsPath string
	TokenPath       string
	CalendarID      string
	MaxResults      int
	Timeout         time.Duration
}

// Client fetches events for a single calendar.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	maxResults int
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a Client from an OAuth2 client-secret file and a stored token.
// The token must already exist; the interactive consent flow is out of scope
// here and handled by the auth command.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	credentials, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials, readonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}

	token, err := loadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: oauthCfg.Client(ctx, token),
		baseURL:    defaultBaseURL,
		calendarID: cfg.CalendarID,
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
	c.applyDefaults()
	return c, nil
}

func (c *Client) applyDefaults() {
	if c.calendarID == "" {
		c.calendarID = defaultCalendarID
	}
	if c.maxResults <= 0 {
		c.maxResults = defaultMaxResults
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
}

// loadToken reads a previously stored OAuth2 token from disk.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &token, nil
}

// eventTime mirrors the API's start/end object. DateTime is set for timed
// events, Date for all-day events.
type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t eventTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

type eventItem struct {
	Summary     string    `json:"summary"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventsResponse struct {
	Items []eventItem `json:"items"`
}

// EventsForDate returns the events on the given day, ordered by start time.
// The day window runs from local midnight to the following midnight.
func (c *Client) EventsForDate(ctx context.Context, day time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := url.Values{}
	query.Set("timeMin", dayStart.Format(time.RFC3339))
	query.Set("timeMax", dayEnd.Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", strconv.Itoa(c.maxResults))

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
		c.baseURL, url.PathEscape(c.calendarID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building events request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("closing events response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading events response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing events response: %w", err)
	}

	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		events = append(events, Event{
			Summary:     item.Summary,
			Start:       item.Start.value(),
			End:         item.End.value(),
			Location:    item.Location,
			Description: item.Description,
		})
	}

	c.logger.Debug("fetched calendar events",
		"date", dayStart.Format("2006-01-02"), "count", len(events))
	return events, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
