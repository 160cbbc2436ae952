// Package calendar reads busy time from an external calendar provider so
// the availability engine can subtract it from bookable slots. Queries run
// over an OAuth2-refreshed connection built from the credentials blob stored
// on the calendar resource.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultFreeBusyURL = "https://www.googleapis.com/calendar/v3/freeBusy"
	defaultTimeout     = 15 * time.Second

	maxErrorBody = int64(64 << 10)
)

// BusyRange is one occupied interval in provider time.
type BusyRange struct {
	Start time.Time
	End   time.Time
}

// Options override the provider endpoints and the per-query timeout.
type Options struct {
	TokenURL    string
	FreeBusyURL string
	Timeout     time.Duration
}

// Client queries the provider's freebusy endpoint. Safe for concurrent use;
// tokens are refreshed per query from the resource's refresh token, so no
// token state is held between calls.
type Client struct {
	tokenURL    string
	freeBusyURL string
	timeout     time.Duration
}

func NewClient(opts Options) *Client {
	c := &Client{
		tokenURL:    opts.TokenURL,
		freeBusyURL: opts.FreeBusyURL,
		timeout:     opts.Timeout,
	}
	if c.tokenURL == "" {
		c.tokenURL = defaultTokenURL
	}
	if c.freeBusyURL == "" {
		c.freeBusyURL = defaultFreeBusyURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

type credentials struct {
	clientID     string
	clientSecret string
	refreshToken string
	tokenURL     string
}

func parseCredentials(blob map[string]any) (*credentials, error) {
	get := func(key string) string {
		s, _ := blob[key].(string)
		return strings.TrimSpace(s)
	}
	c := &credentials{
		clientID:     get("client_id"),
		clientSecret: get("client_secret"),
		refreshToken: get("refresh_token"),
		tokenURL:     get("token_url"),
	}
	if c.clientID == "" || c.clientSecret == "" || c.refreshToken == "" {
		return nil, errors.New("credentials blob must carry client_id, client_secret and refresh_token")
	}
	return c, nil
}

type freeBusyRequest struct {
	TimeMin string         `json:"timeMin"`
	TimeMax string         `json:"timeMax"`
	Items   []freeBusyItem `json:"items"`
}

type freeBusyItem struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"calendars"`
}

// FreeBusy returns the busy ranges of one calendar between start and end.
// Inverted ranges from the provider are dropped. Partial per-calendar errors
// are logged and the remaining busy list is still returned.
func (c *Client) FreeBusy(ctx context.Context, creds map[string]any, calendarID string, start, end time.Time) ([]BusyRange, error) {
	parsed, err := parseCredentials(creds)
	if err != nil {
		return nil, err
	}
	if calendarID == "" {
		return nil, errors.New("calendar id is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tokenURL := c.tokenURL
	if parsed.tokenURL != "" {
		tokenURL = parsed.tokenURL
	}
	conf := &oauth2.Config{
		ClientID:     parsed.clientID,
		ClientSecret: parsed.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, &oauth2.Token{RefreshToken: parsed.refreshToken}))

	body, err := json.Marshal(freeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []freeBusyItem{{ID: calendarID}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode freebusy request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.freeBusyURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build freebusy request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "freebusy query")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Errorf("freebusy query failed: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode freebusy response")
	}

	cal := out.Calendars[calendarID]
	for _, e := range cal.Errors {
		slog.Warn("freebusy partial error", "calendar", calendarID, "reason", e.Reason)
	}
	ranges := make([]BusyRange, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		if !b.End.After(b.Start) {
			continue
		}
		ranges = append(ranges, BusyRange{Start: b.Start, End: b.End})
	}
	return ranges, nil
}
