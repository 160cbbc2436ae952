package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() map[string]any {
	return map[string]any{
		"client_id":     "cid",
		"client_secret": "csecret",
		"refresh_token": "rtok",
	}
}

func newProvider(t *testing.T, freeBusyStatus int, response string) (*Client, *freeBusyRequest) {
	t.Helper()
	var captured freeBusyRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "atok", "token_type": "Bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/freeBusy", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer atok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(freeBusyStatus)
		_, _ = w.Write([]byte(response))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient(Options{
		TokenURL:    srv.URL + "/token",
		FreeBusyURL: srv.URL + "/freeBusy",
		Timeout:     2 * time.Second,
	})
	return client, &captured
}

func TestFreeBusy_ReturnsRanges(t *testing.T) {
	response := `{
		"calendars": {
			"primary": {
				"busy": [
					{"start": "2026-06-15T10:00:00Z", "end": "2026-06-15T11:00:00Z"},
					{"start": "2026-06-15T14:30:00Z", "end": "2026-06-15T15:00:00Z"},
					{"start": "2026-06-15T16:00:00Z", "end": "2026-06-15T16:00:00Z"}
				]
			}
		}
	}`
	client, captured := newProvider(t, http.StatusOK, response)

	start := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	ranges, err := client.FreeBusy(context.Background(), testCredentials(), "primary", start, end)
	require.NoError(t, err)

	// The zero-length range is dropped.
	require.Len(t, ranges, 2)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), ranges[0].Start)
	assert.Equal(t, time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC), ranges[0].End)

	assert.Equal(t, "2026-06-15T00:00:00Z", captured.TimeMin)
	assert.Equal(t, "2026-06-16T00:00:00Z", captured.TimeMax)
	require.Len(t, captured.Items, 1)
	assert.Equal(t, "primary", captured.Items[0].ID)
}

func TestFreeBusy_PartialErrorsStillReturnBusy(t *testing.T) {
	response := `{
		"calendars": {
			"primary": {
				"busy": [{"start": "2026-06-15T10:00:00Z", "end": "2026-06-15T11:00:00Z"}],
				"errors": [{"reason": "notFound"}]
			}
		}
	}`
	client, _ := newProvider(t, http.StatusOK, response)

	ranges, err := client.FreeBusy(context.Background(), testCredentials(), "primary",
		time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestFreeBusy_ProviderErrorSurfaces(t *testing.T) {
	client, _ := newProvider(t, http.StatusForbidden, `{"error": {"message": "quota"}}`)

	_, err := client.FreeBusy(context.Background(), testCredentials(), "primary",
		time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFreeBusy_RejectsIncompleteCredentials(t *testing.T) {
	client := NewClient(Options{})

	_, err := client.FreeBusy(context.Background(), map[string]any{"client_id": "cid"}, "primary",
		time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_token")
}

func TestFreeBusy_RejectsEmptyCalendarID(t *testing.T) {
	client := NewClient(Options{})

	_, err := client.FreeBusy(context.Background(), testCredentials(), "",
		time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar id")
}
