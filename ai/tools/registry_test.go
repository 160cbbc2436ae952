package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

func toolConfigs() []*store.ToolConfig {
	return []*store.ToolConfig{
		{Name: "cargo", Description: "shipment tracking", Endpoint: "http://example.invalid/cargo", Enabled: true},
		{Name: "weather", Description: "weather lookup", Endpoint: "http://example.invalid/weather", Enabled: true},
		{Name: "legacy", Description: "disabled tool", Endpoint: "http://example.invalid/legacy", Enabled: false},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(toolConfigs())
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"cargo", "weather"}, r.Names())
	assert.Equal(t, []string{"cargo: shipment tracking", "weather: weather lookup"}, r.Descriptions())

	_, ok := r.Get("legacy")
	assert.False(t, ok)
}

func TestNewRegistry_DuplicateNameConflicts(t *testing.T) {
	configs := []*store.ToolConfig{
		{Name: "cargo", Enabled: true},
		{Name: "cargo", Enabled: true},
	}
	_, err := NewRegistry(configs)
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestRegistry_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "TRK-1", args["tracking_number"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "in transit"}`))
	}))
	defer srv.Close()

	r, err := NewRegistry([]*store.ToolConfig{{Name: "cargo", Endpoint: srv.URL, Enabled: true}})
	require.NoError(t, err)

	result, err := r.Invoke(context.Background(), "cargo", map[string]any{"tracking_number": "TRK-1"})
	require.NoError(t, err)
	assert.Equal(t, "in transit", result["status"])
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRegistry_InvokeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewRegistry([]*store.ToolConfig{{Name: "cargo", Endpoint: srv.URL, Enabled: true}})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "cargo", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindExternalService, errs.KindOf(err))
}

func TestRegistry_InvokeNonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	r, err := NewRegistry([]*store.ToolConfig{{Name: "cargo", Endpoint: srv.URL, Enabled: true}})
	require.NoError(t, err)

	result, err := r.Invoke(context.Background(), "cargo", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", result["raw"])
}
