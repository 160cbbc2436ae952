package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/ai/tools"
	"github.com/queryon/queryon/store"
)

func TestToolHandler_ListsTools(t *testing.T) {
	registry, err := tools.NewRegistry([]*store.ToolConfig{
		{Name: "kargo-takip", Description: "Kargo durumu sorgular", Endpoint: "http://tools.local/cargo", Enabled: true},
		{Name: "hava-durumu", Description: "Hava durumunu getirir", Endpoint: "http://tools.local/weather", Enabled: true},
	})
	require.NoError(t, err)

	h := NewToolHandler(registry)
	result, err := h.Handle(context.Background(), &Request{Query: "kargom nerede"})
	require.NoError(t, err)
	require.NotNil(t, result.Answer)
	assert.Contains(t, *result.Answer, "kargo-takip")
	assert.Contains(t, *result.Answer, "hava-durumu")
	assert.Nil(t, result.ToolCalled)
}

func TestToolHandler_EmptyRegistry(t *testing.T) {
	registry, err := tools.NewRegistry(nil)
	require.NoError(t, err)

	h := NewToolHandler(registry)
	result, err := h.Handle(context.Background(), &Request{Query: "kargom nerede"})
	require.NoError(t, err)
	assert.Nil(t, result.Answer)
}

func TestToolHandler_NilRegistry(t *testing.T) {
	h := NewToolHandler(nil)
	result, err := h.Handle(context.Background(), &Request{Query: "kargom nerede"})
	require.NoError(t, err)
	assert.Nil(t, result.Answer)
}
