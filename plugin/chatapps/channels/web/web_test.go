package web

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/plugin/chatapps"
	"github.com/queryon/queryon/store"
)

func TestParseMessage(t *testing.T) {
	ch := New()
	ctx := context.Background()

	msg, err := ch.ParseMessage(ctx, []byte(`{"query": "  Çalışma saatleriniz nedir?  ", "conversation_id": "abc123"}`))
	require.NoError(t, err)
	assert.Equal(t, store.PlatformWeb, msg.Platform)
	assert.Equal(t, "abc123", msg.ChatID)
	assert.Equal(t, "Çalışma saatleriniz nedir?", msg.Text)

	// First turn carries no conversation id.
	msg, err = ch.ParseMessage(ctx, []byte(`{"query": "merhaba"}`))
	require.NoError(t, err)
	assert.Empty(t, msg.ChatID)

	_, err = ch.ParseMessage(ctx, []byte(`{"query": "   "}`))
	assert.ErrorIs(t, err, chatapps.ErrInvalidPayload)

	_, err = ch.ParseMessage(ctx, []byte(`query=hello`))
	assert.ErrorIs(t, err, chatapps.ErrInvalidPayload)
}

func TestChannelSurface(t *testing.T) {
	ch := New()

	assert.Equal(t, store.PlatformWeb, ch.Name())
	assert.NoError(t, ch.ValidateWebhook(context.Background(), nil, nil))
	assert.NoError(t, ch.SendMessage(context.Background(), &chatapps.OutgoingMessage{}))
	assert.NoError(t, ch.Close())
}
