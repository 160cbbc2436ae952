package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

func TestParseConversationFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		filter, err := parseConversationFilter("")
		require.NoError(t, err)
		assert.Nil(t, filter.Platform)
		assert.Nil(t, filter.Status)
	})

	t.Run("platform term", func(t *testing.T) {
		filter, err := parseConversationFilter(`platform == 'web'`)
		require.NoError(t, err)
		require.NotNil(t, filter.Platform)
		assert.Equal(t, store.PlatformWeb, *filter.Platform)
		assert.Nil(t, filter.Status)
	})

	t.Run("reversed operands", func(t *testing.T) {
		filter, err := parseConversationFilter(`'closed' == status`)
		require.NoError(t, err)
		require.NotNil(t, filter.Status)
		assert.Equal(t, store.ConversationClosed, *filter.Status)
	})

	t.Run("conjunction sets both terms", func(t *testing.T) {
		filter, err := parseConversationFilter(`platform == 'telegram' && status == 'active'`)
		require.NoError(t, err)
		require.NotNil(t, filter.Platform)
		require.NotNil(t, filter.Status)
		assert.Equal(t, store.PlatformTelegram, *filter.Platform)
		assert.Equal(t, store.ConversationActive, *filter.Status)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := parseConversationFilter(`platform == 'web' && phone == '123'`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "phone")
	})

	t.Run("inequality rejected", func(t *testing.T) {
		_, err := parseConversationFilter(`platform != 'web'`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only == and &&")
	})

	t.Run("malformed expression rejected", func(t *testing.T) {
		_, err := parseConversationFilter(`platform == `)
		require.Error(t, err)
	})
}
