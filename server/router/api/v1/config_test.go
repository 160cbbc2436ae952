package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigUpdate(t *testing.T) {
	t.Run("applies known keys", func(t *testing.T) {
		update, unknown, err := parseConfigUpdate([]byte(`{
			"rules_first": false,
			"min_confidence": 0.7,
			"low_confidence_strategy": "ask_user",
			"llm_timeout_seconds": 45,
			"enabled_intents": ["faq", "appointment"]
		}`))
		require.NoError(t, err)
		assert.Empty(t, unknown)
		require.NotNil(t, update.RulesFirst)
		assert.False(t, *update.RulesFirst)
		require.NotNil(t, update.MinConfidence)
		assert.InDelta(t, 0.7, *update.MinConfidence, 1e-9)
		require.NotNil(t, update.LowConfidenceStrategy)
		assert.Equal(t, "ask_user", *update.LowConfidenceStrategy)
		require.NotNil(t, update.LLMTimeoutSeconds)
		assert.Equal(t, int32(45), *update.LLMTimeoutSeconds)
		require.NotNil(t, update.EnabledIntents)
		assert.Equal(t, []string{"faq", "appointment"}, *update.EnabledIntents)
	})

	t.Run("collects unknown keys sorted", func(t *testing.T) {
		update, unknown, err := parseConfigUpdate([]byte(`{
			"zeta": 1,
			"alpha": true,
			"rules_first": true
		}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zeta"}, unknown)
		require.NotNil(t, update.RulesFirst)
		assert.True(t, *update.RulesFirst)
	})

	t.Run("rejects bad strategy value", func(t *testing.T) {
		_, _, err := parseConfigUpdate([]byte(`{"low_confidence_strategy": "panic"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"panic"`)
	})

	t.Run("rejects confidence out of range", func(t *testing.T) {
		_, _, err := parseConfigUpdate([]byte(`{"min_confidence": 1.5}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_confidence")
	})

	t.Run("wrong type names the key", func(t *testing.T) {
		_, _, err := parseConfigUpdate([]byte(`{"llm_timeout_seconds": "soon"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm_timeout_seconds")
	})

	t.Run("malformed document rejected", func(t *testing.T) {
		_, _, err := parseConfigUpdate([]byte(`{"rules_first": `))
		require.Error(t, err)
	})

	t.Run("webhook settings are plain strings", func(t *testing.T) {
		update, unknown, err := parseConfigUpdate([]byte(`{
			"appointment_webhook_url": "https://crm.example.com/hook",
			"appointment_webhook_secret": "s3cret"
		}`))
		require.NoError(t, err)
		assert.Empty(t, unknown)
		require.NotNil(t, update.AppointmentWebhookURL)
		assert.Equal(t, "https://crm.example.com/hook", *update.AppointmentWebhookURL)
		require.NotNil(t, update.AppointmentWebhookSecret)
		assert.Equal(t, "s3cret", *update.AppointmentWebhookSecret)
	})
}
