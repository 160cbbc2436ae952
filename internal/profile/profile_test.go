package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_TIMEOUT_SECONDS",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_VECTOR_SIZE",
		"BOT_TIMEZONE", "CHAT_RATE_LIMIT", "CORS_ORIGINS", "WHATSAPP_API_VERSION",
	} {
		t.Setenv(key, "")
	}

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-4o-mini", p.LLMModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, "text-embedding-3-small", p.EmbeddingModel)
	assert.Equal(t, 1536, p.EmbeddingVectorSize)
	assert.Equal(t, "Europe/Istanbul", p.Timezone)
	assert.Equal(t, "30/minute", p.ChatRateLimit)
	assert.Equal(t, "v18.0", p.WhatsAppAPIVersion)
	assert.Empty(t, p.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Run("provider defaults fill base url and model", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "deepseek")
		t.Setenv("LLM_BASE_URL", "")
		t.Setenv("LLM_MODEL", "")

		p := &Profile{}
		p.FromEnv()

		assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
		assert.Equal(t, "deepseek-chat", p.LLMModel)
	})

	t.Run("explicit base url wins over provider default", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "openai")
		t.Setenv("LLM_BASE_URL", "https://proxy.internal/v1")

		p := &Profile{}
		p.FromEnv()

		assert.Equal(t, "https://proxy.internal/v1", p.LLMBaseURL)
	})

	t.Run("unknown provider falls back to openai", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "watson")
		t.Setenv("LLM_BASE_URL", "")

		p := &Profile{}
		p.FromEnv()

		assert.Equal(t, "openai", p.LLMProvider)
		assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	})

	t.Run("embedding key falls back to llm key", func(t *testing.T) {
		t.Setenv("LLM_API_KEY", "sk-shared")
		t.Setenv("EMBEDDING_API_KEY", "")

		p := &Profile{}
		p.FromEnv()

		assert.Equal(t, "sk-shared", p.EmbeddingAPIKey)
	})

	t.Run("cors origins split and trimmed", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

		p := &Profile{}
		p.FromEnv()

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, p.CORSOrigins)
	})
}

func TestProviderToggles(t *testing.T) {
	t.Run("llm disabled without key", func(t *testing.T) {
		p := &Profile{LLMProvider: "openai"}
		assert.False(t, p.IsLLMEnabled())
	})

	t.Run("llm enabled with key", func(t *testing.T) {
		p := &Profile{LLMProvider: "openai", LLMAPIKey: "sk-x"}
		assert.True(t, p.IsLLMEnabled())
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		p := &Profile{LLMProvider: "ollama"}
		assert.True(t, p.IsLLMEnabled())
		p2 := &Profile{EmbeddingProvider: "ollama"}
		assert.True(t, p2.IsEmbeddingEnabled())
	})
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		in     string
		n      int
		window time.Duration
		ok     bool
	}{
		{"30/minute", 30, time.Minute, true},
		{"10/second", 10, time.Second, true},
		{"100/hour", 100, time.Hour, true},
		{" 5 / Minute ", 5, time.Minute, true},
		{"abc", 0, 0, false},
		{"0/minute", 0, 0, false},
		{"-3/minute", 0, 0, false},
		{"5/fortnight", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, window, err := ParseRateLimit(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, tt.window, window)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("rejects unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "oracle"}
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("normalises unknown mode to demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir(), ChatRateLimit: "30/minute"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("synthesises sqlite dsn under the data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir, ChatRateLimit: "30/minute"}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "queryon_dev.db"), p.DSN)
	})

	t.Run("postgres requires a dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", ChatRateLimit: "30/minute"}
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DSN required")
	})

	t.Run("invalid rate limit resets to default", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", DSN: "postgres://x", ChatRateLimit: "lots"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "30/minute", p.ChatRateLimit)
	})
}

func TestLocation(t *testing.T) {
	p := &Profile{Timezone: "Europe/Istanbul"}
	assert.Equal(t, "Europe/Istanbul", p.Location().String())

	bad := &Profile{Timezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, bad.Location())
}
