package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the process configuration used to start the main server.
// Behavioural settings (routing flags, thresholds, field configs) live in the
// orchestrator_config row instead; the profile only carries plumbing.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	// All providers (openai, deepseek, siliconflow, openrouter, ollama) share the same config.
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  int // seconds, default 120

	// Embedding configuration. VectorSize must match the pgvector column width.
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingVectorSize int

	// Channel credentials. Tokens are read from the environment only and are
	// never persisted in the database.
	TelegramBotToken      string
	WhatsAppVerifyToken   string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAppSecret     string
	WhatsAppAPIVersion    string

	Mode        string
	Addr        string
	Data        string
	Driver      string
	DSN         string
	Version     string
	InstanceURL string

	Timezone      string
	CORSOrigins   []string
	AdminAPIKey   string
	ChatRateLimit string
	LogLevel      string
	LogDir        string

	Port int
}

// Provider default configurations for LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled reports whether an LLM provider is configured. Without a key
// the deterministic layers (rules, keyword classifier) still run.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// IsEmbeddingEnabled reports whether the embedding classifier and the
// knowledge-base retriever can run.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != "" || p.EmbeddingProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("LLM_TIMEOUT_SECONDS", 120)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.EmbeddingProvider = getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("EMBEDDING_BASE_URL", "")
	p.EmbeddingVectorSize = getEnvOrDefaultInt("EMBEDDING_VECTOR_SIZE", 1536)

	p.TelegramBotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", "")
	p.WhatsAppVerifyToken = getEnvOrDefault("WHATSAPP_VERIFY_TOKEN", "")
	p.WhatsAppAccessToken = getEnvOrDefault("WHATSAPP_ACCESS_TOKEN", "")
	p.WhatsAppPhoneNumberID = getEnvOrDefault("WHATSAPP_PHONE_NUMBER_ID", "")
	p.WhatsAppAppSecret = getEnvOrDefault("WHATSAPP_APP_SECRET", "")
	p.WhatsAppAPIVersion = getEnvOrDefault("WHATSAPP_API_VERSION", "v18.0")

	if p.DSN == "" {
		p.DSN = getEnvOrDefault("DATABASE_URL", "")
	}
	p.Timezone = getEnvOrDefault("BOT_TIMEZONE", "Europe/Istanbul")
	p.AdminAPIKey = getEnvOrDefault("ADMIN_API_KEY", "")
	p.ChatRateLimit = getEnvOrDefault("CHAT_RATE_LIMIT", "30/minute")
	p.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	p.LogDir = getEnvOrDefault("LOG_DIR", "")

	if origins := getEnvOrDefault("CORS_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				p.CORSOrigins = append(p.CORSOrigins, origin)
			}
		}
	}
}

// ParseRateLimit parses the CHAT_RATE_LIMIT grammar, e.g. "30/minute" or
// "10/second". Returns the number of events and the window they apply to.
func ParseRateLimit(s string) (int, time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid rate limit %q, expected N/window", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n <= 0 {
		return 0, 0, errors.Errorf("invalid rate limit count %q", parts[0])
	}
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "second":
		return n, time.Second, nil
	case "minute":
		return n, time.Minute, nil
	case "hour":
		return n, time.Hour, nil
	default:
		return 0, 0, errors.Errorf("invalid rate limit window %q", parts[1])
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		slog.Warn("invalid BOT_TIMEZONE, falling back to UTC", "timezone", p.Timezone)
		return time.UTC
	}
	return loc
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "queryon")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/queryon"
		}
	}

	if p.Data != "" || p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("queryon_%s.db", p.Mode)
		p.DSN = filepath.Join(p.Data, dbFile)
	}

	if p.DSN == "" {
		return errors.New("database DSN required, set DATABASE_URL or --dsn")
	}

	if _, _, err := ParseRateLimit(p.ChatRateLimit); err != nil {
		slog.Warn("invalid CHAT_RATE_LIMIT, using 30/minute", "value", p.ChatRateLimit)
		p.ChatRateLimit = "30/minute"
	}

	return nil
}
