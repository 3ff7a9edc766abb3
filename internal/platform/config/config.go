package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
)

// Provider names accepted by ANALYZE_AI_PROVIDER.
const (
	ProviderOllama = "OLLAMA"
	ProviderGemini = "GEMINI"
	ProviderDuckAI = "DUCKAI"
	ProviderMock   = "MOCK"
)

const defaultChunkBytes = 6000

type Config struct {
	DatabaseConfig
	ServerConfig
	QueueConfig
	TelegramMTProtoConfig
	AnalysisConfig

	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	cfg.AnalyzeAIProvider = strings.ToUpper(strings.TrimSpace(cfg.AnalyzeAIProvider))

	return cfg, nil
}

// ValidateDatabase reports a missing POSTGRES_DSN. Only modes that open the
// database call it, so `telegram login` runs without one.
func (c *Config) ValidateDatabase() error {
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return &apperrors.ConfigurationError{Component: "database", Value: "POSTGRES_DSN", Reason: "not set"}
	}

	return nil
}

// ChunkBytesFor returns the chunk byte budget configured for a provider.
func (c *Config) ChunkBytesFor(provider string) int {
	var n int

	switch strings.ToUpper(provider) {
	case ProviderOllama:
		n = c.OllamaChunkBytes
	case ProviderGemini:
		n = c.GeminiChunkBytes
	case ProviderDuckAI:
		n = c.DuckAIChunkBytes
	}

	if n <= 0 {
		return defaultChunkBytes
	}

	return n
}

// IsLocal reports whether the process runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// applyAliases accepts the variable names used by the provider SDKs and the
// earlier deployment scripts when the canonical key is not set.
func applyAliases(cfg *Config) {
	if !hasEnv("GEMINI_API_KEY") {
		setStringFromEnv("GOOGLE_API_KEY", &cfg.GeminiAPIKey)
	}

	if !hasEnv("BROWSER_USER_DATA_DIR") {
		setStringFromEnv("PUPPETEER_USER_DATA_DIRECTORY_PATH", &cfg.BrowserUserDataDir)
	}

	if !hasEnv("OLLAMA_BASE_URL") {
		if host, ok := os.LookupEnv("OLLAMA_HOST"); ok && strings.TrimSpace(host) != "" {
			cfg.OllamaBaseURL = strings.TrimRight(strings.TrimSpace(host), "/") + "/v1"
		}
	}

	if !hasEnv("VALKEY_ADDR") {
		setStringFromEnv("REDIS_ADDR", &cfg.ValkeyAddr)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}
