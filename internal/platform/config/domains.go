package config

import "time"

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	PostgresDSN       string        `env:"POSTGRES_DSN"`
	MaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	MinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"5"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	HTTPPort   int `env:"HTTP_PORT" envDefault:"3000"`
	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
}

// QueueConfig holds the analysis job queue settings.
type QueueConfig struct {
	ValkeyAddr          string        `env:"VALKEY_ADDR" envDefault:"localhost:6379"`
	ValkeyPassword      string        `env:"VALKEY_PASSWORD"`
	AnalysisQueueKey    string        `env:"ANALYSIS_QUEUE_KEY" envDefault:"vibeanalyze:analysis"`
	AnalysisConcurrency int           `env:"ANALYSIS_CONCURRENCY" envDefault:"3"`
	QueuePollTimeout    time.Duration `env:"QUEUE_POLL_TIMEOUT" envDefault:"5s"`
}

// TelegramMTProtoConfig holds Telegram MTProto API settings.
type TelegramMTProtoConfig struct {
	TGAPIID             int           `env:"TG_API_ID"`
	TGAPIHash           string        `env:"TG_API_HASH"`
	TGPhone             string        `env:"TG_PHONE"`
	TG2FAPassword       string        `env:"TG_2FA_PASSWORD"`
	TGSessionPath       string        `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	TGRepliesPageSize   int           `env:"TG_REPLIES_PAGE_SIZE" envDefault:"100"`
	TGRepliesPageDelay  time.Duration `env:"TG_REPLIES_PAGE_DELAY" envDefault:"2s"`
	TGFloodWaitMaxDelay time.Duration `env:"TG_FLOOD_WAIT_MAX" envDefault:"5m"`
}

// AnalysisConfig holds provider selection and per-provider settings.
type AnalysisConfig struct {
	AnalyzeAIProvider        string        `env:"ANALYZE_AI_PROVIDER"`
	AnalysisPersistBatchSize int           `env:"ANALYSIS_PERSIST_BATCH_SIZE" envDefault:"300"`
	LLMRateLimitRPS          float64       `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`
	LLMRequestTimeout        time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`

	OllamaBaseURL    string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434/v1"`
	OllamaModel      string `env:"OLLAMA_MODEL" envDefault:"llama3.1"`
	OllamaChunkBytes int    `env:"OLLAMA_CHUNK_BYTES" envDefault:"1000"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiModel      string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiChunkBytes int    `env:"GEMINI_CHUNK_BYTES" envDefault:"6000"`

	DuckAIBaseURL    string `env:"DUCKAI_BASE_URL" envDefault:"https://duckduckgo.com/duckchat/v1"`
	DuckAIModel      string `env:"DUCKAI_MODEL" envDefault:"gpt-4o-mini"`
	DuckAIChunkBytes int    `env:"DUCKAI_CHUNK_BYTES" envDefault:"2000"`
	DuckAIFEVersion  string `env:"DUCKAI_FE_VERSION" envDefault:"serp_20250711_151537_ET-576c5771a56bc23aac8e"`

	BrowserUserDataDir string `env:"BROWSER_USER_DATA_DIR"`
	BrowserUserAgent   string `env:"BROWSER_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
}
