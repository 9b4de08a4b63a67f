package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Backend      BackendConfig
	Model        ModelConfig
	Retry        RetryConfig
	Batch        BatchConfig
	Reports      ReportConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Output string
}

// AuthConfig defines service token parameters.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// BackendConfig points the triage pipeline at a ticket backend. An empty URL
// means the local ticket store is used directly.
type BackendConfig struct {
	URL            string
	TimeoutSeconds int
}

// ModelConfig selects the text-generation provider.
type ModelConfig struct {
	Provider       string
	APIKey         string
	Name           string
	BaseURL        string
	MaxTokens      int
	TimeoutSeconds int
}

// RetryConfig holds the rate-limit retry policy for model calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelayMS int
	MaxDelayMS  int
	MaxJitterMS int
}

// BatchConfig controls the queue driver.
type BatchConfig struct {
	Status        string
	OpenOnly      bool
	Concurrency   int
	RatePerMinute int
}

// ReportConfig controls how long processing reports are kept.
type ReportConfig struct {
	TTLHours int
}

// NotificationConfig holds the webhook that urgent triage results and failed
// suggestion deliveries are posted to. An empty URL disables it.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	provider := strings.ToLower(getEnv("MODEL_PROVIDER", "none"))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Backend: BackendConfig{
			URL:            os.Getenv("OPS_BACKEND_URL"),
			TimeoutSeconds: getEnvAsInt("OPS_BACKEND_TIMEOUT_SECONDS", 10),
		},
		Model: ModelConfig{
			Provider:       provider,
			APIKey:         modelAPIKey(provider),
			Name:           os.Getenv("MODEL_NAME"),
			BaseURL:        os.Getenv("MODEL_BASE_URL"),
			MaxTokens:      getEnvAsInt("MODEL_MAX_TOKENS", 1024),
			TimeoutSeconds: getEnvAsInt("MODEL_TIMEOUT_SECONDS", 120),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("MODEL_RETRY_MAX_ATTEMPTS", 4),
			BaseDelayMS: getEnvAsInt("MODEL_RETRY_BASE_DELAY_MS", 1000),
			MaxDelayMS:  getEnvAsInt("MODEL_RETRY_MAX_DELAY_MS", 8000),
			MaxJitterMS: getEnvAsInt("MODEL_RETRY_MAX_JITTER_MS", 500),
		},
		Batch: BatchConfig{
			Status:        os.Getenv("BATCH_STATUS"),
			OpenOnly:      getEnvAsBool("PROCESS_OPEN_ONLY", false),
			Concurrency:   getEnvAsInt("BATCH_CONCURRENCY", 1),
			RatePerMinute: getEnvAsInt("BATCH_RATE_PER_MINUTE", 0),
		},
		Reports: ReportConfig{
			TTLHours: getEnvAsInt("REPORT_TTL_HOURS", 24),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP timeout used against the ticket backend.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Timeout returns the per-call model timeout.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// BaseDelay returns the first backoff step.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// MaxJitter returns the exclusive upper bound of the random jitter.
func (r RetryConfig) MaxJitter() time.Duration {
	return time.Duration(r.MaxJitterMS) * time.Millisecond
}

// TTL returns how long a processing report is cached.
func (r ReportConfig) TTL() time.Duration {
	if r.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(r.TTLHours) * time.Hour
}

// WebhookTimeout bounds one webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

func modelAPIKey(provider string) string {
	if key := os.Getenv("MODEL_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
