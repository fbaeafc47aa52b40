// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the fully validated, env-var-driven configuration assembled
// once at process startup and threaded through every service.
type AppConfig struct {
	Environment string // development | production
	LogLevel    string

	Server   ServerConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Cache    CacheConfig
	LLM      LLMConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Worker   WorkerConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the Postgres connection string and pool tuning.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// QueueConfig selects the job queue backend. An empty URL means the
// in-process, single-node backend is used instead of Redis Streams.
type QueueConfig struct {
	URL string
}

// InProcess reports whether no distributed queue backend was configured.
func (q QueueConfig) InProcess() bool { return q.URL == "" }

// CacheConfig selects the rate-limit/cache backend. An empty URL means the
// in-memory token-bucket limiter is used instead of Redis.
type CacheConfig struct {
	URL string
}

// InMemory reports whether no distributed cache backend was configured.
func (c CacheConfig) InMemory() bool { return c.URL == "" }

// LLMConfig configures the completion-provider adapter selection.
type LLMConfig struct {
	Provider string // anthropic | openai
	APIKey   string
	BaseURL  string // optional override, mainly for tests
}

// AuthConfig configures JWT issuance/verification.
type AuthConfig struct {
	SigningSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CORSConfig configures allowed cross-origin request origins.
type CORSConfig struct {
	AllowOrigins []string
}

// BillingConfig configures inbound billing-webhook signature verification.
type BillingConfig struct {
	WebhookSecret string
}

// WorkerConfig tunes the job-pipeline worker pool and orphan sweep.
type WorkerConfig struct {
	PoolSize                int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	HeartbeatInterval       time.Duration
	OrphanThreshold         time.Duration
	OrphanDetectionInterval time.Duration
	AgentTimeout            time.Duration
	AnalysisTimeout         time.Duration
	MaxConcurrentAnalyses   int
}

// Load assembles AppConfig from the process environment, loading a local
// .env file first (if present — a no-op in production where real env vars
// are injected by the deployment platform), then validates it fail-fast.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: getEnvIntOrDefault("PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Queue: QueueConfig{
			URL: os.Getenv("QUEUE_URL"),
		},
		Cache: CacheConfig{
			URL: os.Getenv("CACHE_URL"),
		},
		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "anthropic"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
		Auth: AuthConfig{
			SigningSecret:   os.Getenv("JWT_SIGNING_SECRET"),
			AccessTokenTTL:  getEnvDurationOrDefault("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDurationOrDefault("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		CORS: CORSConfig{
			AllowOrigins: splitAndTrim(getEnvOrDefault("CORS_ALLOW_ORIGINS", "")),
		},
		Billing: BillingConfig{
			WebhookSecret: os.Getenv("BILLING_WEBHOOK_SECRET"),
		},
		Worker: WorkerConfig{
			PoolSize:                getEnvIntOrDefault("WORKER_POOL_SIZE", defaultPoolSize()),
			PollInterval:            getEnvDurationOrDefault("WORKER_POLL_INTERVAL", 2*time.Second),
			PollIntervalJitter:      getEnvDurationOrDefault("WORKER_POLL_INTERVAL_JITTER", 500*time.Millisecond),
			HeartbeatInterval:       getEnvDurationOrDefault("WORKER_HEARTBEAT_INTERVAL", 10*time.Second),
			OrphanThreshold:         getEnvDurationOrDefault("WORKER_ORPHAN_THRESHOLD", 2*time.Minute),
			OrphanDetectionInterval: getEnvDurationOrDefault("WORKER_ORPHAN_INTERVAL", 5*time.Minute),
			AgentTimeout:            getEnvDurationOrDefault("AGENT_TIMEOUT", 90*time.Second),
			AnalysisTimeout:         getEnvDurationOrDefault("ANALYSIS_TIMEOUT", 5*time.Minute),
			MaxConcurrentAnalyses:   getEnvIntOrDefault("WORKER_MAX_CONCURRENT_ANALYSES", 16),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces the fail-fast boot invariants: a misconfigured secret or
// an overly permissive CORS policy in production must never serve traffic.
func (c *AppConfig) validate() error {
	if c.Environment != "development" && c.Environment != "production" {
		return newValidationError("ENVIRONMENT", "must be one of development, production")
	}

	if len(c.Auth.SigningSecret) < 32 {
		return newValidationError("JWT_SIGNING_SECRET", "must be set and at least 32 bytes")
	}

	if c.LLM.APIKey == "" {
		return newValidationError("LLM_API_KEY", "must be set")
	}

	if c.LLM.Provider != "anthropic" && c.LLM.Provider != "openai" {
		return newValidationError("LLM_PROVIDER", "must be one of anthropic, openai")
	}

	if c.IsProduction() {
		if c.Database.URL == "" {
			return newValidationError("DATABASE_URL", "required in production")
		}
		for _, origin := range c.CORS.AllowOrigins {
			if origin == "*" {
				return newValidationError("CORS_ALLOW_ORIGINS", "wildcard origin is not allowed in production")
			}
		}
		if c.Billing.WebhookSecret == "" {
			return newValidationError("BILLING_WEBHOOK_SECRET", "required in production")
		}
	}

	return nil
}

// IsProduction reports whether the configured environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func defaultPoolSize() int {
	n := 2
	if cpus := os.Getenv("GOMAXPROCS"); cpus != "" {
		if v, err := strconv.Atoi(cpus); err == nil && v > 0 {
			n = v
		}
	}
	size := 2 * n
	if size > 8 {
		size = 8
	}
	if size < 2 {
		size = 2
	}
	return size
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String renders a redacted summary suitable for startup logging.
func (c *AppConfig) String() string {
	return fmt.Sprintf(
		"environment=%s log_level=%s llm_provider=%s queue_backend=%s cache_backend=%s worker_pool_size=%d",
		c.Environment, c.LogLevel, c.LLM.Provider, queueBackendName(c.Queue), cacheBackendName(c.Cache), c.Worker.PoolSize,
	)
}

func queueBackendName(q QueueConfig) string {
	if q.InProcess() {
		return "in-process"
	}
	return "redis-streams"
}

func cacheBackendName(c CacheConfig) string {
	if c.InMemory() {
		return "in-memory"
	}
	return "redis"
}
