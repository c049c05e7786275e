package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Issuer    IssuerConfig
	Provider  ProviderConfig
	Batch     BatchConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
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
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// IssuerConfig controls issuance behavior.
type IssuerConfig struct {
	DirectoryPath      string
	ActivationTTLHours int
	ExpirySweepSeconds int
}

// ProviderConfig points at the external identity provider.
type ProviderConfig struct {
	BaseURL        string
	TimeoutSeconds int
	RetryAttempts  int
}

// BatchConfig controls the batch queue and worker.
type BatchConfig struct {
	Stream           string
	Group            string
	Consumer         string
	MaxItems         int
	Concurrency      int
	ClaimIdleSeconds int
	ResultTTLHours   int
}

// EventsConfig names the outbound event stream.
type EventsConfig struct {
	Stream string
}

// RateLimitConfig bounds per-issuer issuance throughput.
type RateLimitConfig struct {
	IssuePerSecond float64
	IssueBurst     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	issuePerSecond, err := strconv.ParseFloat(getEnv("RATE_LIMIT_ISSUE_PER_SECOND", "50"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_ISSUE_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "identity-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Issuer: IssuerConfig{
			DirectoryPath:      getEnv("ISSUER_DIRECTORY_PATH", "issuers.yaml"),
			ActivationTTLHours: getEnvAsInt("ISSUER_ACTIVATION_TTL_HOURS", 24),
			ExpirySweepSeconds: getEnvAsInt("EXPIRY_SWEEP_INTERVAL_SECONDS", 60),
		},
		Provider: ProviderConfig{
			BaseURL:        os.Getenv("PROVIDER_BASE_URL"),
			TimeoutSeconds: getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 5),
			RetryAttempts:  getEnvAsInt("PROVIDER_RETRY_ATTEMPTS", 3),
		},
		Batch: BatchConfig{
			Stream:           getEnv("BATCH_STREAM", "identity.issue"),
			Group:            getEnv("BATCH_GROUP", "issuers"),
			Consumer:         getEnv("BATCH_CONSUMER", hostnameOr("worker-1")),
			MaxItems:         getEnvAsInt("BATCH_MAX_ITEMS", 100),
			Concurrency:      getEnvAsInt("BATCH_WORKER_CONCURRENCY", 4),
			ClaimIdleSeconds: getEnvAsInt("BATCH_CLAIM_IDLE_SECONDS", 60),
			ResultTTLHours:   getEnvAsInt("BATCH_RESULT_TTL_HOURS", 48),
		},
		Events: EventsConfig{
			Stream: getEnv("EVENTS_STREAM", "identity.events"),
		},
		RateLimit: RateLimitConfig{
			IssuePerSecond: issuePerSecond,
			IssueBurst:     getEnvAsInt("RATE_LIMIT_ISSUE_BURST", 100),
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

// ActivationTTL returns the default activation token lifetime.
func (i IssuerConfig) ActivationTTL() time.Duration {
	if i.ActivationTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(i.ActivationTTLHours) * time.Hour
}

// ExpirySweepInterval returns the expiry sweeper tick interval.
func (i IssuerConfig) ExpirySweepInterval() time.Duration {
	if i.ExpirySweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(i.ExpirySweepSeconds) * time.Second
}

func hostnameOr(fallback string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return fallback
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
