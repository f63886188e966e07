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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Jobs         JobsConfig
	Team         TeamConfig
	Archive      ArchiveConfig
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

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// JobsConfig holds per-job cadences for the background orchestrator.
type JobsConfig struct {
	EscalationSweep time.Duration
	MonthlyStats    time.Duration
	TempFileCleanup time.Duration
	ArchiveReports  time.Duration
	DailySummary    time.Duration
	LowStockCheck   time.Duration
	HealthCheck     time.Duration
	RunTimeout      time.Duration
	TempDir         string
	TempFileMaxAge  time.Duration
}

// TeamConfig controls team assignment enforcement.
//
// StrictCapacity folds the capacity and leader-gate predicate into the
// membership insert under a row lock. When false the checks run as a
// separate read before the insert, which admits occasional overshoot
// under concurrent joins.
type TeamConfig struct {
	StrictCapacity bool
}

// ArchiveConfig controls the report archiving job.
type ArchiveConfig struct {
	DaysOld int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "maintenance-service"),
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
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Jobs: JobsConfig{
			EscalationSweep: getEnvAsDuration("JOB_ESCALATION_SWEEP_INTERVAL", 5*time.Minute),
			MonthlyStats:    getEnvAsDuration("JOB_MONTHLY_STATS_INTERVAL", 24*time.Hour),
			TempFileCleanup: getEnvAsDuration("JOB_TEMP_CLEANUP_INTERVAL", 24*time.Hour),
			ArchiveReports:  getEnvAsDuration("JOB_ARCHIVE_INTERVAL", 7*24*time.Hour),
			DailySummary:    getEnvAsDuration("JOB_DAILY_SUMMARY_INTERVAL", 24*time.Hour),
			LowStockCheck:   getEnvAsDuration("JOB_LOW_STOCK_INTERVAL", 24*time.Hour),
			HealthCheck:     getEnvAsDuration("JOB_HEALTH_CHECK_INTERVAL", 30*time.Minute),
			RunTimeout:      getEnvAsDuration("JOB_RUN_TIMEOUT", 5*time.Minute),
			TempDir:         getEnv("UPLOAD_TEMP_DIR", "uploads/tmp"),
			TempFileMaxAge:  getEnvAsDuration("UPLOAD_TEMP_MAX_AGE", 24*time.Hour),
		},
		Team: TeamConfig{
			StrictCapacity: getEnvAsBool("TEAM_STRICT_CAPACITY", true),
		},
		Archive: ArchiveConfig{
			DaysOld: getEnvAsInt("ARCHIVE_DAYS_OLD", 90),
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
