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
	Penalty      PenaltyConfig
	Scheduler    SchedulerConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	PushTopic  string
}

// PenaltyConfig tunes the operational knobs of the penalty engine. The point
// thresholds themselves are fixed in the domain package.
type PenaltyConfig struct {
	RepeatWindowDays     int
	LateCancelHours      int
	DetectionTokenTTLHrs int
	ResetConcurrency     int
}

// SchedulerConfig controls the in-process job scheduler.
type SchedulerConfig struct {
	Enabled                 bool
	QuarterlyResetSpec      string
	CertificateSweepSpec    string
	SuspensionSweepSpec     string
	CertificateReminderDays int
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

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "penalty-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			PushTopic:  getEnv("NOTIFY_PUSH_TOPIC", ""),
		},
		Penalty: PenaltyConfig{
			RepeatWindowDays:     getEnvAsInt("PENALTY_REPEAT_WINDOW_DAYS", 7),
			LateCancelHours:      getEnvAsInt("PENALTY_LATE_CANCEL_HOURS", 24),
			DetectionTokenTTLHrs: getEnvAsInt("PENALTY_DETECTION_TOKEN_TTL_HOURS", 24*90),
			ResetConcurrency:     getEnvAsInt("PENALTY_RESET_CONCURRENCY", 8),
		},
		Scheduler: SchedulerConfig{
			Enabled:                 getEnvAsBool("SCHEDULER_ENABLED", true),
			QuarterlyResetSpec:      getEnv("SCHEDULER_QUARTERLY_RESET_SPEC", "0 0 1 1,4,7,10 *"),
			CertificateSweepSpec:    getEnv("SCHEDULER_CERTIFICATE_SWEEP_SPEC", "0 3 * * *"),
			SuspensionSweepSpec:     getEnv("SCHEDULER_SUSPENSION_SWEEP_SPEC", "*/15 * * * *"),
			CertificateReminderDays: getEnvAsInt("SCHEDULER_CERTIFICATE_REMINDER_DAYS", 7),
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

// RepeatWindow returns the look-back window used to escalate repeated violations.
func (p PenaltyConfig) RepeatWindow() time.Duration {
	if p.RepeatWindowDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(p.RepeatWindowDays) * 24 * time.Hour
}

// LateCancelWindow returns how close to the appointment a cancellation counts as late.
func (p PenaltyConfig) LateCancelWindow() time.Duration {
	if p.LateCancelHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.LateCancelHours) * time.Hour
}

// DetectionTokenTTL returns how long a detection idempotency token is remembered.
func (p PenaltyConfig) DetectionTokenTTL() time.Duration {
	if p.DetectionTokenTTLHrs <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(p.DetectionTokenTTLHrs) * time.Hour
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
