package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultEmailSubject = "Ticket Closed Due to Inactivity"
	DefaultEmailBody    = "Hi,\n\nJust letting you know this ticket has been closed due to inactivity. Please contact us should there still be issues."
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Closure      ClosureConfig
	Notification NotificationConfig
	SMTP         SMTPConfig
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
	DSN             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Service string
	Env     string
}

// ClosureConfig drives the inactivity closure job.
type ClosureConfig struct {
	InactivityThresholdDays int
	Schedule                string
	RunTimeoutSeconds       int
	LeaseTTLSeconds         int
}

// NotificationConfig holds the customer email content.
type NotificationConfig struct {
	EmailFrom    string
	EmailSubject string
	EmailBody    string
}

// SMTPConfig points at the outbound mail relay. An empty Host disables SMTP.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "ticket-autoclose")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8081"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: appName,
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: appName,
			Env:     appEnv,
		},
		Closure: ClosureConfig{
			InactivityThresholdDays: getEnvAsInt("CLOSURE_INACTIVITY_THRESHOLD_DAYS", 3),
			Schedule:                getEnv("CLOSURE_SCHEDULE", "0 * * * *"),
			RunTimeoutSeconds:       getEnvAsInt("CLOSURE_RUN_TIMEOUT_SECONDS", 600),
			LeaseTTLSeconds:         getEnvAsInt("CLOSURE_LEASE_TTL_SECONDS", 120),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailSubject: getEnv("NOTIFY_EMAIL_SUBJECT", DefaultEmailSubject),
			EmailBody:    getEnv("NOTIFY_EMAIL_BODY", DefaultEmailBody),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "25"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
		},
	}

	if cfg.Closure.InactivityThresholdDays <= 0 {
		return nil, errors.New("CLOSURE_INACTIVITY_THRESHOLD_DAYS must be positive")
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

// InactivityThreshold converts the configured day count to a duration.
func (c ClosureConfig) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityThresholdDays) * 24 * time.Hour
}

// RunTimeout bounds a single closure run. Zero means no deadline.
func (c ClosureConfig) RunTimeout() time.Duration {
	if c.RunTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// LeaseTTL bounds how long a per-ticket lease may be held.
func (c ClosureConfig) LeaseTTL() time.Duration {
	if c.LeaseTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// Addr returns the SMTP relay address.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
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
