package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Monitor      MonitorConfig
	SLA          SLAConfig
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

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
	Service     string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds the outbound fan-out targets for ticket events.
type NotificationConfig struct {
	KafkaBrokers       []string
	KafkaTopic         string
	RedisChannelPrefix string
}

// MonitorConfig drives the SLA monitor timer.
type MonitorConfig struct {
	IntervalMinutes        int  `yaml:"interval_minutes"`
	ShutdownTimeoutSeconds int  `yaml:"shutdown_timeout_seconds"`
	RunOnStart             bool `yaml:"run_on_start"`
}

// SLAConfig holds the fallback SLA hours used when the database has no row for a priority.
type SLAConfig struct {
	CriticalHours float64 `yaml:"critical_hours"`
	HighHours     float64 `yaml:"high_hours"`
	MediumHours   float64 `yaml:"medium_hours"`
	LowHours      float64 `yaml:"low_hours"`
}

// fileConfig is the optional YAML overlay. Environment variables win over it.
type fileConfig struct {
	Monitor MonitorConfig `yaml:"monitor"`
	SLA     SLAConfig     `yaml:"sla"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	file, err := loadFile(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "sla-guard")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
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
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", appEnv == "development"),
			Service:     appName,
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 1440),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			KafkaBrokers:       getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:         getEnv("KAFKA_TICKET_EVENTS_TOPIC", "sla-guard.ticket-events"),
			RedisChannelPrefix: getEnv("NOTIFY_REDIS_CHANNEL_PREFIX", "sla-guard:notifications"),
		},
		Monitor: MonitorConfig{
			IntervalMinutes:        getEnvAsInt("SLA_CHECK_INTERVAL_MINUTES", orInt(file.Monitor.IntervalMinutes, 5)),
			ShutdownTimeoutSeconds: getEnvAsInt("MONITOR_SHUTDOWN_TIMEOUT_SECONDS", orInt(file.Monitor.ShutdownTimeoutSeconds, 30)),
			RunOnStart:             getEnvAsBool("MONITOR_RUN_ON_START", file.Monitor.RunOnStart),
		},
		SLA: SLAConfig{
			CriticalHours: getEnvAsFloat("SLA_CRITICAL_HOURS", orFloat(file.SLA.CriticalHours, 4)),
			HighHours:     getEnvAsFloat("SLA_HIGH_HOURS", orFloat(file.SLA.HighHours, 8)),
			MediumHours:   getEnvAsFloat("SLA_MEDIUM_HOURS", orFloat(file.SLA.MediumHours, 24)),
			LowHours:      getEnvAsFloat("SLA_LOW_HOURS", orFloat(file.SLA.LowHours, 48)),
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

// Interval returns the tick interval; a non-positive setting falls back to one minute.
func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// ShutdownTimeout bounds how long shutdown waits for an in-flight tick.
func (m MonitorConfig) ShutdownTimeout() time.Duration {
	if m.ShutdownTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.ShutdownTimeoutSeconds) * time.Second
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return file, nil
		}
		return file, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orFloat(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
