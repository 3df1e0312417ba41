// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meonBot/master-vesta-2/internal/infrastructure/persistence/postgres"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/persistence/redis"
	httpapi "github.com/meonBot/master-vesta-2/internal/interface/http"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Database
	Database postgres.Config

	// DatabaseURL overrides Database when set.
	DatabaseURL string

	// Redis
	Redis RedisConfig

	// HTTP server
	HTTP httpapi.Config

	// Scheduler
	Scheduler SchedulerConfig

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// RedisConfig wraps the cache settings plus an off switch for development
// without Redis.
type RedisConfig struct {
	redis.Config

	// Disabled skips the roster cache entirely.
	Disabled bool
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	// Enabled toggles the whole scheduler.
	Enabled bool

	// StaleSweepInterval is how often stale groups are swept.
	StaleSweepInterval time.Duration

	// StaleGroupMaxAge is the grace period before an open group counts
	// as stale.
	StaleGroupMaxAge time.Duration

	// ReconcileInterval is how often counters are recounted.
	ReconcileInterval time.Duration
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		Database:      loadDatabaseConfig(),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Redis:         loadRedisConfig(),
		HTTP:          loadHTTPConfig(),
		Scheduler:     loadSchedulerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	return AppConfig{
		Name:            getEnv("APP_NAME", "vesta"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database = getEnv("DB_NAME", cfg.Database)
	cfg.User = getEnv("DB_USER", cfg.User)
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.SSLMode = getEnv("DB_SSLMODE", cfg.SSLMode)
	cfg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.MaxConns)))
	cfg.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(cfg.MinConns)))
	cfg.MaxConnLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.MaxConnLifetime)
	cfg.MaxConnIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.MaxConnIdleTime)
	return cfg
}

func loadRedisConfig() RedisConfig {
	cfg := redis.DefaultConfig()
	cfg.Host = getEnv("REDIS_HOST", cfg.Host)
	cfg.Port = getEnvInt("REDIS_PORT", cfg.Port)
	cfg.Password = getEnv("REDIS_PASSWORD", "")
	cfg.DB = getEnvInt("REDIS_DB", cfg.DB)
	cfg.PoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.PoolSize)
	return RedisConfig{
		Config:   cfg,
		Disabled: getEnvBool("REDIS_DISABLED", false),
	}
}

func loadHTTPConfig() httpapi.Config {
	cfg := httpapi.DefaultConfig()
	cfg.Host = getEnv("HTTP_HOST", cfg.Host)
	cfg.Port = getEnvInt("HTTP_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.EnableMetrics = getEnvBool("METRICS_ENABLED", cfg.EnableMetrics)
	return cfg
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:            getEnvBool("SCHEDULER_ENABLED", true),
		StaleSweepInterval: getEnvDuration("SCHEDULER_STALE_SWEEP_INTERVAL", 10*time.Minute),
		StaleGroupMaxAge:   getEnvDuration("SCHEDULER_STALE_GROUP_MAX_AGE", 24*time.Hour),
		ReconcileInterval:  getEnvDuration("SCHEDULER_RECONCILE_INTERVAL", time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Environment == EnvProduction {
		if c.DatabaseURL == "" && c.Database.Password == "" {
			errs = append(errs, "DATABASE_URL or DB_PASSWORD is required in production")
		}
		if c.Database.SSLMode == "disable" && c.DatabaseURL == "" {
			errs = append(errs, "DB_SSLMODE must not be disable in production")
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
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
