// Package config loads the runtime configuration for the orchestration
// substrate from the environment, with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the flat runtime configuration. Every field has an environment
// variable and a default; validation rejects out-of-range values.
type Config struct {
	// DatabasePath is the SQLite file backing the audit log and dead-letter
	// stores. SALESOPS_DB_PATH.
	DatabasePath string `validate:"required"`

	// RedisURL points at the shared key/value service. SALESOPS_REDIS_URL.
	RedisURL string `validate:"required,uri"`

	// MaxRetries bounds the retry policy applied by the state machine.
	// SALESOPS_MAX_RETRIES.
	MaxRetries int `validate:"gte=0"`

	// LogLevel is the minimum log level. SALESOPS_LOG_LEVEL.
	LogLevel string `validate:"oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output. SALESOPS_LOG_FORMAT.
	LogFormat string `validate:"oneof=console json"`

	// MetricsEnabled turns Prometheus collection on. SALESOPS_METRICS_ENABLED.
	MetricsEnabled bool

	// TracingEnabled turns span export on. SALESOPS_TRACING_ENABLED.
	TracingEnabled bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath: "salesops.db",
		RedisURL:     "redis://localhost:6379/0",
		MaxRetries:   3,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load reads configuration from the environment on top of the defaults. A
// .env file in the working directory is applied first if present.
func Load() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("SALESOPS_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("SALESOPS_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("SALESOPS_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SALESOPS_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("SALESOPS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SALESOPS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SALESOPS_METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SALESOPS_TRACING_ENABLED"); v != "" {
		cfg.TracingEnabled = v == "true" || v == "1"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
