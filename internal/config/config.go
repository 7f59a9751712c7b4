// Package config provides centralized configuration management for the
// import tooling. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Enrich   EnrichConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Not required: dry-run
	// imports use the in-memory store and never open a connection.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds batch import settings.
type ImportConfig struct {
	// Tenant is the default tenant when --tenant is not passed (default: default)
	Tenant string `env:"IMPORT_TENANT" default:"default"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 25MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"26214400"`

	// MaxErrorsShown caps how many errors the summary prints (default: 10)
	MaxErrorsShown int `env:"IMPORT_MAX_ERRORS_SHOWN" default:"10"`

	// Timeout is the maximum duration for a whole batch (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// EnrichConfig holds external song-metadata lookup settings.
type EnrichConfig struct {
	// Enabled controls whether new songs trigger a metadata lookup (default: true)
	Enabled bool `env:"ENRICH_ENABLED" default:"true"`

	// BaseURL overrides the chart site queried for metadata
	BaseURL string `env:"ENRICH_BASE_URL"`

	// Timeout bounds a single lookup (default: 10s)
	Timeout time.Duration `env:"ENRICH_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
