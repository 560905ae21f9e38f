// Package config provides configuration management for the promotion ledger.
package config

import (
	"time"
)

// Config is the root configuration for the ledger.
type Config struct {
	// Storage configures where the ledger snapshot lives.
	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	// Scheduler configures artifact check dispatch.
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	// Persistence configures snapshot writes.
	Persistence PersistenceConfig `mapstructure:"persistence" json:"persistence"`
	// Output configures output settings.
	Output OutputConfig `mapstructure:"output" json:"output"`
}

// StorageConfig configures the snapshot location.
type StorageConfig struct {
	// Path is the directory holding ledger.json (default: ".ledger").
	Path string `mapstructure:"path" json:"path"`
}

// SchedulerConfig configures how artifacts are handed out for version checks.
type SchedulerConfig struct {
	// MinTimeSinceLastCheck is the minimum age of an artifact's previous check.
	MinTimeSinceLastCheck time.Duration `mapstructure:"min_time_since_last_check" json:"min_time_since_last_check"`
	// BatchSize caps the artifacts returned per dispatch.
	BatchSize int `mapstructure:"batch_size" json:"batch_size"`
	// LeaseTTL is how long a dispatched artifact stays reserved.
	LeaseTTL time.Duration `mapstructure:"lease_ttl" json:"lease_ttl"`
	// RedisAddr enables the shared Redis lease when set (host:port).
	RedisAddr string `mapstructure:"redis_addr" json:"redis_addr,omitempty"`
	// RedisPassword authenticates to Redis (can use env var expansion).
	RedisPassword string `mapstructure:"redis_password" json:"-"`
	// RedisDB selects the Redis database.
	RedisDB int `mapstructure:"redis_db" json:"redis_db,omitempty"`
}

// UsesRedis reports whether check leases are shared through Redis.
func (s SchedulerConfig) UsesRedis() bool {
	return s.RedisAddr != ""
}

// PersistenceConfig configures snapshot writes.
type PersistenceConfig struct {
	// RetryAttempts bounds write attempts; 0 disables retries.
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`
	// RetryInitialWait is the first backoff delay.
	RetryInitialWait time.Duration `mapstructure:"retry_initial_wait" json:"retry_initial_wait"`
	// RetryMaxWait caps the backoff delay.
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait" json:"retry_max_wait"`
}

// OutputConfig configures output settings.
type OutputConfig struct {
	// Format is the output format (text, json).
	Format string `mapstructure:"format" json:"format"`
	// Color enables colored output.
	Color bool `mapstructure:"color" json:"color"`
	// Verbose enables verbose output.
	Verbose bool `mapstructure:"verbose" json:"verbose"`
	// Quiet suppresses non-essential output.
	Quiet bool `mapstructure:"quiet" json:"quiet"`
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: ".ledger",
		},
		Scheduler: SchedulerConfig{
			MinTimeSinceLastCheck: 30 * time.Second,
			BatchSize:             20,
			LeaseTTL:              time.Minute,
		},
		Persistence: PersistenceConfig{
			RetryAttempts:    3,
			RetryInitialWait: 50 * time.Millisecond,
			RetryMaxWait:     time.Second,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			LogLevel: "info",
		},
	}
}

// ConfigFileNames to search for.
var ConfigFileNames = []string{
	"ledger.config",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"json",
	"toml",
}
