package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string

	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}

	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}

	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (e *ValidationError) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Addf adds a formatted error to the validation error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning to the validation error.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	errors *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: &ValidationError{},
	}
}

// Validate validates the configuration. Warnings do not fail validation;
// read them with Warnings.
func (v *Validator) Validate(cfg *Config) error {
	v.validateStorage(cfg.Storage)
	v.validateScheduler(cfg.Scheduler)
	v.validatePersistence(cfg.Persistence)
	v.validateOutput(cfg.Output)

	if v.errors.HasErrors() {
		return rperrors.Validation("config.Validate", v.errors.Error())
	}
	return nil
}

// Warnings returns the warnings collected by Validate.
func (v *Validator) Warnings() []string {
	return append([]string(nil), v.errors.Warnings...)
}

func (v *Validator) validateStorage(cfg StorageConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.errors.Addf("storage.path: required")
	}
}

func (v *Validator) validateScheduler(cfg SchedulerConfig) {
	if cfg.MinTimeSinceLastCheck < 0 {
		v.errors.Addf("scheduler.min_time_since_last_check: cannot be negative, got %s", cfg.MinTimeSinceLastCheck)
	}
	if cfg.BatchSize <= 0 {
		v.errors.Addf("scheduler.batch_size: must be positive, got %d", cfg.BatchSize)
	}
	if cfg.LeaseTTL <= 0 {
		v.errors.Addf("scheduler.lease_ttl: must be positive, got %s", cfg.LeaseTTL)
	}

	if cfg.UsesRedis() {
		if _, _, err := net.SplitHostPort(cfg.RedisAddr); err != nil {
			v.errors.Addf("scheduler.redis_addr: must be host:port, got %q", cfg.RedisAddr)
		}
		if cfg.RedisDB < 0 {
			v.errors.Addf("scheduler.redis_db: cannot be negative, got %d", cfg.RedisDB)
		}
		// A lease shorter than the check interval lets a second process pick
		// the artifact up while the first is still checking it.
		if cfg.LeaseTTL > 0 && cfg.LeaseTTL < cfg.MinTimeSinceLastCheck {
			v.errors.Warnf("scheduler.lease_ttl (%s) is shorter than min_time_since_last_check (%s)",
				cfg.LeaseTTL, cfg.MinTimeSinceLastCheck)
		}
	} else if cfg.RedisPassword != "" {
		v.errors.Warnf("scheduler.redis_password is set but redis_addr is empty; the local lease is used")
	}
}

func (v *Validator) validatePersistence(cfg PersistenceConfig) {
	if cfg.RetryAttempts < 0 {
		v.errors.Addf("persistence.retry_attempts: cannot be negative, got %d", cfg.RetryAttempts)
	}
	if cfg.RetryAttempts > 10 {
		v.errors.Warnf("persistence.retry_attempts: %d attempts can stall every mutation for a long time", cfg.RetryAttempts)
	}
	if cfg.RetryAttempts > 0 {
		if cfg.RetryInitialWait <= 0 {
			v.errors.Addf("persistence.retry_initial_wait: must be positive when retries are enabled")
		}
		if cfg.RetryMaxWait < cfg.RetryInitialWait {
			v.errors.Addf("persistence.retry_max_wait: must be at least retry_initial_wait (%s)", cfg.RetryInitialWait)
		}
		if cfg.RetryMaxWait > time.Minute {
			v.errors.Warnf("persistence.retry_max_wait: %s is longer than a minute", cfg.RetryMaxWait)
		}
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, cfg.Format) {
		v.errors.Addf("output.format: must be one of %v, got %q", validFormats, cfg.Format)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		v.errors.Addf("output.log_level: must be one of %v, got %q", validLogLevels, cfg.LogLevel)
	}

	if cfg.Quiet && cfg.Verbose {
		v.errors.Addf("output: quiet and verbose cannot both be enabled")
	}
}

// Validate is a convenience function to validate configuration.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// ValidateAndLoad loads and validates configuration.
func ValidateAndLoad() (*Config, error) {
	cfg, err := NewLoader().Load()
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
