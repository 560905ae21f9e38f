package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// EnvPrefix prefixes environment overrides, e.g. LEDGER_STORAGE_PATH.
const EnvPrefix = "LEDGER"

var (
	// envVarPattern matches ${VAR} or ${VAR:-default} syntax
	envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	// simpleEnvVarPattern matches $VAR syntax
	simpleEnvVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = append(l.searchPaths, paths...)
	return l
}

// Load loads the configuration: defaults, then the config file, then LEDGER_* variables.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, rperrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, rperrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	l.expandEnvVars(cfg)
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("storage.path", defaults.Storage.Path)

	l.v.SetDefault("scheduler.min_time_since_last_check", defaults.Scheduler.MinTimeSinceLastCheck)
	l.v.SetDefault("scheduler.batch_size", defaults.Scheduler.BatchSize)
	l.v.SetDefault("scheduler.lease_ttl", defaults.Scheduler.LeaseTTL)
	l.v.SetDefault("scheduler.redis_addr", defaults.Scheduler.RedisAddr)
	l.v.SetDefault("scheduler.redis_password", defaults.Scheduler.RedisPassword)
	l.v.SetDefault("scheduler.redis_db", defaults.Scheduler.RedisDB)

	l.v.SetDefault("persistence.retry_attempts", defaults.Persistence.RetryAttempts)
	l.v.SetDefault("persistence.retry_initial_wait", defaults.Persistence.RetryInitialWait)
	l.v.SetDefault("persistence.retry_max_wait", defaults.Persistence.RetryMaxWait)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.color", defaults.Output.Color)
	l.v.SetDefault("output.verbose", defaults.Output.Verbose)
	l.v.SetDefault("output.quiet", defaults.Output.Quiet)
	l.v.SetDefault("output.log_level", defaults.Output.LogLevel)
}

// loadConfigFile loads the explicit config file, or the first one found in the search paths.
func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	configFile, err := FindConfigFile(l.searchPaths...)
	if err != nil {
		// No config file found - defaults apply.
		return nil
	}
	l.v.SetConfigFile(configFile)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", configFile, err)
	}
	return nil
}

// expandEnvVars expands environment variables in path and credential fields.
func (l *Loader) expandEnvVars(cfg *Config) {
	cfg.Storage.Path = expandEnvVar(cfg.Storage.Path)
	cfg.Scheduler.RedisAddr = expandEnvVar(cfg.Scheduler.RedisAddr)
	cfg.Scheduler.RedisPassword = expandEnvVar(cfg.Scheduler.RedisPassword)
}

// expandEnvVar expands environment variables in a string.
// Supports both ${VAR} and $VAR syntax.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if value := os.Getenv(submatch[1]); value != "" {
			return value
		}
		if len(submatch) > 2 {
			return submatch[2]
		}
		return ""
	})

	return simpleEnvVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		if value := os.Getenv(match[1:]); value != "" {
			return value
		}
		return match
	})
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// MergeConfig overrides individual keys, e.g. from command-line flags.
func (l *Loader) MergeConfig(values map[string]any) {
	for key, value := range values {
		l.v.Set(key, value)
	}
}

// WriteConfig writes the configuration to a file. The format follows the extension.
func WriteConfig(cfg *Config, path string) error {
	const op = "config.WriteConfig"

	v := viper.New()
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("scheduler.min_time_since_last_check", cfg.Scheduler.MinTimeSinceLastCheck.String())
	v.Set("scheduler.batch_size", cfg.Scheduler.BatchSize)
	v.Set("scheduler.lease_ttl", cfg.Scheduler.LeaseTTL.String())
	if cfg.Scheduler.RedisAddr != "" {
		v.Set("scheduler.redis_addr", cfg.Scheduler.RedisAddr)
		v.Set("scheduler.redis_db", cfg.Scheduler.RedisDB)
	}
	v.Set("persistence.retry_attempts", cfg.Persistence.RetryAttempts)
	v.Set("persistence.retry_initial_wait", cfg.Persistence.RetryInitialWait.String())
	v.Set("persistence.retry_max_wait", cfg.Persistence.RetryMaxWait.String())
	v.Set("output", map[string]any{
		"format":    cfg.Output.Format,
		"color":     cfg.Output.Color,
		"verbose":   cfg.Output.Verbose,
		"quiet":     cfg.Output.Quiet,
		"log_level": cfg.Output.LogLevel,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return rperrors.ConfigWrap(err, op, "failed to write config file")
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a file.
func WriteDefaultConfig(path string) error {
	return WriteConfig(DefaultConfig(), path)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// LoadFromDirectory loads configuration from a directory.
func LoadFromDirectory(dir string) (*Config, error) {
	return NewLoader().WithSearchPaths(dir).Load()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}

	for _, searchPath := range searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					return configFile, nil
				}
			}
		}
	}

	return "", rperrors.New(rperrors.KindNotFound, "no config file found")
}

// ConfigExists returns true if a config file exists in the given directory.
func ConfigExists(dir string) bool {
	_, err := FindConfigFile(dir)
	return err == nil
}
