package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/fibd/pkg/adapter/fib"
	"github.com/spf13/viper"
)

// Config represents the complete fibd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by cmd/fibd)
//  2. Environment variables (FIBD_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Cache Configuration Pattern:
// Each memo table implementation defines its own configuration type. The
// Cache section carries one option map per implementation and only the map
// matching Cache.Type is decoded (see CreateCache).
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Cache selects the memo table implementation
	Cache CacheConfig `mapstructure:"cache"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns metrics collection and the /metrics endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Host is the address the metrics server binds
	Host string `mapstructure:"host"`

	// Port is the metrics server port
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// CacheConfig specifies the memo table implementation.
type CacheConfig struct {
	// Type specifies which implementation to use
	// Valid values: locked, sequencer
	Type string `mapstructure:"type" validate:"required,oneof=locked sequencer"`

	// Locked contains options for the mutex-guarded table
	// Only used when Type = "locked"
	Locked map[string]any `mapstructure:"locked"`

	// Sequencer contains options for the single-writer table
	// Only used when Type = "sequencer"
	Sequencer map[string]any `mapstructure:"sequencer"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Fib contains the Fibonacci protocol configuration.
	// Uses the fib.FibConfig type directly to avoid duplication.
	Fib fib.FibConfig `mapstructure:"fib"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FIBD_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location; a missing file there
// is not an error. An explicit configPath must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	setViperDefaults(v)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FIBD_ADAPTERS_FIB_PORT=9000
	v.SetEnvPrefix("FIBD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/fibd/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setViperDefaults registers every key with viper so that environment
// variables can override values absent from the file, and so that an
// explicit port 0 in the file is told apart from an unset one.
func setViperDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.metrics.enabled", d.Server.Metrics.Enabled)
	v.SetDefault("server.metrics.host", d.Server.Metrics.Host)
	v.SetDefault("server.metrics.port", d.Server.Metrics.Port)

	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.locked.initial_capacity", d.Cache.Locked["initial_capacity"])
	v.SetDefault("cache.sequencer.queue_size", d.Cache.Sequencer["queue_size"])

	fibCfg := d.Adapters.Fib
	v.SetDefault("adapters.fib.enabled", fibCfg.Enabled)
	v.SetDefault("adapters.fib.host", fibCfg.Host)
	v.SetDefault("adapters.fib.port", fibCfg.Port)
	v.SetDefault("adapters.fib.max_connections", fibCfg.MaxConnections)
	v.SetDefault("adapters.fib.max_index", fibCfg.MaxIndex)
	v.SetDefault("adapters.fib.read_buffer_size", fibCfg.ReadBufferSize)
	v.SetDefault("adapters.fib.timeouts.read", fibCfg.Timeouts.Read)
	v.SetDefault("adapters.fib.timeouts.write", fibCfg.Timeouts.Write)
	v.SetDefault("adapters.fib.shutdown_timeout", fibCfg.ShutdownTimeout)
	v.SetDefault("adapters.fib.metrics_log_interval", fibCfg.MetricsLogInterval)
	v.SetDefault("adapters.fib.rate_limit.requests_per_second", fibCfg.RateLimit.RequestsPerSecond)
	v.SetDefault("adapters.fib.rate_limit.burst", fibCfg.RateLimit.Burst)
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Only reported when searching the default location.
			return nil
		}
		if configPath != "" {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fibd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fibd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
