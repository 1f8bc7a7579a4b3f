package config

import (
	"strings"
	"time"

	"github.com/marmos91/fibd/pkg/adapter/fib"
)

const (
	// DefaultFibPort is the port the Fibonacci adapter listens on when the
	// configuration does not say otherwise.
	DefaultFibPort = 7878

	// DefaultMetricsPort is the default Prometheus endpoint port.
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are preserved.
// Two fields are exceptions because their zero value is meaningful:
// adapters.fib.port (0 = ephemeral) and adapters.fib.enabled. Their
// defaults come from the viper layer in Load and from GetDefaultConfig.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyCacheDefaults(&cfg.Cache)
	applyFibDefaults(&cfg.Adapters.Fib)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// applyCacheDefaults selects the locked table and fills every option map so
// that generated config files document all implementations.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = "locked"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Locked == nil {
		cfg.Locked = make(map[string]any)
	}
	if cfg.Sequencer == nil {
		cfg.Sequencer = make(map[string]any)
	}

	if _, ok := cfg.Locked["initial_capacity"]; !ok {
		cfg.Locked["initial_capacity"] = 0
	}
	if _, ok := cfg.Sequencer["queue_size"]; !ok {
		cfg.Sequencer["queue_size"] = 0
	}
}

// applyFibDefaults sets Fibonacci adapter defaults.
//
// MaxConnections, MaxIndex and the rate limit default to 0 (unlimited).
func applyFibDefaults(cfg *fib.FibConfig) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = fib.DefaultReadBufferSize
	}

	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = 30 * time.Second
	}

	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = 30 * time.Second
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Fib: fib.FibConfig{
				Enabled: true,
				Port:    DefaultFibPort,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
