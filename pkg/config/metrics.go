package config

import (
	"github.com/marmos91/fibd/pkg/metrics"
	promMetrics "github.com/marmos91/fibd/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FibMetrics is the collector for the Fibonacci adapter (never nil, uses noop if disabled)
	FibMetrics metrics.FibMetrics

	// CacheMetrics observes the memo table (never nil, uses noop if disabled)
	CacheMetrics metrics.CacheMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:       nil,
			FibMetrics:   metrics.NewNoopFibMetrics(),
			CacheMetrics: metrics.NewNoopCacheMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Host: cfg.Server.Metrics.Host,
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:       server,
		FibMetrics:   promMetrics.NewFibMetrics(),
		CacheMetrics: promMetrics.NewCacheMetrics(),
	}
}
