package config

import (
	"errors"

	"github.com/marmos91/fibd/pkg/adapter"
	"github.com/marmos91/fibd/pkg/adapter/fib"
	"github.com/marmos91/fibd/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// fibMetrics may be nil, in which case the adapter records nothing.
func CreateAdapters(cfg *Config, fibMetrics metrics.FibMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Fib.Enabled {
		adapters = append(adapters, fib.New(cfg.Adapters.Fib, fibMetrics))
	}

	if len(adapters) == 0 {
		return nil, errors.New("no adapters enabled in configuration")
	}

	return adapters, nil
}
