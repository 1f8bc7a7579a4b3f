package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Fib.Enabled {
		return errors.New("adapters: at least one adapter must be enabled")
	}

	if cfg.Adapters.Fib.ShutdownTimeout > cfg.Server.ShutdownTimeout {
		return fmt.Errorf("adapters.fib.shutdown_timeout (%v) exceeds server.shutdown_timeout (%v)",
			cfg.Adapters.Fib.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port != 0 &&
		cfg.Server.Metrics.Port == cfg.Adapters.Fib.Port {
		return fmt.Errorf("server.metrics.port %d conflicts with adapters.fib.port", cfg.Server.Metrics.Port)
	}

	if cfg.Adapters.Fib.RateLimit.RequestsPerSecond == 0 && cfg.Adapters.Fib.RateLimit.Burst > 0 {
		return errors.New("adapters.fib.rate_limit: burst requires requests_per_second > 0")
	}

	// Decode the selected cache options now so typos fail at startup.
	if _, err := decodeCacheOptions(cfg.Cache); err != nil {
		return fmt.Errorf("cache.%s: %w", cfg.Cache.Type, err)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
