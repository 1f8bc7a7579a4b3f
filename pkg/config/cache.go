package config

import (
	"fmt"

	"github.com/marmos91/fibd/pkg/memo"
	"github.com/mitchellh/mapstructure"
)

// CreateCache builds the memo table selected by cfg.Cache.Type.
//
// The observer receives hit, miss and growth events; nil disables them.
// The caller owns the returned table and must Close it.
func CreateCache(cfg *Config, observer memo.Observer) (memo.Table, error) {
	options, err := decodeCacheOptions(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("invalid %s cache config: %w", cfg.Cache.Type, err)
	}

	switch opts := options.(type) {
	case memo.LockedConfig:
		return memo.NewLocked(opts, observer), nil
	case memo.SequencerConfig:
		return memo.NewSequencer(opts, observer), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Cache.Type)
	}
}

// decodeCacheOptions decodes the option map matching cfg.Type into the
// implementation's config struct and validates it.
func decodeCacheOptions(cfg CacheConfig) (any, error) {
	switch cfg.Type {
	case "locked":
		var lockedCfg memo.LockedConfig
		if err := decodeOptions(cfg.Locked, &lockedCfg); err != nil {
			return nil, err
		}
		return lockedCfg, nil
	case "sequencer":
		var sequencerCfg memo.SequencerConfig
		if err := decodeOptions(cfg.Sequencer, &sequencerCfg); err != nil {
			return nil, err
		}
		return sequencerCfg, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}

// decodeOptions decodes a type-specific option map into out, rejecting
// unknown keys.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(options); err != nil {
		return err
	}

	if err := validate.Struct(out); err != nil {
		return formatValidationError(err)
	}
	return nil
}
