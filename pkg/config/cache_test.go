package config

import (
	"testing"

	"github.com/marmos91/fibd/pkg/memo"
)

func TestCreateCache(t *testing.T) {
	tests := []struct {
		name    string
		cache   CacheConfig
		wantErr bool
	}{
		{name: "locked defaults", cache: CacheConfig{Type: "locked"}},
		{name: "locked preallocated", cache: CacheConfig{Type: "locked", Locked: map[string]any{"initial_capacity": 1024}}},
		{name: "sequencer", cache: CacheConfig{Type: "sequencer", Sequencer: map[string]any{"queue_size": "32"}}},
		{name: "unknown type", cache: CacheConfig{Type: "redis"}, wantErr: true},
		{name: "unknown option", cache: CacheConfig{Type: "sequencer", Sequencer: map[string]any{"size": 1}}, wantErr: true},
		{name: "invalid option", cache: CacheConfig{Type: "locked", Locked: map[string]any{"initial_capacity": -5}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := CreateCache(&Config{Cache: tt.cache}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateCache failed: %v", err)
			}
			defer table.Close()

			if got := table.GetOrCompute(50).String(); got != "12586269025" {
				t.Errorf("fib(50) = %s", got)
			}
		})
	}
}

func TestCreateCache_SelectsImplementation(t *testing.T) {
	locked, err := CreateCache(&Config{Cache: CacheConfig{Type: "locked"}}, nil)
	if err != nil {
		t.Fatalf("CreateCache failed: %v", err)
	}
	if _, ok := locked.(*memo.Locked); !ok {
		t.Errorf("Expected *memo.Locked, got %T", locked)
	}

	sequencer, err := CreateCache(&Config{Cache: CacheConfig{Type: "sequencer"}}, nil)
	if err != nil {
		t.Fatalf("CreateCache failed: %v", err)
	}
	defer sequencer.Close()
	if _, ok := sequencer.(*memo.Sequencer); !ok {
		t.Errorf("Expected *memo.Sequencer, got %T", sequencer)
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()

	adapters, err := CreateAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Protocol() != "FIB" {
		t.Fatalf("Expected one FIB adapter, got %v", adapters)
	}
	if adapters[0].Port() != DefaultFibPort {
		t.Errorf("Expected port %d, got %d", DefaultFibPort, adapters[0].Port())
	}

	cfg.Adapters.Fib.Enabled = false
	if _, err := CreateAdapters(cfg, nil); err == nil {
		t.Error("Expected error with no adapters enabled")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.FibMetrics == nil || result.CacheMetrics == nil {
		t.Error("Expected no-op collectors when disabled")
	}
}
