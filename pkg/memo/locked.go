package memo

import (
	"math/big"
	"sync"
)

// LockedConfig configures a Locked table.
type LockedConfig struct {
	// InitialCapacity preallocates room for this many entries.
	// 0 uses the seed size.
	InitialCapacity int `mapstructure:"initial_capacity" validate:"min=0"`
}

// Locked is a Table whose growth is serialized by a sync.RWMutex.
//
// Lookups of present indices only hold the read lock for the duration of a
// slice index. A caller that needs growth takes the write lock, re-checks
// the high-water mark (another caller may have grown the table while it was
// waiting) and then extends the table to its target in one pass.
type Locked struct {
	mu       sync.RWMutex
	values   []*big.Int
	observer Observer
}

// NewLocked creates a seeded Locked table. A nil observer disables events.
func NewLocked(config LockedConfig, observer Observer) *Locked {
	if observer == nil {
		observer = NoopObserver{}
	}

	return &Locked{
		values:   seed(config.InitialCapacity),
		observer: observer,
	}
}

// GetOrCompute implements Table.
func (t *Locked) GetOrCompute(index int) *big.Int {
	if v, ok := t.Lookup(index); ok {
		t.observer.RecordHit()
		return v
	}
	t.observer.RecordMiss()

	t.mu.Lock()
	defer t.mu.Unlock()

	before := len(t.values)
	if index >= before {
		t.values = extend(t.values, index)
		t.observer.RecordGrowth(len(t.values)-before, len(t.values))
	}
	return t.values[index]
}

// Lookup implements Table.
func (t *Locked) Lookup(index int) (*big.Int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.values) {
		return nil, false
	}
	return t.values[index], true
}

// Len implements Table.
func (t *Locked) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// HighWater implements Table.
func (t *Locked) HighWater() int {
	return t.Len() - 1
}

// Close implements Table. A Locked table holds no background resources.
func (t *Locked) Close() error {
	return nil
}
