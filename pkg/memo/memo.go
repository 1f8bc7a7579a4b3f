// Package memo provides the process-lifetime Fibonacci memoization table
// shared by every connection handler of a fibd server.
//
// A Table maps a non-negative index to its Fibonacci value. It starts with the
// seed entries {0:0, 1:1, 2:1} and only ever grows: the present indices are
// always exactly 0..HighWater(), and for every index i >= 2 the stored value
// is value(i-1) + value(i-2). Published values are never modified again.
//
// Two implementations are provided and they differ only in how growth is
// serialized:
//
//   - Locked guards the table with a sync.RWMutex. Lookups take the read
//     lock; the whole "read high-water mark / append next index" loop runs
//     under the write lock.
//   - Sequencer funnels every growth request through a single writer
//     goroutine and publishes immutable snapshots through an atomic pointer,
//     so lookups never block.
//
// Both compute each index at most once.
//
// Values are *big.Int so that large indices never overflow. Callers receive
// the published pointer and must treat it as read-only.
package memo

import (
	"math/big"
)

// Table is a concurrency-safe, monotonically growing Fibonacci table.
//
// Implementations must be safe for concurrent use by any number of
// goroutines, including goroutines racing to grow the table to different
// target indices.
type Table interface {
	// GetOrCompute returns the Fibonacci value for index, extending the
	// table contiguously up to index if it is not present yet.
	//
	// The caller must have validated index >= 0.
	GetOrCompute(index int) *big.Int

	// Lookup returns the value for index without growing the table.
	Lookup(index int) (*big.Int, bool)

	// Len returns the number of entries currently present (HighWater()+1).
	Len() int

	// HighWater returns the largest index currently present.
	HighWater() int

	// Close releases resources held by the table. The table stays readable
	// after Close. Close is idempotent.
	Close() error
}

// Observer receives cache events. It is used to export metrics and must be
// cheap and safe for concurrent use.
type Observer interface {
	// RecordHit is called when a requested index was already present.
	RecordHit()

	// RecordMiss is called when a requested index required growth.
	RecordMiss()

	// RecordGrowth is called after the table was extended by appended
	// entries, with size being the new number of entries.
	RecordGrowth(appended int, size int)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) RecordHit()                          {}
func (NoopObserver) RecordMiss()                         {}
func (NoopObserver) RecordGrowth(appended int, size int) {}

// seedSize is the number of entries a fresh table starts with.
const seedSize = 3

// seed returns the initial table contents {0:0, 1:1, 2:1}.
func seed(capacity int) []*big.Int {
	if capacity < seedSize {
		capacity = seedSize
	}
	values := make([]*big.Int, 0, capacity)
	return append(values, big.NewInt(0), big.NewInt(1), big.NewInt(1))
}

// extend appends entries to values until index target is present and
// returns the grown slice. Entries already present are left untouched.
//
// extend must only be called by the goroutine that currently owns the
// right to grow values.
func extend(values []*big.Int, target int) []*big.Int {
	for k := len(values); k <= target; k++ {
		next := new(big.Int).Add(values[k-1], values[k-2])
		values = append(values, next)
	}
	return values
}

// computeFrom returns value(target) using values as a starting point without
// storing anything. It is used once a table no longer accepts growth.
func computeFrom(values []*big.Int, target int) *big.Int {
	if target < len(values) {
		return values[target]
	}

	a := new(big.Int).Set(values[len(values)-2])
	b := new(big.Int).Set(values[len(values)-1])
	for k := len(values); k <= target; k++ {
		a.Add(a, b)
		a, b = b, a
	}
	return b
}

// Reference computes value(n) iteratively, independently of any table.
// It is intended for verification and tests.
func Reference(n int) *big.Int {
	a, b := big.NewInt(0), big.NewInt(1)
	for i := 0; i < n; i++ {
		a.Add(a, b)
		a, b = b, a
	}
	return a
}
