package memo_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marmos91/fibd/pkg/memo"
	memotesting "github.com/marmos91/fibd/pkg/memo/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocked(t *testing.T) {
	suite := &memotesting.TableTestSuite{
		NewTable: func() memo.Table {
			return memo.NewLocked(memo.LockedConfig{}, nil)
		},
	}
	suite.Run(t)
}

func TestLocked_Preallocated(t *testing.T) {
	suite := &memotesting.TableTestSuite{
		NewTable: func() memo.Table {
			return memo.NewLocked(memo.LockedConfig{InitialCapacity: 4096}, nil)
		},
	}
	suite.Run(t)
}

func TestSequencer(t *testing.T) {
	suite := &memotesting.TableTestSuite{
		NewTable: func() memo.Table {
			return memo.NewSequencer(memo.SequencerConfig{}, nil)
		},
	}
	suite.Run(t)
}

func TestSequencer_Buffered(t *testing.T) {
	suite := &memotesting.TableTestSuite{
		NewTable: func() memo.Table {
			return memo.NewSequencer(memo.SequencerConfig{QueueSize: 64}, nil)
		},
	}
	suite.Run(t)
}

// countingObserver counts events so tests can check how much work was done.
type countingObserver struct {
	hits     atomic.Int64
	misses   atomic.Int64
	appended atomic.Int64
	size     atomic.Int64
}

func (o *countingObserver) RecordHit()  { o.hits.Add(1) }
func (o *countingObserver) RecordMiss() { o.misses.Add(1) }
func (o *countingObserver) RecordGrowth(appended int, size int) {
	o.appended.Add(int64(appended))
	o.size.Store(int64(size))
}

func TestObserver(t *testing.T) {
	tables := map[string]func(memo.Observer) memo.Table{
		"locked": func(o memo.Observer) memo.Table {
			return memo.NewLocked(memo.LockedConfig{}, o)
		},
		"sequencer": func(o memo.Observer) memo.Table {
			return memo.NewSequencer(memo.SequencerConfig{}, o)
		},
	}

	for name, newTable := range tables {
		t.Run(name, func(t *testing.T) {
			obs := &countingObserver{}
			table := newTable(obs)
			defer table.Close()

			table.GetOrCompute(2)
			table.GetOrCompute(10)
			table.GetOrCompute(10)

			assert.Equal(t, int64(2), obs.hits.Load())
			assert.Equal(t, int64(1), obs.misses.Load())
			assert.Equal(t, int64(8), obs.appended.Load())
			assert.Equal(t, int64(11), obs.size.Load())
		})
	}
}

// Every index must be computed at most once, no matter how many callers race.
func TestComputedAtMostOnce(t *testing.T) {
	tables := map[string]func(memo.Observer) memo.Table{
		"locked": func(o memo.Observer) memo.Table {
			return memo.NewLocked(memo.LockedConfig{}, o)
		},
		"sequencer": func(o memo.Observer) memo.Table {
			return memo.NewSequencer(memo.SequencerConfig{QueueSize: 8}, o)
		},
	}

	for name, newTable := range tables {
		t.Run(name, func(t *testing.T) {
			obs := &countingObserver{}
			table := newTable(obs)
			defer table.Close()

			var wg sync.WaitGroup
			for w := 0; w < 100; w++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					table.GetOrCompute(100 + (i*37)%1500)
				}(w)
			}
			wg.Wait()

			high := table.HighWater()
			require.GreaterOrEqual(t, high, 100)
			assert.Equal(t, int64(high+1-3), obs.appended.Load())
		})
	}
}

func TestReference(t *testing.T) {
	want := []string{"0", "1", "1", "2", "3", "5", "8", "13", "21", "34", "55"}
	for n, w := range want {
		assert.Equal(t, w, memo.Reference(n).String(), "fib(%d)", n)
	}
}

func TestSequencer_CloseIsIdempotent(t *testing.T) {
	s := memo.NewSequencer(memo.SequencerConfig{}, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, "55", s.GetOrCompute(10).String())
	assert.Equal(t, 3, s.Len(), "a closed sequencer must not grow")
}

func BenchmarkLocked_Hit(b *testing.B) {
	table := memo.NewLocked(memo.LockedConfig{}, nil)
	table.GetOrCompute(1000)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			table.GetOrCompute(500)
		}
	})
}

func BenchmarkSequencer_Hit(b *testing.B) {
	table := memo.NewSequencer(memo.SequencerConfig{}, nil)
	defer table.Close()
	table.GetOrCompute(1000)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			table.GetOrCompute(500)
		}
	})
}
