// Package testing provides a conformance suite for memo.Table implementations.
//
// Every implementation of memo.Table should pass this suite:
//
//	func TestLocked(t *testing.T) {
//	    suite := &memotesting.TableTestSuite{
//	        NewTable: func() memo.Table {
//	            return memo.NewLocked(memo.LockedConfig{}, nil)
//	        },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"math/big"
	"math/rand"
	"sync"
	"testing"

	"github.com/marmos91/fibd/pkg/memo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TableTestSuite runs the memo.Table contract against an implementation.
type TableTestSuite struct {
	// NewTable returns a fresh, seeded table. The suite closes it.
	NewTable func() memo.Table
}

// Run executes every test of the suite.
func (suite *TableTestSuite) Run(t *testing.T) {
	t.Run("Seed", suite.testSeed)
	t.Run("Boundaries", suite.testBoundaries)
	t.Run("GrowContiguous", suite.testGrowContiguous)
	t.Run("Idempotent", suite.testIdempotent)
	t.Run("LookupDoesNotGrow", suite.testLookupDoesNotGrow)
	t.Run("LargeIndex", suite.testLargeIndex)
	t.Run("ConcurrentGrowth", suite.testConcurrentGrowth)
	t.Run("ConcurrentSameTarget", suite.testConcurrentSameTarget)
	t.Run("ReadableAfterClose", suite.testReadableAfterClose)
}

func (suite *TableTestSuite) newTable(t *testing.T) memo.Table {
	t.Helper()
	table := suite.NewTable()
	require.NotNil(t, table)
	t.Cleanup(func() { _ = table.Close() })
	return table
}

// AssertRecurrence checks every present index of table against the
// Fibonacci recurrence and the seed values.
func AssertRecurrence(t *testing.T, table memo.Table) {
	t.Helper()

	n := table.Len()
	values := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		v, ok := table.Lookup(i)
		require.Truef(t, ok, "index %d missing below high-water mark %d", i, n-1)
		values[i] = v
	}

	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, int64(0), values[0].Int64())
	assert.Equal(t, int64(1), values[1].Int64())
	assert.Equal(t, int64(1), values[2].Int64())

	sum := new(big.Int)
	for i := 2; i < n; i++ {
		sum.Add(values[i-1], values[i-2])
		if sum.Cmp(values[i]) != 0 {
			t.Fatalf("recurrence broken at index %d: got %s, want %s", i, values[i], sum)
		}
	}
}

func (suite *TableTestSuite) testSeed(t *testing.T) {
	table := suite.newTable(t)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 2, table.HighWater())
	AssertRecurrence(t, table)
}

func (suite *TableTestSuite) testBoundaries(t *testing.T) {
	table := suite.newTable(t)

	assert.Equal(t, "0", table.GetOrCompute(0).String())
	assert.Equal(t, "1", table.GetOrCompute(1).String())
	assert.Equal(t, "1", table.GetOrCompute(2).String())
	assert.Equal(t, 3, table.Len(), "seed lookups must not grow the table")
}

func (suite *TableTestSuite) testGrowContiguous(t *testing.T) {
	table := suite.newTable(t)

	assert.Equal(t, "55", table.GetOrCompute(10).String())
	assert.Equal(t, 11, table.Len())
	assert.Equal(t, 10, table.HighWater())

	assert.Equal(t, "6765", table.GetOrCompute(20).String())
	assert.Equal(t, 21, table.Len())

	AssertRecurrence(t, table)
}

func (suite *TableTestSuite) testIdempotent(t *testing.T) {
	table := suite.newTable(t)

	for _, n := range []int{0, 1, 2, 7, 93, 94, 300, 150} {
		first := table.GetOrCompute(n)
		second := table.GetOrCompute(n)
		assert.Equalf(t, 0, first.Cmp(second), "fib(%d) changed between calls", n)
		assert.Equalf(t, 0, first.Cmp(memo.Reference(n)), "fib(%d) differs from reference", n)
	}
}

func (suite *TableTestSuite) testLookupDoesNotGrow(t *testing.T) {
	table := suite.newTable(t)

	_, ok := table.Lookup(50)
	assert.False(t, ok)
	_, ok = table.Lookup(-1)
	assert.False(t, ok)
	assert.Equal(t, 3, table.Len())

	table.GetOrCompute(50)
	v, ok := table.Lookup(50)
	require.True(t, ok)
	assert.Equal(t, "12586269025", v.String())
}

func (suite *TableTestSuite) testLargeIndex(t *testing.T) {
	table := suite.newTable(t)

	// fib(100) no longer fits in 64 bits.
	assert.Equal(t, "354224848179261915075", table.GetOrCompute(100).String())
	assert.Equal(t, 0, table.GetOrCompute(5000).Cmp(memo.Reference(5000)))
	AssertRecurrence(t, table)
}

func (suite *TableTestSuite) testConcurrentGrowth(t *testing.T) {
	table := suite.newTable(t)

	const workers = 64
	const perWorker = 20

	var wg sync.WaitGroup
	mismatches := make(chan int, workers*perWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				n := 1 + rng.Intn(2000)
				if table.GetOrCompute(n).Cmp(memo.Reference(n)) != 0 {
					mismatches <- n
				}
			}
		}(int64(w))
	}

	wg.Wait()
	close(mismatches)

	for n := range mismatches {
		t.Errorf("wrong value for fib(%d)", n)
	}
	AssertRecurrence(t, table)
}

func (suite *TableTestSuite) testConcurrentSameTarget(t *testing.T) {
	table := suite.newTable(t)

	const workers = 50
	results := make([]*big.Int, workers)

	var start sync.WaitGroup
	start.Add(1)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			results[i] = table.GetOrCompute(1000)
		}(w)
	}
	start.Done()
	wg.Wait()

	want := memo.Reference(1000)
	for i, got := range results {
		require.NotNil(t, got)
		assert.Equalf(t, 0, got.Cmp(want), "worker %d got a wrong value", i)
	}
	assert.Equal(t, 1001, table.Len())
	AssertRecurrence(t, table)
}

func (suite *TableTestSuite) testReadableAfterClose(t *testing.T) {
	table := suite.NewTable()
	table.GetOrCompute(30)
	require.NoError(t, table.Close())
	require.NoError(t, table.Close())

	assert.Equal(t, "832040", table.GetOrCompute(30).String())
	assert.Equal(t, 0, table.GetOrCompute(60).Cmp(memo.Reference(60)))
}
