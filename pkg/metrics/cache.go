package metrics

import (
	"github.com/marmos91/fibd/pkg/memo"
)

// CacheMetrics collects memo table events (hits, misses, growth).
//
// It is a memo.Observer so it can be passed straight to the table
// constructors.
type CacheMetrics interface {
	memo.Observer
}

// NewNoopCacheMetrics returns a CacheMetrics that discards everything.
func NewNoopCacheMetrics() CacheMetrics {
	return memo.NoopObserver{}
}
