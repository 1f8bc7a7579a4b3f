// Package resolver is the boundary connection handlers call through to get a
// Fibonacci value. It keeps cache growth independent of protocol concerns.
package resolver

import (
	"context"
	"math/big"

	"github.com/marmos91/fibd/pkg/memo"
)

// Resolver resolves Fibonacci indices against a shared memo.Table.
//
// A Resolver does not validate indices; callers must pass n >= 0.
// It is safe for concurrent use as long as the underlying table is.
type Resolver struct {
	table memo.Table
}

// New creates a Resolver backed by table.
//
// Panics if table is nil (indicates programmer error).
func New(table memo.Table) *Resolver {
	if table == nil {
		panic("memo table cannot be nil")
	}
	return &Resolver{table: table}
}

// Fib returns fib(n), growing the shared table if needed.
func (r *Resolver) Fib(n int) *big.Int {
	return r.table.GetOrCompute(n)
}

// Resolve returns fib(n) unless ctx is already done, in which case the
// context error is returned and the table is left untouched.
func (r *Resolver) Resolve(ctx context.Context, n int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Fib(n), nil
}

// Table returns the table this resolver delegates to.
func (r *Resolver) Table() memo.Table {
	return r.table
}
