package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/fibd/internal/logger"
	"github.com/marmos91/fibd/pkg/adapter"
	"github.com/marmos91/fibd/pkg/memo"
	"github.com/marmos91/fibd/pkg/resolver"
)

// FibServer manages the lifecycle of protocol adapters that share one memo
// table.
//
// The server owns the table: it is created once by the caller, wrapped in a
// single resolver that every adapter receives, and closed when Serve()
// returns. No adapter ever gets a cache of its own.
//
// Lifecycle:
//  1. Creation: New() with the memo table
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation triggers graceful shutdown of all adapters
//
// Example usage:
//
//	srv := server.New(memo.NewLocked(memo.LockedConfig{}, nil))
//	if err := srv.AddAdapter(fib.New(fibConfig, nil)); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type FibServer struct {
	table    memo.Table
	resolver *resolver.Resolver

	// mu protects adapters and served.
	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool

	// stopTimeout bounds the Stop() calls issued during shutdown.
	stopTimeout time.Duration
}

// New creates a FibServer around table.
//
// Panics if table is nil.
func New(table memo.Table) *FibServer {
	if table == nil {
		panic("memo table cannot be nil")
	}

	return &FibServer{
		table:       table,
		resolver:    resolver.New(table),
		adapters:    make([]adapter.Adapter, 0, 1),
		stopTimeout: 30 * time.Second,
	}
}

// Resolver returns the resolver shared by all adapters.
func (s *FibServer) Resolver() *resolver.Resolver {
	return s.resolver
}

// AddAdapter injects the shared resolver into a and registers it.
//
// Returns an error if another adapter already serves the same protocol or
// the same fixed port. Port 0 never conflicts.
//
// Panics if a is nil or Serve() has already been called.
func (s *FibServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetResolver(s.resolver)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// On either event every adapter is stopped in reverse registration order,
// Serve waits for them to return and then closes the memo table.
//
// Returns ctx.Err() after a cancellation, the adapter's error (wrapped)
// after a failure, or an error if no adapter is registered.
//
// Panics if called more than once.
func (s *FibServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	defer func() {
		if err := s.table.Close(); err != nil {
			logger.Warn("Error closing memo table: %v", err)
		}
	}()

	logger.Info("Starting fibd with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block.
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped with: %v", protocol, err)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("fibd stopped (cache high-water mark: %d)", s.table.HighWater())

	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals every adapter to stop, last registered first.
// Errors are logged and do not prevent the remaining adapters from stopping.
func (s *FibServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *FibServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
