package framework

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fibd/internal/logger"
	"github.com/marmos91/fibd/pkg/adapter/fib"
	"github.com/marmos91/fibd/pkg/memo"
	"github.com/marmos91/fibd/pkg/server"
)

// CacheType selects the memo table implementation behind a test server.
type CacheType string

const (
	CacheLocked    CacheType = "locked"
	CacheSequencer CacheType = "sequencer"
)

// TestServerConfig holds configuration for the test server.
// This is distinct from pkg/config.ServerConfig (application-level settings).
type TestServerConfig struct {
	Cache          CacheType
	MaxIndex       int
	MaxConnections int
	LogLevel       string
	StartupTimeout time.Duration
}

// TestServer wraps a FibServer listening on an ephemeral loopback port.
type TestServer struct {
	t       testing.TB
	config  TestServerConfig
	table   memo.Table
	adapter *fib.FibAdapter
	server  *server.FibServer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewTestServer creates a new test server instance
func NewTestServer(t testing.TB, config TestServerConfig) *TestServer {
	t.Helper()

	if config.Cache == "" {
		config.Cache = CacheLocked
	}
	if config.LogLevel == "" {
		config.LogLevel = "ERROR" // Keep tests quiet by default
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TestServer{
		t:      t,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the test server and waits until it accepts connections.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return errors.New("server already started")
	}

	ts.t.Helper()

	logger.SetLevel(ts.config.LogLevel)

	switch ts.config.Cache {
	case CacheLocked:
		ts.table = memo.NewLocked(memo.LockedConfig{}, nil)
	case CacheSequencer:
		ts.table = memo.NewSequencer(memo.SequencerConfig{QueueSize: 64}, nil)
	default:
		return fmt.Errorf("unknown cache type: %s", ts.config.Cache)
	}
	ts.t.Logf("Using %s cache", ts.config.Cache)

	ts.adapter = fib.New(fib.FibConfig{
		Enabled:         true,
		Host:            "127.0.0.1",
		Port:            0,
		MaxIndex:        ts.config.MaxIndex,
		MaxConnections:  ts.config.MaxConnections,
		ShutdownTimeout: 2 * time.Second,
	}, nil) // nil = no metrics for tests

	ts.server = server.New(ts.table)
	if err := ts.server.AddAdapter(ts.adapter); err != nil {
		return fmt.Errorf("failed to add adapter: %w", err)
	}

	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		if err := ts.server.Serve(ts.ctx); err != nil && !errors.Is(err, context.Canceled) {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	select {
	case <-ts.adapter.Ready():
	case <-time.After(ts.config.StartupTimeout):
		ts.cancel()
		ts.wg.Wait()
		return errors.New("server failed to start: timeout waiting for listener")
	}

	ts.started = true
	ts.t.Logf("Server started successfully on %s", ts.Addr())
	return nil
}

// Stop stops the test server.
func (ts *TestServer) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil
	}

	ts.t.Helper()
	ts.cancel()

	done := make(chan struct{})
	go func() {
		ts.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ts.t.Logf("Server stopped gracefully")
	case <-time.After(5 * time.Second):
		ts.t.Logf("Server stop timeout - forcing shutdown")
	}

	ts.started = false
	return nil
}

// Addr returns the host:port the server listens on.
func (ts *TestServer) Addr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(ts.adapter.Port()))
}

// Port returns the bound port.
func (ts *TestServer) Port() int {
	return ts.adapter.Port()
}

// Table returns the memo table shared by every connection.
func (ts *TestServer) Table() memo.Table {
	return ts.table
}
