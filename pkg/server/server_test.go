package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fibd/pkg/adapter/fib"
	"github.com/marmos91/fibd/pkg/memo"
	"github.com/marmos91/fibd/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter blocks in Serve until stopped or failed.
type stubAdapter struct {
	protocol string
	port     int
	failWith error

	mu       sync.Mutex
	resolver *resolver.Resolver
	stopped  chan struct{}
	once     sync.Once
}

func newStubAdapter(protocol string, port int) *stubAdapter {
	return &stubAdapter{protocol: protocol, port: port, stopped: make(chan struct{})}
}

func (a *stubAdapter) Serve(ctx context.Context) error {
	if a.failWith != nil {
		return a.failWith
	}
	select {
	case <-ctx.Done():
	case <-a.stopped:
	}
	return nil
}

func (a *stubAdapter) SetResolver(r *resolver.Resolver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolver = r
}

func (a *stubAdapter) Stop(ctx context.Context) error {
	a.once.Do(func() { close(a.stopped) })
	return nil
}

func (a *stubAdapter) Protocol() string { return a.protocol }
func (a *stubAdapter) Port() int        { return a.port }

func TestNew_NilTablePanics(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}

func TestAddAdapter_InjectsSharedResolver(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))

	a := newStubAdapter("A", 1000)
	b := newStubAdapter("B", 1001)
	require.NoError(t, srv.AddAdapter(a))
	require.NoError(t, srv.AddAdapter(b))

	assert.Same(t, srv.Resolver(), a.resolver)
	assert.Same(t, a.resolver, b.resolver)
	assert.Len(t, srv.Adapters(), 2)
}

func TestAddAdapter_Conflicts(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))
	require.NoError(t, srv.AddAdapter(newStubAdapter("A", 1000)))

	assert.ErrorContains(t, srv.AddAdapter(newStubAdapter("A", 2000)), "already registered")
	assert.ErrorContains(t, srv.AddAdapter(newStubAdapter("B", 1000)), "already in use")

	// Ephemeral ports never conflict.
	require.NoError(t, srv.AddAdapter(newStubAdapter("C", 0)))
	require.NoError(t, srv.AddAdapter(newStubAdapter("D", 0)))
}

func TestAddAdapter_NilPanics(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))
	assert.Panics(t, func() { _ = srv.AddAdapter(nil) })
}

func TestServe_NoAdapters(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))
	assert.ErrorContains(t, srv.Serve(context.Background()), "no adapters registered")
}

func TestServe_CancelStopsAdapters(t *testing.T) {
	srv := New(memo.NewSequencer(memo.SequencerConfig{}, nil))
	a := newStubAdapter("A", 0)
	require.NoError(t, srv.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	select {
	case <-a.stopped:
	default:
		t.Error("adapter was not stopped")
	}

	assert.Panics(t, func() { _ = srv.Serve(context.Background()) })
	assert.Panics(t, func() { _ = srv.AddAdapter(newStubAdapter("B", 0)) })
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))

	healthy := newStubAdapter("A", 0)
	failing := newStubAdapter("B", 0)
	failing.failWith = errors.New("bind failed")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(failing))

	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "B adapter error")
	assert.ErrorContains(t, err, "bind failed")

	select {
	case <-healthy.stopped:
	default:
		t.Error("healthy adapter was not stopped")
	}
}

func TestServe_FibAdapterEndToEnd(t *testing.T) {
	srv := New(memo.NewLocked(memo.LockedConfig{}, nil))
	a := fib.New(fib.FibConfig{Host: "127.0.0.1", ShutdownTimeout: time.Second}, nil)
	require.NoError(t, srv.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("adapter did not become ready")
	}

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(a.Port())))
	require.NoError(t, err)
	_, err = conn.Write([]byte("25\n"))
	require.NoError(t, err)
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	_ = conn.Close()
	assert.Equal(t, "75025\n", string(reply))

	assert.Equal(t, 25, srv.Resolver().Table().HighWater())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
