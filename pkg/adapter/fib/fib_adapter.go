package fib

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fibd/internal/logger"
	"github.com/marmos91/fibd/internal/ratelimiter"
	"github.com/marmos91/fibd/pkg/metrics"
	"github.com/marmos91/fibd/pkg/resolver"
)

// DefaultReadBufferSize bounds the single read performed per connection.
const DefaultReadBufferSize = 1024

// FibAdapter serves the plaintext Fibonacci protocol over TCP.
//
// Each accepted connection is handled by its own goroutine (see
// FibConnection) and carries exactly one request and one reply. All
// connections resolve through the same resolver, so they share one memo
// table for the lifetime of the adapter.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (in-flight requests stop before resolving)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
type FibAdapter struct {
	config FibConfig

	// listener is set once by Serve() and guarded by mu.
	listener net.Listener
	mu       sync.Mutex

	// boundPort is the port actually bound, 0 before Serve() binds.
	boundPort atomic.Int32

	// ready is closed once the listener is bound.
	ready chan struct{}

	resolver *resolver.Resolver
	metrics  metrics.FibMetrics
	limiter  *ratelimiter.RateLimiter

	// activeConns tracks all currently active connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore is nil when MaxConnections is 0 (unlimited).
	connSemaphore chan struct{}

	// shutdownCtx is passed to every connection and cancelled on shutdown.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure.
	activeConnections sync.Map
}

// FibConfig holds configuration parameters for the Fibonacci adapter.
//
// All timeout values are optional - zero means no timeout.
type FibConfig struct {
	// Enabled controls whether the adapter is started at all.
	Enabled bool `mapstructure:"enabled"`

	// Host is the address to bind. Empty binds all interfaces.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on. 0 asks the OS for an ephemeral
	// port; the bound port is available from Port() once Ready() is closed.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxIndex rejects requests for indices above it with the usual
	// invalid-request reply. 0 means unlimited.
	MaxIndex int `mapstructure:"max_index" validate:"min=0"`

	// ReadBufferSize is the size of the single read performed per request.
	// 0 uses DefaultReadBufferSize.
	ReadBufferSize int `mapstructure:"read_buffer_size" validate:"min=0"`

	// Timeouts bounds socket reads and writes.
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	// ShutdownTimeout is the maximum duration to wait for active connections
	// during graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is the interval at which connection and cache
	// statistics are logged. 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`

	// RateLimit throttles accepted connections.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// TimeoutsConfig holds per-connection socket deadlines.
type TimeoutsConfig struct {
	// Read bounds the wait for the request payload.
	Read time.Duration `mapstructure:"read" validate:"min=0"`

	// Write bounds sending the reply.
	Write time.Duration `mapstructure:"write" validate:"min=0"`
}

// RateLimitConfig configures the accept rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained accept rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of connections admitted at once above the rate.
	Burst uint `mapstructure:"burst"`
}

// applyDefaults fills in zero values with sensible defaults.
//
// Port is deliberately left alone: 0 means an ephemeral port.
func (c *FibConfig) applyDefaults() {
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *FibConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxIndex < 0 {
		return fmt.Errorf("invalid MaxIndex %d: must be >= 0", c.MaxIndex)
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("invalid ReadBufferSize %d: must be >= 0", c.ReadBufferSize)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 {
		return fmt.Errorf("invalid timeouts %+v: must be >= 0", c.Timeouts)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MetricsLogInterval < 0 {
		return fmt.Errorf("invalid MetricsLogInterval %v: must be >= 0", c.MetricsLogInterval)
	}
	return nil
}

// New creates a FibAdapter with the specified configuration.
//
// The adapter is created in a stopped state. Call SetResolver() and then
// Serve(). A nil fibMetrics disables metrics.
//
// Panics if config validation fails.
func New(config FibConfig, fibMetrics metrics.FibMetrics) *FibAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid fib config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Fib connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Fib connection limit: unlimited")
	}

	if fibMetrics == nil {
		fibMetrics = metrics.NewNoopFibMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	a := &FibAdapter{
		config:         config,
		ready:          make(chan struct{}),
		metrics:        fibMetrics,
		limiter:        ratelimiter.New(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	a.boundPort.Store(int32(config.Port))
	return a
}

// SetResolver injects the shared resolver.
func (s *FibAdapter) SetResolver(r *resolver.Resolver) {
	s.resolver = r
	logger.Debug("Fib resolver configured")
}

// Serve binds the listener and accepts connections until the context is
// cancelled or Stop() is called.
//
// Every accepted connection is served in its own goroutine; the accept loop
// never waits for a handler.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or active connections had to be force-closed.
func (s *FibAdapter) Serve(ctx context.Context) error {
	if s.resolver == nil {
		return errors.New("fib adapter: resolver not configured; call SetResolver() before Serve()")
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create fib listener on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.boundPort.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	close(s.ready)

	// Stop() may have run before the listener existed.
	select {
	case <-s.shutdown:
		_ = listener.Close()
		return s.gracefulShutdown()
	default:
	}

	logger.Info("Fib server listening on %s", listener.Addr())
	logger.Debug("Fib config: max_connections=%d max_index=%d read_timeout=%v write_timeout=%v",
		s.config.MaxConnections, s.config.MaxIndex, s.config.Timeouts.Read, s.config.Timeouts.Write)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Fib shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			s.releaseSlot()

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting fib connection: %v", err)
				continue
			}
		}

		if !s.limiter.Allow() {
			logger.Debug("Fib connection from %s rejected by rate limiter", tcpConn.RemoteAddr())
			s.metrics.RecordConnectionRejected()
			_ = tcpConn.Close()
			s.releaseSlot()
			continue
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("Fib connection accepted from %s (active: %d)", connAddr, currentConns)

		conn := NewFibConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				s.releaseSlot()

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("Fib connection closed from %s (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

func (s *FibAdapter) releaseSlot() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

// initiateShutdown closes the listener and cancels in-flight requests.
// Safe to call multiple times and from multiple goroutines.
func (s *FibAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Fib shutdown initiated")

		close(s.shutdown)

		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing fib listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout and
// force-closes whatever is left afterwards.
func (s *FibAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Fib graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info("Fib graceful shutdown complete: all connections closed")
		return nil

	case <-timer.C:
		remaining := s.connCount.Load()
		logger.Warn("Fib shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("fib shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked TCP connection so blocked
// reads and writes fail immediately.
func (s *FibAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// they finish or ctx is done.
//
// Safe to call multiple times and concurrently with Serve().
func (s *FibAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Fib shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs connection and cache statistics.
func (s *FibAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Fib metrics: active_connections=%d cache_high_water=%d",
				s.connCount.Load(), s.resolver.Table().HighWater())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *FibAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Ready is closed once the listener is bound and Port()/Addr() report the
// real address.
func (s *FibAdapter) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Serve() binds.
func (s *FibAdapter) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound port once Ready() is closed, the configured port
// before that.
func (s *FibAdapter) Port() int {
	return int(s.boundPort.Load())
}

// Protocol returns "FIB".
func (s *FibAdapter) Protocol() string {
	return "FIB"
}
