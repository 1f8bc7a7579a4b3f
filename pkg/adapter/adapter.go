package adapter

import (
	"context"

	"github.com/marmos91/fibd/pkg/resolver"
)

// Adapter represents a protocol-specific server adapter that can be managed
// by FibServer.
//
// Every adapter serves requests through the same resolver, and therefore the
// same memo table, for the whole lifetime of the server.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Resolver injection: SetResolver() provides the shared resolver
//  3. Startup: Serve() binds, serves and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetResolver() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting new
	// connections, wait for active ones (with timeout) and return nil or an
	// error describing an unclean shutdown.
	Serve(ctx context.Context) error

	// SetResolver injects the shared resolver. Called exactly once by
	// FibServer before Serve().
	SetResolver(r *resolver.Resolver)

	// Stop initiates graceful shutdown. It must be idempotent and safe to
	// call concurrently with Serve(). ctx bounds how long Stop waits.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	Protocol() string

	// Port returns the TCP port the adapter is listening on. Before Serve()
	// has bound its listener this is the configured port, which may be 0.
	Port() int
}
