package fib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/fibd/internal/logger"
	"github.com/marmos91/fibd/pkg/metrics"
)

// FibConnection handles the single request carried by one TCP connection.
type FibConnection struct {
	server *FibAdapter
	conn   net.Conn
}

func NewFibConnection(server *FibAdapter, conn net.Conn) *FibConnection {
	return &FibConnection{
		server,
		conn,
	}
}

// Serve reads one request, writes one reply and closes the connection.
//
// Panics are recovered so a single misbehaving connection cannot take the
// server down. The connection is closed on every path.
func (c *FibConnection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v",
				c.conn.RemoteAddr().String(), r)
		}
		_ = c.conn.Close()
	}()

	clientAddr := c.conn.RemoteAddr().String()

	c.server.metrics.RecordRequestStart()
	defer c.server.metrics.RecordRequestEnd()

	startTime := time.Now()
	status, err := c.handleRequest(ctx)
	c.server.metrics.RecordRequest(status, time.Since(startTime))

	if err == nil {
		return
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrInvalidRequest):
		logger.Debug("Invalid request from %s: %v", clientAddr, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Debug("Request from %s cancelled: %v", clientAddr, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("Connection from %s timed out: %v", clientAddr, err)
	default:
		logger.Debug("Error handling request from %s: %v", clientAddr, err)
	}
}

// handleRequest performs the read-parse-resolve-reply exchange and reports
// the outcome as a metrics status.
//
// Invalid requests still get a reply; the returned error then wraps
// ErrInvalidRequest.
func (c *FibConnection) handleRequest(ctx context.Context) (string, error) {
	if c.server.config.Timeouts.Read > 0 {
		deadline := time.Now().Add(c.server.config.Timeouts.Read)
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return metrics.StatusError, fmt.Errorf("set read deadline: %w", err)
		}
	}

	buf := make([]byte, c.server.config.ReadBufferSize)
	n, err := c.conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return metrics.StatusError, fmt.Errorf("read request: %w", err)
	}
	c.server.metrics.RecordBytesTransferred("read", int64(n))
	logger.Debug("Request from %s: %q", c.conn.RemoteAddr().String(), buf[:n])

	index, parseErr := ParseIndex(buf[:n], c.server.config.MaxIndex)
	if parseErr != nil {
		if err := c.writeReply([]byte(InvalidRequestReply)); err != nil {
			return metrics.StatusError, err
		}
		return metrics.StatusInvalid, parseErr
	}

	value, err := c.server.resolver.Resolve(ctx, index)
	if err != nil {
		return metrics.StatusError, fmt.Errorf("resolve fib(%d): %w", index, err)
	}

	if err := c.writeReply(FormatReply(value)); err != nil {
		return metrics.StatusError, err
	}
	return metrics.StatusOK, nil
}

func (c *FibConnection) writeReply(reply []byte) error {
	if c.server.config.Timeouts.Write > 0 {
		deadline := time.Now().Add(c.server.config.Timeouts.Write)
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	n, err := c.conn.Write(reply)
	c.server.metrics.RecordBytesTransferred("write", int64(n))
	if err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
