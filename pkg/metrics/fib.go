package metrics

import (
	"time"
)

// Request outcomes reported through FibMetrics.RecordRequest.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// FibMetrics provides observability for the Fibonacci protocol adapter.
//
// This interface is optional - if not provided to the adapter, a no-op
// implementation is used.
type FibMetrics interface {
	// RecordRequest records a completed request with its outcome
	// (StatusOK, StatusInvalid or StatusError) and duration.
	RecordRequest(status string, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart()

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd()

	// RecordBytesTransferred records bytes read from or written to clients.
	// direction is "read" or "write".
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// closed because the shutdown timeout expired.
	RecordConnectionForceClosed()

	// RecordConnectionRejected increments the counter of connections
	// dropped by the accept rate limiter.
	RecordConnectionRejected()
}

// NewNoopFibMetrics returns a FibMetrics that discards everything.
func NewNoopFibMetrics() FibMetrics {
	return noopFibMetrics{}
}

type noopFibMetrics struct{}

func (noopFibMetrics) RecordRequest(status string, duration time.Duration)   {}
func (noopFibMetrics) RecordRequestStart()                                   {}
func (noopFibMetrics) RecordRequestEnd()                                     {}
func (noopFibMetrics) RecordBytesTransferred(direction string, bytes int64) {}
func (noopFibMetrics) SetActiveConnections(count int32)                      {}
func (noopFibMetrics) RecordConnectionAccepted()                             {}
func (noopFibMetrics) RecordConnectionClosed()                               {}
func (noopFibMetrics) RecordConnectionForceClosed()                          {}
func (noopFibMetrics) RecordConnectionRejected()                             {}
