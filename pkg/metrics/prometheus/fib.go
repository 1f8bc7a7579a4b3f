// Package prometheus contains the Prometheus-backed implementations of the
// interfaces declared in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/marmos91/fibd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fibMetrics is the Prometheus implementation of metrics.FibMetrics.
type fibMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       prometheus.Gauge
	bytesTransferred       *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	connectionsRejected    prometheus.Counter
}

// NewFibMetrics creates a Prometheus-backed FibMetrics registered on the
// global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewFibMetrics() metrics.FibMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFibMetrics()
	}
	return NewFibMetricsWith(metrics.GetRegistry())
}

// NewFibMetricsWith creates a FibMetrics registered on reg.
func NewFibMetricsWith(reg prometheus.Registerer) metrics.FibMetrics {
	return &fibMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fibd_requests_total",
				Help: "Total number of Fibonacci requests by status",
			},
			[]string{"status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fibd_request_duration_milliseconds",
				Help: "Duration of Fibonacci requests in milliseconds",
				Buckets: []float64{
					0.1,  // 100µs
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"status"},
		),
		requestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fibd_requests_in_flight",
				Help: "Current number of Fibonacci requests being processed",
			},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fibd_bytes_transferred_total",
				Help: "Total bytes read from and written to clients",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fibd_active_connections",
				Help: "Current number of active connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fibd_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fibd_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fibd_connections_force_closed_total",
				Help: "Total number of connections force-closed during shutdown timeout",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fibd_connections_rejected_total",
				Help: "Total number of connections dropped by the accept rate limiter",
			},
		),
	}
}

func (m *fibMetrics) RecordRequest(status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(status).Inc()
	m.requestDuration.WithLabelValues(status).Observe(duration.Seconds() * 1000)
}

func (m *fibMetrics) RecordRequestStart() {
	m.requestsInFlight.Inc()
}

func (m *fibMetrics) RecordRequestEnd() {
	m.requestsInFlight.Dec()
}

func (m *fibMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *fibMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *fibMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *fibMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *fibMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *fibMetrics) RecordConnectionRejected() {
	m.connectionsRejected.Inc()
}
