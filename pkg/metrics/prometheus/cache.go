package prometheus

import (
	"github.com/marmos91/fibd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics is the Prometheus implementation of metrics.CacheMetrics.
type cacheMetrics struct {
	lookups  *prometheus.CounterVec
	appended prometheus.Counter
	entries  prometheus.Gauge
}

// NewCacheMetrics creates a Prometheus-backed CacheMetrics registered on the
// global registry, or a no-op one if metrics are disabled.
func NewCacheMetrics() metrics.CacheMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopCacheMetrics()
	}
	return NewCacheMetricsWith(metrics.GetRegistry())
}

// NewCacheMetricsWith creates a CacheMetrics registered on reg.
func NewCacheMetricsWith(reg prometheus.Registerer) metrics.CacheMetrics {
	m := &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fibd_cache_lookups_total",
				Help: "Memo table lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		appended: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fibd_cache_appended_total",
				Help: "Total number of entries computed and appended to the memo table",
			},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fibd_cache_entries",
				Help: "Current number of entries in the memo table",
			},
		),
	}
	// Seed entries exist before the first growth event.
	m.entries.Set(3)
	return m
}

func (m *cacheMetrics) RecordHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *cacheMetrics) RecordMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *cacheMetrics) RecordGrowth(appended int, size int) {
	m.appended.Add(float64(appended))
	m.entries.Set(float64(size))
}
