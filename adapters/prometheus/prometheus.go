// Package prometheus exports the cache instrumentation hooks as Prometheus
// metrics, labelled per cache.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Odogo/KyoLogix/core/cache"
	"github.com/Odogo/KyoLogix/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// CacheMetrics holds the Prometheus collectors shared by every cache in the
// process. Call For once per cache and hand the result to cache.Config.
type CacheMetrics struct {
	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	settles         *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	entries         *prometheus.GaugeVec
	storeOpDuration *prometheus.HistogramVec
}

// NewCacheMetrics creates and registers the collectors.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kyologix_cache_hits_total",
			Help: "Total number of reads served from the entry table",
		}, []string{"cache"}),

		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kyologix_cache_misses_total",
			Help: "Total number of reads that went to the backing store",
		}, []string{"cache"}),

		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kyologix_cache_evictions_total",
			Help: "Total number of entries evicted by the sweeper",
		}, []string{"cache"}),

		settles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kyologix_cache_settles_total",
			Help: "Total number of entries flushed back to the store",
		}, []string{"cache"}),

		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kyologix_cache_store_errors_total",
			Help: "Total number of failed backing-store calls",
		}, []string{"cache"}),

		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kyologix_cache_entries",
			Help: "Current entry-table size",
		}, []string{"cache"}),

		storeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyologix_cache_store_op_duration_seconds",
			Help:    "Backing-store call latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"cache"}),
	}

	reg.MustRegister(
		m.hits,
		m.misses,
		m.evictions,
		m.settles,
		m.storeErrors,
		m.entries,
		m.storeOpDuration,
	)

	return m
}

// For binds the collectors to one cache name.
func (m *CacheMetrics) For(cacheName string) *cache.Metrics {
	h := m.storeOpDuration.WithLabelValues(cacheName)
	return &cache.Metrics{
		Hits:            m.hits.WithLabelValues(cacheName),
		Misses:          m.misses.WithLabelValues(cacheName),
		Evictions:       m.evictions.WithLabelValues(cacheName),
		Settles:         m.settles.WithLabelValues(cacheName),
		StoreErrors:     m.storeErrors.WithLabelValues(cacheName),
		Entries:         m.entries.WithLabelValues(cacheName),
		StoreOpDuration: func() metrics.Timer { return newTimer(h) },
	}
}
