package cache

import "github.com/Odogo/KyoLogix/core/metrics"

// Metrics holds the instrumentation hooks the cache reports into. Use
// [NewNopMetrics] (the default) when you do not care, or
// adapters/prometheus to export them.
type Metrics struct {
	// Hits counts reads served from the entry table.
	Hits metrics.Counter
	// Misses counts reads that had to go to the backing store.
	Misses metrics.Counter
	// Evictions counts entries settled by the background sweeper.
	Evictions metrics.Counter
	// Settles counts entries flushed back to the store, whether by the
	// sweeper, Settle or SettleAll.
	Settles metrics.Counter
	// StoreErrors counts failed backing-store calls.
	StoreErrors metrics.Counter
	// Entries tracks the current entry-table size.
	Entries metrics.Gauge
	// StoreOpDuration times every backing-store call.
	StoreOpDuration metrics.TimerFunc
}

// NewNopMetrics returns Metrics that record nothing.
func NewNopMetrics() *Metrics {
	return &Metrics{
		Hits:            metrics.NopCounter(),
		Misses:          metrics.NopCounter(),
		Evictions:       metrics.NopCounter(),
		Settles:         metrics.NopCounter(),
		StoreErrors:     metrics.NopCounter(),
		Entries:         metrics.NopGauge(),
		StoreOpDuration: metrics.NopTimerFunc(),
	}
}
