package cache

import (
	"context"
	"log/slog"
	"time"
)

// runSweeper fires once per expiration period until cancelled. A full-scan
// ticker loop keeps the ownership simple: one goroutine per cache, no
// per-entry timers.
func (c *Cache[K, V]) runSweeper(ctx context.Context) {
	defer close(c.sweeperDone)

	ticker := time.NewTicker(c.expiration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// sweep settles every entry that has gone untouched for the expiration
// window. Keys are snapshotted first; foreground operations keep mutating
// the tables while the sweep acts, so a snapshotted key may already be gone
// (or freshly touched) by the time it is settled — settle tolerates both.
// A sweep always runs to completion; cancellation takes effect at the next
// tick.
func (c *Cache[K, V]) sweep(now time.Time) {
	stale := c.table.stale(now, c.expiration)
	if len(stale) == 0 {
		return
	}

	c.log.Debug("sweep started", slog.Int("stale", len(stale)))

	// One key failing to settle must not stop the others.
	ctx := context.Background()
	for _, key := range stale {
		found, err := c.settle(ctx, key)
		switch {
		case err != nil:
			c.log.Error("failed to settle expired entry", slog.Any("key", key), slog.Any("error", err))
		case found:
			c.metrics.Evictions.Inc()
			c.log.Debug("expired entry settled", slog.Any("key", key))
		}
	}
}
