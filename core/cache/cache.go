package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/multierr"

	"github.com/Odogo/KyoLogix/core/perkey"
	"github.com/Odogo/KyoLogix/core/sf"
	"github.com/Odogo/KyoLogix/ports/store"
)

const (
	stateRunning int32 = iota
	stateShuttingDown
	stateStopped
)

// Config configures a Cache. Store and Expiration are required; everything
// else has a sensible default.
type Config[K comparable, V any] struct {
	// Store is the durable backing source the cache writes through to.
	// Its lifetime is managed by the caller.
	Store store.Store[K, V]

	// Expiration is the sliding-expiry window: an entry untouched for this
	// long becomes eligible for eviction. It is also the sweep period.
	Expiration time.Duration

	// Name identifies the cache in logs and errors. Default: cache-<id>.
	Name string

	// Log defaults to slog.Default().
	Log *slog.Logger

	// Registry, when set, records the cache so Registry.ShutdownAll can
	// drain it with the others.
	Registry *Registry

	// Metrics defaults to no-op instrumentation.
	Metrics *Metrics

	// Shards is the entry-table shard count (default: 16).
	Shards int

	// KeyString maps a key to the string used to deduplicate concurrent
	// miss loads. It must be injective. Default: fmt.Sprint, which is fine
	// for string and integer keys.
	KeyString func(K) string

	// SerializeWrites routes every same-key write (create, update, delete,
	// settle) through a per-key queue, so racing writers cannot leave the
	// cache and the store disagreeing about which write won. Off by
	// default; the default behavior is last-write-wins per table with no
	// cross-operation ordering.
	SerializeWrites bool
}

type readResult[V any] struct {
	value V
	found bool
}

// Cache is a write-through cache over a backing store. Create it with
// [New]; all methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	name       string
	store      store.Store[K, V]
	expiration time.Duration
	log        *slog.Logger
	metrics    *Metrics
	keyString  func(K) string

	table *table[K, V]
	reads *sf.Singleflight[readResult[V]]
	// writes is nil unless Config.SerializeWrites is set.
	writes *perkey.Scheduler[K]

	state       atomic.Int32
	sweepCancel context.CancelFunc
	sweeperDone chan struct{}
}

// New validates the config, registers the cache and starts its sweeper.
func New[K comparable, V any](cfg Config[K, V]) (*Cache[K, V], error) {
	if cfg.Store == nil {
		return nil, errors.New("cache: Store is required")
	}
	if cfg.Expiration <= 0 {
		return nil, errors.New("cache: Expiration must be positive")
	}

	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("cache-%s", gonanoid.Must(6))
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNopMetrics()
	}
	if cfg.Shards == 0 {
		cfg.Shards = 16
	}
	if cfg.KeyString == nil {
		cfg.KeyString = func(key K) string { return fmt.Sprint(key) }
	}

	c := &Cache[K, V]{
		name:        cfg.Name,
		store:       cfg.Store,
		expiration:  cfg.Expiration,
		log:         cfg.Log.With(slog.String("cache", cfg.Name)),
		metrics:     cfg.Metrics,
		keyString:   cfg.KeyString,
		table:       newTable[K, V](cfg.Shards),
		reads:       sf.New[readResult[V]](),
		sweeperDone: make(chan struct{}),
	}
	if cfg.SerializeWrites {
		c.writes = perkey.New[K]()
	}

	if cfg.Registry != nil {
		cfg.Registry.register(c)
	}

	var sweepCtx context.Context
	sweepCtx, c.sweepCancel = context.WithCancel(context.Background())
	go c.runSweeper(sweepCtx)

	c.log.Info("cache created", slog.Duration("expiration", c.expiration))
	return c, nil
}

// Name returns the cache's identifier.
func (c *Cache[K, V]) Name() string { return c.name }

// Len reports the number of entries currently cached.
func (c *Cache[K, V]) Len() int { return c.table.len() }

// Create inserts the entry into the cache and writes it through to the
// store's create path.
func (c *Cache[K, V]) Create(ctx context.Context, key K, value V) error {
	if err := c.operational(); err != nil {
		return err
	}
	return c.perKeyWrite(ctx, key, func() error {
		c.table.put(key, value, time.Now())
		c.syncGauge()
		err := c.writeThrough("create", []any{key}, func() error {
			return c.store.Create(ctx, key, value)
		})
		if err == nil {
			c.log.Debug("created entry", slog.Any("key", key))
		}
		return err
	})
}

// Read returns the cached value for key, refreshing its access time. On a
// miss it reads through to the store, caching a hit; concurrent misses on
// the same key issue a single store read. A store miss is (zero, false,
// nil), not an error.
//
// The shared store read runs under the ctx of the caller that triggered it:
// if that caller's context is cancelled, every reader waiting on the same
// load receives the cancellation error. Nothing is cached; a later Read
// starts a fresh load.
func (c *Cache[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := c.operational(); err != nil {
		return zero, false, err
	}

	if value, ok := c.table.get(key, time.Now()); ok {
		c.metrics.Hits.Inc()
		c.log.Debug("cache hit", slog.Any("key", key))
		return value, true, nil
	}

	c.metrics.Misses.Inc()
	c.log.Debug("cache miss", slog.Any("key", key))

	res, err := c.reads.Do(c.keyString(key), func() (readResult[V], error) {
		t := c.metrics.StoreOpDuration()
		value, err := c.store.Read(ctx, key)
		t.ObserveDuration()
		if errors.Is(err, store.ErrNotFound) {
			return readResult[V]{}, nil
		}
		if err != nil {
			c.metrics.StoreErrors.Inc()
			return readResult[V]{}, &Error{Cache: c.name, Op: "read", Keys: []any{key}, Err: err}
		}
		c.table.put(key, value, time.Now())
		c.syncGauge()
		return readResult[V]{value: value, found: true}, nil
	})
	if err != nil {
		return zero, false, err
	}
	return res.value, res.found, nil
}

// Update overwrites the entry in the cache, whether or not it was cached
// before, and writes it through to the store's update path.
func (c *Cache[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := c.operational(); err != nil {
		return err
	}
	return c.perKeyWrite(ctx, key, func() error {
		c.table.put(key, value, time.Now())
		c.syncGauge()
		err := c.writeThrough("update", []any{key}, func() error {
			return c.store.Update(ctx, key, value)
		})
		if err == nil {
			c.log.Debug("updated entry", slog.Any("key", key))
		}
		return err
	})
}

// Delete removes the entry from the cache and the store. Unlike Settle it
// discards the value; the removal is irreversible.
func (c *Cache[K, V]) Delete(ctx context.Context, key K) error {
	if err := c.operational(); err != nil {
		return err
	}
	return c.perKeyWrite(ctx, key, func() error {
		c.table.remove(key)
		c.syncGauge()
		err := c.writeThrough("delete", []any{key}, func() error {
			return c.store.Delete(ctx, key)
		})
		if err == nil {
			c.log.Debug("deleted entry", slog.Any("key", key))
		}
		return err
	})
}

// Settle removes the entry from the cache and, if one was cached, flushes
// it to the store. It reports whether an entry was found; on a miss no
// store call is made.
func (c *Cache[K, V]) Settle(ctx context.Context, key K) (bool, error) {
	if err := c.operational(); err != nil {
		return false, err
	}
	return c.settle(ctx, key)
}

func (c *Cache[K, V]) settle(ctx context.Context, key K) (bool, error) {
	// found is shared with the perkey worker: when ctx cancels mid-job the
	// scheduler returns while the job keeps running, so a plain captured
	// bool would race.
	var found atomic.Bool
	err := c.perKeyWrite(ctx, key, func() error {
		value, ok := c.table.remove(key)
		if !ok {
			return nil
		}
		found.Store(true)
		c.syncGauge()
		c.metrics.Settles.Inc()
		werr := c.writeThrough("settle", []any{key}, func() error {
			return c.store.Update(ctx, key, value)
		})
		if werr == nil {
			c.log.Debug("settled entry", slog.Any("key", key))
		}
		return werr
	})
	return found.Load(), err
}

// SettleAll settles every cached entry and clears both tables. Failures are
// collected per key; one key failing does not stop the rest.
func (c *Cache[K, V]) SettleAll(ctx context.Context) error {
	if err := c.operational(); err != nil {
		return err
	}
	return c.settleAll(ctx)
}

func (c *Cache[K, V]) settleAll(ctx context.Context) error {
	var errs error
	for _, key := range c.table.keys() {
		if _, err := c.settle(ctx, key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	c.table.clear()
	c.syncGauge()
	return errs
}

// Contains reports whether the key is currently cached. It never consults
// the store and does not refresh the access time.
func (c *Cache[K, V]) Contains(key K) bool {
	if c.operational() != nil {
		return false
	}
	return c.table.peek(key)
}

// ContainsValue reports whether any cached entry holds the given value.
func (c *Cache[K, V]) ContainsValue(value V) bool {
	if c.operational() != nil {
		return false
	}
	return c.table.containsValue(value)
}

// Store is an upsert convenience: it creates the entry when the store has
// no record for the key and updates it otherwise.
func (c *Cache[K, V]) Store(ctx context.Context, key K, value V) error {
	if err := c.operational(); err != nil {
		return err
	}

	t := c.metrics.StoreOpDuration()
	_, err := c.store.Read(ctx, key)
	t.ObserveDuration()
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Create(ctx, key, value)
	case err != nil:
		c.metrics.StoreErrors.Inc()
		return &Error{Cache: c.name, Op: "store", Keys: []any{key}, Err: err}
	default:
		return c.Update(ctx, key, value)
	}
}

// BulkCreate inserts every entry into the cache, then writes the batch
// through to the store. On a store failure the cache keeps the entries.
func (c *Cache[K, V]) BulkCreate(ctx context.Context, entries map[K]V) error {
	if err := c.operational(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	c.table.putAll(entries, time.Now())
	c.syncGauge()
	return c.writeThrough("bulk create", keysOf(entries), func() error {
		return c.store.BulkCreate(ctx, entries)
	})
}

// BulkRead reads the given keys from the store and caches every record it
// returns. A nil key slice reads every record in the store. Keys without a
// record are omitted from the result. The cache is not consulted: this is
// a bulk refresh from the source, not a bulk cache lookup.
func (c *Cache[K, V]) BulkRead(ctx context.Context, keys []K) (map[K]V, error) {
	if err := c.operational(); err != nil {
		return nil, err
	}

	t := c.metrics.StoreOpDuration()
	result, err := c.store.BulkRead(ctx, keys)
	t.ObserveDuration()
	if err != nil {
		c.metrics.StoreErrors.Inc()
		return nil, &Error{Cache: c.name, Op: "bulk read", Keys: anyKeys(keys), Err: err}
	}

	c.table.putAll(result, time.Now())
	c.syncGauge()
	return result, nil
}

// BulkUpdate overwrites every entry in the cache, then writes the batch
// through to the store.
func (c *Cache[K, V]) BulkUpdate(ctx context.Context, entries map[K]V) error {
	if err := c.operational(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	c.table.putAll(entries, time.Now())
	c.syncGauge()
	return c.writeThrough("bulk update", keysOf(entries), func() error {
		return c.store.BulkUpdate(ctx, entries)
	})
}

// BulkDelete removes every key from the cache and the store.
func (c *Cache[K, V]) BulkDelete(ctx context.Context, keys []K) error {
	if err := c.operational(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	c.table.removeAll(keys)
	c.syncGauge()
	return c.writeThrough("bulk delete", anyKeys(keys), func() error {
		return c.store.BulkDelete(ctx, keys)
	})
}

// Shutdown stops the sweeper, waits for any in-flight sweep, then settles
// every remaining entry to the store. Settle failures are aggregated into
// the returned error but do not stop the drain. After Shutdown the cache is
// dead: every operation fails with ErrClosed.
func (c *Cache[K, V]) Shutdown(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateRunning, stateShuttingDown) {
		return ErrClosed
	}

	c.log.Info("shutting down")
	c.sweepCancel()
	<-c.sweeperDone

	err := c.settleAll(ctx)

	if c.writes != nil {
		c.writes.Close()
	}
	c.state.Store(stateStopped)

	if err != nil {
		c.log.Warn("shut down with settle failures", slog.Any("error", err))
	} else {
		c.log.Info("shut down, cache drained")
	}
	return err
}

// writeThrough is the single seam between the eagerly mutated tables and
// the store. The mutation has already been applied when it runs; on store
// failure the tables are left as they are, so the cache keeps serving the
// newest value. A rollback-on-failure policy would be swapped in here.
func (c *Cache[K, V]) writeThrough(op string, keys []any, write func() error) error {
	t := c.metrics.StoreOpDuration()
	err := write()
	t.ObserveDuration()
	if err != nil {
		c.metrics.StoreErrors.Inc()
		return &Error{Cache: c.name, Op: op, Keys: keys, Err: err}
	}
	return nil
}

func (c *Cache[K, V]) perKeyWrite(ctx context.Context, key K, fn func() error) error {
	if c.writes == nil {
		return fn()
	}
	err := c.writes.DoContext(ctx, key, fn)
	if errors.Is(err, perkey.ErrSchedulerClosed) {
		return ErrClosed
	}
	return err
}

func (c *Cache[K, V]) operational() error {
	if c.state.Load() != stateRunning {
		return ErrClosed
	}
	return nil
}

func (c *Cache[K, V]) syncGauge() {
	c.metrics.Entries.Set(float64(c.table.len()))
}

func keysOf[K comparable, V any](entries map[K]V) []any {
	out := make([]any, 0, len(entries))
	for key := range entries {
		out = append(out, key)
	}
	return out
}

func anyKeys[K comparable](keys []K) []any {
	if keys == nil {
		return nil
	}
	out := make([]any, len(keys))
	for i, key := range keys {
		out[i] = key
	}
	return out
}
