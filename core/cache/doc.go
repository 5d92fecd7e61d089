// Package cache provides a write-through, read-through in-memory cache in
// front of a durable backing store, with sliding time-based expiry.
//
// A [Cache] owns two tables: the entry table (key to value) and the
// access-time table (key to last-touched timestamp). The two are mutated
// together under a per-shard lock, so a key is in one exactly when it is in
// the other. Every create, read hit and update refreshes the access time;
// a background sweeper settles (flushes to the store, then evicts) entries
// that have gone untouched for the configured expiration.
//
// # Write-through
//
// Mutations apply to the in-memory tables first and are then written
// synchronously to the backing store. A store failure is returned to the
// caller as a [*Error] but the in-memory mutation is NOT rolled back: the
// cache keeps serving the most recent value and the store is brought back
// in sync by a later settle. See [Cache.Settle].
//
// # Lifecycle
//
//	reg := cache.NewRegistry()
//	c, err := cache.New(cache.Config[string, User]{
//	    Store:      userStore,
//	    Expiration: 5 * time.Minute,
//	    Registry:   reg,
//	})
//	...
//	_ = reg.ShutdownAll(ctx) // stops sweepers, drains every cache to its store
//
// After Shutdown a cache is dead; all operations fail with [ErrClosed].
//
// # Consistency
//
// Two concurrent writers to the same key may interleave their cache
// mutation and store write in either order. If that matters, enable
// [Config.SerializeWrites] to run same-key writes through a per-key queue.
package cache
