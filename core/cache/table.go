package cache

import (
	"reflect"
	"sync"
	"time"

	"github.com/Odogo/KyoLogix/internal/shard"
)

// table is the sharded pair of entry table and access-time table. Both maps
// of a shard are always mutated under the same lock, which keeps the
// invariant that a key is present in one exactly when it is present in the
// other.
type table[K comparable, V any] struct {
	sharder shard.Sharder[K]
	shards  []*tableShard[K, V]
}

type tableShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	access  map[K]time.Time
}

func newTable[K comparable, V any](shards int) *table[K, V] {
	t := &table[K, V]{sharder: shard.New[K](shards)}
	t.shards = make([]*tableShard[K, V], t.sharder.Count())
	for i := range t.shards {
		t.shards[i] = &tableShard[K, V]{
			entries: map[K]V{},
			access:  map[K]time.Time{},
		}
	}
	return t
}

func (t *table[K, V]) shardFor(key K) *tableShard[K, V] {
	return t.shards[t.sharder.ForKey(key)]
}

// put inserts or overwrites the entry and stamps its access time.
func (t *table[K, V]) put(key K, value V, now time.Time) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	s.access[key] = now
}

func (t *table[K, V]) putAll(entries map[K]V, now time.Time) {
	for key, value := range entries {
		t.put(key, value, now)
	}
}

// get returns the cached value for key, refreshing its access time on a hit.
func (t *table[K, V]) get(key K, now time.Time) (value V, ok bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok = s.entries[key]
	if ok {
		s.access[key] = now
	}
	return value, ok
}

// peek reports presence without refreshing the access time.
func (t *table[K, V]) peek(key K) bool {
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// remove deletes the entry and its access record, returning the removed
// value if one existed.
func (t *table[K, V]) remove(key K) (value V, ok bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok = s.entries[key]
	if ok {
		delete(s.entries, key)
		delete(s.access, key)
	}
	return value, ok
}

func (t *table[K, V]) removeAll(keys []K) {
	for _, key := range keys {
		t.remove(key)
	}
}

// keys snapshots every key currently in the table.
func (t *table[K, V]) keys() []K {
	var out []K
	for _, s := range t.shards {
		s.mu.RLock()
		for key := range s.entries {
			out = append(out, key)
		}
		s.mu.RUnlock()
	}
	return out
}

// stale snapshots the keys whose last access is more than maxIdle before
// now. The snapshot is taken shard by shard under a read lock; acting on it
// happens outside any lock, so a key may be touched or removed between the
// snapshot and the action. Callers must tolerate that staleness window.
func (t *table[K, V]) stale(now time.Time, maxIdle time.Duration) []K {
	var out []K
	for _, s := range t.shards {
		s.mu.RLock()
		for key, at := range s.access {
			if now.Sub(at) > maxIdle {
				out = append(out, key)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func (t *table[K, V]) containsValue(value V) bool {
	for _, s := range t.shards {
		s.mu.RLock()
		for _, v := range s.entries {
			if reflect.DeepEqual(v, value) {
				s.mu.RUnlock()
				return true
			}
		}
		s.mu.RUnlock()
	}
	return false
}

func (t *table[K, V]) len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (t *table[K, V]) clear() {
	for _, s := range t.shards {
		s.mu.Lock()
		s.entries = map[K]V{}
		s.access = map[K]time.Time{}
		s.mu.Unlock()
	}
}
