// Package shard maps keys onto a fixed number of shards so that unrelated
// keys never contend on the same lock.
package shard

import "hash/maphash"

// Sharder assigns every key of type K a stable shard in [0, count).
type Sharder[K comparable] struct {
	seed  maphash.Seed
	count int
}

func New[K comparable](count int) Sharder[K] {
	if count <= 0 {
		count = 1
	}
	return Sharder[K]{seed: maphash.MakeSeed(), count: count}
}

func (s Sharder[K]) Count() int { return s.count }

func (s Sharder[K]) ForKey(key K) int {
	return int(maphash.Comparable(s.seed, key) % uint64(s.count))
}
