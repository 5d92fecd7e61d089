// Package store defines the port between the cache and its durable backing
// source (database, file tree, remote KV, ...). Implementations live under
// adapters/.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Read when the key has no record in the
	// backing source. It is a miss, not a failure.
	ErrNotFound = errors.New("record not found")
)

// Store is the contract the cache writes through to. All operations are
// synchronous; implementations own their timeouts and connection handling.
//
// BulkRead with a nil key slice means "read every record in the source".
// Keys that have no record are omitted from the result map.
type Store[K comparable, V any] interface {
	Create(ctx context.Context, key K, value V) error
	Read(ctx context.Context, key K) (V, error)
	Update(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error

	BulkCreate(ctx context.Context, entries map[K]V) error
	BulkRead(ctx context.Context, keys []K) (map[K]V, error)
	BulkUpdate(ctx context.Context, entries map[K]V) error
	BulkDelete(ctx context.Context, keys []K) error
}
