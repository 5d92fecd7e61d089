package store

import (
	"context"
	"maps"
	"sync"
)

// MemStore is an in-process Store for tests, examples and load generation.
type MemStore[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

func NewMemStore[K comparable, V any]() *MemStore[K, V] {
	return &MemStore[K, V]{data: map[K]V{}}
}

func (m *MemStore[K, V]) Create(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemStore[K, V]) Read(_ context.Context, key K) (value V, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return value, ErrNotFound
	}
	return value, nil
}

func (m *MemStore[K, V]) Update(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemStore[K, V]) Delete(_ context.Context, key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore[K, V]) BulkCreate(_ context.Context, entries map[K]V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.data, entries)
	return nil
}

func (m *MemStore[K, V]) BulkRead(_ context.Context, keys []K) (map[K]V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if keys == nil {
		return maps.Clone(m.data), nil
	}

	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemStore[K, V]) BulkUpdate(_ context.Context, entries map[K]V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.data, entries)
	return nil
}

func (m *MemStore[K, V]) BulkDelete(_ context.Context, keys []K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len reports the number of records currently in the store.
func (m *MemStore[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var _ Store[string, any] = (*MemStore[string, any])(nil)
