package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Odogo/KyoLogix/internal/codec"
	"github.com/Odogo/KyoLogix/ports/store"
)

type StoreConfig struct {
	// Connect defaults to ConnectDefault.
	Connect Connector
	// Bucket is the KV bucket name; it is created if missing.
	Bucket string
	// MaxBytes caps the bucket size (default: 64 MiB).
	MaxBytes int64
	// Codec encodes values. Default: JSON.
	Codec codec.Codec
}

// Store is a Store[string, V] over one JetStream KV bucket. Keys must be
// valid KV keys (no spaces, no wildcard characters).
type Store[V any] struct {
	kv    jetstream.KeyValue
	codec codec.Codec
	close closeFunc
}

func NewStore[V any](ctx context.Context, cfg StoreConfig) (*Store[V], error) {
	if cfg.Bucket == "" {
		return nil, errors.New("nats: bucket is required")
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 * 1024 * 1024
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSONCodec{}
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeConn, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeConn()
		return nil, err
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		MaxBytes: cfg.MaxBytes,
	})
	if err != nil {
		closeConn()
		return nil, err
	}

	return &Store[V]{kv: kv, codec: cfg.Codec, close: closeConn}, nil
}

// Close releases the underlying connection. The store must not be used
// afterwards.
func (s *Store[V]) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *Store[V]) Create(ctx context.Context, key string, value V) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("nats: encode %q: %w", key, err)
	}
	if _, err := s.kv.Create(ctx, key, data); err != nil {
		return fmt.Errorf("nats: create %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Read(ctx context.Context, key string) (value V, err error) {
	kve, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return value, store.ErrNotFound
	}
	if err != nil {
		return value, fmt.Errorf("nats: read %q: %w", key, err)
	}
	if err := s.codec.Unmarshal(kve.Value(), &value); err != nil {
		return value, fmt.Errorf("nats: decode %q: %w", key, err)
	}
	return value, nil
}

func (s *Store[V]) Update(ctx context.Context, key string, value V) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("nats: encode %q: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("nats: update %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	err := s.kv.Purge(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) BulkCreate(ctx context.Context, entries map[string]V) error {
	for key, value := range entries {
		if err := s.Create(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[V]) BulkRead(ctx context.Context, keys []string) (map[string]V, error) {
	if keys == nil {
		lister, err := s.kv.ListKeys(ctx)
		if err != nil {
			if errors.Is(err, jetstream.ErrNoKeysFound) {
				return map[string]V{}, nil
			}
			return nil, fmt.Errorf("nats: list keys: %w", err)
		}
		keys = []string{}
		for key := range lister.Keys() {
			keys = append(keys, key)
		}
	}

	out := make(map[string]V, len(keys))
	for _, key := range keys {
		value, err := s.Read(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func (s *Store[V]) BulkUpdate(ctx context.Context, entries map[string]V) error {
	for key, value := range entries {
		if err := s.Update(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[V]) BulkDelete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ store.Store[string, any] = (*Store[any])(nil)
