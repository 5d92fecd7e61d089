// Package filestore implements the backing-store port on a directory of
// JSON documents, one file per key. It is meant for small datasets where
// being able to inspect and hand-edit records matters more than throughput.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Odogo/KyoLogix/internal/codec"
	"github.com/Odogo/KyoLogix/ports/store"
)

const docExt = ".json"

type Config struct {
	// Dir is the document directory; it is created if missing.
	Dir string
	// Codec encodes documents. Default: indented JSON.
	Codec codec.Codec
}

// Store is a Store[string, V] over one directory. Keys are percent-escaped
// into file names, so any string key is valid.
type Store[V any] struct {
	dir   string
	codec codec.Codec

	// guards multi-step operations (exists-check + write)
	mu sync.Mutex
}

func New[V any](cfg Config) (*Store[V], error) {
	if cfg.Dir == "" {
		return nil, errors.New("filestore: Dir is required")
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSONIndentCodec{}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir %s: %w", cfg.Dir, err)
	}
	return &Store[V]{dir: cfg.Dir, codec: cfg.Codec}, nil
}

func (s *Store[V]) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+docExt)
}

// write replaces the document atomically (temp file + rename), so a reader
// concurrent with an update never sees a half-written document.
func (s *Store[V]) write(key string, value V) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("filestore: encode %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".doc-*")
	if err != nil {
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Create(ctx context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(key)); err == nil {
		return fmt.Errorf("filestore: create %q: document exists", key)
	}
	return s.write(key, value)
}

func (s *Store[V]) Read(ctx context.Context, key string) (value V, err error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return value, store.ErrNotFound
	}
	if err != nil {
		return value, fmt.Errorf("filestore: read %q: %w", key, err)
	}
	if err := s.codec.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("filestore: decode %q: %w", key, err)
	}
	return value, nil
}

// Update upserts, so settle write-backs land even for unseen keys.
func (s *Store[V]) Update(ctx context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value)
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: delete %q: %w", key, err)
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
		var err error
		keys, err = s.listKeys()
		if err != nil {
			return nil, err
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

func (s *Store[V]) listKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list %s: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, docExt))
		if err != nil {
			// not one of ours
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

var _ store.Store[string, any] = (*Store[any])(nil)
