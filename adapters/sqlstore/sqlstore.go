// Package sqlstore implements the backing-store port on top of a SQL
// database via database/sql. One table per store: key column is the primary
// key, values are encoded blobs.
//
// The package issues portable SQL plus SQLite/Postgres-style
// ON CONFLICT upserts; it is tested against modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Odogo/KyoLogix/internal/codec"
	"github.com/Odogo/KyoLogix/ports/store"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	// DB is the pool the store runs its statements on. The caller owns it.
	DB *sql.DB
	// Table is the table name; it is created if it does not exist.
	Table string
	// Codec encodes values into the blob column. Default: JSON.
	Codec codec.Codec
}

// Store is a Store[string, V] over one SQL table.
type Store[V any] struct {
	db    *sql.DB
	table string
	codec codec.Codec
}

// New validates the config and creates the table if needed.
func New[V any](ctx context.Context, cfg Config) (*Store[V], error) {
	if cfg.DB == nil {
		return nil, errors.New("sqlstore: DB is required")
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", cfg.Table)
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSONCodec{}
	}

	s := &Store[V]{db: cfg.DB, table: cfg.Table, codec: cfg.Codec}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v BLOB NOT NULL)`, s.table)
	if _, err := cfg.DB.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("sqlstore: create table %s: %w", s.table, err)
	}
	return s, nil
}

func (s *Store[V]) Create(ctx context.Context, key string, value V) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %q: %w", key, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (k, v) VALUES (?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, data); err != nil {
		return fmt.Errorf("sqlstore: create %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Read(ctx context.Context, key string) (value V, err error) {
	q := fmt.Sprintf(`SELECT v FROM %s WHERE k = ?`, s.table)

	var data []byte
	err = s.db.QueryRowContext(ctx, q, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return value, store.ErrNotFound
	}
	if err != nil {
		return value, fmt.Errorf("sqlstore: read %q: %w", key, err)
	}
	if err := s.codec.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("sqlstore: decode %q: %w", key, err)
	}
	return value, nil
}

// Update upserts: the cache's settle path writes back entries the table may
// not have seen yet.
func (s *Store[V]) Update(ctx context.Context, key string, value V) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %q: %w", key, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, data); err != nil {
		return fmt.Errorf("sqlstore: update %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("sqlstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) BulkCreate(ctx context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (k, v) VALUES (?, ?)`, s.table)
	return s.inTx(ctx, "bulk create", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for key, value := range entries {
			data, err := s.codec.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %q: %w", key, err)
			}
			if _, err := stmt.ExecContext(ctx, key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store[V]) BulkRead(ctx context.Context, keys []string) (map[string]V, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if keys == nil {
		q := fmt.Sprintf(`SELECT k, v FROM %s`, s.table)
		rows, err = s.db.QueryContext(ctx, q)
	} else {
		if len(keys) == 0 {
			return map[string]V{}, nil
		}
		q := fmt.Sprintf(`SELECT k, v FROM %s WHERE k IN (%s)`, s.table, placeholders(len(keys)))
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		rows, err = s.db.QueryContext(ctx, q, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: bulk read: %w", err)
	}
	defer rows.Close()

	out := map[string]V{}
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sqlstore: bulk read: %w", err)
		}
		var value V
		if err := s.codec.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("sqlstore: decode %q: %w", key, err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: bulk read: %w", err)
	}
	return out, nil
}

func (s *Store[V]) BulkUpdate(ctx context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, s.table)
	return s.inTx(ctx, "bulk update", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for key, value := range entries {
			data, err := s.codec.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %q: %w", key, err)
			}
			if _, err := stmt.ExecContext(ctx, key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store[V]) BulkDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE k IN (%s)`, s.table, placeholders(len(keys)))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlstore: bulk delete: %w", err)
	}
	return nil
}

func (s *Store[V]) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ store.Store[string, any] = (*Store[any])(nil)
