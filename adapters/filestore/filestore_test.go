package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Odogo/KyoLogix/core/cache"
	"github.com/Odogo/KyoLogix/ports/store"
)

type note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func newTestStore(t *testing.T) *Store[note] {
	t.Helper()
	s, err := New[note](Config{Dir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func Test_New_Validation(t *testing.T) {
	_, err := New[note](Config{})
	require.Error(t, err)

	dir := filepath.Join(t.TempDir(), "nested", "docs")
	_, err = New[note](Config{Dir: dir})
	require.NoError(t, err)
	require.DirExists(t, dir)
}

func Test_Store_CRUD(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read(t.Context(), "n1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Create(t.Context(), "n1", note{Title: "first"}))
	require.Error(t, s.Create(t.Context(), "n1", note{Title: "dupe"}))

	got, err := s.Read(t.Context(), "n1")
	require.NoError(t, err)
	require.Equal(t, "first", got.Title)

	require.NoError(t, s.Update(t.Context(), "n1", note{Title: "first", Body: "edited"}))
	got, err = s.Read(t.Context(), "n1")
	require.NoError(t, err)
	require.Equal(t, "edited", got.Body)

	// update upserts
	require.NoError(t, s.Update(t.Context(), "n2", note{Title: "second"}))

	require.NoError(t, s.Delete(t.Context(), "n1"))
	require.NoError(t, s.Delete(t.Context(), "n1"))
	_, err = s.Read(t.Context(), "n1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func Test_Store_KeysBecomeSafeFilenames(t *testing.T) {
	s := newTestStore(t)

	key := "../escape/attempt:1"
	require.NoError(t, s.Create(t.Context(), key, note{Title: "tricky"}))

	got, err := s.Read(t.Context(), key)
	require.NoError(t, err)
	require.Equal(t, "tricky", got.Title)

	all, err := s.BulkRead(t.Context(), nil)
	require.NoError(t, err)
	require.Contains(t, all, key)

	// nothing landed outside the store dir
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func Test_Store_ConcurrentReadersSeeWholeDocuments(t *testing.T) {
	s := newTestStore(t)

	// large body so a non-atomic replace would be visible as torn JSON
	body := strings.Repeat("x", 1<<16)
	require.NoError(t, s.Create(t.Context(), "n1", note{Title: "v0", Body: body}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			require.NoError(t, s.Update(t.Context(), "n1", note{Title: fmt.Sprintf("v%d", i), Body: body}))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		got, err := s.Read(t.Context(), "n1")
		require.NoError(t, err)
		require.Equal(t, body, got.Body)
	}
}

func Test_Store_Bulk(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BulkCreate(t.Context(), map[string]note{
		"n1": {Title: "one"},
		"n2": {Title: "two"},
	}))

	got, err := s.BulkRead(t.Context(), []string{"n1", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]note{"n1": {Title: "one"}}, got)

	all, err := s.BulkRead(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.BulkDelete(t.Context(), []string{"n1", "n2"}))
	all, err = s.BulkRead(t.Context(), nil)
	require.NoError(t, err)
	require.Empty(t, all)
}

func Test_Store_BehindCache(t *testing.T) {
	s := newTestStore(t)

	c, err := cache.New(cache.Config[string, note]{
		Store:      s,
		Expiration: time.Minute,
		Name:       "notes",
	})
	require.NoError(t, err)

	require.NoError(t, c.Create(t.Context(), "n1", note{Title: "draft"}))
	require.NoError(t, c.Update(t.Context(), "n1", note{Title: "final"}))
	require.NoError(t, c.Shutdown(t.Context()))

	got, err := s.Read(t.Context(), "n1")
	require.NoError(t, err)
	require.Equal(t, "final", got.Title)
}
