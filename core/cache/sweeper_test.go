package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Odogo/KyoLogix/ports/store"
)

func Test_Sweeper_EvictsStale(t *testing.T) {
	s := newCountingStore[string, string]()
	c := newTestCache(t, s, func(cfg *Config[string, string]) {
		cfg.Expiration = 200 * time.Millisecond
	})

	require.NoError(t, c.Create(t.Context(), "k", "v"))

	// untouched for > expiration: the sweeper settles it
	require.Eventually(t, func() bool {
		return !c.Contains("k")
	}, 2*time.Second, 20*time.Millisecond)

	// settled, not discarded: the value reached the store via the update path
	require.GreaterOrEqual(t, s.updates.Load(), int32(1))
	sv, err := s.MemStore.Read(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, "v", sv)
}

func Test_Sweeper_SlidingExpiry(t *testing.T) {
	s := newCountingStore[string, string]()
	c := newTestCache(t, s, func(cfg *Config[string, string]) {
		cfg.Expiration = 500 * time.Millisecond
	})

	require.NoError(t, c.Create(t.Context(), "k", "v"))

	// touch the entry before the window closes
	time.Sleep(400 * time.Millisecond)
	_, found, err := c.Read(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, found)

	// one full period after creation the entry is still cached, because the
	// read reset its clock
	time.Sleep(300 * time.Millisecond)
	require.True(t, c.Contains("k"))

	// left untouched, it eventually goes
	require.Eventually(t, func() bool {
		return !c.Contains("k")
	}, 3*time.Second, 20*time.Millisecond)
}

func Test_Sweeper_ColdMissAfterEviction(t *testing.T) {
	s := newCountingStore[string, string]()
	c := newTestCache(t, s, func(cfg *Config[string, string]) {
		cfg.Expiration = 200 * time.Millisecond
	})

	require.NoError(t, c.Create(t.Context(), "a", "x"))

	require.Eventually(t, func() bool {
		return !c.Contains("a")
	}, 2*time.Second, 20*time.Millisecond)

	sv, err := s.MemStore.Read(t.Context(), "a")
	require.NoError(t, err)
	require.Equal(t, "x", sv)

	// the read after eviction is a cold miss repopulating from the store
	before := s.reads.Load()
	v, found, err := c.Read(t.Context(), "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "x", v)
	require.Equal(t, before+1, s.reads.Load())
	require.True(t, c.Contains("a"))
}

func Test_Sweeper_SettleFailureIsolated(t *testing.T) {
	s := newCountingStore[string, string]()
	c := newTestCache(t, s, func(cfg *Config[string, string]) {
		cfg.Expiration = 200 * time.Millisecond
	})

	require.NoError(t, c.Create(t.Context(), "k1", "v1"))
	require.NoError(t, c.Create(t.Context(), "k2", "v2"))

	// every settle fails; the sweep must still try all keys and the cache
	// must keep running
	s.failUpdate.Store(true)
	require.Eventually(t, func() bool {
		return s.updates.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)

	s.failUpdate.Store(false)
	require.NoError(t, c.Create(t.Context(), "k3", "v3"))
}

func Test_Cache_Shutdown_StopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := store.NewMemStore[string, string]()
	c, err := New(Config[string, string]{
		Store:           s,
		Expiration:      50 * time.Millisecond,
		SerializeWrites: true,
	})
	require.NoError(t, err)

	require.NoError(t, c.Create(context.Background(), "k", "v"))
	time.Sleep(120 * time.Millisecond) // let at least one sweep fire

	require.NoError(t, c.Shutdown(context.Background()))

	// sweeper goroutine and per-key write queues are gone; the drain landed
	// in the store
	v, serr := s.Read(context.Background(), "k")
	require.NoError(t, serr)
	require.Equal(t, "v", v)
}
