package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Odogo/KyoLogix/ports/store"
)

func Test_Registry_ShutdownAll(t *testing.T) {
	reg := NewRegistry()

	users := store.NewMemStore[string, string]()
	sessions := store.NewMemStore[int, string]()

	uc, err := New(Config[string, string]{
		Store: users, Expiration: time.Minute, Name: "users", Registry: reg,
	})
	require.NoError(t, err)
	sc, err := New(Config[int, string]{
		Store: sessions, Expiration: time.Minute, Name: "sessions", Registry: reg,
	})
	require.NoError(t, err)

	require.Len(t, reg.Caches(), 2)
	require.Equal(t, "users", reg.Caches()[0].Name())

	require.NoError(t, uc.Create(t.Context(), "u1", "alice"))
	require.NoError(t, sc.Create(t.Context(), 1, "sess"))

	require.NoError(t, reg.ShutdownAll(t.Context()))

	// every cache is drained and dead
	require.Zero(t, uc.Len())
	require.Zero(t, sc.Len())
	require.ErrorIs(t, uc.Create(t.Context(), "u2", "bob"), ErrClosed)

	v, err := users.Read(t.Context(), "u1")
	require.NoError(t, err)
	require.Equal(t, "alice", v)

	// already-dead caches don't turn ShutdownAll into an error
	require.NoError(t, reg.ShutdownAll(t.Context()))
}

func Test_Registry_SkipsIndividuallyClosed(t *testing.T) {
	reg := NewRegistry()

	c, err := New(Config[string, string]{
		Store:      store.NewMemStore[string, string](),
		Expiration: time.Minute,
		Registry:   reg,
	})
	require.NoError(t, err)

	require.NoError(t, c.Shutdown(t.Context()))
	require.NoError(t, reg.ShutdownAll(t.Context()))
}
