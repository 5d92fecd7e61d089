package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Sharder_Stable(t *testing.T) {
	s := New[string](16)
	for _, key := range []string{"", "a", "user:123", "user:124"} {
		first := s.ForKey(key)
		require.GreaterOrEqual(t, first, 0)
		require.Less(t, first, 16)
		for range 10 {
			require.Equal(t, first, s.ForKey(key))
		}
	}
}

func Test_Sharder_NonStringKeys(t *testing.T) {
	type id struct{ A, B int }
	s := New[id](8)
	require.Equal(t, s.ForKey(id{1, 2}), s.ForKey(id{1, 2}))
}

func Test_Sharder_CountClamped(t *testing.T) {
	s := New[int](0)
	require.Equal(t, 1, s.Count())
	require.Equal(t, 0, s.ForKey(42))
}
