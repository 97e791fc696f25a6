package lrucache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrSet_ComputesOnceAndCachesResult(t *testing.T) {
	c := New[string, int](2)
	calls := 0
	compute := func() (int, bool) {
		calls++
		return 42, true
	}

	v, ok := c.GetOrSet("a", compute)
	require.True(t, ok)
	require.Equal(t, 42, v)

	v, ok = c.GetOrSet("a", compute)
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}

func TestGetOrSet_MissIsNotCached(t *testing.T) {
	c := New[string, int](2)
	v, ok := c.GetOrSet("missing", func() (int, bool) { return 0, false })
	require.False(t, ok)
	require.Equal(t, 0, v)
	require.Equal(t, 0, c.Stats().Size)
}

func TestSet_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	_, _ = c.Get("a") // a is now most-recently-used; b is the LRU entry

	c.Set("c", 3)

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted as the least recently used entry")

	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)

	require.Equal(t, uint64(1), c.Stats().Evicts)
}

func TestNew_NonPositiveCapacityFallsBackToDefault(t *testing.T) {
	c := New[string, int](0)
	for i := 0; i < 300; i++ {
		c.Set(string(rune('a'+i%26))+string(rune(i)), i)
	}
	require.LessOrEqual(t, c.Stats().Size, 256)
}
