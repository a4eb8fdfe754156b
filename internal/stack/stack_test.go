package stack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseReusesStacks(t *testing.T) {
	a := NewAllocator(Options{MaxCachedPerClass: 4})
	defer a.Close()

	s1, err := a.Acquire(DefaultSize)
	require.NoError(t, err)
	require.NotZero(t, s1.Top())

	a.Release(s1)
	stats := a.Stats()
	require.EqualValues(t, 1, stats.Created)
	require.EqualValues(t, 1, stats.Cached)

	s2, err := a.Acquire(DefaultSize)
	require.NoError(t, err)

	stats = a.Stats()
	require.EqualValues(t, 1, stats.Created, "second acquire should reuse, not mmap again")
	require.EqualValues(t, 1, stats.Reused)
	require.EqualValues(t, 0, stats.Cached)

	a.Release(s2)
}

func TestReleaseBeyondCapacityUnmaps(t *testing.T) {
	a := NewAllocator(Options{MaxCachedPerClass: 1})
	defer a.Close()

	s1, err := a.Acquire(DefaultSize)
	require.NoError(t, err)
	s2, err := a.Acquire(DefaultSize)
	require.NoError(t, err)

	a.Release(s1)
	a.Release(s2) // capacity 1: this one should be munmapped, not cached.

	stats := a.Stats()
	require.EqualValues(t, 1, stats.Cached)
	require.EqualValues(t, 1, stats.Released)
}

func TestDifferentSizesUseDifferentClasses(t *testing.T) {
	a := NewAllocator(DefaultOptions)
	defer a.Close()

	small, err := a.Acquire(4096)
	require.NoError(t, err)
	big, err := a.Acquire(256 * 1024)
	require.NoError(t, err)

	require.NotEqual(t, small.class, big.class)

	a.Release(small)
	a.Release(big)
}
