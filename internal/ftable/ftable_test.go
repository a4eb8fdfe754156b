package ftable

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	tb := New[string]()

	id := tb.Insert("alpha")
	require.Equal(t, ID{Slot: 0, Gen: 0}, id)

	v, ok := tb.Get(id)
	require.True(t, ok)
	require.Equal(t, "alpha", v)
	require.Equal(t, 1, tb.Len())

	require.True(t, tb.Remove(id))
	require.Equal(t, 0, tb.Len())

	_, ok = tb.Get(id)
	require.False(t, ok, "removed id must report gone")
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	tb := New[int]()

	first := tb.Insert(1)
	require.True(t, tb.Remove(first))

	second := tb.Insert(2)
	require.Equal(t, first.Slot, second.Slot, "freed slot should be recycled")
	require.NotEqual(t, first.Gen, second.Gen, "recycled slot must bump generation")

	_, ok := tb.Get(first)
	require.False(t, ok, "stale handle into a recycled slot must not resolve")

	v, ok := tb.Get(second)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestRemoveStaleIsNoop(t *testing.T) {
	tb := New[int]()
	id := tb.Insert(42)
	require.True(t, tb.Remove(id))
	require.False(t, tb.Remove(id), "double remove must fail, not double-free the slot")
}

func TestPackUnpackRoundTrip(t *testing.T) {
	id := ID{Slot: 123, Gen: 45}
	cookie := id.Pack()
	got := Unpack(cookie)
	if diff := pretty.Compare(id, got); diff != "" {
		t.Fatalf("round-tripped ID diverged from original (-want +got):\n%s", diff)
	}
}

func TestPackClampsGenerationAboveReservedWidth(t *testing.T) {
	id := ID{Slot: 7, Gen: 1<<24 + 99}
	cookie := id.Pack()
	got := Unpack(cookie)
	require.Equal(t, id.Slot, got.Slot, "an oversized generation must never corrupt the slot bits")
	require.Equal(t, uint32(99), got.Gen, "generation bits beyond the reserved 24 must be masked, not overflow into slot")
}

func TestSetOnStaleIDFails(t *testing.T) {
	tb := New[int]()
	id := tb.Insert(1)
	require.True(t, tb.Remove(id))
	require.False(t, tb.Set(id, 99))
}
