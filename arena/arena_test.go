package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocBumpsWithinSlab(t *testing.T) {
	a := New()
	b1 := a.Alloc(16)
	b2 := a.Alloc(16)
	require.Len(t, b1, 16)
	require.Len(t, b2, 16)
	// distinct backing memory within the same slab
	b1[0] = 1
	b2[0] = 2
	require.Equal(t, byte(1), b1[0])
	require.Equal(t, byte(2), b2[0])
}

func TestAllocGrowsPastSlabCapacity(t *testing.T) {
	a := New()
	big := a.Alloc(firstSlabCapacity + 1)
	require.Len(t, big, firstSlabCapacity+1)
}

func TestSaveRestoreRewindsBumpPointer(t *testing.T) {
	a := New()
	a.Alloc(8)
	mark := a.Save()
	a.Alloc(8)
	a.Alloc(8)
	a.Restore(mark)

	// after restore, a fresh Alloc should reuse the space just rewound
	before := a.Save()
	a.Alloc(8)
	require.Equal(t, before.slab, a.Save().slab)
}

func TestResetKeepsSlabsAllocated(t *testing.T) {
	a := New()
	a.Alloc(firstSlabCapacity + 1) // forces a second slab
	slabCountBefore := len(a.slabs)

	a.Reset()
	require.Equal(t, slabCountBefore, len(a.slabs))
	require.Equal(t, 0, a.slabs[0].used)
}

func TestDestroyDropsSlabs(t *testing.T) {
	a := New()
	a.Alloc(8)
	a.Destroy()
	require.Equal(t, 0, len(a.slabs))
	require.Equal(t, -1, a.cur)
}

func TestStoreStringCopiesContent(t *testing.T) {
	a := New()
	s := a.StoreString("hello")
	require.Equal(t, "hello", s)
}

func TestRestoreToEmptyMarkResetsEverything(t *testing.T) {
	a := New()
	mark := a.Save() // taken before any allocation
	a.Alloc(8)
	a.Restore(mark)
	// Restore of an empty mark falls back to Reset, which rewinds the
	// already-allocated slab rather than dropping it.
	require.Equal(t, 0, a.cur)
	require.Equal(t, 0, a.slabs[0].used)
}
