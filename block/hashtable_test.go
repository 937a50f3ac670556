package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestNewHashTableRoundsBucketsToPowerOfTwo(t *testing.T) {
	h := NewHashTable(5)
	require.Equal(t, 16, len(h.Buckets)) // next pow2 >= 2*5
	for _, b := range h.Buckets {
		require.Equal(t, int32(-1), b)
	}
}

func TestHashTableInsertAndChain(t *testing.T) {
	h := NewHashTable(4)
	h.Insert(42, 0)
	h.Insert(42, 1) // same bucket, prepended

	head := h.Chain(42)
	require.Equal(t, int32(1), head)
	require.Equal(t, int32(0), h.Nexts[head])
}

func TestHashCellNullIsStableSentinel(t *testing.T) {
	require.Equal(t, HashCell(types.NullCell(types.TagInt)), HashCell(types.NullCell(types.TagText)))
}

func TestHashCellDeterministic(t *testing.T) {
	a := types.IntCell(types.TagInt, 7)
	b := types.IntCell(types.TagInt, 7)
	require.Equal(t, HashCell(a), HashCell(b))
}

func TestHashCellDistinguishesValues(t *testing.T) {
	require.NotEqual(t, HashCell(types.IntCell(types.TagInt, 1)), HashCell(types.IntCell(types.TagInt, 2)))
	require.NotEqual(t, HashCell(types.BoolCell(true)), HashCell(types.BoolCell(false)))
	require.NotEqual(t,
		HashCell(types.TextCell(types.TagText, "a", types.OwnerArena)),
		HashCell(types.TextCell(types.TagText, "b", types.OwnerArena)))
}

func TestHashRowCombinesCells(t *testing.T) {
	r1 := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)}
	r2 := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "b", types.OwnerArena)}
	require.NotEqual(t, HashRow(r1), HashRow(r2))

	r3 := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)}
	require.Equal(t, HashRow(r1), HashRow(r3))
}
