package btree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func intKey(v int64) Key {
	return Key{types.IntCell(types.TagInt, v)}
}

func TestInsertAndLookup(t *testing.T) {
	bt := New()
	bt.Insert(intKey(1), 100)
	bt.Insert(intKey(2), 200)

	require.Equal(t, []int{100}, bt.Lookup(intKey(1)))
	require.Equal(t, []int{200}, bt.Lookup(intKey(2)))
	require.Nil(t, bt.Lookup(intKey(3)))
}

func TestInsertDuplicateKeyAppendsRowIDs(t *testing.T) {
	bt := New()
	bt.Insert(intKey(1), 100)
	bt.Insert(intKey(1), 200)

	require.ElementsMatch(t, []int{100, 200}, bt.Lookup(intKey(1)))
}

func TestInsertManyKeysTriggersSplits(t *testing.T) {
	bt := New()
	const n = 500
	for i := int64(0); i < n; i++ {
		bt.Insert(intKey(i), int(i))
	}
	for i := int64(0); i < n; i++ {
		got := bt.Lookup(intKey(i))
		require.Equal(t, []int{int(i)}, got, "key %d", i)
	}
}

func TestRemoveDropsRowIDAndEmptyEntry(t *testing.T) {
	bt := New()
	bt.Insert(intKey(1), 100)
	bt.Insert(intKey(1), 200)

	bt.Remove(intKey(1), 100)
	require.Equal(t, []int{200}, bt.Lookup(intKey(1)))

	bt.Remove(intKey(1), 200)
	require.Nil(t, bt.Lookup(intKey(1)))
}

func TestReset(t *testing.T) {
	bt := New()
	bt.Insert(intKey(1), 100)
	bt.Reset()
	require.Nil(t, bt.Lookup(intKey(1)))
}

func TestCloneIsIndependentCopy(t *testing.T) {
	bt := New()
	bt.Insert(intKey(1), 100)

	clone := bt.Clone()
	clone.Insert(intKey(2), 200)

	require.Nil(t, bt.Lookup(intKey(2)))
	require.Equal(t, []int{200}, clone.Lookup(intKey(2)))
	require.Equal(t, []int{100}, clone.Lookup(intKey(1)))
}
