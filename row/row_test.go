package row

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestRowCloneDeepCopiesText(t *testing.T) {
	r := Row{types.TextCell(types.TagText, "hi", types.OwnerTable)}
	clone := r.Clone(types.OwnerArena)
	require.Equal(t, "hi", clone[0].Text)
	require.Equal(t, types.OwnerArena, clone[0].Owner)
	require.Equal(t, types.OwnerTable, r[0].Owner)
}

func TestRowEqual(t *testing.T) {
	a := Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "x", types.OwnerArena)}
	b := Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "x", types.OwnerArena)}
	c := Row{types.IntCell(types.TagInt, 2), types.TextCell(types.TagText, "x", types.OwnerArena)}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestRowEqualDifferentLength(t *testing.T) {
	a := Row{types.IntCell(types.TagInt, 1)}
	b := Row{types.IntCell(types.TagInt, 1), types.IntCell(types.TagInt, 2)}
	require.False(t, a.Equal(b))
}

func TestRowPadTo(t *testing.T) {
	r := Row{types.IntCell(types.TagInt, 1)}
	padded := r.PadTo(3, func(i int) types.Cell {
		return types.NullCell(types.TagInt)
	})
	require.Len(t, padded, 3)
	require.False(t, padded[0].Null)
	require.True(t, padded[1].Null)
	require.True(t, padded[2].Null)
}

func TestRowPadToNoOpWhenAlreadyWideEnough(t *testing.T) {
	r := Row{types.IntCell(types.TagInt, 1), types.IntCell(types.TagInt, 2)}
	padded := r.PadTo(1, func(i int) types.Cell { return types.NullCell(types.TagInt) })
	require.Len(t, padded, 2)
}

func TestRowsPushAndLen(t *testing.T) {
	rs := NewRows(types.Schema{&types.Column{Name: "id", Tag: types.TagInt}})
	require.Equal(t, 0, rs.Len())
	rs.Push(Row{types.IntCell(types.TagInt, 1)})
	require.Equal(t, 1, rs.Len())
}
