package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestColBlockAppendAndCellRoundTrip(t *testing.T) {
	c := NewColBlock(types.TagInt, 4)
	c.AppendCell(types.IntCell(types.TagInt, 10))
	c.AppendCell(types.NullCell(types.TagInt))
	c.AppendCell(types.IntCell(types.TagInt, 30))

	require.Equal(t, 3, c.Len())
	require.Equal(t, int64(10), c.Cell(0).Int)
	require.True(t, c.Cell(1).Null)
	require.Equal(t, int64(30), c.Cell(2).Int)
}

func TestColBlockFloatPromotesIntLiterals(t *testing.T) {
	c := NewColBlock(types.TagFloat, 4)
	c.AppendCell(types.IntCell(types.TagInt, 5))
	require.Equal(t, float64(5), c.Cell(0).Float)
}

func TestColBlockText(t *testing.T) {
	c := NewColBlock(types.TagText, 4)
	c.AppendCell(types.TextCell(types.TagText, "hi", types.OwnerArena))
	require.Equal(t, "hi", c.Cell(0).Text)
}

func TestColBlockBoolean(t *testing.T) {
	c := NewColBlock(types.TagBoolean, 4)
	c.AppendCell(types.BoolCell(true))
	c.AppendCell(types.BoolCell(false))
	require.True(t, c.Cell(0).Bool)
	require.False(t, c.Cell(1).Bool)
}

func TestRowIdxWithoutSelectionVector(t *testing.T) {
	require.Equal(t, 5, RowIdx(nil, 5))
}

func TestRowIdxWithSelectionVector(t *testing.T) {
	sel := &SelectionVector{Indices: []int{3, 1, 4}}
	require.Equal(t, 1, RowIdx(sel, 1))
}

func TestBlockActiveCountRespectsSelection(t *testing.T) {
	b := NewBlock([]types.Tag{types.TagInt})
	b.Count = 10
	require.Equal(t, 10, b.ActiveCount())

	b.Sel = &SelectionVector{Indices: []int{0, 2}}
	require.Equal(t, 2, b.ActiveCount())
}

func TestBlockRowReconstructsAcrossColumns(t *testing.T) {
	b := NewBlock([]types.Tag{types.TagInt, types.TagText})
	b.Cols[0].AppendCell(types.IntCell(types.TagInt, 1))
	b.Cols[1].AppendCell(types.TextCell(types.TagText, "a", types.OwnerArena))
	b.Count = 1

	r := b.Row(0)
	require.Len(t, r, 2)
	require.Equal(t, int64(1), r[0].Int)
	require.Equal(t, "a", r[1].Text)
}
