package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareNullOrdering(t *testing.T) {
	n, err := Compare(NullCell(TagInt), IntCell(TagInt, 5))
	require.NoError(t, err)
	require.Equal(t, -1, n)

	n, err = Compare(IntCell(TagInt, 5), NullCell(TagInt))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = Compare(NullCell(TagInt), NullCell(TagInt))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCompareNumericPromotion(t *testing.T) {
	n, err := Compare(IntCell(TagInt, 3), FloatCell(TagFloat, 3.0))
	require.NoError(t, err)
	require.Equal(t, 0, n)

	n, err = Compare(IntCell(TagInt, 2), FloatCell(TagFloat, 3.5))
	require.NoError(t, err)
	require.Equal(t, -1, n)
}

func TestCompareTextByteOrder(t *testing.T) {
	n, err := Compare(TextCell(TagText, "a", OwnerArena), TextCell(TagText, "b", OwnerArena))
	require.NoError(t, err)
	require.Equal(t, -1, n)
}

func TestCompareIncomparableTypes(t *testing.T) {
	_, err := Compare(BoolCell(true), TextCell(TagText, "x", OwnerArena))
	require.Error(t, err)
	var incomparable *ErrIncomparable
	require.ErrorAs(t, err, &incomparable)
}

func TestEqualTreatsIncomparableAsUnequal(t *testing.T) {
	require.False(t, Equal(BoolCell(true), TextCell(TagText, "x", OwnerArena)))
	require.True(t, Equal(IntCell(TagInt, 1), FloatCell(TagFloat, 1.0)))
}

func TestCellCopySetsOwnerOnlyForTextLike(t *testing.T) {
	src := TextCell(TagText, "hello", OwnerTable)
	dst := CellCopy(src, OwnerArena)
	require.Equal(t, OwnerArena, dst.Owner)
	require.Equal(t, "hello", dst.Text)

	n := IntCell(TagInt, 42)
	cp := CellCopy(n, OwnerArena)
	require.Equal(t, OwnerNone, cp.Owner)
}

func TestCoerceToTagNull(t *testing.T) {
	c, err := CoerceToTag(nil, TagInt)
	require.NoError(t, err)
	require.True(t, c.Null)
}

func TestCoerceToTagNumeric(t *testing.T) {
	c, err := CoerceToTag("42", TagInt)
	require.NoError(t, err)
	require.Equal(t, int64(42), c.Int)
}

func TestAsTextRendersByTag(t *testing.T) {
	require.Equal(t, "42", IntCell(TagInt, 42).AsText())
	require.Equal(t, "true", BoolCell(true).AsText())
	require.Equal(t, "hi", TextCell(TagText, "hi", OwnerArena).AsText())
}
