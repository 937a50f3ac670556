package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestQueryArenaCaptureSQLRoundTrips(t *testing.T) {
	q := New()
	idx := q.CaptureSQL("SELECT 1")
	require.Equal(t, "SELECT 1", q.Strings.Get(idx))
}

func TestQueryArenaSetErrorKeepsFirst(t *testing.T) {
	q := New()
	require.NoError(t, q.Err())

	first := errors.New("first")
	second := errors.New("second")
	q.SetError(first)
	q.SetError(second)
	require.Equal(t, first, q.Err())
}

func TestQueryArenaResetClearsPoolsAndError(t *testing.T) {
	q := New()
	q.CaptureSQL("abc")
	q.SetError(errors.New("boom"))
	q.NewCompare("id", OpEq, types.IntCell(types.TagInt, 1))

	q.Reset()
	require.Equal(t, 0, q.Strings.Len())
	require.Equal(t, 0, q.Conditions.Len())
	require.NoError(t, q.Err())
}

func TestNewCompareDefaultsExprIdxToNone(t *testing.T) {
	q := New()
	idx := q.NewCompare("age", OpGe, types.IntCell(types.TagInt, 18))
	cond := q.Conditions.Get(idx)
	require.Equal(t, CondCompare, cond.Kind)
	require.Equal(t, uint32(IdxNone), cond.LHSExprIdx)
	require.Equal(t, uint32(IdxNone), cond.RHSExprIdx)
	require.Equal(t, uint32(IdxNone), cond.SubquerySQLIdx)
}

func TestConditionInValuesResolvesFromCellsPool(t *testing.T) {
	q := New()
	vals := []types.Cell{types.IntCell(types.TagInt, 1), types.IntCell(types.TagInt, 2)}
	idx := q.NewMultiIn([]string{"a", "b"}, vals)
	cond := q.Conditions.Ptr(idx)
	got := cond.InValues(q)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].Int)
}

func TestResolveAsLiteralClearsSubqueryIdx(t *testing.T) {
	q := New()
	idx := q.NewCompare("id", OpEq, types.NullCell(types.TagInt))
	cond := q.Conditions.Ptr(idx)
	cond.SubquerySQLIdx = q.CaptureSQL("SELECT 1")

	cond.ResolveAsLiteral(types.IntCell(types.TagInt, 5))
	require.Equal(t, uint32(IdxNone), cond.SubquerySQLIdx)
	require.Equal(t, int64(5), cond.Literal.Int)
}
