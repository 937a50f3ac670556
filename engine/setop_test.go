package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

func intRow(v int64) row.Row {
	return row.Row{types.IntCell(types.TagInt, v)}
}

func TestCombineSetOpUnion(t *testing.T) {
	lhs := []row.Row{intRow(1), intRow(2)}
	rhs := []row.Row{intRow(2), intRow(3)}

	dedup := combineSetOp(ir.SetOpUnion, false, lhs, rhs)
	require.Len(t, dedup, 3)

	all := combineSetOp(ir.SetOpUnion, true, lhs, rhs)
	require.Len(t, all, 4)
}

func TestCombineSetOpIntersect(t *testing.T) {
	lhs := []row.Row{intRow(1), intRow(1), intRow(2)}
	rhs := []row.Row{intRow(1)}

	dedup := combineSetOp(ir.SetOpIntersect, false, lhs, rhs)
	require.Len(t, dedup, 1)

	all := combineSetOp(ir.SetOpIntersect, true, lhs, rhs)
	require.Len(t, all, 1) // rhs only has one occurrence of 1 to match against
}

func TestCombineSetOpExcept(t *testing.T) {
	lhs := []row.Row{intRow(1), intRow(1), intRow(2)}
	rhs := []row.Row{intRow(1)}

	dedup := combineSetOp(ir.SetOpExcept, false, lhs, rhs)
	require.Len(t, dedup, 1) // only the "2" row survives, deduped

	all := combineSetOp(ir.SetOpExcept, true, lhs, rhs)
	require.Len(t, all, 2) // one "1" consumed by rhs, the other "1" and the "2" survive
}

func TestLimitSetOpRows(t *testing.T) {
	rows := []row.Row{intRow(1), intRow(2), intRow(3), intRow(4)}

	require.Len(t, limitSetOpRows(rows, 0, 2), 2)
	require.Len(t, limitSetOpRows(rows, 1, -1), 3)
	require.Len(t, limitSetOpRows(rows, 10, -1), 0)
}
