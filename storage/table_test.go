package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

func newTestTable() *Table {
	schema := types.Schema{
		{Name: "id", Tag: types.TagInt, Unique: true},
		{Name: "label", Tag: types.TagText, NotNull: true},
	}
	return NewTable("t", schema)
}

func TestTableInsertPadsAndAssignsRowID(t *testing.T) {
	tbl := newTestTable()
	rid, err := tbl.Insert(row.Row{types.IntCell(types.TagInt, 1)})
	require.NoError(t, err)
	require.Equal(t, 0, rid)
	require.Len(t, tbl.Rows[0], 2)
	require.True(t, tbl.Rows[0][1].IsNullLike())
}

func TestTableInsertRejectsNotNullViolation(t *testing.T) {
	tbl := newTestTable()
	r := row.Row{types.IntCell(types.TagInt, 1), types.NullCell(types.TagText)}
	_, err := tbl.Insert(r)
	require.Error(t, err)
}

func TestTableInsertRejectsUniqueViolation(t *testing.T) {
	tbl := newTestTable()
	_, err := tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})
	require.NoError(t, err)

	_, err = tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "b", types.OwnerArena)})
	require.Error(t, err)
}

func TestTableUpdateReplacesRowAndBumpsGeneration(t *testing.T) {
	tbl := newTestTable()
	rid, err := tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})
	require.NoError(t, err)
	genBefore := tbl.Generation

	err = tbl.Update(rid, row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "z", types.OwnerArena)})
	require.NoError(t, err)
	require.Equal(t, "z", tbl.Rows[rid][1].Text)
	require.Greater(t, tbl.Generation, genBefore)
}

func TestTableDeleteSwapsWithLast(t *testing.T) {
	tbl := newTestTable()
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 2), types.TextCell(types.TagText, "b", types.OwnerArena)})
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 3), types.TextCell(types.TagText, "c", types.OwnerArena)})

	tbl.Delete(0)
	require.Len(t, tbl.Rows, 2)
	// row previously at the last position (3, "c") now occupies slot 0
	require.Equal(t, int64(3), tbl.Rows[0][0].Int)
}

func TestTableAddColumnPadsExistingRows(t *testing.T) {
	tbl := newTestTable()
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})

	tbl.AddColumn(&types.Column{Name: "extra", Tag: types.TagInt})
	require.Len(t, tbl.Columns, 3)
	require.Len(t, tbl.Rows[0], 3)
	require.True(t, tbl.Rows[0][2].IsNullLike())
}

func TestTableDropColumnRemovesFromRowsAndIndexes(t *testing.T) {
	tbl := newTestTable()
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})
	_, err := tbl.CreateIndex("idx_label", []string{"label"}, false)
	require.NoError(t, err)

	tbl.DropColumn(0) // drop "id"
	require.Len(t, tbl.Columns, 1)
	require.Equal(t, "label", tbl.Columns[0].Name)
	require.Len(t, tbl.Rows[0], 1)

	idx := tbl.FindIndex("idx_label")
	require.NotNil(t, idx)
	require.Equal(t, 0, idx.ColumnIdx[0]) // shifted down after id's removal
}

func TestTableDropColumnDropsReferencingIndex(t *testing.T) {
	tbl := newTestTable()
	_, err := tbl.CreateIndex("idx_id", []string{"id"}, true)
	require.NoError(t, err)

	tbl.DropColumn(0) // drop "id", the indexed column
	require.Nil(t, tbl.FindIndex("idx_id"))
}

func TestTableCreateIndexUnknownColumn(t *testing.T) {
	tbl := newTestTable()
	_, err := tbl.CreateIndex("bad", []string{"nope"}, false)
	require.Error(t, err)
}

func TestTableDeepCopyIsIndependent(t *testing.T) {
	tbl := newTestTable()
	_, _ = tbl.Insert(row.Row{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "a", types.OwnerArena)})
	_, err := tbl.CreateIndex("idx_id", []string{"id"}, true)
	require.NoError(t, err)

	cp := tbl.DeepCopy()
	_, _ = cp.Insert(row.Row{types.IntCell(types.TagInt, 2), types.TextCell(types.TagText, "b", types.OwnerArena)})

	require.Len(t, tbl.Rows, 1)
	require.Len(t, cp.Rows, 2)

	idx := cp.FindIndex("idx_id")
	require.NotNil(t, idx)
	require.ElementsMatch(t, []int{0}, idx.Tree.Lookup(idx.KeyFor(tbl.Rows[0])))
}
