package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	db := NewDatabase("d")
	require.NoError(t, db.CreateTable(NewTable("t", types.Schema{})))
	require.Error(t, db.CreateTable(NewTable("t", types.Schema{})))
}

func TestCreateTableRegistersSerialSequence(t *testing.T) {
	db := NewDatabase("d")
	schema := types.Schema{
		{Name: "id", Tag: types.TagInt, SequenceName: "t_id_seq"},
	}
	require.NoError(t, db.CreateTable(NewTable("t", schema)))
	require.NotNil(t, db.FindSequence("t_id_seq"))
}

func TestDropTableRemovesOwnedSequence(t *testing.T) {
	db := NewDatabase("d")
	schema := types.Schema{
		{Name: "id", Tag: types.TagInt, SequenceName: "t_id_seq"},
	}
	require.NoError(t, db.CreateTable(NewTable("t", schema)))
	require.NoError(t, db.DropTable("t"))
	require.Nil(t, db.FindTable("t"))
	require.Nil(t, db.FindSequence("t_id_seq"))
}

func TestDropTableUnknown(t *testing.T) {
	db := NewDatabase("d")
	require.Error(t, db.DropTable("nope"))
}

func TestRenameTable(t *testing.T) {
	db := NewDatabase("d")
	require.NoError(t, db.CreateTable(NewTable("old", types.Schema{})))
	require.NoError(t, db.RenameTable("old", "new"))
	require.Nil(t, db.FindTable("old"))
	require.NotNil(t, db.FindTable("new"))
}

func TestRenameTableRejectsExistingTarget(t *testing.T) {
	db := NewDatabase("d")
	require.NoError(t, db.CreateTable(NewTable("a", types.Schema{})))
	require.NoError(t, db.CreateTable(NewTable("b", types.Schema{})))
	require.Error(t, db.RenameTable("a", "b"))
}

func TestCreateAndDropType(t *testing.T) {
	db := NewDatabase("d")
	et := &types.EnumType{Name: "color", Values: []string{"red", "blue"}}
	require.NoError(t, db.CreateType(et))
	require.Error(t, db.CreateType(et)) // duplicate

	require.NotNil(t, db.FindType("color"))
	require.NoError(t, db.DropType("color"))
	require.Nil(t, db.FindType("color"))
	require.Error(t, db.DropType("color"))
}

func TestDatabaseCreateIndexAndDropIndex(t *testing.T) {
	db := NewDatabase("d")
	schema := types.Schema{{Name: "id", Tag: types.TagInt}}
	require.NoError(t, db.CreateTable(NewTable("t", schema)))

	_, err := db.CreateIndex("t", "idx_id", []string{"id"}, false)
	require.NoError(t, err)

	require.NoError(t, db.DropIndex("idx_id"))
	require.Error(t, db.DropIndex("idx_id")) // already gone
}

func TestDatabaseCreateIndexUnknownTable(t *testing.T) {
	db := NewDatabase("d")
	_, err := db.CreateIndex("nope", "idx", []string{"id"}, false)
	require.Error(t, err)
}
