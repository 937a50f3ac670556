package engine

import (
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// execCreateTable builds a catalog table from the parsed column list.
// Check constraints are parsed and validated syntactically but not
// enforced at runtime (spec's Non-goals exclude arbitrary CHECK
// evaluation); Database.CreateTable registers a backing Sequence for
// every SERIAL/BIGSERIAL column automatically.
func (e *Engine) execCreateTable(ct *ir.QueryCreateTable) error {
	schema := make(types.Schema, len(ct.Columns))
	for i := range ct.Columns {
		col := ct.Columns[i]
		schema[i] = &col
	}
	t := storage.NewTable(ct.TableName, schema)
	return e.DB.CreateTable(t)
}

// execAlterTable dispatches a single ALTER TABLE action to the matching
// storage.Table mutator (spec §4.14).
func (e *Engine) execAlterTable(at *ir.QueryAlterTable) error {
	t := e.DB.FindTable(at.TableName)
	if t == nil {
		return errkind.NotFoundTable.New(at.TableName)
	}
	switch at.Action {
	case ir.AlterAddColumn:
		col := at.NewColumn
		t.AddColumn(&col)
		return nil
	case ir.AlterDropColumn:
		ci := t.FindColumn(at.ColumnName)
		if ci < 0 {
			return errkind.NotFoundColumn.New(at.ColumnName)
		}
		t.DropColumn(ci)
		return nil
	case ir.AlterRenameColumn:
		ci := t.FindColumn(at.ColumnName)
		if ci < 0 {
			return errkind.NotFoundColumn.New(at.ColumnName)
		}
		t.RenameColumn(ci, at.NewName)
		return nil
	case ir.AlterColumnType:
		ci := t.FindColumn(at.ColumnName)
		if ci < 0 {
			return errkind.NotFoundColumn.New(at.ColumnName)
		}
		t.AlterType(ci, at.NewType)
		return nil
	default:
		return errkind.Execution.New("unknown ALTER TABLE action")
	}
}
