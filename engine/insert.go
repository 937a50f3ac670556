package engine

import (
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// execInsert implements spec §4.14's INSERT dispatch: INSERT ... SELECT
// recurses through the dispatcher, INSERT ... VALUES copies literal
// rows; both paths pad unlisted columns with DEFAULT/NULL (allocating a
// sequence value for SERIAL/BIGSERIAL columns per SPEC_FULL.md A.3),
// enforce NOT NULL/UNIQUE via Table.Insert, and support ON CONFLICT (col)
// DO NOTHING.
func (e *Engine) execInsert(arena *ir.QueryArena, ins *ir.QueryInsert) (types.Schema, int, []row.Row, error) {
	t := e.DB.FindTable(ins.TableName)
	if t == nil {
		return nil, 0, nil, errkind.NotFoundTable.New(ins.TableName)
	}

	var srcRows []row.Row
	if ins.SelectSQLIdx != ir.IdxNone {
		sql := arena.Strings.Get(ins.SelectSQLIdx)
		_, rows, err := e.ExecSQL(sql)
		if err != nil {
			return nil, 0, nil, err
		}
		srcRows = rows
	} else {
		srcRows = make([]row.Row, len(ins.ValuesRows))
		for i, vr := range ins.ValuesRows {
			srcRows[i] = row.Row(vr)
		}
	}

	retSchema := insertReturningSchema(t.Columns, ins.Returning)
	var returning []row.Row
	affected := 0

	for _, src := range srcRows {
		full, err := e.assembleInsertRow(t, ins.ColumnList, src)
		if err != nil {
			return nil, 0, nil, err
		}

		if ins.ConflictAction == ir.ConflictDoNothing && ins.ConflictColumn != "" {
			if ci := t.FindColumn(ins.ConflictColumn); ci >= 0 {
				conflict := false
				for _, existing := range t.Rows {
					if types.Equal(existing[ci], full[ci]) {
						conflict = true
						break
					}
				}
				if conflict {
					continue
				}
			}
		}

		rid, err := t.Insert(full)
		if err != nil {
			if ins.ConflictAction == ir.ConflictDoNothing && errkind.ConstraintViolation.Is(err) {
				continue
			}
			return nil, 0, nil, err
		}
		affected++
		if len(ins.Returning) > 0 {
			rr, err := insertReturningRow(t.Columns, t.Rows[rid], ins.Returning)
			if err != nil {
				return nil, 0, nil, err
			}
			returning = append(returning, rr)
		}
	}
	return retSchema, affected, returning, nil
}

// assembleInsertRow maps values (positional against colList when given,
// else against the schema's leading columns) into a full-width row,
// filling every unlisted column from its sequence (SERIAL/BIGSERIAL),
// literal DEFAULT, or NULL, in that precedence order.
func (e *Engine) assembleInsertRow(t *storage.Table, colList []string, values []types.Cell) (row.Row, error) {
	full := make(row.Row, len(t.Columns))
	provided := make([]bool, len(t.Columns))
	if len(colList) > 0 {
		for i, name := range colList {
			ci := t.FindColumn(name)
			if ci < 0 {
				return nil, errkind.NotFoundColumn.New(name)
			}
			if i < len(values) {
				full[ci] = values[i]
				provided[ci] = true
			}
		}
	} else {
		for i := 0; i < len(values) && i < len(full); i++ {
			full[i] = values[i]
			provided[i] = true
		}
	}
	for ci, col := range t.Columns {
		if provided[ci] {
			continue
		}
		switch {
		case col.SequenceName != "":
			var v int64
			if seq := e.DB.FindSequence(col.SequenceName); seq != nil {
				v = seq.NextVal()
			}
			full[ci] = types.IntCell(col.Tag, v)
		case col.HasDefault:
			full[ci] = types.CellCopy(col.Default, types.OwnerTable)
		default:
			full[ci] = types.NullCell(col.Tag)
		}
	}
	return full, nil
}

func insertReturningSchema(full types.Schema, names []string) types.Schema {
	if len(names) == 0 {
		return nil
	}
	if len(names) == 1 && names[0] == "*" {
		return full
	}
	out := make(types.Schema, len(names))
	for i, n := range names {
		if ci := full.FindColumn(n); ci >= 0 {
			out[i] = full[ci]
		} else {
			out[i] = &types.Column{Name: n, Tag: types.TagText}
		}
	}
	return out
}

func insertReturningRow(full types.Schema, r row.Row, names []string) (row.Row, error) {
	if len(names) == 1 && names[0] == "*" {
		return r.Clone(types.OwnerArena), nil
	}
	out := make(row.Row, len(names))
	for i, n := range names {
		ci := full.FindColumn(n)
		if ci < 0 {
			return nil, errkind.NotFoundColumn.New(n)
		}
		out[i] = r[ci]
	}
	return out, nil
}
