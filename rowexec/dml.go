package rowexec

import (
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/eval"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// Update applies an UPDATE statement (spec §4.14), including the
// UPDATE ... FROM multi-table form, evaluated as a nested-loop
// first-match join between the target and FROM tables: for each target
// row, the first FROM row for which WHERE holds (over their
// concatenated schema) is used both to decide whether the target row
// qualifies and to resolve any FROM-side columns referenced by SET
// expressions. Every eval.Expr/eval.Condition error propagates instead
// of being swallowed, so a WHERE/SET clause naming a column absent from
// the joined schema surfaces as errkind.NotFoundColumn instead of
// silently updating zero rows.
func Update(ctx *Ctx, upd *ir.QueryUpdate) (int, []row.Row, types.Schema, error) {
	t := ctx.DB.FindTable(upd.TableName)
	if t == nil {
		return 0, nil, nil, errkind.NotFoundTable.New(upd.TableName)
	}

	var fromSchema types.Schema
	var fromRows []row.Row
	var mergedSchema types.Schema
	if upd.FromTable != "" {
		ft := ctx.DB.FindTable(upd.FromTable)
		if ft == nil {
			return 0, nil, nil, errkind.NotFoundTable.New(upd.FromTable)
		}
		fromSchema = ft.Columns
		fromRows = make([]row.Row, len(ft.Rows))
		for i, r := range ft.Rows {
			fromRows[i] = r.Clone(types.OwnerArena)
		}
		mergedSchema = concatSchema(t.Columns, fromSchema)
	}

	retSchema := returningSchema(t.Columns, upd.Returning)
	affected := 0
	var returning []row.Row

	for rid := 0; rid < len(t.Rows); rid++ {
		targetRow := t.Rows[rid]
		evalSchema := t.Columns
		evalRow := targetRow

		if upd.FromTable != "" {
			matched := false
			for _, fr := range fromRows {
				merged := concatRows(targetRow, fr)
				ok, err := eval.Condition(ctx.Arena, mergedSchema, merged, upd.WhereCondIdx)
				if err != nil {
					return 0, nil, nil, err
				}
				if ok {
					matched = true
					evalSchema, evalRow = mergedSchema, merged
					break
				}
			}
			if !matched {
				continue
			}
		} else {
			ok, err := eval.Condition(ctx.Arena, evalSchema, evalRow, upd.WhereCondIdx)
			if err != nil {
				return 0, nil, nil, err
			}
			if !ok {
				continue
			}
		}

		newRow := targetRow.Clone(types.OwnerTable)
		for _, sc := range upd.Set {
			ci := t.Columns.FindColumn(sc.ColumnName)
			if ci < 0 {
				return 0, nil, nil, errkind.NotFoundColumn.New(sc.ColumnName)
			}
			if sc.Kind == ir.SetExprDefault {
				col := t.Columns[ci]
				if col.HasDefault {
					newRow[ci] = types.CellCopy(col.Default, types.OwnerTable)
				} else {
					newRow[ci] = types.NullCell(col.Tag)
				}
				continue
			}
			v, err := eval.Expr(ctx.Arena, evalSchema, evalRow, sc.ExprIdx)
			if err != nil {
				return 0, nil, nil, err
			}
			newRow[ci] = v
		}

		if err := t.Update(rid, newRow); err != nil {
			return 0, nil, nil, err
		}
		affected++
		if len(upd.Returning) > 0 {
			rr, err := returningRow(t.Columns, t.Rows[rid], upd.Returning)
			if err != nil {
				return 0, nil, nil, err
			}
			returning = append(returning, rr)
		}
	}
	return affected, returning, retSchema, nil
}

// Delete applies a DELETE statement (spec §4.14). Table.Delete removes
// a row by swap-with-last, so the scan index is held steady (never
// incremented) after a delete: the row swapped into the just-vacated
// position still needs to be checked against WHERE.
func Delete(ctx *Ctx, del *ir.QueryDelete) (int, []row.Row, types.Schema, error) {
	t := ctx.DB.FindTable(del.TableName)
	if t == nil {
		return 0, nil, nil, errkind.NotFoundTable.New(del.TableName)
	}
	retSchema := returningSchema(t.Columns, del.Returning)
	affected := 0
	var returning []row.Row

	rid := 0
	for rid < len(t.Rows) {
		r := t.Rows[rid]
		ok, err := eval.Condition(ctx.Arena, t.Columns, r, del.WhereCondIdx)
		if err != nil {
			return 0, nil, nil, err
		}
		if !ok {
			rid++
			continue
		}
		if len(del.Returning) > 0 {
			rr, err := returningRow(t.Columns, r, del.Returning)
			if err != nil {
				return 0, nil, nil, err
			}
			returning = append(returning, rr)
		}
		t.Delete(rid)
		affected++
	}
	return affected, returning, retSchema, nil
}

func returningSchema(full types.Schema, names []string) types.Schema {
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

func returningRow(full types.Schema, r row.Row, names []string) (row.Row, error) {
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
