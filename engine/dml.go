package engine

import (
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/rowexec"
	"github.com/martinsk/mskql/types"
)

// execUpdate resolves any correlated subquery in the WHERE clause (spec
// §4.6) before delegating to the row executor's nested-loop UPDATE.
func (e *Engine) execUpdate(arena *ir.QueryArena, upd *ir.QueryUpdate) (types.Schema, int, []row.Row, error) {
	if err := e.resolveCondition(arena, upd.WhereCondIdx); err != nil {
		return nil, 0, nil, err
	}
	n, returning, schema, err := rowexec.Update(&rowexec.Ctx{Arena: arena, DB: e.DB, Exec: e}, upd)
	return schema, n, returning, err
}

// execDelete resolves any correlated subquery in the WHERE clause before
// delegating to the row executor's swap-delete scan.
func (e *Engine) execDelete(arena *ir.QueryArena, del *ir.QueryDelete) (types.Schema, int, []row.Row, error) {
	if err := e.resolveCondition(arena, del.WhereCondIdx); err != nil {
		return nil, 0, nil, err
	}
	n, returning, schema, err := rowexec.Delete(&rowexec.Ctx{Arena: arena, DB: e.DB, Exec: e}, del)
	return schema, n, returning, err
}
