package engine

import (
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/planner"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// execSelect implements spec §4.14's SELECT dispatch steps 1-7: CTE
// materialization, correlated-subquery resolution, joins/planner/legacy
// execution, the surrounding set-op combination, outer ORDER BY, and
// temp-table cleanup.
func (e *Engine) execSelect(parent opentracing.Span, arena *ir.QueryArena, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	var temps []string
	defer func() {
		for _, name := range temps {
			delete(e.DB.Tables, name)
		}
	}()

	for _, cte := range sel.CTEs {
		name, err := e.materializeCTE(arena, cte)
		if err != nil {
			return nil, nil, err
		}
		temps = append(temps, name)
	}

	if err := e.resolveCondition(arena, sel.WhereCondIdx); err != nil {
		return nil, nil, err
	}
	if err := e.resolveCondition(arena, sel.HavingCondIdx); err != nil {
		return nil, nil, err
	}
	for i := range sel.Joins {
		if err := e.resolveCondition(arena, sel.Joins[i].CondIdx); err != nil {
			return nil, nil, err
		}
	}

	if sel.HasSetOp {
		return e.execSetOp(arena, sel)
	}
	return e.execPlan(arena, sel)
}

// execPlan implements spec §4.14 step 4: try the planner's specialized
// shapes (blockexec), falling back to the legacy row executor whenever
// Build declines. planner.Build is never reached for a query with a
// surrounding set-op (execSetOp handles those directly): none of its
// plan shapes correctly carry an outer ORDER BY/LIMIT/DISTINCT that
// belongs to a set-op combination rather than to this SELECT alone.
func (e *Engine) execPlan(arena *ir.QueryArena, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	span := e.Tracer.StartSpan("db.exec.plan")
	root, ok := planner.Build(arena, e.DB, sel)
	span.Finish()
	if ok {
		execSpan := e.Tracer.StartSpan("db.exec.run")
		defer execSpan.Finish()
		schema, rows, err := runPlanned(arena, e.DB, root)
		if err != nil {
			return nil, nil, err
		}
		e.Log.WithField("plan", "block").Debug("select dispatched to block executor")
		return schema, rows, nil
	}

	execSpan := e.Tracer.StartSpan("db.exec.run")
	defer execSpan.Finish()
	e.Log.WithField("plan", "legacy").Debug("select falls back to legacy executor")
	return e.runLegacy(arena, sel)
}

// materializeCTE implements spec §4.14 step 1 and §4.5's
// materialize_subquery: a plain CTE runs its body once; a recursive CTE
// splits at the top-level UNION [ALL] and iterates the recursive half
// to a fixed point (no new rows) or MaxRecursiveCTEIterations, whichever
// comes first.
func (e *Engine) materializeCTE(arena *ir.QueryArena, cte ir.CTE) (string, error) {
	body := arena.Strings.Get(cte.BodySQLIdx)

	var schema types.Schema
	var allRows []row.Row

	if cte.Recursive {
		baseSQL, recSQL, ok := splitTopLevelUnion(body)
		if !ok {
			// No top-level UNION found: treat as a non-recursive CTE
			// rather than failing the whole statement.
			s, rows, err := e.ExecSQL(body)
			if err != nil {
				return "", err
			}
			schema, allRows = s, rows
		} else {
			baseSchema, baseRows, err := e.ExecSQL(baseSQL)
			if err != nil {
				return "", err
			}
			schema = baseSchema
			allRows = append(allRows, baseRows...)
			latest := baseRows

			e.installTempTable(cte.Name, schema, latest)
			converged := false
			maxIter := e.maxCTEIterations()
			iter := 0
			for ; iter < maxIter && len(latest) > 0; iter++ {
				_, newRows, err := e.ExecSQL(recSQL)
				if err != nil {
					delete(e.DB.Tables, cte.Name)
					return "", err
				}
				fresh := newRowsOnly(allRows, newRows)
				if len(fresh) == 0 {
					converged = true
					break
				}
				allRows = append(allRows, fresh...)
				latest = fresh
				e.installTempTable(cte.Name, schema, latest)
			}
			delete(e.DB.Tables, cte.Name)
			if !converged && iter >= maxIter {
				e.Log.WithField("cte", cte.Name).Warn("recursive CTE hit the iteration cap without reaching a fixed point")
			}
		}
	} else {
		s, rows, err := e.ExecSQL(body)
		if err != nil {
			return "", err
		}
		schema, allRows = s, rows
	}

	if cte.ColumnName != "" && len(schema) >= 1 {
		renamed := make(types.Schema, len(schema))
		copy(renamed, schema)
		first := *schema[0]
		first.Name = cte.ColumnName
		renamed[0] = &first
		schema = renamed
	}

	e.installTempTable(cte.Name, schema, allRows)
	return cte.Name, nil
}

// installTempTable (re)creates a named catalog table holding exactly
// rows, used for CTE materialization (spec §4.5 materialize_subquery /
// remove_temp_table); FROM-subqueries are resolved by the row executor
// and do not pass through here.
func (e *Engine) installTempTable(name string, schema types.Schema, rows []row.Row) {
	delete(e.DB.Tables, name)
	t := storage.NewTable(name, schema)
	for _, r := range rows {
		// Temp tables hold already-typed, already-widthed rows; Insert's
		// NOT NULL/UNIQUE checks are no-ops here since materialized
		// schemas carry no such constraints, but reusing Insert keeps
		// the row store's bookkeeping (generation, owned-text clone)
		// consistent with every other table in the catalog.
		_, _ = t.Insert(r)
	}
	_ = e.DB.CreateTable(t)
}

// newRowsOnly returns the rows in candidates not already present (by
// value) in seen, preserving candidates' order.
func newRowsOnly(seen, candidates []row.Row) []row.Row {
	var fresh []row.Row
	for _, c := range candidates {
		dup := false
		for _, s := range seen {
			if c.Equal(s) {
				dup = true
				break
			}
		}
		if !dup {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// splitTopLevelUnion finds the first UNION/UNION ALL keyword that sits
// outside any parenthesized subexpression and outside a quoted string
// literal, returning the text before and after it.
func splitTopLevelUnion(sql string) (lhs, rhs string, ok bool) {
	depth := 0
	inQuote := false
	runes := []rune(sql)
	upper := strings.ToUpper(sql)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		}
		if inQuote || depth != 0 {
			continue
		}
		if strings.HasPrefix(upper[i:], "UNION") && isWordBoundary(runes, i, 5) {
			rest := i + 5
			for rest < len(runes) && runes[rest] == ' ' {
				rest++
			}
			if strings.HasPrefix(upper[rest:], "ALL") && isWordBoundary(runes, rest, 3) {
				rest += 3
			}
			return string(runes[:i]), string(runes[rest:]), true
		}
	}
	return "", "", false
}

func isWordBoundary(runes []rune, start, length int) bool {
	before := start == 0 || !isIdentRune(runes[start-1])
	afterIdx := start + length
	after := afterIdx >= len(runes) || !isIdentRune(runes[afterIdx])
	return before && after
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// resolveCondition implements spec §4.6: walk the WHERE/HAVING/ON
// condition tree and replace every subquery-bearing compare node with
// an ordinary literal comparison, recursively and idempotently.
func (e *Engine) resolveCondition(arena *ir.QueryArena, condIdx uint32) error {
	if condIdx == ir.IdxNone {
		return nil
	}
	c := arena.Conditions.Ptr(condIdx)
	switch c.Kind {
	case ir.CondAnd, ir.CondOr:
		if err := e.resolveCondition(arena, c.LeftIdx); err != nil {
			return err
		}
		return e.resolveCondition(arena, c.RightIdx)
	case ir.CondNot:
		return e.resolveCondition(arena, c.OperandIdx)
	case ir.CondCompare:
		if c.SubquerySQLIdx == ir.IdxNone {
			return nil
		}
		sql := arena.Strings.Get(c.SubquerySQLIdx)
		switch c.Op {
		case ir.OpExists, ir.OpNotExists:
			_, rows, err := e.ExecSQL(sql)
			if err != nil {
				return err
			}
			exists := len(rows) > 0
			if c.Op == ir.OpNotExists {
				exists = !exists
			}
			// eval.Condition has no OpExists/OpNotExists case; encode
			// the resolved boolean as an ordinary literal-to-literal
			// OpEq compare via the LHS/RHS expression override fields
			// that already exist for column-to-column join conditions.
			trueIdx := arena.Exprs.Push(ir.Expr{Kind: ir.ExprLiteral, Literal: types.BoolCell(true)})
			resultIdx := arena.Exprs.Push(ir.Expr{Kind: ir.ExprLiteral, Literal: types.BoolCell(exists)})
			c.Op = ir.OpEq
			c.LHSExprIdx = trueIdx
			c.RHSExprIdx = resultIdx
			c.SubquerySQLIdx = ir.IdxNone
		case ir.OpIn, ir.OpNotIn:
			_, rows, err := e.ExecSQL(sql)
			if err != nil {
				return err
			}
			values := make([]types.Cell, len(rows))
			for i, r := range rows {
				if len(r) == 0 {
					values[i] = types.NullCell(types.TagText)
					continue
				}
				values[i] = r[0]
			}
			arena.ResolveAsInList(c, values)
		default:
			_, rows, err := e.ExecSQL(sql)
			if err != nil {
				return err
			}
			var val types.Cell
			switch {
			case len(rows) == 0 || len(rows[0]) == 0:
				val = types.NullCell(types.TagText)
			default:
				val = rows[0][0]
			}
			c.ResolveAsLiteral(val)
		}
		return nil
	}
	return errkind.Execution.New("unknown condition kind during subquery resolution")
}
