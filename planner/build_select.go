package planner

import (
	"strings"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/storage"
)

// Build attempts to translate sel into a plan tree, trying the
// specialized shapes of spec §4.12 in order. It returns (root, true) on
// success, or (ir.IdxNone, false) when no shape's preconditions hold —
// the dispatcher then falls back to the legacy row executor (spec
// §4.14 step 4).
//
// Shapes 1 (generate_series only) and 4 (set-op on single-table SELECTs)
// are never built: their builders always decline. Shapes 2 (single
// equi-join) and 5 (single-table GROUP BY) are matched only in their
// simplest form here;
// anything wider (mixed types, correlated subqueries, multi-condition
// WHERE on the join shape) falls through to the legacy executor exactly
// as spec §4.12 describes for "any precondition fails" — the planner is
// a fast path, not the only path, and rowexec carries the full semantics
// for every shape the planner declines.
func Build(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	if len(sel.CTEs) > 0 {
		return ir.IdxNone, false // shape precondition: "CTE present" declines (spec §4.12)
	}
	if root, ok := buildGenerateSeriesOnly(q, sel); ok {
		return root, true
	}
	if root, ok := buildSingleEquiJoin(q, db, sel); ok {
		return root, true
	}
	if root, ok := buildWindowProjection(q, db, sel); ok {
		return root, true
	}
	if root, ok := buildSetOp(q, db, sel); ok {
		return root, true
	}
	if root, ok := buildGroupByAggregate(q, db, sel); ok {
		return root, true
	}
	return buildSingleTable(q, db, sel)
}

// buildGenerateSeriesOnly is the slot for shape 1, "generate_series
// only". It always declines, so the planner never emits
// PlanGenerateSeries.
func buildGenerateSeriesOnly(q *ir.QueryArena, sel *ir.QuerySelect) (uint32, bool) {
	if sel.FromTable != "" || sel.FromSubquerySQLIdx != ir.IdxNone {
		return ir.IdxNone, false
	}
	if len(sel.Columns) != 1 || sel.Columns[0].Kind != ir.SelectColExpr {
		return ir.IdxNone, false
	}
	// Columns[0]'s expression is not inspected for a
	// generate_series(start, stop[, step]) call.
	return ir.IdxNone, false
}

// buildSingleEquiJoin matches shape 2: single equi-join, INNER, two base
// tables, no WHERE/ORDER, projection all or column-refs only.
func buildSingleEquiJoin(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	if len(sel.Joins) != 1 || sel.WhereCondIdx != ir.IdxNone || len(sel.OrderBy) != 0 {
		return ir.IdxNone, false
	}
	j := sel.Joins[0]
	if j.Type != ir.JoinInner || j.CondIdx == ir.IdxNone {
		return ir.IdxNone, false
	}
	cond := q.Conditions.Get(j.CondIdx)
	if cond.Kind != ir.CondCompare || cond.Op != ir.OpEq || cond.LHSExprIdx != ir.IdxNone {
		return ir.IdxNone, false
	}
	innerKey, ok := rhsColumnName(q, cond)
	if !ok {
		return ir.IdxNone, false // RHS isn't a bare column-ref: not this shape
	}
	for _, c := range sel.Columns {
		if c.Kind != ir.SelectColStar && c.Kind != ir.SelectColColumnRef {
			return ir.IdxNone, false
		}
	}
	outer := db.FindTable(sel.FromTable)
	inner := db.FindTable(j.TableName)
	if outer == nil || inner == nil {
		return ir.IdxNone, false
	}

	outerScan := q.NewPlanNode(ir.PlanSeqScan)
	*q.PlanNodes.Ptr(outerScan) = setTable(q.PlanNodes.Get(outerScan), sel.FromTable)
	innerScan := q.NewPlanNode(ir.PlanSeqScan)
	*q.PlanNodes.Ptr(innerScan) = setTable(q.PlanNodes.Get(innerScan), j.TableName)

	join := q.NewPlanNode(ir.PlanHashJoin)
	n := q.PlanNodes.Get(join)
	n.LeftIdx, n.RightIdx = outerScan, innerScan
	n.OuterKeyColumn = cond.ColumnName
	n.InnerKeyColumn = innerKey
	n.JoinType = ir.JoinInner
	*q.PlanNodes.Ptr(join) = n
	return join, true
}

// rhsColumnName reports whether c's RHS (a column-to-column compare built
// from "a.id = b.id") is a bare column-ref, and if so returns its name.
func rhsColumnName(q *ir.QueryArena, c ir.Condition) (string, bool) {
	if c.RHSExprIdx == ir.IdxNone {
		return "", false
	}
	e := q.Exprs.Get(c.RHSExprIdx)
	if e.Kind != ir.ExprColumnRef {
		return "", false
	}
	return e.ColumnName, true
}

func setTable(n ir.PlanNode, table string) ir.PlanNode {
	n.TableName = table
	return n
}

// buildWindowProjection matches shape 3: window-function projection,
// single base table, optional simple WHERE + ORDER BY + LIMIT.
func buildWindowProjection(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	hasWindow := false
	for _, c := range sel.Columns {
		if c.Kind == ir.SelectColWindow {
			hasWindow = true
		}
	}
	if !hasWindow || len(sel.Joins) != 0 || sel.FromTable == "" {
		return ir.IdxNone, false
	}
	t := db.FindTable(sel.FromTable)
	if t == nil {
		return ir.IdxNone, false
	}
	scan := q.NewPlanNode(ir.PlanSeqScan)
	*q.PlanNodes.Ptr(scan) = setTable(q.PlanNodes.Get(scan), sel.FromTable)
	cur := scan
	if sel.WhereCondIdx != ir.IdxNone {
		f := q.NewPlanNode(ir.PlanFilter)
		n := q.PlanNodes.Get(f)
		n.LeftIdx = cur
		n.CondIdx = sel.WhereCondIdx
		*q.PlanNodes.Ptr(f) = n
		cur = f
	}
	win := q.NewPlanNode(ir.PlanWindow)
	n := q.PlanNodes.Get(win)
	n.LeftIdx = cur
	for _, c := range sel.Columns {
		switch c.Kind {
		case ir.SelectColWindow:
			n.WindowSpecs = append(n.WindowSpecs, q.Aggregates.Get(c.WinIdx))
		case ir.SelectColColumnRef:
			n.Passthroughs = append(n.Passthroughs, c.ColumnName)
		}
	}
	*q.PlanNodes.Ptr(win) = n
	cur = win
	if len(sel.OrderBy) > 0 {
		s := q.NewPlanNode(ir.PlanSort)
		n := q.PlanNodes.Get(s)
		n.LeftIdx = cur
		n.OrderBy = sel.OrderBy
		*q.PlanNodes.Ptr(s) = n
		cur = s
	}
	if sel.Limit >= 0 {
		l := q.NewPlanNode(ir.PlanLimit)
		n := q.PlanNodes.Get(l)
		n.LeftIdx = cur
		n.Offset, n.Limit = sel.Offset, sel.Limit
		*q.PlanNodes.Ptr(l) = n
		cur = l
	}
	return cur, true
}

// buildSetOp is the slot for shape 4: a single UNION/INTERSECT/EXCEPT
// over single-table SELECTs. It always declines; set operations are
// combined by the dispatcher (engine.execSetOp), which runs each side
// through its own dispatch.
func buildSetOp(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	if !sel.HasSetOp || len(sel.Joins) != 0 || sel.GroupByColumns != nil {
		return ir.IdxNone, false
	}
	// The RHS is captured only as raw SQL text (SetOpRHSSQL), which the
	// planner does not parse.
	return ir.IdxNone, false
}

// buildGroupByAggregate matches shape 5: single-table GROUP BY with
// simple aggregates.
func buildGroupByAggregate(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	if len(sel.GroupByColumns) == 0 || len(sel.Joins) != 0 || sel.FromTable == "" {
		return ir.IdxNone, false
	}
	if sel.HavingCondIdx != ir.IdxNone {
		return ir.IdxNone, false // complex HAVING declines per spec §4.12
	}
	t := db.FindTable(sel.FromTable)
	if t == nil {
		return ir.IdxNone, false
	}
	var aggs []ir.AggExpr
	for _, c := range sel.Columns {
		switch c.Kind {
		case ir.SelectColAggregate:
			aggs = append(aggs, q.Aggregates.Get(c.AggIdx))
		case ir.SelectColColumnRef:
			// must be one of the group-by columns
			found := false
			for _, g := range sel.GroupByColumns {
				if g == c.ColumnName {
					found = true
				}
			}
			if !found {
				return ir.IdxNone, false
			}
		default:
			return ir.IdxNone, false
		}
	}
	scan := q.NewPlanNode(ir.PlanSeqScan)
	*q.PlanNodes.Ptr(scan) = setTable(q.PlanNodes.Get(scan), sel.FromTable)
	cur := scan
	if sel.WhereCondIdx != ir.IdxNone {
		f := q.NewPlanNode(ir.PlanFilter)
		n := q.PlanNodes.Get(f)
		n.LeftIdx = cur
		n.CondIdx = sel.WhereCondIdx
		*q.PlanNodes.Ptr(f) = n
		cur = f
	}
	agg := q.NewPlanNode(ir.PlanHashAgg)
	n := q.PlanNodes.Get(agg)
	n.LeftIdx = cur
	n.GroupCols = sel.GroupByColumns
	n.Aggregates = aggs
	*q.PlanNodes.Ptr(agg) = n
	return agg, true
}

// buildSingleTable matches shape 6, the catch-all: SEQ_SCAN (or
// INDEX_SCAN when WHERE is "col = literal" on an indexed column) →
// optional FILTER → optional SORT → optional PROJECT or EXPR_PROJECT →
// optional DISTINCT → optional LIMIT.
func buildSingleTable(q *ir.QueryArena, db *storage.Database, sel *ir.QuerySelect) (uint32, bool) {
	if sel.FromTable == "" || len(sel.Joins) != 0 || len(sel.GroupByColumns) != 0 {
		return ir.IdxNone, false
	}
	t := db.FindTable(sel.FromTable)
	if t == nil {
		return ir.IdxNone, false
	}

	var scan uint32
	consumedWhere := false
	if sel.WhereCondIdx != ir.IdxNone {
		cond := q.Conditions.Get(sel.WhereCondIdx)
		if cond.Kind == ir.CondCompare && cond.Op == ir.OpEq && cond.LHSExprIdx == ir.IdxNone && cond.RHSExprIdx == ir.IdxNone {
			if idx := t.IndexOnColumn(t.FindColumn(cond.ColumnName)); idx != nil {
				scan = q.NewPlanNode(ir.PlanIndexScan)
				n := q.PlanNodes.Get(scan)
				n.TableName = sel.FromTable
				n.IndexName = idx.Name
				n.IndexValue = q.Cells.Push(cond.Literal)
				*q.PlanNodes.Ptr(scan) = n
				consumedWhere = true
			}
		}
		if strings.Contains(strings.ToUpper(cond.ColumnName), " SELECT ") {
			return ir.IdxNone, false // correlated-subquery-shaped text: decline
		}
	}
	if !consumedWhere {
		s := q.NewPlanNode(ir.PlanSeqScan)
		*q.PlanNodes.Ptr(s) = setTable(q.PlanNodes.Get(s), sel.FromTable)
		scan = s
	}
	cur := scan

	if sel.WhereCondIdx != ir.IdxNone && !consumedWhere {
		f := q.NewPlanNode(ir.PlanFilter)
		n := q.PlanNodes.Get(f)
		n.LeftIdx = cur
		n.CondIdx = sel.WhereCondIdx
		*q.PlanNodes.Ptr(f) = n
		cur = f
	}

	if len(sel.OrderBy) > 0 {
		s := q.NewPlanNode(ir.PlanSort)
		n := q.PlanNodes.Get(s)
		n.LeftIdx = cur
		n.OrderBy = sel.OrderBy
		*q.PlanNodes.Ptr(s) = n
		cur = s
	}

	allColRefs := true
	for _, c := range sel.Columns {
		if c.Kind == ir.SelectColExpr {
			allColRefs = false
		} else if c.Kind != ir.SelectColColumnRef && c.Kind != ir.SelectColStar {
			return ir.IdxNone, false
		}
	}
	if allColRefs {
		p := q.NewPlanNode(ir.PlanProject)
		n := q.PlanNodes.Get(p)
		n.LeftIdx = cur
		for _, c := range sel.Columns {
			if c.Kind == ir.SelectColStar {
				n.ProjectColMap = nil // nil signals "all columns" to blockexec
				break
			}
			n.ProjectColMap = append(n.ProjectColMap, t.FindColumn(c.ColumnName))
		}
		*q.PlanNodes.Ptr(p) = n
		cur = p
	} else {
		ep := q.NewPlanNode(ir.PlanExprProject)
		n := q.PlanNodes.Get(ep)
		n.LeftIdx = cur
		for _, c := range sel.Columns {
			if c.Kind == ir.SelectColExpr {
				n.ExprIndices = append(n.ExprIndices, c.ExprIdx)
				n.ExprAliases = append(n.ExprAliases, c.Alias)
			}
		}
		*q.PlanNodes.Ptr(ep) = n
		cur = ep
	}

	if sel.Distinct {
		d := q.NewPlanNode(ir.PlanDistinct)
		n := q.PlanNodes.Get(d)
		n.LeftIdx = cur
		*q.PlanNodes.Ptr(d) = n
		cur = d
	}

	if sel.Limit >= 0 {
		l := q.NewPlanNode(ir.PlanLimit)
		n := q.PlanNodes.Get(l)
		n.LeftIdx = cur
		n.Offset, n.Limit = sel.Offset, sel.Limit
		*q.PlanNodes.Ptr(l) = n
		cur = l
	}

	return cur, true
}
