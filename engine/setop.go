package engine

import (
	"sort"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// execSetOp implements spec §4.14 steps 4-6 for a query with a
// surrounding UNION/INTERSECT/EXCEPT: execute the LHS (without its own
// ORDER BY/LIMIT, which belong to the combined result), re-parse and
// execute the RHS's captured SQL text, combine per spec's bag semantics
// (mirroring blockexec's set_op operator's dedup/mark/emit phases at
// row granularity instead of columnar hash buckets), then apply the
// outer ORDER BY and LIMIT/OFFSET.
func (e *Engine) execSetOp(arena *ir.QueryArena, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	lhsSel := *sel
	lhsSel.OrderBy = nil
	lhsSel.Limit = -1
	lhsSel.Offset = 0
	lhsSel.HasSetOp = false

	lhsSchema, lhsRows, err := e.execPlan(arena, &lhsSel)
	if err != nil {
		return nil, nil, err
	}

	rhsSQL := arena.Strings.Get(sel.SetOpRHSSQL)
	_, rhsRows, err := e.ExecSQL(rhsSQL)
	if err != nil {
		return nil, nil, err
	}

	combined := combineSetOp(sel.SetOp, sel.SetOpAll, lhsRows, rhsRows)

	if len(sel.OrderBy) > 0 {
		sortSetOpRows(lhsSchema, combined, sel.OrderBy)
	}
	combined = limitSetOpRows(combined, sel.Offset, sel.Limit)
	return lhsSchema, combined, nil
}

func combineSetOp(op ir.SetOpKind, all bool, lhs, rhs []row.Row) []row.Row {
	switch op {
	case ir.SetOpUnion:
		return unionRows(all, lhs, rhs)
	case ir.SetOpIntersect:
		return intersectRows(all, lhs, rhs)
	case ir.SetOpExcept:
		return exceptRows(all, lhs, rhs)
	default:
		return lhs
	}
}

func unionRows(all bool, lhs, rhs []row.Row) []row.Row {
	if all {
		out := make([]row.Row, 0, len(lhs)+len(rhs))
		out = append(out, lhs...)
		out = append(out, rhs...)
		return out
	}
	seen := make(map[string]bool)
	var out []row.Row
	for _, r := range append(append([]row.Row(nil), lhs...), rhs...) {
		k := rowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func intersectRows(all bool, lhs, rhs []row.Row) []row.Row {
	rhsCount := countByKey(rhs)
	if !all {
		seen := make(map[string]bool)
		var out []row.Row
		for _, r := range lhs {
			k := rowKey(r)
			if rhsCount[k] > 0 && !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
		return out
	}
	remaining := rhsCount
	var out []row.Row
	for _, r := range lhs {
		k := rowKey(r)
		if remaining[k] > 0 {
			remaining[k]--
			out = append(out, r)
		}
	}
	return out
}

func exceptRows(all bool, lhs, rhs []row.Row) []row.Row {
	rhsCount := countByKey(rhs)
	if !all {
		seen := make(map[string]bool)
		var out []row.Row
		for _, r := range lhs {
			k := rowKey(r)
			if rhsCount[k] == 0 && !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
		return out
	}
	remaining := rhsCount
	var out []row.Row
	for _, r := range lhs {
		k := rowKey(r)
		if remaining[k] > 0 {
			remaining[k]--
			continue
		}
		out = append(out, r)
	}
	return out
}

func countByKey(rows []row.Row) map[string]int {
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[rowKey(r)]++
	}
	return m
}

// rowKey stringifies a full row for set-op bag comparisons, matching
// the legacy executor's quadratic-dedup-by-value style rather than
// the block executor's hashstructure row hashing (this runs at the dispatcher level,
// over whichever rows came back from either branch's own execution
// path).
func rowKey(r row.Row) string {
	s := ""
	for _, c := range r {
		if c.Null {
			s += "\x00N\x00"
			continue
		}
		s += c.AsText() + "\x00"
	}
	return s
}

func sortSetOpRows(schema types.Schema, rows []row.Row, order []ir.OrderByItem) {
	sort.SliceStable(rows, func(a, b int) bool {
		return compareSetOpOrder(schema, rows[a], rows[b], order) < 0
	})
}

func compareSetOpOrder(schema types.Schema, a, b row.Row, order []ir.OrderByItem) int {
	for _, item := range order {
		ci := schema.FindColumn(item.ColumnName)
		if ci < 0 {
			continue
		}
		av, bv := a[ci], b[ci]
		if av.Null || bv.Null {
			if av.Null && bv.Null {
				continue
			}
			nullsFirst := item.Desc
			if item.HasNullsClause {
				nullsFirst = item.NullsFirst
			}
			if av.Null {
				if nullsFirst {
					return -1
				}
				return 1
			}
			if nullsFirst {
				return 1
			}
			return -1
		}
		n, err := types.Compare(av, bv)
		if err != nil || n == 0 {
			continue
		}
		if item.Desc {
			return -n
		}
		return n
	}
	return 0
}

func limitSetOpRows(rows []row.Row, offset, limit int64) []row.Row {
	if offset > 0 {
		if offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < int64(len(rows)) {
		rows = rows[:limit]
	}
	return rows
}
