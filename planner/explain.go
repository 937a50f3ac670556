// Package planner implements build_select (spec §4.12 "Planner"): a
// rule-based translator from ir.QuerySelect to a plan tree of
// block-executor operators, plus plan_explain (§4.16).
package planner

import (
	"fmt"
	"strings"

	"github.com/martinsk/mskql/ir"
)

// Explain renders root as an indented tree, one line per node, children
// indented two spaces further (SPEC_FULL.md §4.16). Seq Scan, Index Scan,
// Limit, Hash Join, Hash Aggregate and Generate Series lines add a short
// summary (table, index name = value, bounds, join keys, group-by
// columns); the other operators print their name only.
func Explain(q *ir.QueryArena, root uint32) string {
	var sb strings.Builder
	explainNode(&sb, q, root, 0)
	return sb.String()
}

// ExplainLegacy returns the one-line label for a query the planner
// declines. The engine has no EXPLAIN statement and does not call it.
func ExplainLegacy() string {
	return "Legacy Row Execution (planner declined)"
}

func explainNode(sb *strings.Builder, q *ir.QueryArena, idx uint32, depth int) {
	if idx == ir.IdxNone {
		return
	}
	n := q.PlanNodes.Get(idx)
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(nodeLabel(q, n))
	sb.WriteByte('\n')
	explainNode(sb, q, n.LeftIdx, depth+1)
	explainNode(sb, q, n.RightIdx, depth+1)
}

func nodeLabel(q *ir.QueryArena, n ir.PlanNode) string {
	switch n.Op {
	case ir.PlanSeqScan:
		return fmt.Sprintf("Seq Scan on %s", n.TableName)
	case ir.PlanIndexScan:
		return fmt.Sprintf("Index Scan on %s (%s = %s)", n.TableName, n.IndexName, cellLabel(q, n.IndexValue))
	case ir.PlanFilter:
		return "Filter"
	case ir.PlanProject:
		return "Project"
	case ir.PlanExprProject:
		return "Expr Project"
	case ir.PlanLimit:
		return fmt.Sprintf("Limit (offset=%d limit=%d)", n.Offset, n.Limit)
	case ir.PlanHashJoin:
		return fmt.Sprintf("Hash Join (%s = %s)", n.OuterKeyColumn, n.InnerKeyColumn)
	case ir.PlanHashSemiJoin:
		return "Hash Semi Join"
	case ir.PlanHashAgg:
		return fmt.Sprintf("Hash Aggregate (group by %s)", strings.Join(n.GroupCols, ", "))
	case ir.PlanSort:
		return "Sort"
	case ir.PlanWindow:
		return "Window"
	case ir.PlanSetOp:
		return "Set Op"
	case ir.PlanDistinct:
		return "Distinct"
	case ir.PlanGenerateSeries:
		return fmt.Sprintf("Generate Series (%d to %d step %d)", n.SeriesStart, n.SeriesStop, n.SeriesStep)
	default:
		return "Unknown"
	}
}

func cellLabel(q *ir.QueryArena, cellIdx uint32) string {
	if cellIdx == ir.IdxNone {
		return "?"
	}
	c := q.Cells.Get(cellIdx)
	if c.Null {
		return "NULL"
	}
	return c.AsText()
}
