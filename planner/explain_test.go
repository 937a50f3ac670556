package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/ir"
)

func newScan(q *ir.QueryArena, table string) uint32 {
	idx := q.NewPlanNode(ir.PlanSeqScan)
	q.PlanNodes.Ptr(idx).TableName = table
	return idx
}

func TestExplainSeqScanLeaf(t *testing.T) {
	q := ir.New()
	root := newScan(q, "users")
	out := Explain(q, root)
	require.Equal(t, "Seq Scan on users\n", out)
}

func TestExplainFilterOverSeqScanIndentsChild(t *testing.T) {
	q := ir.New()
	scan := newScan(q, "users")
	filter := q.NewPlanNode(ir.PlanFilter)
	q.PlanNodes.Ptr(filter).LeftIdx = scan
	out := Explain(q, filter)
	require.Equal(t, "Filter\n  Seq Scan on users\n", out)
}

func TestExplainHashJoinShowsBothSides(t *testing.T) {
	q := ir.New()
	left := newScan(q, "a")
	right := newScan(q, "b")
	join := q.NewPlanNode(ir.PlanHashJoin)
	jn := q.PlanNodes.Ptr(join)
	jn.LeftIdx = left
	jn.RightIdx = right
	jn.OuterKeyColumn = "a.id"
	jn.InnerKeyColumn = "b.a_id"
	out := Explain(q, join)
	require.Equal(t, "Hash Join (a.id = b.a_id)\n  Seq Scan on a\n  Seq Scan on b\n", out)
}

func TestExplainLimitFormatsBounds(t *testing.T) {
	q := ir.New()
	scan := newScan(q, "t")
	limit := q.NewPlanNode(ir.PlanLimit)
	ln := q.PlanNodes.Ptr(limit)
	ln.LeftIdx = scan
	ln.Offset = 5
	ln.Limit = 10
	out := Explain(q, limit)
	require.Equal(t, "Limit (offset=5 limit=10)\n  Seq Scan on t\n", out)
}

func TestExplainLegacyFallback(t *testing.T) {
	require.Equal(t, "Legacy Row Execution (planner declined)", ExplainLegacy())
}
