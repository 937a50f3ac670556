// Package blockexec implements the block-at-a-time operator set of spec
// §4.12: every operator is an `operator` value whose `next` method pulls
// up to block.Capacity rows from its child(ren) into a caller-owned
// block.Block, returning 0 at end of data — the next_block(ctx,
// node_idx, out) -> 0|END protocol spec §4.12 describes. Streaming
// operators (seq_scan, index_scan, filter, project, expr_project,
// limit, hash_join, hash_semi_join, generate_series) never hold more
// than one block's worth of intermediate state; filter in particular
// mutates the very block it was handed by attaching a
// block.SelectionVector instead of copying cells out. Buffering
// operators (hash_agg, sort, window, set_op, distinct) pull their
// child to completion first, exactly as spec §4.12 requires, then
// re-expose their computed result through the same block-pull
// interface via rowsSource so a buffering node looks identical to a
// streaming one from its parent's point of view.
//
// Run drains the root operator completely into a single []row.Row for
// the caller (engine's statement dispatcher still wants one flat
// result set per statement); internally every pull between operators
// goes through real block.Block/block.SelectionVector values.
package blockexec

import (
	"sort"

	"github.com/martinsk/mskql/block"
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/eval"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// Ctx carries the query arena and catalog a plan tree executes against.
type Ctx struct {
	Arena *ir.QueryArena
	DB    *storage.Database
}

// operator is one node of the running plan: next pulls up to
// block.Capacity rows into out, returning the row count produced (0 at
// end of data). out is reused across calls by the caller.
type operator interface {
	schema() types.Schema
	next(out *block.Block) (int, error)
}

// Run drives the plan tree rooted at nodeIdx to completion and returns
// its output schema and rows.
func Run(ctx *Ctx, nodeIdx uint32) (types.Schema, []row.Row, error) {
	op, err := buildOperator(ctx, nodeIdx)
	if err != nil {
		return nil, nil, err
	}
	schema, rows, err := materialize(op)
	if err != nil {
		return nil, nil, err
	}
	return schema, rows, nil
}

// buildOperator compiles the plan node at nodeIdx, and recursively its
// children, into a running operator tree.
func buildOperator(ctx *Ctx, nodeIdx uint32) (operator, error) {
	if nodeIdx == ir.IdxNone {
		return nil, errkind.Execution.New("nil plan node")
	}
	n := ctx.Arena.PlanNodes.Get(nodeIdx)
	switch n.Op {
	case ir.PlanSeqScan:
		return buildSeqScan(ctx, n)
	case ir.PlanIndexScan:
		return buildIndexScan(ctx, n)
	case ir.PlanFilter:
		return buildFilter(ctx, n)
	case ir.PlanProject:
		return buildProject(ctx, n)
	case ir.PlanExprProject:
		return buildExprProject(ctx, n)
	case ir.PlanLimit:
		return buildLimit(ctx, n)
	case ir.PlanHashJoin:
		return buildHashJoin(ctx, n)
	case ir.PlanHashSemiJoin:
		return buildHashSemiJoin(ctx, n)
	case ir.PlanHashAgg:
		return buildHashAgg(ctx, n)
	case ir.PlanSort:
		return buildSort(ctx, n)
	case ir.PlanWindow:
		return buildWindow(ctx, n)
	case ir.PlanSetOp:
		return buildSetOp(ctx, n)
	case ir.PlanDistinct:
		return buildDistinct(ctx, n)
	case ir.PlanGenerateSeries:
		return buildGenerateSeries(ctx, n)
	default:
		return nil, errkind.Execution.New("unknown plan operator")
	}
}

func tagsOf(schema types.Schema) []types.Tag {
	tags := make([]types.Tag, len(schema))
	for i, c := range schema {
		tags[i] = c.Tag
	}
	return tags
}

// activeIndices returns the raw column-array positions a block currently
// exposes, resolving through its selection vector via block.RowIdx when
// one is present.
func activeIndices(b *block.Block) []int {
	n := b.ActiveCount()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = block.RowIdx(b.Sel, i)
	}
	return out
}

// cellsAt reconstructs the cells of raw row position ri (not a
// selection-relative index) across every column of b.
func cellsAt(b *block.Block, ri int) []types.Cell {
	out := make([]types.Cell, len(b.Cols))
	for ci, col := range b.Cols {
		out[ci] = col.Cell(ri)
	}
	return out
}

// materialize drains op to completion, flattening its blocks into a flat
// row set. Used by Run at the top level and by every buffering operator
// to pull its child to completion before computing (spec §4.12: "Scan,
// hash_agg, sort, window, set_op, distinct are the only buffering
// operators").
func materialize(op operator) (types.Schema, []row.Row, error) {
	schema := op.schema()
	blk := block.NewBlock(tagsOf(schema))
	var out []row.Row
	for {
		n, err := op.next(blk)
		if err != nil {
			return nil, nil, err
		}
		if n == 0 {
			break
		}
		for _, ri := range activeIndices(blk) {
			out = append(out, row.Row(cellsAt(blk, ri)))
		}
	}
	return schema, out, nil
}

// rowsSource re-exposes an already-materialized row set through the
// block-pull protocol, chunked block.Capacity rows at a time. Every
// buffering operator's computed result is wrapped in one of these so its
// parent sees an ordinary streaming child.
type rowsSource struct {
	sch  types.Schema
	rows []row.Row
	pos  int
}

func (s *rowsSource) schema() types.Schema { return s.sch }

func (s *rowsSource) next(out *block.Block) (int, error) {
	out.Reset()
	if s.pos >= len(s.rows) {
		return 0, nil
	}
	end := s.pos + block.Capacity
	if end > len(s.rows) {
		end = len(s.rows)
	}
	for i := s.pos; i < end; i++ {
		out.AppendRow([]types.Cell(s.rows[i]))
	}
	n := end - s.pos
	s.pos = end
	return n, nil
}

func projectSchema(full types.Schema, colMap []int) types.Schema {
	if colMap == nil {
		return full
	}
	out := make(types.Schema, len(colMap))
	for i, ci := range colMap {
		out[i] = full[ci]
	}
	return out
}

// seqScanOp streams a table's scan cache in block.Capacity-sized chunks
// (spec §4.12 seq_scan, §4.10 scan cache), reading straight out of the
// cache's flat per-column arrays rather than through any intermediate
// row form.
type seqScanOp struct {
	t      *storage.Table
	colMap []int
	sch    types.Schema
	pos    int
}

func buildSeqScan(ctx *Ctx, n ir.PlanNode) (operator, error) {
	t := ctx.DB.FindTable(n.TableName)
	if t == nil {
		return nil, errkind.NotFoundTable.New(n.TableName)
	}
	return &seqScanOp{t: t, colMap: n.ColMap, sch: projectSchema(t.Columns, n.ColMap)}, nil
}

func (o *seqScanOp) schema() types.Schema { return o.sch }

func (o *seqScanOp) next(out *block.Block) (int, error) {
	out.Reset()
	cache := o.t.ScanCache()
	if o.pos >= cache.NRows {
		return 0, nil
	}
	end := o.pos + block.Capacity
	if end > cache.NRows {
		end = cache.NRows
	}
	ncols := len(out.Cols)
	for ri := o.pos; ri < end; ri++ {
		for ci := 0; ci < ncols; ci++ {
			srcCi := ci
			if o.colMap != nil {
				srcCi = o.colMap[ci]
			}
			out.Cols[ci].AppendCell(cache.Cell(srcCi, ri))
		}
		out.Count++
	}
	n := end - o.pos
	o.pos = end
	return n, nil
}

// indexScanOp streams the rows an equality lookup on a btree index
// found (spec §4.12 index_scan). The lookup itself is point/range-bound
// and already small, so it is computed once up front and then re-exposed
// through the ordinary rowsSource chunking rather than re-probing the
// tree per block.
func buildIndexScan(ctx *Ctx, n ir.PlanNode) (operator, error) {
	t := ctx.DB.FindTable(n.TableName)
	if t == nil {
		return nil, errkind.NotFoundTable.New(n.TableName)
	}
	idx := t.FindIndex(n.IndexName)
	if idx == nil {
		return nil, errkind.NotFoundIndex.New(n.IndexName)
	}
	lit := ctx.Arena.Cells.Get(n.IndexValue)
	rids := idx.Tree.Lookup(idx.KeyFor(row.Row{lit}))
	rows := make([]row.Row, 0, len(rids))
	for _, rid := range rids {
		rows = append(rows, t.Rows[rid].Clone(types.OwnerArena))
	}
	return &rowsSource{sch: t.Columns, rows: rows}, nil
}

// filterOp implements spec §4.12 filter without copying: it pulls into
// the very block its parent handed it, evaluates the predicate over
// that block's already-active rows, and narrows the block's selection
// vector in place. A simple single-column-vs-literal compare takes a
// type-specialized fast path straight over the column's flat array;
// everything else falls back to eval.Condition per candidate row.
type filterOp struct {
	ctx     *Ctx
	child   operator
	schemaV types.Schema
	condIdx uint32
	fastCi  int // >= 0 when the fast path applies
	fastOp  ir.CompareOp
	fastLit types.Cell
}

func buildFilter(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	schema := child.schema()
	f := &filterOp{ctx: ctx, child: child, schemaV: schema, condIdx: n.CondIdx, fastCi: -1}
	cond := ctx.Arena.Conditions.Get(n.CondIdx)
	if isSimpleCompare(cond) {
		if ci := schema.FindColumn(cond.ColumnName); ci >= 0 {
			f.fastCi = ci
			f.fastOp = cond.Op
			f.fastLit = cond.Literal
		}
	}
	return f, nil
}

// isSimpleCompare reports whether cond is a single-column-vs-literal
// comparison eligible for the column-array fast path (no expression
// operands, no subquery, a scalar Eq/Ne/Lt/Gt/Le/Ge).
func isSimpleCompare(cond ir.Condition) bool {
	if cond.Kind != ir.CondCompare || cond.ColumnName == "" {
		return false
	}
	if cond.LHSExprIdx != ir.IdxNone || cond.RHSExprIdx != ir.IdxNone || cond.SubquerySQLIdx != ir.IdxNone {
		return false
	}
	switch cond.Op {
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe:
		return true
	default:
		return false
	}
}

func (o *filterOp) schema() types.Schema { return o.schemaV }

func (o *filterOp) next(out *block.Block) (int, error) {
	for {
		n, err := o.child.next(out)
		if err != nil || n == 0 {
			return n, err
		}
		candidates := activeIndices(out)
		kept := candidates[:0]
		for _, ri := range candidates {
			ok, err := o.test(out, ri)
			if err != nil {
				return 0, err
			}
			if ok {
				kept = append(kept, ri)
			}
		}
		out.Sel = &block.SelectionVector{Indices: kept}
		if len(kept) > 0 {
			return len(kept), nil
		}
		// No row of this block passed: pull the next block rather than
		// reporting end of data.
	}
}

func (o *filterOp) test(blk *block.Block, ri int) (bool, error) {
	if o.fastCi >= 0 {
		return fastCompareCell(blk.Cols[o.fastCi], ri, o.fastOp, o.fastLit), nil
	}
	return eval.Condition(o.ctx.Arena, o.schemaV, row.Row(cellsAt(blk, ri)), o.condIdx)
}

// fastCompareCell evaluates a scalar compare directly against col's
// typed flat array at row ri, dispatching per storage kind (spec §4.11's
// "type-specific" column representation).
func fastCompareCell(col *block.ColBlock, ri int, op ir.CompareOp, lit types.Cell) bool {
	if col.Nulls.Contains(uint32(ri)) {
		return false
	}
	switch {
	case col.Ints != nil:
		litv := lit.Int
		if lit.Tag == types.TagFloat || lit.Tag == types.TagNumeric {
			litv = int64(lit.Float)
		}
		return compareIntOp(col.Ints[ri], op, litv)
	case col.Floats != nil:
		return compareFloatOp(col.Floats[ri], op, lit.AsFloat())
	case col.Bools != nil:
		return compareBoolOp(col.Bools[ri], op, lit.Bool)
	default:
		return compareTextOp(col.Texts[ri], op, lit.AsText())
	}
}

func compareIntOp(a int64, op ir.CompareOp, b int64) bool {
	switch op {
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	case ir.OpLt:
		return a < b
	case ir.OpGt:
		return a > b
	case ir.OpLe:
		return a <= b
	case ir.OpGe:
		return a >= b
	default:
		return false
	}
}

func compareFloatOp(a float64, op ir.CompareOp, b float64) bool {
	switch op {
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	case ir.OpLt:
		return a < b
	case ir.OpGt:
		return a > b
	case ir.OpLe:
		return a <= b
	case ir.OpGe:
		return a >= b
	default:
		return false
	}
}

func compareBoolOp(a bool, op ir.CompareOp, b bool) bool {
	switch op {
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	default:
		return false
	}
}

func compareTextOp(a string, op ir.CompareOp, b string) bool {
	switch op {
	case ir.OpEq:
		return a == b
	case ir.OpNe:
		return a != b
	case ir.OpLt:
		return a < b
	case ir.OpGt:
		return a > b
	case ir.OpLe:
		return a <= b
	case ir.OpGe:
		return a >= b
	default:
		return false
	}
}

// projectOp remaps columns (spec §4.12 project); it narrows the schema
// without evaluating any expression, so output rows are a straight
// per-column copy out of the child block's active rows.
type projectOp struct {
	child    operator
	colMap   []int
	sch      types.Schema
	childBlk *block.Block
}

func buildProject(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	if n.ProjectColMap == nil {
		return child, nil
	}
	return &projectOp{
		child: child, colMap: n.ProjectColMap,
		sch:      projectSchema(child.schema(), n.ProjectColMap),
		childBlk: block.NewBlock(tagsOf(child.schema())),
	}, nil
}

func (o *projectOp) schema() types.Schema { return o.sch }

func (o *projectOp) next(out *block.Block) (int, error) {
	childBlk := o.childBlk
	n, err := o.child.next(childBlk)
	if err != nil || n == 0 {
		return n, err
	}
	out.Reset()
	for _, ri := range activeIndices(childBlk) {
		cells := make([]types.Cell, len(o.colMap))
		for j, ci := range o.colMap {
			cells[j] = childBlk.Cols[ci].Cell(ri)
		}
		out.AppendRow(cells)
	}
	return out.Count, nil
}

// exprProjectOp evaluates arbitrary expressions per row; output type is
// taken from the first non-null result (spec §4.12 expr_project).
type exprProjectOp struct {
	ctx         *Ctx
	child       operator
	childSchema types.Schema
	childBlk    *block.Block
	exprIndices []uint32
	aliases     []string
	sch         types.Schema
	typed       []bool
}

func buildExprProject(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	sch := make(types.Schema, len(n.ExprIndices))
	for j, alias := range n.ExprAliases {
		sch[j] = &types.Column{Name: alias, Tag: types.TagText}
	}
	childSchema := child.schema()
	return &exprProjectOp{
		ctx: ctx, child: child, childSchema: childSchema,
		childBlk:    block.NewBlock(tagsOf(childSchema)),
		exprIndices: n.ExprIndices, aliases: n.ExprAliases,
		sch: sch, typed: make([]bool, len(n.ExprIndices)),
	}, nil
}

func (o *exprProjectOp) schema() types.Schema { return o.sch }

func (o *exprProjectOp) next(out *block.Block) (int, error) {
	childBlk := o.childBlk
	n, err := o.child.next(childBlk)
	if err != nil || n == 0 {
		return n, err
	}
	out.Reset()
	var rows [][]types.Cell
	for _, ri := range activeIndices(childBlk) {
		r := row.Row(cellsAt(childBlk, ri))
		cells := make([]types.Cell, len(o.exprIndices))
		for j, exprIdx := range o.exprIndices {
			v, err := eval.Expr(o.ctx.Arena, o.childSchema, r, exprIdx)
			if err != nil {
				return 0, err
			}
			cells[j] = v
			if !o.typed[j] && !v.Null {
				o.sch[j] = &types.Column{Name: o.aliases[j], Tag: v.Tag}
				o.typed[j] = true
			}
		}
		rows = append(rows, cells)
	}
	// out's columns were built from the schema before any value was
	// typed; give each the typed tag so AppendRow keeps the payload.
	for j, col := range o.sch {
		if out.Cols[j].Tag != col.Tag {
			out.Cols[j] = block.NewColBlock(col.Tag, block.Capacity)
		}
	}
	for _, cells := range rows {
		out.AppendRow(cells)
	}
	return out.Count, nil
}

// limitOp skips Offset rows then passes through at most Limit (spec
// §4.12 limit), tracking the running count across however many blocks
// it takes to satisfy both bounds.
type limitOp struct {
	child    operator
	offset   int64
	limit    int64 // -1 means unbounded
	skipped  int64
	emitted  int64
	finished bool
}

func buildLimit(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	return &limitOp{child: child, offset: n.Offset, limit: n.Limit}, nil
}

func (o *limitOp) schema() types.Schema { return o.child.schema() }

func (o *limitOp) next(out *block.Block) (int, error) {
	if o.finished {
		out.Reset()
		return 0, nil
	}
	for {
		n, err := o.child.next(out)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			o.finished = true
			return 0, nil
		}
		candidates := activeIndices(out)
		var kept []int
		done := false
		for _, ri := range candidates {
			if o.skipped < o.offset {
				o.skipped++
				continue
			}
			if o.limit >= 0 && o.emitted >= o.limit {
				done = true
				break
			}
			kept = append(kept, ri)
			o.emitted++
		}
		out.Sel = &block.SelectionVector{Indices: kept}
		if done {
			o.finished = true
		}
		if len(kept) > 0 || done {
			return len(kept), nil
		}
		// Entire block consumed by the offset skip with limit still open:
		// loop for the next child block.
	}
}

// generateSeriesOp emits an integer series in block.Capacity-sized
// chunks (spec §4.12 generate_series).
type generateSeriesOp struct {
	sch        types.Schema
	cur, stop, step int64
	done       bool
}

func buildGenerateSeries(ctx *Ctx, n ir.PlanNode) (operator, error) {
	return &generateSeriesOp{
		sch:  types.Schema{{Name: "generate_series", Tag: types.TagBigInt}},
		cur:  n.SeriesStart,
		stop: n.SeriesStop,
		step: n.SeriesStep,
	}, nil
}

func (o *generateSeriesOp) schema() types.Schema { return o.sch }

func (o *generateSeriesOp) next(out *block.Block) (int, error) {
	out.Reset()
	if o.done || o.step == 0 {
		return 0, nil
	}
	n := 0
	for n < block.Capacity {
		if (o.step > 0 && o.cur > o.stop) || (o.step < 0 && o.cur < o.stop) {
			o.done = true
			break
		}
		out.Cols[0].AppendCell(types.IntCell(types.TagBigInt, o.cur))
		out.Count++
		o.cur += o.step
		n++
	}
	return n, nil
}

// buildDistinct hash-dedups rows by value equality; NULLs compare equal
// for DISTINCT (spec §4.12 distinct). Distinct needs the whole row set
// before it can tell a row is a first occurrence, so it is one of the
// buffering operators spec §4.12 names: it materializes its child, then
// re-streams the deduplicated result.
func buildDistinct(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	schema, rows, err := materialize(child)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64][]row.Row)
	out := rows[:0]
	for _, r := range rows {
		h := hashRowStruct(r)
		dup := false
		for _, prev := range seen[h] {
			if prev.Equal(r) {
				dup = true
				break
			}
		}
		if !dup {
			seen[h] = append(seen[h], r)
			out = append(out, r)
		}
	}
	return &rowsSource{sch: schema, rows: out}, nil
}

// buildSort fully materializes its child, then sorts by a flat
// comparator over the key columns (spec §4.12 sort) before re-streaming
// the ordered result. Sort cannot start emitting before it has seen
// every row, so it buffers like hash_agg/window/set_op/distinct.
func buildSort(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	schema, rows, err := materialize(child)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareOrderBy(schema, rows[i], rows[j], n.OrderBy) < 0
	})
	return &rowsSource{sch: schema, rows: rows}, nil
}

func compareOrderBy(schema types.Schema, a, b row.Row, items []ir.OrderByItem) int {
	for _, it := range items {
		ci := schema.FindColumn(it.ColumnName)
		if ci < 0 {
			continue
		}
		av, bv := a[ci], b[ci]
		nullsFirst := it.NullsFirst
		if !it.HasNullsClause {
			nullsFirst = it.Desc
		}
		switch {
		case av.IsNullLike() && bv.IsNullLike():
			continue
		case av.IsNullLike():
			if nullsFirst {
				return -1
			}
			return 1
		case bv.IsNullLike():
			if nullsFirst {
				return 1
			}
			return -1
		}
		n, err := types.Compare(av, bv)
		if err != nil {
			continue
		}
		if it.Desc {
			n = -n
		}
		if n != 0 {
			return n
		}
	}
	return 0
}
