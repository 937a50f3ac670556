package blockexec

import (
	"github.com/martinsk/mskql/block"
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// joinBuildSide is the materialized inner side of a hash join: the full
// row set plus a block.HashTable over the join key column (spec §4.11
// "HashTable", §4.12 hash_join "builds a hash table over the inner
// side"). block.HashTable's Nexts/Hashes arrays are indexed by
// insertion sequence number, not by caller row identity (its own tests
// insert with rowIdx 0, 1, 2, ... in lock-step), so order maps each
// sequence number back to the original row index in rows: null-keyed
// rows are never inserted (SQL NULL never matches NULL in a join), which
// would otherwise leave gaps in that sequence.
type joinBuildSide struct {
	keyCol int
	ht     *block.HashTable
	order  []int // order[seq] = original index into rows
	rows   []row.Row
	schema types.Schema
}

func buildJoinSide(schema types.Schema, rows []row.Row, keyColumn string) (*joinBuildSide, error) {
	ci := schema.FindColumn(keyColumn)
	if ci < 0 {
		return nil, errkind.NotFoundColumn.New(keyColumn)
	}
	ht := block.NewHashTable(len(rows))
	order := make([]int, 0, len(rows))
	for i, r := range rows {
		if r[ci].IsNullLike() {
			continue
		}
		seq := len(order)
		order = append(order, i)
		ht.Insert(block.HashCell(r[ci]), seq)
	}
	return &joinBuildSide{keyCol: ci, ht: ht, order: order, rows: rows, schema: schema}, nil
}

// matches walks key's bucket chain, filtering on the cached hash before
// a full equality check, and returns the original build-side row
// indices that match.
func (bs *joinBuildSide) matches(key types.Cell) []int {
	if key.IsNullLike() {
		return nil
	}
	h := block.HashCell(key)
	var out []int
	for cur := bs.ht.Chain(h); cur != -1; cur = bs.ht.Nexts[cur] {
		if bs.ht.Hashes[cur] != h {
			continue
		}
		origIdx := bs.order[cur]
		if !types.Equal(key, bs.rows[origIdx][bs.keyCol]) {
			continue
		}
		out = append(out, origIdx)
	}
	return out
}

func nullRow(schema types.Schema) row.Row {
	r := make(row.Row, len(schema))
	for i, c := range schema {
		r[i] = types.NullCell(c.Tag)
	}
	return r
}

// buildInnerSideWithCache implements the join-cache memoization spec
// §4.12 describes: "Inner side is memoized per-table in a join cache
// keyed by (table generation, key column)".
func buildInnerSideWithCache(ctx *Ctx, n ir.PlanNode, innerSchema types.Schema, innerRows []row.Row) (*joinBuildSide, error) {
	innerNode := ctx.Arena.PlanNodes.Get(n.RightIdx)
	if innerNode.Op != ir.PlanSeqScan {
		return buildJoinSide(innerSchema, innerRows, n.InnerKeyColumn)
	}
	t := ctx.DB.FindTable(innerNode.TableName)
	if t == nil {
		return buildJoinSide(innerSchema, innerRows, n.InnerKeyColumn)
	}
	keyCol := innerSchema.FindColumn(n.InnerKeyColumn)
	if cached := t.JoinCache(keyCol); cached != nil {
		if bs, ok := cached.Payload.(*joinBuildSide); ok {
			return bs, nil
		}
	}
	bs, err := buildJoinSide(innerSchema, innerRows, n.InnerKeyColumn)
	if err != nil {
		return nil, err
	}
	t.SetJoinCache(keyCol, bs)
	return bs, nil
}

// hashJoinOp implements spec §4.12 hash_join as a streaming probe over a
// fully materialized (and cached) build side: the inner child is pulled
// to completion once to build the block.HashTable, then the outer child
// is pulled one block at a time, each block probed in place and the
// matches staged into a small pending buffer that next re-chunks to
// block.Capacity on its way out.
type hashJoinOp struct {
	outer        operator
	outerSchema  types.Schema
	innerSchema  types.Schema
	outSchema    types.Schema
	build        *joinBuildSide
	outerKeyCi   int
	joinType     ir.JoinType
	outerBlk     *block.Block
	pending      []row.Row
	pendingPos   int
	outerDone    bool
	innerMatched []bool
	finished     bool
}

func buildHashJoin(ctx *Ctx, n ir.PlanNode) (operator, error) {
	outer, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	inner, err := buildOperator(ctx, n.RightIdx)
	if err != nil {
		return nil, err
	}
	innerSchema, innerRows, err := materialize(inner)
	if err != nil {
		return nil, err
	}
	build, err := buildInnerSideWithCache(ctx, n, innerSchema, innerRows)
	if err != nil {
		return nil, err
	}
	outerSchema := outer.schema()
	outerCi := outerSchema.FindColumn(n.OuterKeyColumn)
	if outerCi < 0 {
		return nil, errkind.NotFoundColumn.New(n.OuterKeyColumn)
	}
	outSchema := append(append(types.Schema{}, outerSchema...), innerSchema...)
	return &hashJoinOp{
		outer: outer, outerSchema: outerSchema, innerSchema: innerSchema, outSchema: outSchema,
		build: build, outerKeyCi: outerCi, joinType: n.JoinType,
		outerBlk:     block.NewBlock(tagsOf(outerSchema)),
		innerMatched: make([]bool, len(build.rows)),
	}, nil
}

func (o *hashJoinOp) schema() types.Schema { return o.outSchema }

// fillPending pulls outer blocks (and, once the outer side is
// exhausted, emits unmatched-inner rows for RIGHT/FULL) until pending
// holds at least one unread row, or reports that nothing more will ever
// arrive.
func (o *hashJoinOp) fillPending() (bool, error) {
	if o.finished {
		return len(o.pending) > o.pendingPos, nil
	}
	for {
		if o.outerDone {
			if o.joinType == ir.JoinRight || o.joinType == ir.JoinFull {
				for ii, ir2 := range o.build.rows {
					if !o.innerMatched[ii] {
						merged := append(append(row.Row{}, nullRow(o.outerSchema)...), ir2...)
						o.pending = append(o.pending, merged)
					}
				}
			}
			o.finished = true
			return len(o.pending) > o.pendingPos, nil
		}
		n, err := o.outer.next(o.outerBlk)
		if err != nil {
			return false, err
		}
		if n == 0 {
			o.outerDone = true
			continue
		}
		for _, ri := range activeIndices(o.outerBlk) {
			outerCell := o.outerBlk.Cols[o.outerKeyCi].Cell(ri)
			outerCells := cellsAt(o.outerBlk, ri)
			matchedAny := false
			for _, ii := range o.build.matches(outerCell) {
				merged := append(append(row.Row{}, outerCells...), o.build.rows[ii]...)
				o.pending = append(o.pending, merged)
				matchedAny = true
				o.innerMatched[ii] = true
			}
			if !matchedAny && (o.joinType == ir.JoinLeft || o.joinType == ir.JoinFull) {
				merged := append(append(row.Row{}, outerCells...), nullRow(o.innerSchema)...)
				o.pending = append(o.pending, merged)
			}
		}
		if len(o.pending) > o.pendingPos {
			return true, nil
		}
	}
}

func (o *hashJoinOp) next(out *block.Block) (int, error) {
	out.Reset()
	if o.pendingPos >= len(o.pending) {
		o.pending = o.pending[:0]
		o.pendingPos = 0
		ok, err := o.fillPending()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
	}
	n := 0
	for o.pendingPos < len(o.pending) && n < block.Capacity {
		out.AppendRow([]types.Cell(o.pending[o.pendingPos]))
		o.pendingPos++
		n++
	}
	return n, nil
}

// hashSemiJoinOp implements spec §4.12 hash_semi_join ("WHERE col IN
// (SELECT single_col ...)"): it narrows the outer block's selection
// vector in place to the rows whose key has a match on the inner side,
// the same zero-copy technique filterOp uses. NULLs on either side do
// not match.
type hashSemiJoinOp struct {
	outer      operator
	outerSchem types.Schema
	build      *joinBuildSide
	outerKeyCi int
}

func buildHashSemiJoin(ctx *Ctx, n ir.PlanNode) (operator, error) {
	outer, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	inner, err := buildOperator(ctx, n.RightIdx)
	if err != nil {
		return nil, err
	}
	innerSchema, innerRows, err := materialize(inner)
	if err != nil {
		return nil, err
	}
	if len(n.SemiKeys) != 1 {
		return nil, errkind.Execution.New("hash semi join requires exactly one key column")
	}
	build, err := buildJoinSide(innerSchema, innerRows, n.SemiKeys[0])
	if err != nil {
		return nil, err
	}
	outerSchema := outer.schema()
	outerCi := outerSchema.FindColumn(n.OuterKeyColumn)
	if outerCi < 0 {
		return nil, errkind.NotFoundColumn.New(n.OuterKeyColumn)
	}
	return &hashSemiJoinOp{outer: outer, outerSchem: outerSchema, build: build, outerKeyCi: outerCi}, nil
}

func (o *hashSemiJoinOp) schema() types.Schema { return o.outerSchem }

func (o *hashSemiJoinOp) next(out *block.Block) (int, error) {
	for {
		n, err := o.outer.next(out)
		if err != nil || n == 0 {
			return n, err
		}
		candidates := activeIndices(out)
		kept := candidates[:0]
		for _, ri := range candidates {
			cell := out.Cols[o.outerKeyCi].Cell(ri)
			if len(o.build.matches(cell)) > 0 {
				kept = append(kept, ri)
			}
		}
		out.Sel = &block.SelectionVector{Indices: kept}
		if len(kept) > 0 {
			return len(kept), nil
		}
	}
}
