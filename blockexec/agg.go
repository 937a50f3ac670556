package blockexec

import (
	"github.com/martinsk/mskql/block"
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

type aggAccumulator struct {
	sum      float64
	count    int64
	countAll int64
	min, max float64
	haveMM   bool
}

func (a *aggAccumulator) add(v types.Cell) {
	a.countAll++
	if v.Null {
		return
	}
	a.count++
	f := v.AsFloat()
	a.sum += f
	if !a.haveMM || f < a.min {
		a.min = f
	}
	if !a.haveMM || f > a.max {
		a.max = f
	}
	a.haveMM = true
}

type aggGroup struct {
	key  row.Row
	accs []*aggAccumulator
}

// buildHashAgg groups rows by the group-key tuple and accumulates
// sum/count/min/max/avg (spec §4.12 hash_agg). Grouping itself runs over
// a block.HashTable keyed by block.HashRow(key) rather than a stringified
// map key, probing each candidate bucket's chain for a genuine key match
// before allocating a new group (spec §4.11 HashTable, reused here the
// same way hash_join's build side uses it). hash_agg needs the whole
// input before it can finalize any group, so like sort/window/set_op/
// distinct it buffers its child fully before re-streaming (spec §4.12).
// Emission order follows first-seen group-key order, matching "Emit
// phase streams groups in insertion order".
func buildHashAgg(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	schema, rows, err := materialize(child)
	if err != nil {
		return nil, err
	}

	groupCis := make([]int, len(n.GroupCols))
	for i, gc := range n.GroupCols {
		ci := schema.FindColumn(gc)
		if ci < 0 {
			return nil, errkind.NotFoundColumn.New(gc)
		}
		groupCis[i] = ci
	}
	aggCis := make([]int, len(n.Aggregates))
	for i, a := range n.Aggregates {
		if a.ColumnName == "" {
			aggCis[i] = -1
			continue
		}
		ci := schema.FindColumn(a.ColumnName)
		if ci < 0 {
			return nil, errkind.NotFoundColumn.New(a.ColumnName)
		}
		aggCis[i] = ci
	}

	var groups []aggGroup
	ht := block.NewHashTable(len(rows))
	for _, r := range rows {
		key := make(row.Row, len(groupCis))
		for i, ci := range groupCis {
			key[i] = r[ci]
		}
		h := block.HashRow([]types.Cell(key))
		gi := int32(-1)
		for cur := ht.Chain(h); cur != -1; cur = ht.Nexts[cur] {
			if ht.Hashes[cur] == h && groups[cur].key.Equal(key) {
				gi = cur
				break
			}
		}
		if gi < 0 {
			gi = int32(len(groups))
			accs := make([]*aggAccumulator, len(n.Aggregates))
			for i := range accs {
				accs[i] = &aggAccumulator{}
			}
			groups = append(groups, aggGroup{key: key, accs: accs})
			ht.Insert(h, int(gi))
		}
		g := &groups[gi]
		for i, ci := range aggCis {
			if ci < 0 {
				g.accs[i].countAll++
				continue
			}
			g.accs[i].add(r[ci])
		}
	}

	outSchema := make(types.Schema, 0, len(groupCis)+len(n.Aggregates))
	for _, ci := range groupCis {
		outSchema = append(outSchema, schema[ci])
	}
	for i, a := range n.Aggregates {
		outSchema = append(outSchema, &types.Column{Name: aggOutputName(a), Tag: aggOutputTag(a, schema, aggCis[i])})
	}

	out := make([]row.Row, 0, len(groups))
	for _, g := range groups {
		r := make(row.Row, 0, len(outSchema))
		r = append(r, g.key...)
		for i, a := range n.Aggregates {
			r = append(r, finalizeAgg(a, g.accs[i], outSchema[len(groupCis)+i].Tag))
		}
		out = append(out, r)
	}
	return &rowsSource{sch: outSchema, rows: out}, nil
}

func aggOutputName(a ir.AggExpr) string {
	switch a.Func {
	case ir.AggCountStar:
		return "count"
	case ir.AggSum:
		return "sum"
	case ir.AggCount:
		return "count"
	case ir.AggMin:
		return "min"
	case ir.AggMax:
		return "max"
	case ir.AggAvg:
		return "avg"
	default:
		return "agg"
	}
}

// aggOutputTag widens SUM to the argument's declared type instead of
// narrowing to a plain int (spec §9's flagged bug: "legacy aggregation
// ... SUM over a BIGINT column returns a narrowed INT. The rewrite
// should widen to the argument's declared type").
func aggOutputTag(a ir.AggExpr, schema types.Schema, ci int) types.Tag {
	switch a.Func {
	case ir.AggCountStar, ir.AggCount:
		return types.TagBigInt
	case ir.AggAvg:
		return types.TagFloat
	case ir.AggSum, ir.AggMin, ir.AggMax:
		if ci >= 0 {
			if schema[ci].Tag == types.TagFloat || schema[ci].Tag == types.TagNumeric {
				return types.TagFloat
			}
			return schema[ci].Tag
		}
		return types.TagFloat
	default:
		return types.TagFloat
	}
}

func finalizeAgg(a ir.AggExpr, acc *aggAccumulator, outTag types.Tag) types.Cell {
	switch a.Func {
	case ir.AggCountStar:
		return types.IntCell(types.TagBigInt, acc.countAll)
	case ir.AggCount:
		return types.IntCell(types.TagBigInt, acc.count)
	case ir.AggSum:
		if outTag == types.TagFloat || outTag == types.TagNumeric {
			return types.FloatCell(outTag, acc.sum)
		}
		return types.IntCell(outTag, int64(acc.sum))
	case ir.AggMin:
		if !acc.haveMM {
			return types.NullCell(outTag)
		}
		if outTag == types.TagFloat || outTag == types.TagNumeric {
			return types.FloatCell(outTag, acc.min)
		}
		return types.IntCell(outTag, int64(acc.min))
	case ir.AggMax:
		if !acc.haveMM {
			return types.NullCell(outTag)
		}
		if outTag == types.TagFloat || outTag == types.TagNumeric {
			return types.FloatCell(outTag, acc.max)
		}
		return types.IntCell(outTag, int64(acc.max))
	case ir.AggAvg:
		if acc.count == 0 {
			return types.NullCell(types.TagFloat)
		}
		return types.FloatCell(types.TagFloat, acc.sum/float64(acc.count))
	default:
		return types.NullCell(types.TagFloat)
	}
}
