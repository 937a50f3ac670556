package rowexec

import (
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/eval"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// aggAccumulator mirrors blockexec's accumulator (duplicated here since
// it is unexported there): running sum/count/min/max over a group.
type aggAccumulator struct {
	sum, min, max   float64
	count, countAll int64
	haveMM          bool
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

func aggOutputName(a ir.AggExpr) string {
	switch a.Func {
	case ir.AggCountStar, ir.AggCount:
		return "count"
	case ir.AggSum:
		return "sum"
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

// aggOutputTag widens SUM/MIN/MAX to the argument column's declared
// type instead of narrowing to plain int, the same fix already applied
// to the block executor's hash_agg.
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

func groupKeyString(key row.Row) string {
	s := ""
	for _, c := range key {
		if c.Null {
			s += "\x00N\x00"
			continue
		}
		s += c.AsText() + "\x00"
	}
	return s
}

type aggGroup struct {
	key  row.Row
	rep  row.Row // first full row seen for this group, for non-aggregate/non-group-key exprs
	accs map[int]*aggAccumulator
}

// execGroupBy implements GROUP BY + aggregate projection plus HAVING
// (spec §4.9, §4.13). Unlike blockexec's hash_agg, which always emits
// group-by columns before aggregates, this preserves the SELECT list's
// exact column order since sel.Columns may interleave plain column
// refs and aggregates arbitrarily.
func execGroupBy(ctx *Ctx, schema types.Schema, rows []row.Row, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	groupCis := make([]int, len(sel.GroupByColumns))
	for i, gc := range sel.GroupByColumns {
		ci := schema.FindColumn(gc)
		if ci < 0 {
			return nil, nil, errkind.NotFoundColumn.New(gc)
		}
		groupCis[i] = ci
	}

	aggExprs := make([]ir.AggExpr, len(sel.Columns))
	aggCis := make([]int, len(sel.Columns))
	for i, c := range sel.Columns {
		if c.Kind != ir.SelectColAggregate {
			continue
		}
		a := ctx.Arena.Aggregates.Get(c.AggIdx)
		aggExprs[i] = a
		if a.ColumnName == "" {
			aggCis[i] = -1
			continue
		}
		ci := schema.FindColumn(a.ColumnName)
		if ci < 0 {
			return nil, nil, errkind.NotFoundColumn.New(a.ColumnName)
		}
		aggCis[i] = ci
	}

	var order []string
	groups := make(map[string]*aggGroup)

	for _, r := range rows {
		key := make(row.Row, len(groupCis))
		for i, ci := range groupCis {
			key[i] = r[ci]
		}
		keyStr := groupKeyString(key)
		g, ok := groups[keyStr]
		if !ok {
			g = &aggGroup{key: key, rep: r, accs: make(map[int]*aggAccumulator)}
			groups[keyStr] = g
			order = append(order, keyStr)
		}
		for i, c := range sel.Columns {
			if c.Kind != ir.SelectColAggregate {
				continue
			}
			acc := g.accs[i]
			if acc == nil {
				acc = &aggAccumulator{}
				g.accs[i] = acc
			}
			if aggCis[i] < 0 {
				acc.countAll++
			} else {
				acc.add(r[aggCis[i]])
			}
		}
	}
	// A bare aggregate with no GROUP BY and no input rows still emits
	// one row (e.g. "SELECT COUNT(*) FROM empty_table" yields 0, not no
	// rows).
	if len(order) == 0 && len(sel.GroupByColumns) == 0 {
		groups[""] = &aggGroup{accs: make(map[int]*aggAccumulator)}
		order = append(order, "")
	}

	outSchema := make(types.Schema, len(sel.Columns))
	out := make([]row.Row, 0, len(order))
	for _, k := range order {
		g := groups[k]
		nr := make(row.Row, len(sel.Columns))
		for i, c := range sel.Columns {
			switch c.Kind {
			case ir.SelectColAggregate:
				outTag := aggOutputTag(aggExprs[i], schema, aggCis[i])
				acc := g.accs[i]
				if acc == nil {
					acc = &aggAccumulator{}
				}
				nr[i] = finalizeAgg(aggExprs[i], acc, outTag)
				if outSchema[i] == nil {
					name := c.Alias
					if name == "" {
						name = aggOutputName(aggExprs[i])
					}
					outSchema[i] = &types.Column{Name: name, Tag: outTag}
				}
			case ir.SelectColColumnRef:
				ci := schema.FindColumn(c.ColumnName)
				if ci < 0 {
					return nil, nil, errkind.NotFoundColumn.New(c.ColumnName)
				}
				switch gi := indexOfInt(groupCis, ci); {
				case gi >= 0:
					nr[i] = g.key[gi]
				case g.rep != nil:
					nr[i] = g.rep[ci]
				default:
					nr[i] = types.NullCell(schema[ci].Tag)
				}
				if outSchema[i] == nil {
					col := *schema[ci]
					if c.Alias != "" {
						col.Name = c.Alias
					}
					outSchema[i] = &col
				}
			default:
				rep := g.rep
				if rep == nil {
					rep = nullRowFor(schema)
				}
				v, col, err := evalSelectColumn(ctx, schema, rep, c)
				if err != nil {
					return nil, nil, err
				}
				nr[i] = v
				if outSchema[i] == nil {
					outSchema[i] = &col
				}
			}
		}
		out = append(out, nr)
	}

	if sel.HavingCondIdx != ir.IdxNone {
		filtered := out[:0]
		for _, r := range out {
			ok, err := eval.Condition(ctx.Arena, outSchema, r, sel.HavingCondIdx)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				filtered = append(filtered, r)
			}
		}
		out = filtered
	}

	return outSchema, out, nil
}

func indexOfInt(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
