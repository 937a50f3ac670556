package rowexec

import (
	"sort"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// execWindowSelect implements window-function projection (spec §4.9,
// §4.12, §4.13), adapted from the block executor's buildWindow but
// preserving the SELECT list's exact column order (plain columns and
// window functions may be interleaved) instead of a fixed
// passthroughs-then-windows layout. All window specs in a SELECT list
// are expected to share one partition/order (spec's "simpler form");
// the first window column's clause is used to sort and partition,
// matching the block executor's same simplification.
func execWindowSelect(ctx *Ctx, schema types.Schema, rows []row.Row, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	winExprs := make([]ir.AggExpr, len(sel.Columns))
	isWin := make([]bool, len(sel.Columns))
	for i, c := range sel.Columns {
		if c.Kind == ir.SelectColWindow {
			winExprs[i] = ctx.Arena.Aggregates.Get(c.WinIdx)
			isWin[i] = true
		}
	}

	var partitionCols []string
	var orderItems []ir.OrderByItem
	for i := range sel.Columns {
		if isWin[i] {
			partitionCols = winExprs[i].PartitionBy
			orderItems = winExprs[i].OrderBy
			break
		}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		for _, pc := range partitionCols {
			ci := schema.FindColumn(pc)
			if ci < 0 {
				continue
			}
			n, _ := types.Compare(ra[ci], rb[ci])
			if n != 0 {
				return n < 0
			}
		}
		return compareOrderBy(schema, ra, rb, orderItems) < 0
	})

	partitions := partitionRuns(schema, rows, idx, partitionCols)

	outSchema := make(types.Schema, len(sel.Columns))
	out := make([]row.Row, len(rows))
	for _, part := range partitions {
		for pos, ri := range part {
			r := rows[ri]
			nr := make(row.Row, len(sel.Columns))
			for i, c := range sel.Columns {
				if isWin[i] {
					nr[i] = computeWindowValue(winExprs[i], schema, rows, part, pos)
					if outSchema[i] == nil {
						name := c.Alias
						if name == "" {
							name = windowName(winExprs[i])
						}
						outSchema[i] = &types.Column{Name: name, Tag: windowTag(winExprs[i])}
					}
					continue
				}
				v, col, err := evalSelectColumn(ctx, schema, r, c)
				if err != nil {
					return nil, nil, err
				}
				nr[i] = v
				if outSchema[i] == nil {
					outSchema[i] = &col
				}
			}
			out[ri] = nr
		}
	}
	return outSchema, out, nil
}

func partitionRuns(schema types.Schema, rows []row.Row, idx []int, partitionCols []string) [][]int {
	var runs [][]int
	var cur []int
	for i, ri := range idx {
		if i > 0 && !samePartition(schema, rows[idx[i-1]], rows[ri], partitionCols) {
			runs = append(runs, cur)
			cur = nil
		}
		cur = append(cur, ri)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func samePartition(schema types.Schema, a, b row.Row, cols []string) bool {
	for _, pc := range cols {
		ci := schema.FindColumn(pc)
		if ci < 0 {
			continue
		}
		if !types.Equal(a[ci], b[ci]) {
			return false
		}
	}
	return true
}

func windowName(w ir.AggExpr) string {
	switch w.Func {
	case ir.AggRowNumber:
		return "row_number"
	case ir.AggRank:
		return "rank"
	case ir.AggDenseRank:
		return "dense_rank"
	case ir.AggNTile:
		return "ntile"
	case ir.AggPercentRank:
		return "percent_rank"
	case ir.AggCumeDist:
		return "cume_dist"
	case ir.AggLag:
		return "lag"
	case ir.AggLead:
		return "lead"
	case ir.AggFirstValue:
		return "first_value"
	case ir.AggLastValue:
		return "last_value"
	case ir.AggNthValue:
		return "nth_value"
	default:
		return "window"
	}
}

func windowTag(w ir.AggExpr) types.Tag {
	switch w.Func {
	case ir.AggRowNumber, ir.AggRank, ir.AggDenseRank, ir.AggNTile, ir.AggCount:
		return types.TagBigInt
	case ir.AggPercentRank, ir.AggCumeDist, ir.AggAvg, ir.AggSum:
		return types.TagFloat
	default:
		return types.TagFloat
	}
}

// computeWindowValue implements the full window-function vocabulary
// (spec §4.12) over the whole partition; no true frame support beyond
// that, same documented simplification as the block executor's version.
func computeWindowValue(w ir.AggExpr, schema types.Schema, rows []row.Row, part []int, pos int) types.Cell {
	switch w.Func {
	case ir.AggRowNumber:
		return types.IntCell(types.TagBigInt, int64(pos+1))
	case ir.AggRank:
		smaller := 0
		for _, ri := range part {
			if compareOrderBy(schema, rows[ri], rows[part[pos]], w.OrderBy) < 0 {
				smaller++
			}
		}
		return types.IntCell(types.TagBigInt, int64(smaller+1))
	case ir.AggDenseRank:
		dr := 1
		for p := 1; p <= pos; p++ {
			if compareOrderBy(schema, rows[part[p-1]], rows[part[p]], w.OrderBy) != 0 {
				dr++
			}
		}
		return types.IntCell(types.TagBigInt, int64(dr))
	case ir.AggNTile:
		n := w.IntArg
		if n <= 0 {
			n = 1
		}
		bucket := pos*n/len(part) + 1
		return types.IntCell(types.TagBigInt, int64(bucket))
	case ir.AggPercentRank:
		if len(part) <= 1 {
			return types.FloatCell(types.TagFloat, 0)
		}
		return types.FloatCell(types.TagFloat, float64(pos)/float64(len(part)-1))
	case ir.AggCumeDist:
		return types.FloatCell(types.TagFloat, float64(pos+1)/float64(len(part)))
	case ir.AggLag:
		off := w.IntArg
		if off <= 0 {
			off = 1
		}
		if pos-off < 0 {
			return types.NullCell(types.TagFloat)
		}
		return windowValueOf(w, schema, rows[part[pos-off]])
	case ir.AggLead:
		off := w.IntArg
		if off <= 0 {
			off = 1
		}
		if pos+off >= len(part) {
			return types.NullCell(types.TagFloat)
		}
		return windowValueOf(w, schema, rows[part[pos+off]])
	case ir.AggFirstValue:
		return windowValueOf(w, schema, rows[part[0]])
	case ir.AggLastValue:
		return windowValueOf(w, schema, rows[part[len(part)-1]])
	case ir.AggNthValue:
		n := w.IntArg
		if n < 1 || n > len(part) {
			return types.NullCell(types.TagFloat)
		}
		return windowValueOf(w, schema, rows[part[n-1]])
	case ir.AggSum, ir.AggCount, ir.AggAvg:
		acc := &aggAccumulator{}
		ci := schema.FindColumn(w.ColumnName)
		for _, ri := range part {
			if ci >= 0 {
				acc.add(rows[ri][ci])
			} else {
				acc.countAll++
			}
		}
		return finalizeAgg(w, acc, windowTag(w))
	default:
		return types.NullCell(types.TagFloat)
	}
}

func windowValueOf(w ir.AggExpr, schema types.Schema, r row.Row) types.Cell {
	ci := schema.FindColumn(w.ColumnName)
	if ci < 0 {
		return types.NullCell(types.TagText)
	}
	return r[ci]
}
