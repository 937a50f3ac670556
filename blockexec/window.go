package blockexec

import (
	"sort"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// buildWindow materializes the child, sorts by (partition, order) when
// present, partitions by equality-run on the partition columns, then
// computes each window expression per row (spec §4.12 window). A window
// function needs every row of its partition before it can rank or look
// ahead/behind within it, so like hash_agg/sort/set_op/distinct it
// buffers its child fully before re-streaming the result.
func buildWindow(ctx *Ctx, n ir.PlanNode) (operator, error) {
	child, err := buildOperator(ctx, n.LeftIdx)
	if err != nil {
		return nil, err
	}
	schema, rows, err := materialize(child)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	var globalOrder []ir.OrderByItem
	var partitionCols []string
	if len(n.WindowSpecs) > 0 {
		partitionCols = n.WindowSpecs[0].PartitionBy
		globalOrder = n.WindowSpecs[0].OrderBy
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
		return compareOrderBy(schema, ra, rb, globalOrder) < 0
	})

	partitions := partitionRuns(schema, rows, idx, partitionCols)

	outSchema := make(types.Schema, 0, len(n.Passthroughs)+len(n.WindowSpecs))
	for _, pc := range n.Passthroughs {
		ci := schema.FindColumn(pc)
		if ci >= 0 {
			outSchema = append(outSchema, schema[ci])
		}
	}
	for _, w := range n.WindowSpecs {
		outSchema = append(outSchema, &types.Column{Name: windowName(w), Tag: windowTag(w)})
	}

	out := make([]row.Row, len(rows))
	for _, part := range partitions {
		for pos, ri := range part {
			r := rows[ri]
			nr := make(row.Row, 0, len(outSchema))
			for _, pc := range n.Passthroughs {
				ci := schema.FindColumn(pc)
				if ci >= 0 {
					nr = append(nr, r[ci])
				}
			}
			for _, w := range n.WindowSpecs {
				nr = append(nr, computeWindowValue(w, schema, rows, part, pos))
			}
			out[ri] = nr
		}
	}
	return &rowsSource{sch: outSchema, rows: out}, nil
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

// computeWindowValue implements the supported window functions (spec
// §4.12). Frames are not modeled: SUM/COUNT/AVG always aggregate over
// the whole partition, with or without an ORDER BY, so neither explicit
// N-preceding/following frames nor the implicit RANGE UNBOUNDED
// PRECEDING TO CURRENT ROW frame are applied.
func computeWindowValue(w ir.AggExpr, schema types.Schema, rows []row.Row, part []int, pos int) types.Cell {
	switch w.Func {
	case ir.AggRowNumber:
		return types.IntCell(types.TagBigInt, int64(pos+1))
	case ir.AggRank:
		// "count peers with strictly smaller ORDER BY value, plus 1"
		// (spec §4.9, reused here for the window form per §4.12).
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
		return valueOf(w, schema, rows[part[pos-off]])
	case ir.AggLead:
		off := w.IntArg
		if off <= 0 {
			off = 1
		}
		if pos+off >= len(part) {
			return types.NullCell(types.TagFloat)
		}
		return valueOf(w, schema, rows[part[pos+off]])
	case ir.AggFirstValue:
		return valueOf(w, schema, rows[part[0]])
	case ir.AggLastValue:
		return valueOf(w, schema, rows[part[len(part)-1]])
	case ir.AggNthValue:
		n := w.IntArg
		if n < 1 || n > len(part) {
			return types.NullCell(types.TagFloat)
		}
		return valueOf(w, schema, rows[part[n-1]])
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

func valueOf(w ir.AggExpr, schema types.Schema, r row.Row) types.Cell {
	ci := schema.FindColumn(w.ColumnName)
	if ci < 0 {
		return types.NullCell(types.TagText)
	}
	return r[ci]
}
