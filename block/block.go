// Package block implements the fixed-capacity columnar batch, selection
// vector, and block hash table of spec §4.11 — the unit of data flow
// between blockexec operators.
package block

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/martinsk/mskql/types"
)

// Capacity is BLOCK_CAPACITY, the maximum row count of one block (spec
// §4.11: "the reference uses 1024").
const Capacity = 1024

// ColBlock is one column of a block: a type tag, a type-discriminated
// flat value array, and a null bitmap (spec §4.11 "col_block"). Exactly
// one of Ints/Floats/Bools/Texts is populated, selected by Tag.
type ColBlock struct {
	Tag    types.Tag
	Ints   []int64
	Floats []float64
	Bools  []bool
	Texts  []string
	// Nulls uses github.com/RoaringBitmap/roaring/v2 instead of a
	// hand-rolled bitset (SPEC_FULL.md A.2). It is only read and written
	// per row (Add/Contains); set_op and distinct compare whole
	// materialized rows and do not combine these bitmaps.
	Nulls *roaring.Bitmap
}

// NewColBlock allocates a column block of the given type and capacity.
func NewColBlock(tag types.Tag, capacity int) *ColBlock {
	c := &ColBlock{Tag: tag, Nulls: roaring.New()}
	switch {
	case tag.IsNumeric() && (tag == types.TagFloat || tag == types.TagNumeric):
		c.Floats = make([]float64, 0, capacity)
	case tag.IsNumeric():
		c.Ints = make([]int64, 0, capacity)
	case tag == types.TagBoolean:
		c.Bools = make([]bool, 0, capacity)
	default:
		c.Texts = make([]string, 0, capacity)
	}
	return c
}

// AppendCell appends v to the column, recording nullness in Nulls.
func (c *ColBlock) AppendCell(v types.Cell) {
	row := uint32(c.Len())
	if v.Null {
		c.Nulls.Add(row)
	}
	switch {
	case c.Floats != nil:
		if v.Tag == types.TagFloat || v.Tag == types.TagNumeric {
			c.Floats = append(c.Floats, v.Float)
		} else {
			c.Floats = append(c.Floats, float64(v.Int))
		}
	case c.Ints != nil:
		c.Ints = append(c.Ints, v.Int)
	case c.Bools != nil:
		c.Bools = append(c.Bools, v.Bool)
	default:
		c.Texts = append(c.Texts, v.Text)
	}
}

// Len is the column's current row count.
func (c *ColBlock) Len() int {
	switch {
	case c.Floats != nil:
		return len(c.Floats)
	case c.Ints != nil:
		return len(c.Ints)
	case c.Bools != nil:
		return len(c.Bools)
	default:
		return len(c.Texts)
	}
}

// Cell reconstructs row i as a types.Cell.
func (c *ColBlock) Cell(i int) types.Cell {
	if c.Nulls.Contains(uint32(i)) {
		return types.NullCell(c.Tag)
	}
	switch {
	case c.Floats != nil:
		return types.FloatCell(c.Tag, c.Floats[i])
	case c.Ints != nil:
		return types.IntCell(c.Tag, c.Ints[i])
	case c.Bools != nil:
		return types.BoolCell(c.Bools[i])
	default:
		return types.TextCell(c.Tag, c.Texts[i], types.OwnerArena)
	}
}

// Reset clears the column back to zero rows, keeping its allocated
// capacity and type so it can be reused for the next chunk pulled
// through it.
func (c *ColBlock) Reset() {
	switch {
	case c.Floats != nil:
		c.Floats = c.Floats[:0]
	case c.Ints != nil:
		c.Ints = c.Ints[:0]
	case c.Bools != nil:
		c.Bools = c.Bools[:0]
	default:
		c.Texts = c.Texts[:0]
	}
	c.Nulls = roaring.New()
}

// SelectionVector is an array of active row positions within a block,
// permitting filter without copying (spec §4.11, GLOSSARY "Selection
// vector").
type SelectionVector struct {
	Indices []int
}

// RowIdx implements spec §4.11's `row_idx(i) = sel ? sel[i] : i`, called
// with sel possibly nil.
func RowIdx(sel *SelectionVector, i int) int {
	if sel == nil {
		return i
	}
	return sel.Indices[i]
}

// Block is a fixed-capacity columnar batch of up to Capacity rows (spec
// §4.11 "Block (row block)").
type Block struct {
	Cols  []*ColBlock
	Count int
	Sel   *SelectionVector
}

// NewBlock allocates an empty block over the given column type list.
func NewBlock(colTags []types.Tag) *Block {
	b := &Block{Cols: make([]*ColBlock, len(colTags))}
	for i, t := range colTags {
		b.Cols[i] = NewColBlock(t, Capacity)
	}
	return b
}

// ActiveCount is the number of rows the block exposes, respecting a
// selection vector if present.
func (b *Block) ActiveCount() int {
	if b.Sel != nil {
		return len(b.Sel.Indices)
	}
	return b.Count
}

// Row reconstructs active row i as a slice of cells, one per column.
func (b *Block) Row(i int) []types.Cell {
	ri := RowIdx(b.Sel, i)
	out := make([]types.Cell, len(b.Cols))
	for ci, col := range b.Cols {
		out[ci] = col.Cell(ri)
	}
	return out
}

// Reset clears the block back to zero rows and drops any selection
// vector, readying it to be filled by the next next_block pull (spec
// §4.12's per-operator pull protocol reuses blocks rather than
// allocating one per call).
func (b *Block) Reset() {
	b.Count = 0
	b.Sel = nil
	for _, c := range b.Cols {
		c.Reset()
	}
}

// AppendRow appends one full row, one cell per column, and bumps Count.
func (b *Block) AppendRow(cells []types.Cell) {
	for i, c := range cells {
		b.Cols[i].AppendCell(c)
	}
	b.Count++
}
