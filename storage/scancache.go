package storage

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/martinsk/mskql/types"
)

// ScanCache is the per-table columnar materialization used by seq_scan
// for fast repeated scans (spec §4.10, GLOSSARY "Scan cache"). One flat
// typed array per column plus a null bitmap; generation is stamped at
// build time so a mismatch against table.Generation signals staleness.
//
// The null bitmap uses github.com/RoaringBitmap/roaring/v2 (SPEC_FULL.md
// A.2 domain stack) instead of a hand-rolled bitset; each bitmap is set
// and tested per row and never combined with another.
type ScanCache struct {
	Generation uint64
	ColTypes   []types.Tag
	// ColInts holds smallint/int/bigint columns as int64; ColFloats
	// holds float/numeric as float64; ColBools holds boolean; ColTexts
	// holds text/enum/uuid; ColTimes holds date/time/timestamp(tz).
	// Exactly one of these slices is populated per column index,
	// selected by ColTypes[i].
	ColInts   [][]int64
	ColFloats [][]float64
	ColBools  [][]bool
	ColTexts  [][]string
	ColNulls  []*roaring.Bitmap
	NRows     int
}

// Valid reports whether the cache is stamped with t's current
// generation (spec §4.10: "Cache is invalidated on mismatch between
// table.generation and scan_cache.generation").
func (c *ScanCache) Valid(t *Table) bool {
	return c != nil && c.Generation == t.Generation
}

// Build materializes t's row store into the cache (spec §4.10: "On first
// sequential scan the table materializes a columnar cache"). The type of
// each column is the first non-null cell's type, falling back to the
// declared column type.
func Build(t *Table) *ScanCache {
	ncols := len(t.Columns)
	c := &ScanCache{
		Generation: t.Generation,
		ColTypes:   make([]types.Tag, ncols),
		ColInts:    make([][]int64, ncols),
		ColFloats:  make([][]float64, ncols),
		ColBools:   make([][]bool, ncols),
		ColTexts:   make([][]string, ncols),
		ColNulls:   make([]*roaring.Bitmap, ncols),
		NRows:      len(t.Rows),
	}

	for ci, col := range t.Columns {
		tag := col.Tag
		for _, r := range t.Rows {
			if ci < len(r) && !r[ci].Null {
				tag = r[ci].Tag
				break
			}
		}
		c.ColTypes[ci] = tag
		c.ColNulls[ci] = roaring.New()

		switch {
		case tag.IsNumeric() && (tag == types.TagFloat || tag == types.TagNumeric):
			c.ColFloats[ci] = make([]float64, len(t.Rows))
		case tag.IsNumeric():
			c.ColInts[ci] = make([]int64, len(t.Rows))
		case tag == types.TagBoolean:
			c.ColBools[ci] = make([]bool, len(t.Rows))
		default:
			c.ColTexts[ci] = make([]string, len(t.Rows))
		}

		for ri, r := range t.Rows {
			if ci >= len(r) || r[ci].Null {
				c.ColNulls[ci].Add(uint32(ri))
				continue
			}
			cell := r[ci]
			switch {
			case c.ColFloats[ci] != nil:
				if cell.Tag.IsNumeric() {
					if cell.Tag == types.TagFloat || cell.Tag == types.TagNumeric {
						c.ColFloats[ci][ri] = cell.Float
					} else {
						c.ColFloats[ci][ri] = float64(cell.Int)
					}
				}
			case c.ColInts[ci] != nil:
				c.ColInts[ci][ri] = cell.Int
			case c.ColBools[ci] != nil:
				c.ColBools[ci][ri] = cell.Bool
			default:
				c.ColTexts[ci][ri] = cell.Text
			}
		}
	}
	return c
}

// Cell reconstructs the row ri, column ci cell from the cache.
func (c *ScanCache) Cell(ci, ri int) types.Cell {
	tag := c.ColTypes[ci]
	if c.ColNulls[ci].Contains(uint32(ri)) {
		return types.NullCell(tag)
	}
	switch {
	case c.ColFloats[ci] != nil:
		return types.FloatCell(tag, c.ColFloats[ci][ri])
	case c.ColInts[ci] != nil:
		return types.IntCell(tag, c.ColInts[ci][ri])
	case c.ColBools[ci] != nil:
		return types.BoolCell(c.ColBools[ci][ri])
	default:
		return types.TextCell(tag, c.ColTexts[ci][ri], types.OwnerTable)
	}
}

// PatchRow updates the cache in place for a single-row UPDATE, matching
// spec §4.10's "patched in place on single-row UPDATEs" for everything
// except text columns. Per spec §9's open question, text columns are
// deliberately NOT patched in place: the cache is instead marked stale
// (by bumping the table's generation, which the caller already does for
// every UPDATE) so the next scan rebuilds from the authoritative row
// store rather than trusting a possibly-dangling cached string.
// PatchRow returns false (leaving the cache stale for the caller to
// discard) if r touches any text column, true if every column was
// patched in place.
func (c *ScanCache) PatchRow(ri int, r []types.Cell) bool {
	clean := true
	for ci := range c.ColTypes {
		if ci >= len(r) {
			continue
		}
		if c.ColTexts[ci] != nil {
			clean = false
			continue
		}
		cell := r[ci]
		if cell.Null {
			c.ColNulls[ci].Add(uint32(ri))
			continue
		}
		c.ColNulls[ci].Remove(uint32(ri))
		switch {
		case c.ColFloats[ci] != nil:
			if cell.Tag == types.TagFloat || cell.Tag == types.TagNumeric {
				c.ColFloats[ci][ri] = cell.Float
			} else {
				c.ColFloats[ci][ri] = float64(cell.Int)
			}
		case c.ColInts[ci] != nil:
			c.ColInts[ci][ri] = cell.Int
		case c.ColBools[ci] != nil:
			c.ColBools[ci][ri] = cell.Bool
		}
	}
	return clean
}
