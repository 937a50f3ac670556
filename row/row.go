// Package row holds the row and result-set types (spec §3 Row, Rows;
// §4.2 C2). A Row is an ordered sequence of Cells; Rows is an ordered
// sequence of Rows plus the "arena-owned text" flag that says whether
// the destructor should treat per-cell text as transient.
package row

import "github.com/martinsk/mskql/types"

// Row is one row: cell i corresponds to column i of the owning schema.
type Row []types.Cell

// Clone deep-copies a row, tagging text cells with owner.
func (r Row) Clone(owner types.TextOwner) Row {
	out := make(Row, len(r))
	for i, c := range r {
		out[i] = types.CellCopy(c, owner)
	}
	return out
}

// Equal implements spec §4.2 row_equal: pairwise cell_equal.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !types.Equal(r[i], o[i]) {
			return false
		}
	}
	return true
}

// PadTo grows r to width columns, filling new positions with def
// (defaults or NULL), matching spec §3's INSERT padding rule: "rows are
// padded with nulls or defaults on INSERT if shorter than the schema".
func (r Row) PadTo(width int, defaults func(i int) types.Cell) Row {
	if len(r) >= width {
		return r
	}
	out := make(Row, width)
	copy(out, r)
	for i := len(r); i < width; i++ {
		out[i] = defaults(i)
	}
	return out
}

// Rows is a result set: an ordered sequence of Row plus an
// ArenaOwnedText flag recording whether per-cell text is owned by a
// query arena (and thus safe to let go out of scope with the arena) or
// must be treated as borrowed from a table row-store.
type Rows struct {
	Schema         types.Schema
	Data           []Row
	ArenaOwnedText bool
}

// NewRows constructs an empty result set over schema.
func NewRows(schema types.Schema) *Rows {
	return &Rows{Schema: schema}
}

// Push appends r (spec §4.2 rows_push).
func (rs *Rows) Push(r Row) {
	rs.Data = append(rs.Data, r)
}

// Len is the number of rows.
func (rs *Rows) Len() int { return len(rs.Data) }
