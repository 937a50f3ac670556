// Package storage holds the row-store, index, table, sequence, and
// database/catalog types (spec §3-§5, C4/C5), the snapshot mechanism for
// transactions (§4.7), and the join cache (§4.11 GLOSSARY) that the
// block executor memoizes per table.
package storage

import (
	"fmt"

	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// JoinCache memoizes a hash-join build side per table, keyed by
// (generation, key column) (spec GLOSSARY "Join cache", §4.12 hash_join:
// "Inner side is memoized per-table in a join cache keyed by (table
// generation, key column)"). The payload type is left as interface{} —
// it is filled in and read back exclusively by package blockexec, which
// knows the concrete build-side representation (flat columnar arrays +
// block hash table); storage only owns the cache's lifetime.
type JoinCache struct {
	Generation uint64
	KeyColumn  int
	Payload    interface{}
}

// Table is a named collection of rows + schema + indexes (spec §3
// Table). ViewSQL is non-empty iff this is a virtual table (a view).
type Table struct {
	Name       string
	ViewSQL    string
	Columns    types.Schema
	Rows       []row.Row
	Indexes    []*Index
	Generation uint64

	scanCache *ScanCache
	joinCache *JoinCache
}

// NewTable constructs an empty table over schema.
func NewTable(name string, schema types.Schema) *Table {
	return &Table{Name: name, Columns: schema}
}

// FindColumn implements spec §4.4 find_column via types.Schema.FindColumn.
func (t *Table) FindColumn(name string) int {
	return t.Columns.FindColumn(name)
}

// ScanCache returns the table's current scan cache, rebuilding it if
// stale or absent (spec §4.10: "rebuilt lazily on next scan").
func (t *Table) ScanCache() *ScanCache {
	if t.scanCache.Valid(t) {
		return t.scanCache
	}
	t.scanCache = Build(t)
	return t.scanCache
}

// InvalidateScanCache forces the next ScanCache() call to rebuild.
func (t *Table) InvalidateScanCache() {
	t.scanCache = nil
}

// JoinCache returns the table's join-build-side cache if it matches
// (generation, keyCol), else nil.
func (t *Table) JoinCache(keyCol int) *JoinCache {
	if t.joinCache != nil && t.joinCache.Generation == t.Generation && t.joinCache.KeyColumn == keyCol {
		return t.joinCache
	}
	return nil
}

// SetJoinCache installs a fresh join cache stamped with the table's
// current generation.
func (t *Table) SetJoinCache(keyCol int, payload interface{}) {
	t.joinCache = &JoinCache{Generation: t.Generation, KeyColumn: keyCol, Payload: payload}
}

func (t *Table) bumpGeneration() {
	t.Generation++
}

// Insert validates NOT NULL / UNIQUE, pads r to the schema width, adds
// it to the row store and every index, bumps the generation, and
// returns the new row-id (spec §4.14 INSERT, §4.4 generation discipline).
func (t *Table) Insert(r row.Row) (int, error) {
	padded := r.PadTo(len(t.Columns), func(i int) types.Cell {
		col := t.Columns[i]
		if col.HasDefault {
			return types.CellCopy(col.Default, types.OwnerTable)
		}
		return types.NullCell(col.Tag)
	})
	if err := t.validateRow(padded, -1); err != nil {
		return -1, err
	}
	owned := padded.Clone(types.OwnerTable)
	t.Rows = append(t.Rows, owned)
	rid := len(t.Rows) - 1
	for _, idx := range t.Indexes {
		idx.Tree.Insert(idx.KeyFor(owned), rid)
	}
	t.bumpGeneration()
	return rid, nil
}

// validateRow checks NOT NULL and UNIQUE constraints. skipRowID excludes
// a row-id from the uniqueness scan (used by UPDATE checking its own row).
func (t *Table) validateRow(r row.Row, skipRowID int) error {
	for ci, col := range t.Columns {
		if ci >= len(r) {
			continue
		}
		if col.NotNull && r[ci].IsNullLike() {
			return errkind.ConstraintViolation.New(fmt.Sprintf("column %q may not be null", col.Name))
		}
		if (col.Unique || col.PrimaryKey) && !r[ci].IsNullLike() {
			for rid, other := range t.Rows {
				if rid == skipRowID {
					continue
				}
				if ci < len(other) && types.Equal(other[ci], r[ci]) {
					return errkind.ConstraintViolation.New(fmt.Sprintf("duplicate value for unique column %q", col.Name))
				}
			}
		}
	}
	return nil
}

// Update replaces row rid's cells wholesale, synchronizing indexes and
// patching (or invalidating) the scan cache, and bumps the generation.
func (t *Table) Update(rid int, newRow row.Row) error {
	if err := t.validateRow(newRow, rid); err != nil {
		return err
	}
	old := t.Rows[rid]
	for _, idx := range t.Indexes {
		idx.Tree.Remove(idx.KeyFor(old), rid)
	}
	owned := newRow.Clone(types.OwnerTable)
	t.Rows[rid] = owned
	for _, idx := range t.Indexes {
		idx.Tree.Insert(idx.KeyFor(owned), rid)
	}
	t.bumpGeneration()
	if t.scanCache.Valid(t) || (t.scanCache != nil && t.scanCache.Generation == t.Generation-1) {
		if t.scanCache.PatchRow(rid, owned) {
			t.scanCache.Generation = t.Generation
		} else {
			t.scanCache = nil
		}
	}
	return nil
}

// Delete removes row rid by swap-with-last, matching the reference's
// "row-ids are stable only within a single non-mutating query
// execution" contract: any row-id computed before a Delete within the
// same statement is no longer valid afterward.
func (t *Table) Delete(rid int) {
	last := len(t.Rows) - 1
	old := t.Rows[rid]
	for _, idx := range t.Indexes {
		idx.Tree.Remove(idx.KeyFor(old), rid)
	}
	if rid != last {
		moved := t.Rows[last]
		for _, idx := range t.Indexes {
			idx.Tree.Remove(idx.KeyFor(moved), last)
			idx.Tree.Insert(idx.KeyFor(moved), rid)
		}
		t.Rows[rid] = moved
	}
	t.Rows = t.Rows[:last]
	t.bumpGeneration()
	t.InvalidateScanCache()
}

// AddColumn appends col to the schema and pads every existing row with
// its default/NULL (spec §4.4 add_column).
func (t *Table) AddColumn(col *types.Column) {
	t.Columns = append(t.Columns, col)
	def := types.NullCell(col.Tag)
	if col.HasDefault {
		def = types.CellCopy(col.Default, types.OwnerTable)
	}
	for i, r := range t.Rows {
		t.Rows[i] = append(r, def)
	}
	t.bumpGeneration()
	t.InvalidateScanCache()
}

// DropColumn removes the column at position ci from the schema and every
// row, and drops any index referencing it (spec §4.4 drop_column).
func (t *Table) DropColumn(ci int) {
	t.Columns = append(t.Columns[:ci], t.Columns[ci+1:]...)
	for i, r := range t.Rows {
		t.Rows[i] = append(r[:ci], r[ci+1:]...)
	}
	kept := t.Indexes[:0]
	for _, idx := range t.Indexes {
		refers := false
		for j, col := range idx.ColumnIdx {
			switch {
			case col == ci:
				refers = true
			case col > ci:
				idx.ColumnIdx[j] = col - 1
			}
		}
		if !refers {
			kept = append(kept, idx)
		}
	}
	t.Indexes = kept
	t.bumpGeneration()
	t.InvalidateScanCache()
}

// RenameColumn renames the column at position ci (spec §4.4 rename_column).
func (t *Table) RenameColumn(ci int, newName string) {
	t.Columns[ci].Name = newName
}

// AlterType changes the column at position ci's declared type, leaving
// existing cell values as-is (spec §4.4 alter_type). Bumping the
// generation invalidates the scan cache so the next scan re-infers
// per-column types.
func (t *Table) AlterType(ci int, tag types.Tag) {
	t.Columns[ci].Tag = tag
	t.bumpGeneration()
	t.InvalidateScanCache()
}

// CreateIndex builds and attaches a new index (spec §4.5 create_index).
func (t *Table) CreateIndex(name string, colNames []string, unique bool) (*Index, error) {
	colIdx := make([]int, len(colNames))
	for i, cn := range colNames {
		ci := t.FindColumn(cn)
		if ci < 0 {
			return nil, errkind.NotFoundColumn.New(cn)
		}
		colIdx[i] = ci
	}
	idx := NewIndex(name, colNames, colIdx, unique, t)
	t.Indexes = append(t.Indexes, idx)
	return idx, nil
}

// FindIndex returns the named index, or nil.
func (t *Table) FindIndex(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// IndexOnColumn returns an index whose leading (or only) column is ci.
func (t *Table) IndexOnColumn(ci int) *Index {
	for _, idx := range t.Indexes {
		if len(idx.ColumnIdx) >= 1 && idx.ColumnIdx[0] == ci {
			return idx
		}
	}
	return nil
}

// DropIndexByName removes an index by name, reporting whether one was
// found (spec §4.5 drop_index: "searches all tables" — the catalog-level
// search lives in Database.DropIndex and calls this per table).
func (t *Table) DropIndexByName(name string) bool {
	for i, idx := range t.Indexes {
		if idx.Name == name {
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			return true
		}
	}
	return false
}

// DeepCopy returns an independent copy of t with indexes rebuilt from
// scratch (spec §4.4 deep_copy), used by snapshot creation/restore.
func (t *Table) DeepCopy() *Table {
	cols := make(types.Schema, len(t.Columns))
	for i, c := range t.Columns {
		cp := *c
		cols[i] = &cp
	}
	rows := make([]row.Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone(types.OwnerTable)
	}
	dst := &Table{
		Name:       t.Name,
		ViewSQL:    t.ViewSQL,
		Columns:    cols,
		Rows:       rows,
		Generation: t.Generation,
	}
	for _, idx := range t.Indexes {
		colNames := append([]string(nil), idx.ColumnNames...)
		colIdxCopy := append([]int(nil), idx.ColumnIdx...)
		ni := &Index{Name: idx.Name, ColumnNames: colNames, ColumnIdx: colIdxCopy, Unique: idx.Unique, Tree: idx.Tree.Clone()}
		dst.Indexes = append(dst.Indexes, ni)
	}
	return dst
}
