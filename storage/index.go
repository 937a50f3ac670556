package storage

import (
	"github.com/martinsk/mskql/btree"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// Index is a named secondary index: an ordered list of column positions
// (1-8 wide), a uniqueness flag, and a B-tree root (spec §3 Index).
type Index struct {
	Name        string
	ColumnNames []string
	ColumnIdx   []int
	Unique      bool
	Tree        *btree.BTree
}

// KeyFor extracts the composite key for r according to idx's columns.
func (idx *Index) KeyFor(r row.Row) btree.Key {
	key := make(btree.Key, len(idx.ColumnIdx))
	for i, ci := range idx.ColumnIdx {
		key[i] = r[ci]
	}
	return key
}

// NewIndex builds an index over table t's columns colIdx and backfills
// it by scanning t's existing rows (spec §4.5 create_index: "backfills
// by scanning existing rows").
func NewIndex(name string, colNames []string, colIdx []int, unique bool, t *Table) *Index {
	idx := &Index{
		Name:        name,
		ColumnNames: colNames,
		ColumnIdx:   colIdx,
		Unique:      unique,
		Tree:        btree.New(),
	}
	for rid, r := range t.Rows {
		idx.Tree.Insert(idx.KeyFor(r), rid)
	}
	return idx
}

func cellKey(cs ...types.Cell) btree.Key {
	return btree.Key(cs)
}
