package storage

import (
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/types"
)

// Database is the catalog: named tables, named enum types, named
// sequences, plus the in-transaction snapshot (spec §3 Database, §4.6
// C5, §4.7 transactions). Temp-table materialization for CTEs is
// deliberately NOT a Database method: it lives in package engine
// so storage never imports the SQL-executing layer (avoiding an import
// cycle), calling back into CreateTable/DropTable below like any other
// caller.
type Database struct {
	Name      string
	Tables    map[string]*Table
	Types     map[string]*types.EnumType
	Sequences map[string]*Sequence

	snapshot *snapshot
}

// NewDatabase returns an empty, unnamed-transaction catalog.
func NewDatabase(name string) *Database {
	return &Database{
		Name:      name,
		Tables:    make(map[string]*Table),
		Types:     make(map[string]*types.EnumType),
		Sequences: make(map[string]*Sequence),
	}
}

// FindTable returns the named table, or nil.
func (d *Database) FindTable(name string) *Table {
	return d.Tables[name]
}

// CreateTable registers t, failing if a table by that name already
// exists (spec §4.6 create_table).
func (d *Database) CreateTable(t *Table) error {
	if _, exists := d.Tables[t.Name]; exists {
		return errkind.Execution.New("table already exists: " + t.Name)
	}
	d.Tables[t.Name] = t
	for _, col := range t.Columns {
		if col.SequenceName != "" {
			if _, exists := d.Sequences[col.SequenceName]; !exists {
				d.Sequences[col.SequenceName] = NewSequence(col.SequenceName, 1, 1<<62, 1)
			}
		}
	}
	return nil
}

// DropTable removes a table and any sequences owned exclusively by its
// SERIAL/BIGSERIAL columns (spec §4.6 drop_table).
func (d *Database) DropTable(name string) error {
	t, ok := d.Tables[name]
	if !ok {
		return errkind.NotFoundTable.New(name)
	}
	delete(d.Tables, name)
	for _, col := range t.Columns {
		if col.SequenceName != "" {
			delete(d.Sequences, col.SequenceName)
		}
	}
	return nil
}

// RenameTable moves a table's catalog entry to a new name, leaving its
// own Name field and indexes untouched.
func (d *Database) RenameTable(oldName, newName string) error {
	t, ok := d.Tables[oldName]
	if !ok {
		return errkind.NotFoundTable.New(oldName)
	}
	if _, exists := d.Tables[newName]; exists {
		return errkind.Execution.New("table already exists: " + newName)
	}
	delete(d.Tables, oldName)
	t.Name = newName
	d.Tables[newName] = t
	return nil
}

// CreateType registers a named enum type (spec §4.6 create_type).
func (d *Database) CreateType(et *types.EnumType) error {
	if _, exists := d.Types[et.Name]; exists {
		return errkind.Execution.New("type already exists: " + et.Name)
	}
	d.Types[et.Name] = et
	return nil
}

// FindType returns the named enum type, or nil.
func (d *Database) FindType(name string) *types.EnumType {
	return d.Types[name]
}

// DropType removes a named enum type (spec §4.6 drop_type). Columns
// already created with this enum type keep their TagEnum cells; the
// type name simply becomes unresolvable for future CREATE TABLE/CAST.
func (d *Database) DropType(name string) error {
	if _, ok := d.Types[name]; !ok {
		return errkind.NotFoundType.New(name)
	}
	delete(d.Types, name)
	return nil
}

// CreateIndex finds table, builds the index on it, and returns it (spec
// §4.5/§4.6 create_index dispatch from the catalog).
func (d *Database) CreateIndex(tableName, indexName string, colNames []string, unique bool) (*Index, error) {
	t := d.FindTable(tableName)
	if t == nil {
		return nil, errkind.NotFoundTable.New(tableName)
	}
	return t.CreateIndex(indexName, colNames, unique)
}

// DropIndex searches every table for indexName, matching spec §4.5
// drop_index's "searches all tables" semantics (index names are unique
// database-wide).
func (d *Database) DropIndex(indexName string) error {
	for _, t := range d.Tables {
		if t.DropIndexByName(indexName) {
			return nil
		}
	}
	return errkind.NotFoundIndex.New(indexName)
}

// FindSequence returns the named sequence, or nil.
func (d *Database) FindSequence(name string) *Sequence {
	return d.Sequences[name]
}

// CreateSequence registers a standalone (non-SERIAL) sequence, e.g. from
// an explicit CREATE SEQUENCE statement.
func (d *Database) CreateSequence(s *Sequence) error {
	if _, exists := d.Sequences[s.Name]; exists {
		return errkind.Execution.New("sequence already exists: " + s.Name)
	}
	d.Sequences[s.Name] = s
	return nil
}

// InTransaction reports whether BEGIN has been called without a
// matching COMMIT/ROLLBACK yet.
func (d *Database) InTransaction() bool {
	return d.snapshot != nil
}
