package types

// Column is schema metadata for one position in a row (spec §3 Column):
// name, type, optional enum-type name, optional default cell, and the
// not-null / unique / primary-key constraint flags.
type Column struct {
	Name         string
	Tag          Tag
	EnumTypeName string // non-empty iff Tag == TagEnum
	HasDefault   bool
	Default      Cell
	NotNull      bool
	Unique       bool
	PrimaryKey   bool

	// SequenceName is non-empty for SERIAL/BIGSERIAL columns: the
	// implicit sequence backing DEFAULT nextval(SequenceName).
	// (SPEC_FULL.md A.3, grounded on original_source's struct sequence.)
	SequenceName string
}

// TypeName returns the SQL type name for the column, resolving enum
// columns to their named type.
func (c *Column) TypeName() string {
	return ColumnTypeName(c.Tag, c.EnumTypeName)
}

// Schema is an ordered list of columns, matching a table's or a result
// set's shape.
type Schema []*Column

// IndexOf returns the position of name in the schema, or -1. Lookup is
// case-sensitive exact match; if absent and name contains '.', the
// caller should retry with the suffix after the last '.' (spec §4.4
// find_column), which FindColumn below implements directly.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FindColumn implements spec §4.4's table.find_column: exact match
// first; if absent and name contains '.', retry on the suffix after the
// last '.'.
func (s Schema) FindColumn(name string) int {
	if i := s.IndexOf(name); i >= 0 {
		return i
	}
	if dot := lastIndexByte(name, '.'); dot >= 0 {
		return s.IndexOf(name[dot+1:])
	}
	return -1
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// EnumType is a named enumerated type: a name plus an ordered list of
// value strings (spec §3 Enum type).
type EnumType struct {
	Name   string
	Values []string
}

// ValueIndex returns the ordinal of v within the enum's value list, or -1.
func (e *EnumType) ValueIndex(v string) int {
	for i, s := range e.Values {
		if s == v {
			return i
		}
	}
	return -1
}
