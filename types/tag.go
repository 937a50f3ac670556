// Package types holds the engine's value model: the tagged Cell union,
// its type tags, and Column schema metadata (spec §3 Data Model, C2).
package types

// Tag is a Cell's type tag (spec §3: "a type tag ∈ {smallint, int,
// bigint, float, numeric, boolean, text, enum, date, time, timestamp,
// timestamptz, interval, uuid}").
type Tag uint8

const (
	TagSmallInt Tag = iota
	TagInt
	TagBigInt
	TagFloat
	TagNumeric
	TagBoolean
	TagText
	TagEnum
	TagDate
	TagTime
	TagTimestamp
	TagTimestamptz
	TagInterval
	TagUUID
)

func (t Tag) String() string {
	switch t {
	case TagSmallInt:
		return "smallint"
	case TagInt:
		return "int"
	case TagBigInt:
		return "bigint"
	case TagFloat:
		return "float"
	case TagNumeric:
		return "numeric"
	case TagBoolean:
		return "boolean"
	case TagText:
		return "text"
	case TagEnum:
		return "enum"
	case TagDate:
		return "date"
	case TagTime:
		return "time"
	case TagTimestamp:
		return "timestamp"
	case TagTimestamptz:
		return "timestamptz"
	case TagInterval:
		return "interval"
	case TagUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the tag participates in int<->float promotion
// during comparison (spec §3 Cell invariant, §4.2 cell_compare).
func (t Tag) IsNumeric() bool {
	switch t {
	case TagSmallInt, TagInt, TagBigInt, TagFloat, TagNumeric:
		return true
	default:
		return false
	}
}

// IsTextLike reports whether the tag's payload owns a string (spec §3:
// "Text-like payloads own a nul-terminated string").
func (t Tag) IsTextLike() bool {
	switch t {
	case TagText, TagEnum, TagUUID:
		return true
	default:
		return false
	}
}

// ColumnTypeName maps a Tag (plus, for enums, a type name) to the SQL
// type name used in DDL and error messages.
func ColumnTypeName(tag Tag, enumTypeName string) string {
	if tag == TagEnum {
		return enumTypeName
	}
	return tag.String()
}
