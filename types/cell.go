package types

import (
	"fmt"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cast"
)

// TextOwner distinguishes a cell whose text is owned by a table's row
// store (persisted, freed only by DROP TABLE / row deletion) from one
// whose text is owned by a query arena (transient, freed in bulk with the
// arena). Spec §9 "Cell text ownership" asks for this to be unambiguous;
// the reference source comingles the two.
type TextOwner uint8

const (
	// OwnerNone is used for non-text cells; the field is meaningless.
	OwnerNone TextOwner = iota
	// OwnerTable means the text lives in the table's row store.
	OwnerTable
	// OwnerArena means the text was allocated from a query arena and
	// must not outlive it unless the arena's ownership is transferred
	// to the caller (spec §4.1: "result text... caller may adopt as
	// owner").
	OwnerArena
)

// Cell is a tagged value: a type tag plus a null flag plus a value
// payload (spec §3). Numeric payloads are by-value; text-like payloads
// hold a Go string directly (Go strings are immutable views, so no
// separate "owned pointer" representation is needed — see SPEC_FULL.md
// A.3 on the stringview.h -> string translation). Owner records who is
// responsible for the text's lifetime for bookkeeping parity with the
// reference design; it has no effect on Go's GC but documents intent and
// lets tests assert on it.
type Cell struct {
	Tag    Tag
	Null   bool
	Owner  TextOwner
	Int    int64   // smallint/int/bigint
	Float  float64 // float/numeric (numeric kept as float64; see DESIGN.md)
	Bool   bool
	Text   string // text/enum/uuid payload
	Time   time.Time
	Months int // interval: whole months component
	Days   int // interval: days component
	Nanos  int64
}

// Null returns a null cell of the given tag.
func NullCell(tag Tag) Cell {
	return Cell{Tag: tag, Null: true}
}

func IntCell(tag Tag, v int64) Cell {
	return Cell{Tag: tag, Int: v}
}

func FloatCell(tag Tag, v float64) Cell {
	return Cell{Tag: tag, Float: v}
}

func BoolCell(v bool) Cell {
	return Cell{Tag: TagBoolean, Bool: v}
}

func TextCell(tag Tag, s string, owner TextOwner) Cell {
	return Cell{Tag: tag, Text: s, Owner: owner}
}

func TimeCell(tag Tag, t time.Time) Cell {
	return Cell{Tag: tag, Time: t}
}

// NewUUID returns a fresh UUID cell, used for DEFAULT gen_random_uuid()
// style defaults (spec §6 column types includes UUID).
func NewUUID() Cell {
	return Cell{Tag: TagUUID, Text: uuid.NewV4().String(), Owner: OwnerArena}
}

// AsFloat widens any numeric cell to float64, for mixed-type arithmetic
// (spec §4.2/§6: binary ops promote int/float operands).
func (c Cell) AsFloat() float64 {
	if c.Tag == TagFloat || c.Tag == TagNumeric {
		return c.Float
	}
	return float64(c.Int)
}

// AsText renders a cell's value as display text, used by the '||'
// concatenation operator (spec §6 expression grammar) for non-text
// operands.
func (c Cell) AsText() string {
	switch {
	case c.Tag.IsTextLike():
		return c.Text
	case c.Tag == TagFloat || c.Tag == TagNumeric:
		return fmt.Sprintf("%g", c.Float)
	case c.Tag == TagBoolean:
		return fmt.Sprintf("%t", c.Bool)
	case c.Tag.IsNumeric():
		return fmt.Sprintf("%d", c.Int)
	default:
		return fmt.Sprintf("%v", c.Time)
	}
}

// IsNullLike reports the invariant from spec §3: "if the tag is
// text-like and the payload pointer is absent, the cell is null".
func (c Cell) IsNullLike() bool {
	if c.Null {
		return true
	}
	return c.Tag.IsTextLike() && c.Text == "" && c.Owner == OwnerNone
}

// CellCopy deep-copies src into a new Cell, tagging the text as owned by
// owner (spec §4.2 cell_copy: "deep-copies text"). For Go strings this is
// a value copy; Owner is set explicitly so the copy's lifetime
// expectations are self-documenting.
func CellCopy(src Cell, owner TextOwner) Cell {
	dst := src
	if src.Tag.IsTextLike() {
		dst.Owner = owner
	}
	return dst
}

// numericValue returns a cell's numeric value promoted to float64, and
// whether the tag is numeric at all.
func numericValue(c Cell) (float64, bool) {
	switch c.Tag {
	case TagSmallInt, TagInt, TagBigInt:
		return float64(c.Int), true
	case TagFloat, TagNumeric:
		return c.Float, true
	default:
		return 0, false
	}
}

// ErrIncomparable is returned by Compare for mixed non-comparable types
// (spec §4.2: "error sentinel for mixed non-comparable types").
type ErrIncomparable struct {
	A, B Tag
}

func (e *ErrIncomparable) Error() string {
	return fmt.Sprintf("cannot compare %s with %s", e.A, e.B)
}

// Compare is a three-way comparison with int<->float promotion and text
// compared by byte order (spec §4.2 cell_compare). NULLs are ordered
// first with respect to non-null values of the same comparison, by SQL
// convention (NULL has no defined order relative to other values, so
// callers that need an ORDER BY ordering should consult NullsFirst
// instead of relying on a numeric result from Compare).
func Compare(a, b Cell) (int, error) {
	if a.Null && b.Null {
		return 0, nil
	}
	if a.Null {
		return -1, nil
	}
	if b.Null {
		return 1, nil
	}

	if av, aok := numericValue(a); aok {
		if bv, bok := numericValue(b); bok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	if a.Tag != b.Tag {
		if a.Tag.IsTextLike() && b.Tag.IsTextLike() {
			return strings.Compare(a.Text, b.Text), nil
		}
		return 0, &ErrIncomparable{A: a.Tag, B: b.Tag}
	}

	switch a.Tag {
	case TagBoolean:
		switch {
		case a.Bool == b.Bool:
			return 0, nil
		case !a.Bool:
			return -1, nil
		default:
			return 1, nil
		}
	case TagText, TagEnum, TagUUID:
		return strings.Compare(a.Text, b.Text), nil
	case TagDate, TagTime, TagTimestamp, TagTimestamptz:
		switch {
		case a.Time.Before(b.Time):
			return -1, nil
		case a.Time.After(b.Time):
			return 1, nil
		default:
			return 0, nil
		}
	case TagInterval:
		av := intervalOrder(a)
		bv := intervalOrder(b)
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, &ErrIncomparable{A: a.Tag, B: b.Tag}
	}
}

func intervalOrder(c Cell) int64 {
	return int64(c.Months)*2592000_000000000 + int64(c.Days)*86400_000000000 + c.Nanos
}

// Equal reports cell_equal: Compare == 0, with incomparable types
// treated as unequal instead of erroring (spec: "Two cells compare equal
// iff both null, or both non-null with equal typed value after
// int<->float promotion").
func Equal(a, b Cell) bool {
	n, err := Compare(a, b)
	return err == nil && n == 0
}

// CoerceToTag converts v (typically a parsed literal value) into a Cell
// of the target tag, using spf13/cast for the numeric/string coercions
// the legacy executor and literal-to-cell conversion need (SPEC_FULL.md
// A.2 domain stack: "numeric coercion helpers").
func CoerceToTag(v interface{}, tag Tag) (Cell, error) {
	if v == nil {
		return NullCell(tag), nil
	}
	switch tag {
	case TagSmallInt, TagInt, TagBigInt:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return Cell{}, err
		}
		return IntCell(tag, i), nil
	case TagFloat, TagNumeric:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return Cell{}, err
		}
		return FloatCell(tag, f), nil
	case TagBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return Cell{}, err
		}
		return BoolCell(b), nil
	case TagText, TagEnum, TagUUID:
		s, err := cast.ToStringE(v)
		if err != nil {
			return Cell{}, err
		}
		return TextCell(tag, s, OwnerArena), nil
	case TagDate, TagTime, TagTimestamp, TagTimestamptz:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return Cell{}, err
		}
		return TimeCell(tag, t), nil
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return Cell{}, err
		}
		return TextCell(tag, s, OwnerArena), nil
	}
}
