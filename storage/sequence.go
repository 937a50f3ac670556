package storage

// Sequence backs SERIAL/BIGSERIAL columns (SPEC_FULL.md A.3, grounded on
// _examples/original_source/src/database.h's struct sequence). Every
// SERIAL/BIGSERIAL column implicitly owns one, named
// "<table>_<column>_seq", created at CREATE TABLE time.
type Sequence struct {
	Name         string
	CurrentValue int64
	Increment    int64
	MinValue     int64
	MaxValue     int64
	HasBeenCalled bool
}

// NewSequence returns a sequence starting one increment before its
// minimum, matching Postgres semantics where the first nextval() call
// returns MinValue.
func NewSequence(name string, min, max, increment int64) *Sequence {
	return &Sequence{
		Name:      name,
		Increment: increment,
		MinValue:  min,
		MaxValue:  max,
		CurrentValue: min - increment,
	}
}

// NextVal advances and returns the sequence's next value.
func (s *Sequence) NextVal() int64 {
	if !s.HasBeenCalled {
		s.CurrentValue = s.MinValue
		s.HasBeenCalled = true
		return s.CurrentValue
	}
	s.CurrentValue += s.Increment
	if s.CurrentValue > s.MaxValue {
		s.CurrentValue = s.MinValue
	}
	return s.CurrentValue
}

// CurrVal returns the most recently issued value without advancing.
// Calling it before any NextVal is a usage error left to the caller
// (the engine) to surface, mirroring Postgres's "currval is not yet
// defined in this session" error.
func (s *Sequence) CurrVal() (int64, bool) {
	return s.CurrentValue, s.HasBeenCalled
}

// SequenceNameFor returns the implicit sequence name for a SERIAL
// column, "<table>_<column>_seq".
func SequenceNameFor(table, column string) string {
	return table + "_" + column + "_seq"
}
