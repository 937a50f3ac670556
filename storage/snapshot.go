package storage

import "github.com/sirupsen/logrus"

// snapshot is the deep-copied pre-transaction state restored on
// ROLLBACK (spec §4.7 transactions): every table (rows, schema,
// indexes) and every sequence's counter. Enum types are not captured,
// so a CREATE/DROP TYPE inside a rolled-back transaction stays in effect.
type snapshot struct {
	tables    map[string]*Table
	sequences map[string]Sequence
}

// Begin deep-copies the live catalog into a snapshot (spec §4.7 BEGIN).
// Nested BEGIN is tolerated, not rejected: per spec §4.7's "forbid nested
// transactions with a tolerant warning", a BEGIN while already inside a
// transaction is logged and otherwise ignored rather than erroring the
// client's session.
func (d *Database) Begin() {
	if d.snapshot != nil {
		logrus.WithField("database", d.Name).Warn("BEGIN issued while already inside a transaction; ignoring")
		return
	}
	snap := &snapshot{
		tables:    make(map[string]*Table, len(d.Tables)),
		sequences: make(map[string]Sequence, len(d.Sequences)),
	}
	for name, t := range d.Tables {
		snap.tables[name] = t.DeepCopy()
	}
	for name, s := range d.Sequences {
		snap.sequences[name] = *s
	}
	d.snapshot = snap
}

// Commit discards the pending snapshot, making live state durable for
// the rest of the session (spec §4.7 COMMIT).
func (d *Database) Commit() {
	if d.snapshot == nil {
		logrus.WithField("database", d.Name).Warn("COMMIT issued outside a transaction; ignoring")
		return
	}
	d.snapshot = nil
}

// Rollback replaces live state with the snapshot taken at Begin (spec
// §4.7 ROLLBACK). Enum types are not versioned by the snapshot: DDL on
// types inside a transaction is rare enough in the reference design that
// only table and sequence state round-trips; a CREATE/DROP TYPE issued
// inside a rolled-back transaction is a known, documented divergence
// (see DESIGN.md).
func (d *Database) Rollback() {
	if d.snapshot == nil {
		logrus.WithField("database", d.Name).Warn("ROLLBACK issued outside a transaction; ignoring")
		return
	}
	d.Tables = d.snapshot.tables
	d.Sequences = make(map[string]*Sequence, len(d.snapshot.sequences))
	for name, s := range d.snapshot.sequences {
		cp := s
		d.Sequences[name] = &cp
	}
	d.snapshot = nil
}
