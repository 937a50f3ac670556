// Package errkind defines the SQLSTATE-bearing error classes used across
// the engine, following the teacher's auth package convention of building
// sentinel errors with gopkg.in/src-d/go-errors.v1's errors.NewKind.
package errkind

import (
	goerrors "gopkg.in/src-d/go-errors.v1"
)

// SQLState-bearing kinds. Each Kind formats a human message; the wire
// layer maps a Kind back to a SQLSTATE via SQLState.
var (
	// Syntax is returned by the parser for input it cannot make sense of.
	Syntax = goerrors.NewKind("syntax error or unsupported statement: %s")

	// Execution covers semantic failures during planning or execution:
	// unknown table/column, type mismatch, join resolution failure.
	Execution = goerrors.NewKind("%s")

	// NotFoundTable, NotFoundColumn, NotFoundType, NotFoundIndex are the
	// not-found family (execution class per spec §7).
	NotFoundTable  = goerrors.NewKind("table not found: %s")
	NotFoundColumn = goerrors.NewKind("column not found: %s")
	NotFoundType   = goerrors.NewKind("type not found: %s")
	NotFoundIndex  = goerrors.NewKind("index not found: %s")

	// ConstraintViolation covers NOT NULL / UNIQUE violations.
	ConstraintViolation = goerrors.NewKind("constraint violation: %s")

	// Protocol is used by the wire layer. An oversize message closes the
	// connection without an ErrorResponse; an unsupported frontend
	// message is answered with an ErrorResponse and the connection stays
	// open.
	Protocol = goerrors.NewKind("protocol violation: %s")
)

// SQLState is the 5-character PostgreSQL error code for a Kind, used by
// the wire layer to build an ErrorResponse. Kinds not present here map to
// "42000" (Execution), the catch-all semantic error class.
const (
	StateSyntax    = "42601"
	StateExecution = "42000"
)

// SQLState returns the SQLSTATE for err, defaulting to StateExecution for
// any error that isn't a Syntax kind. Errors that aren't one of this
// package's kinds at all still get StateExecution: every user-visible
// failure from the core is one of "syntax" or "semantic" per spec §7.
func SQLState(err error) string {
	if err == nil {
		return ""
	}
	if Syntax.Is(err) {
		return StateSyntax
	}
	return StateExecution
}
