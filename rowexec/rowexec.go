// Package rowexec is the legacy row-at-a-time executor (spec §4.13): the
// full-generality fallback the dispatcher reaches for whenever
// planner.Build declines a SELECT's shape, plus the UPDATE/DELETE row
// selection and RETURNING capture spec §4.14 assigns to "the legacy
// executor". It reuses package eval for every predicate/expression
// evaluation, exactly as blockexec's filter fallback does, so the two
// engines agree on semantics for any query shape both can run (spec §8).
package rowexec

import (
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// StatementExecutor lets rowexec recurse into a full statement dispatch
// (LATERAL's per-outer-row re-parse-and-execute, spec §4.8/§9) without
// importing package engine, which would create an import cycle (engine
// is the one package that imports rowexec).
type StatementExecutor interface {
	ExecSQL(sql string) (types.Schema, []row.Row, error)
}

// Ctx carries the query arena, catalog, and statement-dispatch callback
// a legacy execution runs against.
type Ctx struct {
	Arena *ir.QueryArena
	DB    *storage.Database
	Exec  StatementExecutor
}
