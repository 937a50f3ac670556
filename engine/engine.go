// Package engine implements the statement dispatcher (spec §4.14
// db_exec): CTE materialization, subquery resolution, FROM-subquery
// handling, planner-first-then-legacy-fallback SELECT execution,
// set-op combination, and the INSERT/UPDATE/DELETE/DDL/transaction
// verbs that sit above the block and row executors. It is the one
// package that imports both blockexec and rowexec, and it implements
// rowexec.StatementExecutor so the row executor can recurse into full
// statement dispatch for LATERAL joins and FROM/WHERE subqueries.
package engine

import (
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/martinsk/mskql/blockexec"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/parser"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/rowexec"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

// DefaultMaxRecursiveCTEIterations bounds the recursive-CTE fixpoint
// loop (spec §4.14 step 1: "iterate until a fixed point or a safety cap
// (1000 iterations)"). cmd/mskqld's YAML config may override it per
// Engine instance (SPEC_FULL.md A.1).
const DefaultMaxRecursiveCTEIterations = 1000

// Engine owns a catalog and dispatches parsed statements against it. It
// is not safe for concurrent use by multiple goroutines; the wire
// server (C13) is single-threaded per spec §4.15 and serializes access.
type Engine struct {
	DB     *storage.Database
	Log    *logrus.Entry
	Tracer opentracing.Tracer

	// MaxRecursiveCTEIterations overrides DefaultMaxRecursiveCTEIterations
	// when positive.
	MaxRecursiveCTEIterations int
}

// New returns an Engine over db, logging through log (a nil log falls
// back to logrus's standard logger, matching the teacher's
// ctx.GetLogger() convention of always having a usable logger).
func New(db *storage.Database, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		DB:                        db,
		Log:                       log,
		Tracer:                    opentracing.GlobalTracer(),
		MaxRecursiveCTEIterations: DefaultMaxRecursiveCTEIterations,
	}
}

// maxCTEIterations returns the effective recursive-CTE iteration cap.
func (e *Engine) maxCTEIterations() int {
	if e.MaxRecursiveCTEIterations > 0 {
		return e.MaxRecursiveCTEIterations
	}
	return DefaultMaxRecursiveCTEIterations
}

var _ rowexec.StatementExecutor = (*Engine)(nil)

// ExecSQL parses sql and executes the single statement it contains,
// implementing rowexec.StatementExecutor for the row executor's
// subquery/LATERAL recursion (spec §4.8, §4.6, §9).
func (e *Engine) ExecSQL(sql string) (types.Schema, []row.Row, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, nil, err
	}
	return e.Exec(stmt)
}

// Exec dispatches a parsed statement by kind (spec §4.14). Every call
// opens a "db.exec" span (SPEC_FULL.md A.2), following opentracing-go's
// standard StartSpan/Finish idiom.
func (e *Engine) Exec(stmt *ir.Statement) (types.Schema, []row.Row, error) {
	span := e.Tracer.StartSpan("db.exec")
	span.SetTag("stmt_kind", int(stmt.Kind))
	defer span.Finish()

	var (
		schema types.Schema
		rows   []row.Row
		n      int
		err    error
		kind   string
	)

	switch stmt.Kind {
	case ir.StmtSelect:
		kind = "select"
		schema, rows, err = e.execSelect(span, stmt.Arena, stmt.Select)
		n = len(rows)
	case ir.StmtInsert:
		kind = "insert"
		schema, n, rows, err = e.execInsert(stmt.Arena, stmt.Insert)
	case ir.StmtUpdate:
		kind = "update"
		schema, n, rows, err = e.execUpdate(stmt.Arena, stmt.Update)
	case ir.StmtDelete:
		kind = "delete"
		schema, n, rows, err = e.execDelete(stmt.Arena, stmt.Delete)
	case ir.StmtCreateTable:
		kind = "create_table"
		err = e.execCreateTable(stmt.CreateTable)
	case ir.StmtDropTable:
		kind = "drop_table"
		err = e.DB.DropTable(stmt.DropTable.TableName)
	case ir.StmtCreateIndex:
		kind = "create_index"
		ci := stmt.CreateIndex
		_, err = e.DB.CreateIndex(ci.TableName, ci.IndexName, ci.Columns, ci.Unique)
	case ir.StmtDropIndex:
		kind = "drop_index"
		err = e.DB.DropIndex(stmt.DropIndex.IndexName)
	case ir.StmtCreateType:
		kind = "create_type"
		ct := stmt.CreateType
		err = e.DB.CreateType(&types.EnumType{Name: ct.TypeName, Values: ct.Values})
	case ir.StmtDropType:
		kind = "drop_type"
		err = e.DB.DropType(stmt.DropType.TypeName)
	case ir.StmtAlterTable:
		kind = "alter_table"
		err = e.execAlterTable(stmt.AlterTable)
	case ir.StmtBegin:
		kind = "begin"
		e.DB.Begin()
	case ir.StmtCommit:
		kind = "commit"
		e.DB.Commit()
	case ir.StmtRollback:
		kind = "rollback"
		e.DB.Rollback()
	}

	if err != nil {
		span.SetTag("error", true)
		e.Log.WithFields(logrus.Fields{"stmt_kind": kind}).WithError(err).Warn("statement failed")
	} else {
		e.Log.WithFields(logrus.Fields{"stmt_kind": kind, "rows_affected": n}).Debug("statement executed")
	}
	return schema, rows, err
}

// runPlanned drives a shape planner.Build produced, via blockexec.
func runPlanned(arena *ir.QueryArena, db *storage.Database, root uint32) (types.Schema, []row.Row, error) {
	return blockexec.Run(&blockexec.Ctx{Arena: arena, DB: db}, root)
}

// runLegacy drives sel through the row-at-a-time executor, wiring e as
// the StatementExecutor so LATERAL joins and FROM/WHERE subqueries can
// recurse back into full statement dispatch.
func (e *Engine) runLegacy(arena *ir.QueryArena, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	return rowexec.Select(&rowexec.Ctx{Arena: arena, DB: e.DB, Exec: e}, sel)
}
