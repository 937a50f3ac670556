// Package ir is the arena-backed query intermediate representation (spec
// §3 "Query arena", §6 expression grammar): the typed statement tree a
// parser produces and the planner/executor consume, with every
// cross-reference a 32-bit pool index instead of a pointer (spec §9
// "Cyclic / graph structures").
package ir

import (
	"github.com/martinsk/mskql/arena"
	"github.com/martinsk/mskql/types"
)

// IdxNone re-exports arena.IdxNone under the IR's own name for callers
// that only import ir.
const IdxNone = arena.IdxNone

// QueryArena owns one statement's IR: three independent bump arenas
// (spec §4.1 "A query holds three independent arenas") plus one flat
// Pool per node kind the reference's struct query_arena lists. All
// cross-references between pooled nodes are indices into these pools,
// never pointers — the design note in spec §9 that turns the
// condition/expression/plan trees into flat pools with 32-bit indices.
type QueryArena struct {
	// Main holds long-lived strings and structural nodes; ResultText is
	// freed only when the result set is freed (or adopted by the
	// caller); Scratch is reset between plan-node executions for
	// transient buffers (spec §4.1).
	Main       *arena.Arena
	ResultText *arena.Arena
	Scratch    *arena.Arena

	Exprs            arena.Pool[Expr]
	Conditions       arena.Pool[Condition]
	Cells            arena.Pool[types.Cell]
	Strings          arena.Pool[string]
	CaseWhenBranches arena.Pool[CaseWhenBranch]
	Joins            arena.Pool[JoinInfo]
	CTEs             arena.Pool[CTE]
	SetClauses       arena.Pool[SetClause]
	OrderByItems     arena.Pool[OrderByItem]
	SelectCols       arena.Pool[SelectColumn]
	SelectExprs      arena.Pool[SelectExpr]
	Aggregates       arena.Pool[AggExpr]
	Rows             arena.Pool[[]types.Cell]
	Columns          arena.Pool[types.Column]
	ArgIndices       arena.Pool[uint32]
	PlanNodes        arena.Pool[PlanNode]

	firstErr error
}

// New returns a freshly allocated, empty query arena, created per parse
// and discarded (or Reset) between statements (spec §3 "Lifecycles").
func New() *QueryArena {
	return &QueryArena{
		Main:       arena.New(),
		ResultText: arena.New(),
		Scratch:    arena.New(),
	}
}

// Reset rewinds every sub-arena and truncates every pool, letting a
// connection reuse one QueryArena across statements without
// re-allocating backing slabs (spec §4.1 Reset semantics applied at the
// query-arena level).
func (q *QueryArena) Reset() {
	q.Main.Reset()
	q.ResultText.Reset()
	q.Scratch.Reset()
	q.Exprs.Reset()
	q.Conditions.Reset()
	q.Cells.Reset()
	q.Strings.Reset()
	q.CaseWhenBranches.Reset()
	q.Joins.Reset()
	q.CTEs.Reset()
	q.SetClauses.Reset()
	q.OrderByItems.Reset()
	q.SelectCols.Reset()
	q.SelectExprs.Reset()
	q.Aggregates.Reset()
	q.Rows.Reset()
	q.Columns.Reset()
	q.ArgIndices.Reset()
	q.PlanNodes.Reset()
	q.firstErr = nil
}

// SetError records err if this is the first error reported against this
// arena (spec §7 "first-error-wins per arena"); subsequent calls are
// no-ops. Matches the reference's arena_set_error.
func (q *QueryArena) SetError(err error) {
	if q.firstErr == nil && err != nil {
		q.firstErr = err
	}
}

// Err returns the first error reported against this arena, or nil.
func (q *QueryArena) Err() error {
	return q.firstErr
}

// CaptureSQL stores a substring of the original statement text in the
// arena's string pool, returning its pool index (spec §9 "Ownership of
// SQL-text fragments": subquery SQL is captured as a substring and
// stored in a dedicated string pool owned by the arena).
func (q *QueryArena) CaptureSQL(text string) uint32 {
	return q.Strings.Push(q.Main.StoreString(text))
}
