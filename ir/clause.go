package ir

// JoinType enumerates the join kinds spec §4.8 and §6 name.
type JoinType uint8

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinLateral
)

// JoinInfo is one entry of a FROM clause's join chain (spec §4.8
// exec_join: "for each join_info in order").
type JoinInfo struct {
	Type JoinType
	// TableName is the right-hand relation name (a base table or a
	// materialized subquery/CTE alias).
	TableName string
	Alias     string
	// CondIdx is the ON condition (IdxNone when USING or NATURAL).
	CondIdx uint32
	// UsingColumns holds the USING (...) column list, empty otherwise.
	UsingColumns []string
	Natural      bool
	// LateralSQLIdx captures the LATERAL subquery's SQL text for the
	// per-outer-row re-parse described in spec §4.8 and §9.
	LateralSQLIdx uint32
}

// CTE is one WITH clause entry (spec §6 "WITH [RECURSIVE] name AS (…)").
type CTE struct {
	Name       string
	Recursive  bool
	ColumnName string // single-column shorthand, e.g. WITH r(n) AS (...)
	// BodySQLIdx captures the full CTE body text; for a recursive CTE
	// the dispatcher splits it at the top-level UNION [ALL] per spec
	// §4.14 step 1.
	BodySQLIdx uint32
}

// SetClauseExpr tags whether a SET clause's value is a literal-bearing
// expression or DEFAULT.
type SetClauseExpr uint8

const (
	SetExprValue SetClauseExpr = iota
	SetExprDefault
)

// SetClause is one "col = expr" entry of an UPDATE's SET list (spec §6
// UPDATE grammar).
type SetClause struct {
	ColumnName string
	Kind       SetClauseExpr
	ExprIdx    uint32 // into Exprs, meaningful iff Kind == SetExprValue
}

// OrderByItem is one ORDER BY key (spec §6: "col [ASC|DESC] [NULLS
// FIRST|LAST]").
type OrderByItem struct {
	ColumnName string
	Desc       bool
	NullsFirst bool
	// HasNullsClause distinguishes an explicit NULLS FIRST/LAST from the
	// direction-dependent default (spec §4.12 sort: "NULLs last for ASC,
	// first for DESC unless overridden").
	HasNullsClause bool
}

// SelectColKind tags what a SelectColumn projects (spec §6: "column
// list of column-refs, aliased expressions, *, aggregates, window
// functions").
type SelectColKind uint8

const (
	SelectColStar SelectColKind = iota
	SelectColColumnRef
	SelectColExpr
	SelectColAggregate
	SelectColWindow
)

// SelectColumn is one item of a SELECT projection list.
type SelectColumn struct {
	Kind SelectColKind
	// Alias is the "AS alias" name, empty if none (output column naming
	// per spec §4.15: "prefer aliases > column refs > aggregate / window
	// function defaults").
	Alias string
	// ColumnName is set for SelectColColumnRef.
	ColumnName string
	// ExprIdx is set for SelectColExpr, into Exprs.
	ExprIdx uint32
	// AggIdx is set for SelectColAggregate, into Aggregates.
	AggIdx uint32
	// WinIdx is set for SelectColWindow, into Aggregates (AggExpr.IsWindow
	// is true for every entry reachable this way).
	WinIdx uint32
}

// SelectExpr is a standalone projected expression used by expr_project
// (spec §4.12 "expr_project(child, expr_indices, table)").
type SelectExpr struct {
	ExprIdx uint32
	Alias   string
}

// AggFunc enumerates the aggregate/window functions spec §4.9 and §4.12
// name.
type AggFunc uint8

const (
	AggSum AggFunc = iota
	AggCount
	AggCountStar
	AggMin
	AggMax
	AggAvg
	AggRowNumber
	AggRank
	AggDenseRank
	AggNTile
	AggPercentRank
	AggCumeDist
	AggLag
	AggLead
	AggFirstValue
	AggLastValue
	AggNthValue
)

// FrameBound enumerates the window-frame bound kinds spec §4.12 lists.
type FrameBound uint8

const (
	FrameUnboundedPreceding FrameBound = iota
	FrameUnboundedFollowing
	FrameCurrentRow
	FrameNPreceding
	FrameNFollowing
)

// WindowFrame is a window function's frame clause as parsed, meaningful
// only when HasFrame is true. Neither executor reads it: a windowed
// SUM/COUNT/AVG always covers the whole partition, with or without an
// ORDER BY or an explicit frame.
type WindowFrame struct {
	HasFrame bool
	Start    FrameBound
	End      FrameBound
	StartN   int
	EndN     int
}

// AggExpr is an aggregate or window function call (spec §4.9, §4.12).
// ColumnName is the argument column; empty for COUNT(*). IsWindow
// distinguishes a plain GROUP BY aggregate from an OVER(...) window
// function: PartitionBy/OrderBy/Frame are meaningful only when true.
type AggExpr struct {
	Func       AggFunc
	ColumnName string
	IsWindow   bool
	PartitionBy []string
	OrderBy     []OrderByItem
	Frame       WindowFrame
	// IntArg holds the function's literal integer argument, when
	// applicable: NTILE's bucket count, LAG/LEAD's offset, NTH_VALUE's N.
	IntArg int
}
