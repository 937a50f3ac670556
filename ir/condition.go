package ir

import "github.com/martinsk/mskql/types"

// CondKind tags the Condition tagged union's active variant (spec §3
// "Condition tree ... variants {compare, AND, OR, NOT, multi-in}").
type CondKind uint8

const (
	CondCompare CondKind = iota
	CondAnd
	CondOr
	CondNot
	CondMultiIn
)

// CompareOp enumerates spec §3's compare operator set.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpIsNull
	OpIsNotNull
	OpIn
	OpNotIn
	OpBetween
	OpLike
	OpILike
	OpIsDistinctFrom
	OpIsNotDistinctFrom
	OpExists
	OpNotExists
	OpAny
	OpAll
)

// Condition is one node of the WHERE/HAVING predicate tree, a pooled
// tagged union (spec §3 "Condition tree").
type Condition struct {
	Kind CondKind

	// CondCompare
	ColumnName string
	Op         CompareOp
	Literal    types.Cell
	// BetweenHigh is the upper bound for OpBetween.
	BetweenHigh types.Cell
	// LHSExprIdx, when not IdxNone, overrides ColumnName: the
	// expression-as-LHS case (spec §3: "optional left-hand-side
	// expression index").
	LHSExprIdx uint32
	// RHSExprIdx, when not IdxNone, overrides Literal for OpEq/OpNe/
	// OpLt/OpGt/OpLe/OpGe/OpLike/OpILike/OpIsDistinctFrom/
	// OpIsNotDistinctFrom: the column-to-column or expr-to-expr compare
	// case (e.g. a join's "ON a.id = b.id"), symmetric with LHSExprIdx.
	RHSExprIdx uint32
	// InValuesStart/Count index into Cells for OpIn/OpNotIn/OpAny/OpAll
	// literal lists.
	InValuesStart uint32
	InValuesCount uint32
	// SubquerySQLIdx captures IN-subquery / scalar-subquery /
	// EXISTS-subquery SQL text (index into Strings), cleared to IdxNone
	// once §4.6 subquery resolution has run (idempotency, spec §4.6).
	SubquerySQLIdx uint32

	// CondAnd, CondOr: LeftIdx/RightIdx into Conditions.
	LeftIdx  uint32
	RightIdx uint32

	// CondNot: OperandIdx into Conditions.
	OperandIdx uint32

	// CondMultiIn: an IN clause with a tuple LHS, e.g. "(a,b) IN (...)".
	// ColumnNames holds the tuple's member column names; reuses
	// InValuesStart/Count for the row-major literal values (width =
	// len(ColumnNames)).
	ColumnNames []string
}

// InValues resolves an IN/ANY/ALL literal list from q's Cells pool.
func (c *Condition) InValues(q *QueryArena) []types.Cell {
	return q.Cells.Slice()[c.InValuesStart : c.InValuesStart+c.InValuesCount]
}

// ResolveAsLiteral implements the idempotent half of spec §4.6 subquery
// resolution: replace a subquery-bearing compare with an ordinary
// literal comparison and clear the SQL-string index.
func (c *Condition) ResolveAsLiteral(val types.Cell) {
	c.Literal = val
	c.SubquerySQLIdx = IdxNone
}

// ResolveAsInList implements spec §4.6's "col IN (sq)" resolution: the
// subquery's first column becomes the IN-value list.
func (q *QueryArena) ResolveAsInList(c *Condition, values []types.Cell) {
	start, count := q.Cells.Range(values)
	c.InValuesStart = start
	c.InValuesCount = count
	c.SubquerySQLIdx = IdxNone
}

// NewCompare pushes a compare Condition and returns its pool index.
func (q *QueryArena) NewCompare(column string, op CompareOp, lit types.Cell) uint32 {
	return q.Conditions.Push(Condition{
		Kind:           CondCompare,
		ColumnName:     q.Main.StoreString(column),
		Op:             op,
		Literal:        lit,
		LHSExprIdx:     IdxNone,
		RHSExprIdx:     IdxNone,
		SubquerySQLIdx: IdxNone,
	})
}

// NewAnd pushes an AND Condition and returns its pool index.
func (q *QueryArena) NewAnd(left, right uint32) uint32 {
	return q.Conditions.Push(Condition{Kind: CondAnd, LeftIdx: left, RightIdx: right})
}

// NewOr pushes an OR Condition and returns its pool index.
func (q *QueryArena) NewOr(left, right uint32) uint32 {
	return q.Conditions.Push(Condition{Kind: CondOr, LeftIdx: left, RightIdx: right})
}

// NewNot pushes a NOT Condition and returns its pool index.
func (q *QueryArena) NewNot(operand uint32) uint32 {
	return q.Conditions.Push(Condition{Kind: CondNot, OperandIdx: operand})
}

// NewMultiIn pushes a tuple-IN Condition over values (row-major, width
// len(columns)) and returns its pool index.
func (q *QueryArena) NewMultiIn(columns []string, values []types.Cell) uint32 {
	start, count := q.Cells.Range(values)
	return q.Conditions.Push(Condition{
		Kind:          CondMultiIn,
		ColumnNames:   columns,
		InValuesStart: start,
		InValuesCount: count,
	})
}
