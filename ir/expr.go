package ir

import "github.com/martinsk/mskql/types"

// ExprKind tags the Expr tagged union's active variant (spec §3
// "Expression AST ... variants {literal, column-ref, binary-op,
// unary-op, function-call, case-when, subquery}").
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprColumnRef
	ExprBinaryOp
	ExprUnaryOp
	ExprFunctionCall
	ExprCaseWhen
	ExprSubquery
)

// BinOp enumerates the binary operators spec §3 lists: "+ − × ÷ mod ||".
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinConcat
)

// FuncName enumerates the builtin scalar functions spec §3 names:
// "COALESCE NULLIF GREATEST LEAST UPPER LOWER LENGTH TRIM SUBSTRING".
type FuncName uint8

const (
	FuncCoalesce FuncName = iota
	FuncNullIf
	FuncGreatest
	FuncLeast
	FuncUpper
	FuncLower
	FuncLength
	FuncTrim
	FuncSubstring
)

// CaseWhenBranch is one WHEN/THEN arm of a CASE expression.
type CaseWhenBranch struct {
	CondIdx uint32 // index into Conditions
	ThenIdx uint32 // index into Exprs
}

// Expr is one node of the expression AST, a pooled tagged union (spec §3
// "Expression AST"). Only the fields relevant to Kind are meaningful;
// unused fields hold their zero value / IdxNone.
type Expr struct {
	Kind ExprKind

	// ExprLiteral
	Literal types.Cell

	// ExprColumnRef: raw column text as written (bare, alias-qualified,
	// or table-qualified); resolved to a schema position at plan/exec
	// time via Schema.FindColumn, not here.
	ColumnName string

	// ExprBinaryOp
	Op       BinOp
	LeftIdx  uint32 // index into Exprs
	RightIdx uint32 // index into Exprs

	// ExprUnaryOp (only unary minus is in the grammar, spec §6)
	OperandIdx uint32 // index into Exprs

	// ExprFunctionCall
	Func      FuncName
	ArgsStart uint32 // start offset into ArgIndices
	ArgsCount uint32

	// ExprCaseWhen
	BranchesStart uint32 // start offset into CaseWhenBranches
	BranchesCount uint32
	ElseIdx       uint32 // index into Exprs, or IdxNone

	// ExprSubquery: captured SQL text, resolved to a literal before
	// execution (spec §4.6 subquery resolution).
	SubquerySQLIdx uint32 // index into Strings, or IdxNone once resolved
}

// Args resolves a function-call Expr's argument expression indices from
// q's ArgIndices pool.
func (e *Expr) Args(q *QueryArena) []uint32 {
	return q.ArgIndices.Slice()[e.ArgsStart : e.ArgsStart+e.ArgsCount]
}

// Branches resolves a CASE expression's WHEN/THEN arms from q's
// CaseWhenBranches pool.
func (e *Expr) Branches(q *QueryArena) []CaseWhenBranch {
	return q.CaseWhenBranches.Slice()[e.BranchesStart : e.BranchesStart+e.BranchesCount]
}

// NewLiteral pushes a literal Expr and returns its pool index.
func (q *QueryArena) NewLiteral(c types.Cell) uint32 {
	return q.Exprs.Push(Expr{Kind: ExprLiteral, Literal: c})
}

// NewColumnRef pushes a column-reference Expr and returns its pool index.
func (q *QueryArena) NewColumnRef(name string) uint32 {
	return q.Exprs.Push(Expr{Kind: ExprColumnRef, ColumnName: q.Main.StoreString(name)})
}

// NewBinaryOp pushes a binary-operator Expr and returns its pool index.
func (q *QueryArena) NewBinaryOp(op BinOp, left, right uint32) uint32 {
	return q.Exprs.Push(Expr{Kind: ExprBinaryOp, Op: op, LeftIdx: left, RightIdx: right})
}

// NewUnaryMinus pushes a unary-minus Expr and returns its pool index.
func (q *QueryArena) NewUnaryMinus(operand uint32) uint32 {
	return q.Exprs.Push(Expr{Kind: ExprUnaryOp, OperandIdx: operand})
}

// NewFunctionCall pushes a function-call Expr over args (already pushed
// to Exprs) and returns its pool index.
func (q *QueryArena) NewFunctionCall(fn FuncName, args []uint32) uint32 {
	start, count := q.ArgIndices.Range(args)
	return q.Exprs.Push(Expr{Kind: ExprFunctionCall, Func: fn, ArgsStart: start, ArgsCount: count})
}

// NewCaseWhen pushes a CASE expression over branches and an optional
// else-expression index (IdxNone if no ELSE).
func (q *QueryArena) NewCaseWhen(branches []CaseWhenBranch, elseIdx uint32) uint32 {
	start, count := q.CaseWhenBranches.Range(branches)
	return q.Exprs.Push(Expr{Kind: ExprCaseWhen, BranchesStart: start, BranchesCount: count, ElseIdx: elseIdx})
}

// NewSubqueryExpr pushes a scalar-subquery Expr capturing sql's text.
func (q *QueryArena) NewSubqueryExpr(sql string) uint32 {
	return q.Exprs.Push(Expr{Kind: ExprSubquery, SubquerySQLIdx: q.CaptureSQL(sql)})
}
