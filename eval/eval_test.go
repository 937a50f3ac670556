package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

func schemaAB() types.Schema {
	return types.Schema{
		{Name: "a", Tag: types.TagInt},
		{Name: "b", Tag: types.TagText},
	}
}

func TestExprLiteralAndColumnRef(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 5), types.TextCell(types.TagText, "hi", types.OwnerArena)}

	lit := q.NewLiteral(types.IntCell(types.TagInt, 9))
	v, err := Expr(q, schema, row, lit)
	require.NoError(t, err)
	require.Equal(t, int64(9), v.Int)

	ref := q.NewColumnRef("b")
	v, err = Expr(q, schema, row, ref)
	require.NoError(t, err)
	require.Equal(t, "hi", v.Text)
}

func TestExprBinaryOpArithmetic(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 10), types.TextCell(types.TagText, "x", types.OwnerArena)}

	l := q.NewColumnRef("a")
	r := q.NewLiteral(types.IntCell(types.TagInt, 3))
	expr := q.NewBinaryOp(ir.BinAdd, l, r)
	v, err := Expr(q, schema, row, expr)
	require.NoError(t, err)
	require.Equal(t, int64(13), v.Int)
}

func TestExprBinaryOpDivisionByZero(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 10), types.TextCell(types.TagText, "x", types.OwnerArena)}

	l := q.NewColumnRef("a")
	r := q.NewLiteral(types.IntCell(types.TagInt, 0))
	expr := q.NewBinaryOp(ir.BinDiv, l, r)
	_, err := Expr(q, schema, row, expr)
	require.Error(t, err)
}

func TestExprBinaryOpNullPropagates(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.NullCell(types.TagInt), types.TextCell(types.TagText, "x", types.OwnerArena)}

	l := q.NewColumnRef("a")
	r := q.NewLiteral(types.IntCell(types.TagInt, 1))
	expr := q.NewBinaryOp(ir.BinAdd, l, r)
	v, err := Expr(q, schema, row, expr)
	require.NoError(t, err)
	require.True(t, v.Null)
}

func TestExprConcat(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "x", types.OwnerArena)}

	l := q.NewLiteral(types.TextCell(types.TagText, "foo", types.OwnerArena))
	r := q.NewLiteral(types.TextCell(types.TagText, "bar", types.OwnerArena))
	expr := q.NewBinaryOp(ir.BinConcat, l, r)
	v, err := Expr(q, schema, row, expr)
	require.NoError(t, err)
	require.Equal(t, "foobar", v.Text)
}

func TestExprUnaryMinus(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 7), types.TextCell(types.TagText, "x", types.OwnerArena)}

	operand := q.NewColumnRef("a")
	expr := q.NewUnaryMinus(operand)
	v, err := Expr(q, schema, row, expr)
	require.NoError(t, err)
	require.Equal(t, int64(-7), v.Int)
}

func TestExprFunctionCoalesce(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.NullCell(types.TagInt), types.TextCell(types.TagText, "x", types.OwnerArena)}

	n := q.NewLiteral(types.NullCell(types.TagInt))
	lit := q.NewLiteral(types.IntCell(types.TagInt, 42))
	fn := q.NewFunctionCall(ir.FuncCoalesce, []uint32{n, lit})
	v, err := Expr(q, schema, row, fn)
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int)
}

func TestExprFunctionUpperLowerTrimLength(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, " Hi ", types.OwnerArena)}

	b := q.NewColumnRef("b")

	upper := q.NewFunctionCall(ir.FuncUpper, []uint32{b})
	v, _ := Expr(q, schema, row, upper)
	require.Equal(t, " HI ", v.Text)

	trim := q.NewFunctionCall(ir.FuncTrim, []uint32{b})
	v, _ = Expr(q, schema, row, trim)
	require.Equal(t, "Hi", v.Text)

	length := q.NewFunctionCall(ir.FuncLength, []uint32{b})
	v, _ = Expr(q, schema, row, length)
	require.Equal(t, int64(4), v.Int)
}

func TestExprFunctionSubstring(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "hello world", types.OwnerArena)}

	b := q.NewColumnRef("b")
	start := q.NewLiteral(types.IntCell(types.TagInt, 7))
	n := q.NewLiteral(types.IntCell(types.TagInt, 5))
	sub := q.NewFunctionCall(ir.FuncSubstring, []uint32{b, start, n})
	v, err := Expr(q, schema, row, sub)
	require.NoError(t, err)
	require.Equal(t, "world", v.Text)
}

func TestExprCaseWhen(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 5), types.TextCell(types.TagText, "x", types.OwnerArena)}

	cond := q.NewCompare("a", ir.OpGt, types.IntCell(types.TagInt, 10))
	thenV := q.NewLiteral(types.TextCell(types.TagText, "big", types.OwnerArena))
	elseV := q.NewLiteral(types.TextCell(types.TagText, "small", types.OwnerArena))
	branches := []ir.CaseWhenBranch{{CondIdx: cond, ThenIdx: thenV}}
	caseExpr := q.NewCaseWhen(branches, elseV)

	v, err := Expr(q, schema, row, caseExpr)
	require.NoError(t, err)
	require.Equal(t, "small", v.Text)
}

func TestConditionAndOrNot(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 5), types.TextCell(types.TagText, "x", types.OwnerArena)}

	c1 := q.NewCompare("a", ir.OpGt, types.IntCell(types.TagInt, 1))
	c2 := q.NewCompare("a", ir.OpLt, types.IntCell(types.TagInt, 10))
	and := q.NewAnd(c1, c2)
	ok, err := Condition(q, schema, row, and)
	require.NoError(t, err)
	require.True(t, ok)

	c3 := q.NewCompare("a", ir.OpGt, types.IntCell(types.TagInt, 100))
	or := q.NewOr(c1, c3)
	ok, err = Condition(q, schema, row, or)
	require.NoError(t, err)
	require.True(t, ok)

	not := q.NewNot(c3)
	ok, err = Condition(q, schema, row, not)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConditionBetween(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 5), types.TextCell(types.TagText, "x", types.OwnerArena)}

	idx := q.Conditions.Push(ir.Condition{
		Kind:        ir.CondCompare,
		ColumnName:  "a",
		Op:          ir.OpBetween,
		Literal:     types.IntCell(types.TagInt, 1),
		BetweenHigh: types.IntCell(types.TagInt, 10),
		LHSExprIdx:  ir.IdxNone,
		RHSExprIdx:  ir.IdxNone,
	})
	ok, err := Condition(q, schema, row, idx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConditionInAndNotIn(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 5), types.TextCell(types.TagText, "x", types.OwnerArena)}

	values := []types.Cell{types.IntCell(types.TagInt, 5), types.IntCell(types.TagInt, 6)}
	start, count := q.Cells.Range(values)
	idx := q.Conditions.Push(ir.Condition{
		Kind:          ir.CondCompare,
		ColumnName:    "a",
		Op:            ir.OpIn,
		LHSExprIdx:    ir.IdxNone,
		RHSExprIdx:    ir.IdxNone,
		InValuesStart: start,
		InValuesCount: count,
	})
	ok, err := Condition(q, schema, row, idx)
	require.NoError(t, err)
	require.True(t, ok)

	notIn := q.Conditions.Push(ir.Condition{
		Kind:          ir.CondCompare,
		ColumnName:    "a",
		Op:            ir.OpNotIn,
		LHSExprIdx:    ir.IdxNone,
		RHSExprIdx:    ir.IdxNone,
		InValuesStart: start,
		InValuesCount: count,
	})
	ok, err = Condition(q, schema, row, notIn)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConditionIsNullIsNotNull(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.NullCell(types.TagInt), types.TextCell(types.TagText, "x", types.OwnerArena)}

	isNull := q.Conditions.Push(ir.Condition{Kind: ir.CondCompare, ColumnName: "a", Op: ir.OpIsNull, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone})
	ok, err := Condition(q, schema, row, isNull)
	require.NoError(t, err)
	require.True(t, ok)

	isNotNull := q.Conditions.Push(ir.Condition{Kind: ir.CondCompare, ColumnName: "a", Op: ir.OpIsNotNull, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone})
	ok, err = Condition(q, schema, row, isNotNull)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConditionLikeAndILike(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "Hello World", types.OwnerArena)}

	like := q.Conditions.Push(ir.Condition{
		Kind: ir.CondCompare, ColumnName: "b", Op: ir.OpLike,
		Literal:    types.TextCell(types.TagText, "Hello%", types.OwnerArena),
		LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone,
	})
	ok, err := Condition(q, schema, row, like)
	require.NoError(t, err)
	require.True(t, ok)

	ilike := q.Conditions.Push(ir.Condition{
		Kind: ir.CondCompare, ColumnName: "b", Op: ir.OpILike,
		Literal:    types.TextCell(types.TagText, "hello%", types.OwnerArena),
		LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone,
	})
	ok, err = Condition(q, schema, row, ilike)
	require.NoError(t, err)
	require.True(t, ok)

	badCase := q.Conditions.Push(ir.Condition{
		Kind: ir.CondCompare, ColumnName: "b", Op: ir.OpLike,
		Literal:    types.TextCell(types.TagText, "hello%", types.OwnerArena),
		LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone,
	})
	ok, err = Condition(q, schema, row, badCase)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConditionMultiIn(t *testing.T) {
	q := ir.New()
	schema := schemaAB()
	row := []types.Cell{types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "x", types.OwnerArena)}

	values := []types.Cell{
		types.IntCell(types.TagInt, 1), types.TextCell(types.TagText, "x", types.OwnerArena),
		types.IntCell(types.TagInt, 2), types.TextCell(types.TagText, "y", types.OwnerArena),
	}
	idx := q.NewMultiIn([]string{"a", "b"}, values)
	ok, err := Condition(q, schema, row, idx)
	require.NoError(t, err)
	require.True(t, ok)
}
