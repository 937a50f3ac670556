// Package eval implements eval_expr and eval_condition (spec §4.12
// filter's per-row fallback, §4.13 legacy executor): the single
// row-at-a-time interpreter shared by the block executor's filter
// fallback path and the entire legacy row executor, so the two engines
// agree on expression and predicate semantics (spec §8: "plan_exec(q)
// and legacy row_exec(q) produce equal multisets for every query both
// can execute").
package eval

import (
	"strings"

	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

// Expr evaluates expression exprIdx against row under schema.
func Expr(q *ir.QueryArena, schema types.Schema, row []types.Cell, exprIdx uint32) (types.Cell, error) {
	if exprIdx == ir.IdxNone {
		return types.NullCell(types.TagText), nil
	}
	e := q.Exprs.Get(exprIdx)
	switch e.Kind {
	case ir.ExprLiteral:
		return e.Literal, nil

	case ir.ExprColumnRef:
		ci := schema.FindColumn(e.ColumnName)
		if ci < 0 {
			return types.Cell{}, errkind.NotFoundColumn.New(e.ColumnName)
		}
		return row[ci], nil

	case ir.ExprBinaryOp:
		l, err := Expr(q, schema, row, e.LeftIdx)
		if err != nil {
			return types.Cell{}, err
		}
		r, err := Expr(q, schema, row, e.RightIdx)
		if err != nil {
			return types.Cell{}, err
		}
		return evalBinOp(e.Op, l, r)

	case ir.ExprUnaryOp:
		v, err := Expr(q, schema, row, e.OperandIdx)
		if err != nil {
			return types.Cell{}, err
		}
		if v.Null {
			return v, nil
		}
		if v.Tag == types.TagFloat || v.Tag == types.TagNumeric {
			return types.FloatCell(v.Tag, -v.Float), nil
		}
		return types.IntCell(v.Tag, -v.Int), nil

	case ir.ExprFunctionCall:
		return evalFunc(q, schema, row, e)

	case ir.ExprCaseWhen:
		for _, br := range e.Branches(q) {
			ok, err := Condition(q, schema, row, br.CondIdx)
			if err != nil {
				return types.Cell{}, err
			}
			if ok {
				return Expr(q, schema, row, br.ThenIdx)
			}
		}
		if e.ElseIdx != ir.IdxNone {
			return Expr(q, schema, row, e.ElseIdx)
		}
		return types.NullCell(types.TagText), nil

	case ir.ExprSubquery:
		// Resolved to a literal before execution (spec §4.6); reaching
		// here means resolution did not run, a dispatcher invariant.
		return types.Cell{}, errkind.Execution.New("unresolved scalar subquery expression")
	}
	return types.Cell{}, errkind.Execution.New("unknown expression kind")
}

func evalBinOp(op ir.BinOp, l, r types.Cell) (types.Cell, error) {
	if l.Null || r.Null {
		tag := l.Tag
		if op == ir.BinConcat {
			tag = types.TagText
		}
		return types.NullCell(tag), nil
	}
	if op == ir.BinConcat {
		return types.TextCell(types.TagText, l.AsText()+r.AsText(), types.OwnerArena), nil
	}
	useFloat := l.Tag == types.TagFloat || l.Tag == types.TagNumeric || r.Tag == types.TagFloat || r.Tag == types.TagNumeric
	if useFloat {
		lf, rf := l.AsFloat(), r.AsFloat()
		var v float64
		switch op {
		case ir.BinAdd:
			v = lf + rf
		case ir.BinSub:
			v = lf - rf
		case ir.BinMul:
			v = lf * rf
		case ir.BinDiv:
			if rf == 0 {
				return types.Cell{}, errkind.Execution.New("division by zero")
			}
			v = lf / rf
		case ir.BinMod:
			if rf == 0 {
				return types.Cell{}, errkind.Execution.New("division by zero")
			}
			v = float64(int64(lf) % int64(rf))
		}
		return types.FloatCell(types.TagFloat, v), nil
	}
	li, ri := l.Int, r.Int
	var v int64
	switch op {
	case ir.BinAdd:
		v = li + ri
	case ir.BinSub:
		v = li - ri
	case ir.BinMul:
		v = li * ri
	case ir.BinDiv:
		if ri == 0 {
			return types.Cell{}, errkind.Execution.New("division by zero")
		}
		v = li / ri
	case ir.BinMod:
		if ri == 0 {
			return types.Cell{}, errkind.Execution.New("division by zero")
		}
		v = li % ri
	}
	tag := l.Tag
	if r.Tag > tag {
		tag = r.Tag
	}
	return types.IntCell(tag, v), nil
}

func evalFunc(q *ir.QueryArena, schema types.Schema, row []types.Cell, e ir.Expr) (types.Cell, error) {
	args := e.Args(q)
	vals := make([]types.Cell, len(args))
	for i, a := range args {
		v, err := Expr(q, schema, row, a)
		if err != nil {
			return types.Cell{}, err
		}
		vals[i] = v
	}
	switch e.Func {
	case ir.FuncCoalesce:
		for _, v := range vals {
			if !v.Null {
				return v, nil
			}
		}
		return types.NullCell(types.TagText), nil
	case ir.FuncNullIf:
		if len(vals) == 2 && types.Equal(vals[0], vals[1]) {
			return types.NullCell(vals[0].Tag), nil
		}
		return vals[0], nil
	case ir.FuncGreatest:
		return extremum(vals, 1)
	case ir.FuncLeast:
		return extremum(vals, -1)
	case ir.FuncUpper:
		return textFn(vals, strings.ToUpper)
	case ir.FuncLower:
		return textFn(vals, strings.ToLower)
	case ir.FuncTrim:
		return textFn(vals, strings.TrimSpace)
	case ir.FuncLength:
		if len(vals) == 0 || vals[0].Null {
			return types.NullCell(types.TagInt), nil
		}
		return types.IntCell(types.TagInt, int64(len(vals[0].Text))), nil
	case ir.FuncSubstring:
		return evalSubstring(vals)
	}
	return types.Cell{}, errkind.Execution.New("unknown function")
}

func extremum(vals []types.Cell, dir int) (types.Cell, error) {
	var best types.Cell
	found := false
	for _, v := range vals {
		if v.Null {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		n, err := types.Compare(v, best)
		if err != nil {
			return types.Cell{}, err
		}
		if n*dir > 0 {
			best = v
		}
	}
	if !found {
		return types.NullCell(types.TagText), nil
	}
	return best, nil
}

func textFn(vals []types.Cell, fn func(string) string) (types.Cell, error) {
	if len(vals) == 0 || vals[0].Null {
		return types.NullCell(types.TagText), nil
	}
	return types.TextCell(types.TagText, fn(vals[0].Text), types.OwnerArena), nil
}

func evalSubstring(vals []types.Cell) (types.Cell, error) {
	if len(vals) < 2 || vals[0].Null {
		return types.NullCell(types.TagText), nil
	}
	s := vals[0].Text
	start := int(vals[1].Int) - 1
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(vals) >= 3 {
		n := int(vals[2].Int)
		if start+n < end {
			end = start + n
		}
	}
	return types.TextCell(types.TagText, s[start:end], types.OwnerArena), nil
}

// Condition evaluates condition condIdx against row under schema.
func Condition(q *ir.QueryArena, schema types.Schema, row []types.Cell, condIdx uint32) (bool, error) {
	if condIdx == ir.IdxNone {
		return true, nil
	}
	c := q.Conditions.Get(condIdx)
	switch c.Kind {
	case ir.CondAnd:
		l, err := Condition(q, schema, row, c.LeftIdx)
		if err != nil || !l {
			return false, err
		}
		return Condition(q, schema, row, c.RightIdx)
	case ir.CondOr:
		l, err := Condition(q, schema, row, c.LeftIdx)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return Condition(q, schema, row, c.RightIdx)
	case ir.CondNot:
		v, err := Condition(q, schema, row, c.OperandIdx)
		return !v, err
	case ir.CondMultiIn:
		return evalMultiIn(q, schema, row, c)
	case ir.CondCompare:
		return evalCompare(q, schema, row, c)
	}
	return false, errkind.Execution.New("unknown condition kind")
}

func lhsValue(q *ir.QueryArena, schema types.Schema, row []types.Cell, c ir.Condition) (types.Cell, error) {
	if c.LHSExprIdx != ir.IdxNone {
		return Expr(q, schema, row, c.LHSExprIdx)
	}
	ci := schema.FindColumn(c.ColumnName)
	if ci < 0 {
		return types.Cell{}, errkind.NotFoundColumn.New(c.ColumnName)
	}
	return row[ci], nil
}

// rhsValue resolves a compare Condition's right-hand side: an override
// expression (column-to-column / expr-to-expr compares) when RHSExprIdx is
// set, else the literal captured at parse/resolution time.
func rhsValue(q *ir.QueryArena, schema types.Schema, row []types.Cell, c ir.Condition) (types.Cell, error) {
	if c.RHSExprIdx != ir.IdxNone {
		return Expr(q, schema, row, c.RHSExprIdx)
	}
	return c.Literal, nil
}

func evalCompare(q *ir.QueryArena, schema types.Schema, row []types.Cell, c ir.Condition) (bool, error) {
	switch c.Op {
	case ir.OpIsNull:
		v, err := lhsValue(q, schema, row, c)
		return v.IsNullLike(), err
	case ir.OpIsNotNull:
		v, err := lhsValue(q, schema, row, c)
		return !v.IsNullLike(), err
	}

	lhs, err := lhsValue(q, schema, row, c)
	if err != nil {
		return false, err
	}
	rhsLit, err := rhsValue(q, schema, row, c)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case ir.OpIsDistinctFrom:
		return !types.Equal(lhs, rhsLit), nil
	case ir.OpIsNotDistinctFrom:
		return types.Equal(lhs, rhsLit), nil
	case ir.OpBetween:
		if lhs.IsNullLike() {
			return false, nil
		}
		lo, err := types.Compare(lhs, c.Literal)
		if err != nil {
			return false, err
		}
		hi, err := types.Compare(lhs, c.BetweenHigh)
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case ir.OpIn, ir.OpNotIn:
		if lhs.IsNullLike() {
			return false, nil
		}
		match := false
		for _, v := range c.InValues(q) {
			if types.Equal(lhs, v) {
				match = true
				break
			}
		}
		if c.Op == ir.OpNotIn {
			return !match, nil
		}
		return match, nil
	case ir.OpAny, ir.OpAll:
		if lhs.IsNullLike() {
			return false, nil
		}
		allMatch := true
		anyMatch := false
		for _, v := range c.InValues(q) {
			n, err := types.Compare(lhs, v)
			if err != nil {
				return false, err
			}
			if n == 0 {
				anyMatch = true
			} else {
				allMatch = false
			}
		}
		if c.Op == ir.OpAny {
			return anyMatch, nil
		}
		return allMatch, nil
	case ir.OpLike, ir.OpILike:
		if lhs.IsNullLike() || rhsLit.Null {
			return false, nil
		}
		return likeMatch(lhs.Text, rhsLit.Text, c.Op == ir.OpILike), nil
	}

	if lhs.IsNullLike() || rhsLit.Null {
		return false, nil
	}
	n, err := types.Compare(lhs, rhsLit)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case ir.OpEq:
		return n == 0, nil
	case ir.OpNe:
		return n != 0, nil
	case ir.OpLt:
		return n < 0, nil
	case ir.OpGt:
		return n > 0, nil
	case ir.OpLe:
		return n <= 0, nil
	case ir.OpGe:
		return n >= 0, nil
	}
	return false, errkind.Execution.New("unknown compare operator")
}

func evalMultiIn(q *ir.QueryArena, schema types.Schema, row []types.Cell, c ir.Condition) (bool, error) {
	lhs := make([]types.Cell, len(c.ColumnNames))
	for i, name := range c.ColumnNames {
		ci := schema.FindColumn(name)
		if ci < 0 {
			return false, errkind.NotFoundColumn.New(name)
		}
		lhs[i] = row[ci]
	}
	values := c.InValues(q)
	width := len(c.ColumnNames)
	for r := 0; r+width <= len(values); r += width {
		allEq := true
		for i := 0; i < width; i++ {
			if !types.Equal(lhs[i], values[r+i]) {
				allEq = false
				break
			}
		}
		if allEq {
			return true, nil
		}
	}
	return false, nil
}

// likeMatch implements SQL LIKE/ILIKE with '%' and '_' wildcards via a
// small recursive matcher (no regexp compilation per row).
func likeMatch(s, pattern string, caseInsensitive bool) bool {
	if caseInsensitive {
		s = strings.ToLower(s)
		pattern = strings.ToLower(pattern)
	}
	return likeRec(s, pattern)
}

func likeRec(s, p string) bool {
	if p == "" {
		return s == ""
	}
	switch p[0] {
	case '%':
		if likeRec(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeRec(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if s == "" {
			return false
		}
		return likeRec(s[1:], p[1:])
	default:
		if s == "" || s[0] != p[0] {
			return false
		}
		return likeRec(s[1:], p[1:])
	}
}
