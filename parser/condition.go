package parser

import (
	"strings"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

// parseCondition is the WHERE/HAVING/ON predicate grammar's entry point:
// OR binds loosest, then AND, then NOT, then comparison atoms (spec §6).
func (p *Parser) parseCondition() (uint32, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (uint32, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left = p.q.NewOr(left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd() (uint32, error) {
	left, err := p.parseNot()
	if err != nil {
		return 0, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		left = p.q.NewAnd(left, right)
	}
	return left, nil
}

func (p *Parser) parseNot() (uint32, error) {
	if p.isKeyword("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		return p.q.NewNot(operand), nil
	}
	return p.parsePredicate()
}

// parsePredicate parses one comparison/membership atom, or a parenthesized
// sub-condition.
func (p *Parser) parsePredicate() (uint32, error) {
	if p.isKeyword("EXISTS") {
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return 0, err
		}
		body, err := p.captureSubqueryBody()
		if err != nil {
			return 0, err
		}
		c := ir.Condition{Kind: ir.CondCompare, Op: ir.OpExists, SubquerySQLIdx: p.q.CaptureSQL(body), LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone}
		return p.pushCondition(c), nil
	}

	// A leading '(' is ambiguous between a parenthesized sub-condition
	// ("(a AND b) OR c") and a parenthesized expression used as a
	// comparison's LHS ("(a + b) > 5"). Try the sub-condition reading
	// first; if what's inside doesn't parse as a condition or isn't
	// followed by a closing paren, backtrack and let parseExpr below
	// handle it as an ordinary grouped expression instead.
	if p.isPunct("(") && !p.isExprGroupStart() {
		save := p.pos
		p.advance()
		inner, err := p.parseCondition()
		if err == nil && p.isPunct(")") {
			p.advance()
			return inner, nil
		}
		p.pos = save
	}

	lhs, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	switch {
	case p.eatKeyword("IS"):
		not := p.eatKeyword("NOT")
		switch {
		case p.eatKeyword("NULL"):
			op := ir.OpIsNull
			if not {
				op = ir.OpIsNotNull
			}
			return p.compareFromLHS(lhs, op, types.Cell{}), nil
		case p.eatKeyword("DISTINCT"):
			if err := p.expectKeyword("FROM"); err != nil {
				return 0, err
			}
			rhs, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			op := ir.OpIsDistinctFrom
			if not {
				op = ir.OpIsNotDistinctFrom
			}
			return p.compareExprPair(lhs, op, rhs), nil
		default:
			return 0, errorAt(p, "expected NULL or DISTINCT after IS")
		}

	case p.isKeyword("BETWEEN"):
		p.advance()
		low, err := p.parseAdd()
		if err != nil {
			return 0, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return 0, err
		}
		high, err := p.parseAdd()
		if err != nil {
			return 0, err
		}
		return p.compareBetween(lhs, low, high), nil

	case p.isKeyword("LIKE"), p.isKeyword("ILIKE"):
		op := ir.OpLike
		if strings.EqualFold(p.cur().text, "ILIKE") {
			op = ir.OpILike
		}
		p.advance()
		rhs, err := p.parseAdd()
		if err != nil {
			return 0, err
		}
		return p.compareExprPair(lhs, op, rhs), nil

	case p.isKeyword("IN"):
		p.advance()
		return p.parseInList(lhs, false)

	case p.isKeyword("NOT"):
		save := p.pos
		p.advance()
		switch {
		case p.isKeyword("IN"):
			p.advance()
			return p.parseInList(lhs, true)
		case p.isKeyword("LIKE"):
			p.advance()
			rhs, err := p.parseAdd()
			if err != nil {
				return 0, err
			}
			c := p.compareExprPair(lhs, ir.OpLike, rhs)
			return p.q.NewNot(c), nil
		case p.isKeyword("BETWEEN"):
			p.advance()
			low, err := p.parseAdd()
			if err != nil {
				return 0, err
			}
			if err := p.expectKeyword("AND"); err != nil {
				return 0, err
			}
			high, err := p.parseAdd()
			if err != nil {
				return 0, err
			}
			return p.q.NewNot(p.compareBetween(lhs, low, high)), nil
		default:
			p.pos = save
		}
	}

	if p.isPunct("=") || p.isPunct("!=") || p.isPunct("<>") || p.isPunct("<") || p.isPunct(">") || p.isPunct("<=") || p.isPunct(">=") {
		op := compareOpFor(p.cur().text)
		p.advance()
		if p.eatKeyword("ANY") || p.eatKeyword("SOME") {
			if err := p.expectPunct("("); err != nil {
				return 0, err
			}
			values, err := p.parseLiteralOrSubqueryList()
			if err != nil {
				return 0, err
			}
			return p.compareInValues(lhs, ir.OpAny, values), nil
		}
		if p.eatKeyword("ALL") {
			if err := p.expectPunct("("); err != nil {
				return 0, err
			}
			values, err := p.parseLiteralOrSubqueryList()
			if err != nil {
				return 0, err
			}
			return p.compareInValues(lhs, ir.OpAll, values), nil
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		return p.compareExprPair(lhs, op, rhs), nil
	}

	return 0, errorAt(p, "expected comparison operator")
}

// isExprGroupStart reports whether a '(' ahead opens a tuple-IN LHS like
// "(a, b) IN (...)" rather than a parenthesized sub-condition; both share
// the same lookahead token, so this peeks for a comma before the matching
// close-paren at depth 1, then an IN keyword.
func (p *Parser) isExprGroupStart() bool {
	depth := 0
	sawComma := false
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.kind == tokPunct && t.text == "(" {
			depth++
			continue
		}
		if t.kind == tokPunct && t.text == ")" {
			depth--
			if depth == 0 {
				next := p.toks[i+1]
				return sawComma && next.kind == tokIdent && strings.EqualFold(next.text, "IN")
			}
			continue
		}
		if depth == 1 && t.kind == tokPunct && t.text == "," {
			sawComma = true
		}
	}
	return false
}

func compareOpFor(s string) ir.CompareOp {
	switch s {
	case "=":
		return ir.OpEq
	case "!=", "<>":
		return ir.OpNe
	case "<":
		return ir.OpLt
	case ">":
		return ir.OpGt
	case "<=":
		return ir.OpLe
	default:
		return ir.OpGe
	}
}

func (p *Parser) pushCondition(c ir.Condition) uint32 {
	if c.LHSExprIdx == 0 {
		c.LHSExprIdx = ir.IdxNone
	}
	c.RHSExprIdx = ir.IdxNone
	return p.q.Conditions.Push(c)
}

// compareFromLHS builds a compare Condition whose LHS is an already-parsed
// expression index; if that expression is a plain column-ref, ColumnName is
// populated too so eval.Condition's fast path still applies.
func (p *Parser) compareFromLHS(lhsExpr uint32, op ir.CompareOp, lit types.Cell) uint32 {
	c := ir.Condition{Kind: ir.CondCompare, Op: op, Literal: lit, RHSExprIdx: ir.IdxNone, SubquerySQLIdx: ir.IdxNone}
	if name, ok := p.columnRefName(lhsExpr); ok {
		c.ColumnName = name
		c.LHSExprIdx = ir.IdxNone
	} else {
		c.LHSExprIdx = lhsExpr
	}
	return p.q.Conditions.Push(c)
}

// compareExprPair builds a compare Condition from two already-parsed
// expression indices. Each side collapses to the lighter ColumnName/Literal
// representation when it is a bare column-ref or literal (so eval's fast
// path still applies for the common "col op literal"/"col op col" cases),
// and falls back to LHSExprIdx/RHSExprIdx for anything more general.
func (p *Parser) compareExprPair(lhs uint32, op ir.CompareOp, rhs uint32) uint32 {
	c := ir.Condition{Kind: ir.CondCompare, Op: op, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone, SubquerySQLIdx: ir.IdxNone}
	if name, ok := p.columnRefName(lhs); ok {
		c.ColumnName = name
	} else {
		c.LHSExprIdx = lhs
	}
	if lit, ok := p.literalOf(rhs); ok {
		c.Literal = lit
	} else {
		c.RHSExprIdx = rhs
	}
	return p.q.Conditions.Push(c)
}

func (p *Parser) compareBetween(lhs, low, high uint32) uint32 {
	c := ir.Condition{Kind: ir.CondCompare, Op: ir.OpBetween, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone, SubquerySQLIdx: ir.IdxNone}
	if name, ok := p.columnRefName(lhs); ok {
		c.ColumnName = name
	} else {
		c.LHSExprIdx = lhs
	}
	if lo, ok := p.literalOf(low); ok {
		c.Literal = lo
	}
	if hi, ok := p.literalOf(high); ok {
		c.BetweenHigh = hi
	}
	return p.q.Conditions.Push(c)
}

func (p *Parser) compareInValues(lhs uint32, op ir.CompareOp, values []types.Cell) uint32 {
	c := ir.Condition{Kind: ir.CondCompare, Op: op, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone, SubquerySQLIdx: ir.IdxNone}
	if name, ok := p.columnRefName(lhs); ok {
		c.ColumnName = name
	} else {
		c.LHSExprIdx = lhs
	}
	start, count := p.q.Cells.Range(values)
	c.InValuesStart = start
	c.InValuesCount = count
	return p.q.Conditions.Push(c)
}

// parseInList parses "(v1, v2, ...)" or "(SELECT ...)" following IN/NOT IN.
func (p *Parser) parseInList(lhs uint32, negate bool) (uint32, error) {
	if err := p.expectPunct("("); err != nil {
		return 0, err
	}
	if p.isKeyword("SELECT") || p.isKeyword("WITH") {
		body, err := p.captureSubqueryBody()
		if err != nil {
			return 0, err
		}
		op := ir.OpIn
		if negate {
			op = ir.OpNotIn
		}
		c := ir.Condition{Kind: ir.CondCompare, Op: op, LHSExprIdx: ir.IdxNone, RHSExprIdx: ir.IdxNone, SubquerySQLIdx: p.q.CaptureSQL(body)}
		if name, ok := p.columnRefName(lhs); ok {
			c.ColumnName = name
		} else {
			c.LHSExprIdx = lhs
		}
		return p.q.Conditions.Push(c), nil
	}
	values, err := p.parseLiteralOrSubqueryList()
	if err != nil {
		return 0, err
	}
	op := ir.OpIn
	if negate {
		op = ir.OpNotIn
	}
	return p.compareInValues(lhs, op, values), nil
}

// parseLiteralOrSubqueryList parses a comma-separated literal list up to
// the already-pending close paren, consuming it. Caller has consumed the
// opening '('.
func (p *Parser) parseLiteralOrSubqueryList() ([]types.Cell, error) {
	var vals []types.Cell
	if !p.isPunct(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if lit, ok := p.literalOf(e); ok {
				vals = append(vals, lit)
			}
			if !p.eatPunct(",") {
				break
			}
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return vals, nil
}

// columnRefName reports whether exprIdx is a bare column-reference Expr,
// returning its name.
func (p *Parser) columnRefName(exprIdx uint32) (string, bool) {
	e := p.q.Exprs.Get(exprIdx)
	if e.Kind == ir.ExprColumnRef {
		return e.ColumnName, true
	}
	return "", false
}

// literalOf reports whether exprIdx is a literal Expr, returning its cell.
func (p *Parser) literalOf(exprIdx uint32) (types.Cell, bool) {
	e := p.q.Exprs.Get(exprIdx)
	if e.Kind == ir.ExprLiteral {
		return e.Literal, true
	}
	return types.Cell{}, false
}
