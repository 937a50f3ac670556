package parser

import (
	"strings"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

// parseExpr is the expression grammar's entry point: '||' binds loosest,
// then '+ -', then '* / %', then unary '-', then atoms (spec §6 expression
// grammar precedence).
func (p *Parser) parseExpr() (uint32, error) {
	return p.parseConcat()
}

func (p *Parser) parseConcat() (uint32, error) {
	left, err := p.parseAdd()
	if err != nil {
		return 0, err
	}
	for p.isPunct("||") {
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return 0, err
		}
		left = p.q.NewBinaryOp(ir.BinConcat, left, right)
	}
	return left, nil
}

func (p *Parser) parseAdd() (uint32, error) {
	left, err := p.parseMul()
	if err != nil {
		return 0, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := ir.BinAdd
		if p.cur().text == "-" {
			op = ir.BinSub
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return 0, err
		}
		left = p.q.NewBinaryOp(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseMul() (uint32, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") || p.isKeyword("mod") {
		var op ir.BinOp
		switch {
		case p.isPunct("*"):
			op = ir.BinMul
		case p.isPunct("/"):
			op = ir.BinDiv
		default:
			op = ir.BinMod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		left = p.q.NewBinaryOp(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseUnary() (uint32, error) {
	if p.isPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.q.NewUnaryMinus(operand), nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (uint32, error) {
	t := p.cur()

	switch t.kind {
	case tokNumber:
		p.advance()
		i, f, isInt := parseNumberLiteral(t.text)
		if isInt {
			return p.q.NewLiteral(types.IntCell(types.TagBigInt, i)), nil
		}
		return p.q.NewLiteral(types.FloatCell(types.TagFloat, f)), nil
	case tokString:
		p.advance()
		return p.q.NewLiteral(types.TextCell(types.TagText, t.text, types.OwnerArena)), nil
	}

	if p.isKeyword("NULL") {
		p.advance()
		return p.q.NewLiteral(types.NullCell(types.TagText)), nil
	}
	if p.isKeyword("TRUE") {
		p.advance()
		return p.q.NewLiteral(types.BoolCell(true)), nil
	}
	if p.isKeyword("FALSE") {
		p.advance()
		return p.q.NewLiteral(types.BoolCell(false)), nil
	}
	if p.isKeyword("CASE") {
		return p.parseCaseWhen()
	}

	if p.parenStartsSelect() {
		p.advance()
		body, err := p.captureSubqueryBody()
		if err != nil {
			return 0, err
		}
		return p.q.NewSubqueryExpr(body), nil
	}
	if p.isPunct("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expectPunct(")"); err != nil {
			return 0, err
		}
		return p.maybeCast(e)
	}

	if t.kind == tokIdent {
		// Function call: ident immediately followed by '('.
		if next := p.peek(1); next.kind == tokPunct && next.text == "(" {
			if fn, ok := funcNameFor(t.text); ok {
				return p.parseFunctionCall(fn)
			}
		}
		name, err := p.identifier()
		if err != nil {
			return 0, err
		}
		return p.maybeCast(p.q.NewColumnRef(name))
	}

	return 0, errorAt(p, "expected expression")
}

// maybeCast consumes a trailing "::typename" PostgreSQL cast suffix. The
// grammar accepts it syntactically; the cast itself is a no-op on the
// expression tree since eval.Expr already coerces at evaluation time.
func (p *Parser) maybeCast(e uint32) (uint32, error) {
	for p.isPunct("::") {
		p.advance()
		if _, err := p.identifier(); err != nil {
			return 0, err
		}
	}
	return e, nil
}

func funcNameFor(name string) (ir.FuncName, bool) {
	switch strings.ToUpper(name) {
	case "COALESCE":
		return ir.FuncCoalesce, true
	case "NULLIF":
		return ir.FuncNullIf, true
	case "GREATEST":
		return ir.FuncGreatest, true
	case "LEAST":
		return ir.FuncLeast, true
	case "UPPER":
		return ir.FuncUpper, true
	case "LOWER":
		return ir.FuncLower, true
	case "LENGTH", "CHAR_LENGTH":
		return ir.FuncLength, true
	case "TRIM":
		return ir.FuncTrim, true
	case "SUBSTRING", "SUBSTR":
		return ir.FuncSubstring, true
	default:
		return 0, false
	}
}

func (p *Parser) parseFunctionCall(fn ir.FuncName) (uint32, error) {
	p.advance() // ident
	if err := p.expectPunct("("); err != nil {
		return 0, err
	}
	var args []uint32
	if !p.isPunct(")") {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, a)
			if !p.eatPunct(",") {
				break
			}
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return 0, err
	}
	return p.q.NewFunctionCall(fn, args), nil
}

func (p *Parser) parseCaseWhen() (uint32, error) {
	p.advance() // CASE
	var branches []ir.CaseWhenBranch
	for p.isKeyword("WHEN") {
		p.advance()
		cond, err := p.parseCondition()
		if err != nil {
			return 0, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return 0, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		branches = append(branches, ir.CaseWhenBranch{CondIdx: cond, ThenIdx: then})
	}
	elseIdx := uint32(ir.IdxNone)
	if p.eatKeyword("ELSE") {
		e, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		elseIdx = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return 0, err
	}
	return p.q.NewCaseWhen(branches, elseIdx), nil
}

// captureSubqueryBody assumes the opening '(' has already been consumed and
// captures the SELECT/WITH body up to (not including) the matching ')'.
func (p *Parser) captureSubqueryBody() (string, error) {
	depth := 1
	startPos := p.cur().pos
	var endPos int
	for {
		t := p.cur()
		if t.kind == tokEOF {
			return "", errorAt(p, "unterminated subquery")
		}
		if t.kind == tokPunct && t.text == "(" {
			depth++
		}
		if t.kind == tokPunct && t.text == ")" {
			depth--
			if depth == 0 {
				endPos = t.pos
				p.advance()
				break
			}
		}
		p.advance()
	}
	return strings.TrimSpace(string(p.runes[startPos:endPos])), nil
}
