package parser

import (
	"strings"

	"github.com/martinsk/mskql/ir"
)

// parseSelect parses a full SELECT statement, including an optional leading
// WITH clause and a trailing set-operation (UNION/INTERSECT/EXCEPT [ALL])
// over another SELECT (spec §6).
func (p *Parser) parseSelect() (*ir.QuerySelect, error) {
	sel := &ir.QuerySelect{WhereCondIdx: ir.IdxNone, HavingCondIdx: ir.IdxNone, Limit: -1, FromSubquerySQLIdx: ir.IdxNone}

	if p.isKeyword("WITH") {
		p.advance()
		p.eatKeyword("RECURSIVE")
		for {
			cte, err := p.parseCTE()
			if err != nil {
				return nil, err
			}
			sel.CTEs = append(sel.CTEs, cte)
			if !p.eatPunct(",") {
				break
			}
		}
	}

	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if p.eatKeyword("DISTINCT") {
		sel.Distinct = true
	}
	p.eatKeyword("ALL")

	cols, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	sel.Columns = cols

	if p.eatKeyword("FROM") {
		if p.parenStartsSelect() {
			p.advance()
			body, err := p.captureSubqueryBody()
			if err != nil {
				return nil, err
			}
			sel.FromSubquerySQLIdx = p.q.CaptureSQL(body)
			p.eatKeyword("AS")
			if alias, ok := p.tryIdentifier(); ok {
				sel.FromAlias = alias
			}
		} else {
			name, err := p.identifier()
			if err != nil {
				return nil, err
			}
			sel.FromTable = name
			p.eatKeyword("AS")
			if alias, ok := p.tryIdentifier(); ok {
				sel.FromAlias = alias
			}
		}

		for {
			j, ok, err := p.tryParseJoin()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			sel.Joins = append(sel.Joins, j)
		}
	}

	if p.eatKeyword("WHERE") {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		sel.WhereCondIdx = c
	}

	if p.eatKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			name, err := p.identifier()
			if err != nil {
				return nil, err
			}
			sel.GroupByColumns = append(sel.GroupByColumns, name)
			if !p.eatPunct(",") {
				break
			}
		}
	}

	if p.eatKeyword("HAVING") {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		sel.HavingCondIdx = c
	}

	if p.isKeyword("UNION") || p.isKeyword("INTERSECT") || p.isKeyword("EXCEPT") {
		switch {
		case p.isKeyword("UNION"):
			sel.SetOp = ir.SetOpUnion
		case p.isKeyword("INTERSECT"):
			sel.SetOp = ir.SetOpIntersect
		default:
			sel.SetOp = ir.SetOpExcept
		}
		p.advance()
		sel.HasSetOp = true
		if p.eatKeyword("ALL") {
			sel.SetOpAll = true
		}
		rhsStart := p.cur().pos
		p.skipToStatementEnd()
		rhsEnd := p.cur().pos
		sel.SetOpRHSSQL = p.q.CaptureSQL(strings.TrimSpace(string(p.runes[rhsStart:rhsEnd])))
	}

	if p.eatKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			item, err := p.parseOrderByItem()
			if err != nil {
				return nil, err
			}
			sel.OrderBy = append(sel.OrderBy, item)
			if !p.eatPunct(",") {
				break
			}
		}
	}

	if p.eatKeyword("LIMIT") {
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		sel.Limit = n
	}
	if p.eatKeyword("OFFSET") {
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		sel.Offset = n
	}

	return sel, nil
}

// skipToStatementEnd advances past tokens until EOF or a top-level ORDER/
// LIMIT/OFFSET keyword that belongs to the outer statement, used to bound
// a set-operation RHS SELECT's captured text.
func (p *Parser) skipToStatementEnd() {
	for !p.atEOF() {
		if p.isKeyword("ORDER") || p.isKeyword("LIMIT") || p.isKeyword("OFFSET") {
			return
		}
		p.advance()
	}
}

func (p *Parser) tryIdentifier() (string, bool) {
	if p.cur().kind != tokIdent {
		return "", false
	}
	if isReservedFollowKeyword(p.cur().text) {
		return "", false
	}
	name, _ := p.identifier()
	return name, true
}

func isReservedFollowKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET", "UNION", "INTERSECT", "EXCEPT",
		"JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "LATERAL", "ON", "USING", "NATURAL", "AND", "OR":
		return true
	default:
		return false
	}
}

func (p *Parser) parseCTE() (ir.CTE, error) {
	name, err := p.identifier()
	if err != nil {
		return ir.CTE{}, err
	}
	cte := ir.CTE{Name: name}
	if p.eatPunct("(") {
		col, err := p.identifier()
		if err != nil {
			return ir.CTE{}, err
		}
		cte.ColumnName = col
		if err := p.expectPunct(")"); err != nil {
			return ir.CTE{}, err
		}
	}
	if err := p.expectKeyword("AS"); err != nil {
		return ir.CTE{}, err
	}
	if err := p.expectPunct("("); err != nil {
		return ir.CTE{}, err
	}
	body, err := p.captureSubqueryBody()
	if err != nil {
		return ir.CTE{}, err
	}
	cte.BodySQLIdx = p.q.CaptureSQL(body)
	cte.Recursive = strings.Contains(strings.ToUpper(body), "UNION")
	return cte, nil
}

func (p *Parser) parseSelectList() ([]ir.SelectColumn, error) {
	var cols []ir.SelectColumn
	for {
		col, err := p.parseSelectColumn()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if !p.eatPunct(",") {
			break
		}
	}
	return cols, nil
}

func (p *Parser) parseSelectColumn() (ir.SelectColumn, error) {
	if p.isPunct("*") {
		p.advance()
		return ir.SelectColumn{Kind: ir.SelectColStar}, nil
	}

	if fn, isAgg, ok := p.peekAggregateFunc(); ok {
		return p.parseAggregateOrWindow(fn, isAgg)
	}

	// Bare column reference: an identifier (possibly dotted) not
	// followed by '(' (a function call) nor by an operator that would
	// continue an arithmetic/concat expression.
	next := p.peek(1)
	nextIsCall := next.kind == tokPunct && next.text == "("
	if p.cur().kind == tokIdent && !nextIsCall {
		save := p.pos
		name, err := p.identifier()
		if err == nil && !p.startsExprContinuation() {
			alias := ""
			if p.eatKeyword("AS") {
				a, err := p.identifier()
				if err != nil {
					return ir.SelectColumn{}, err
				}
				alias = a
			} else if a, ok := p.tryIdentifier(); ok {
				alias = a
			}
			return ir.SelectColumn{Kind: ir.SelectColColumnRef, ColumnName: name, Alias: alias}, nil
		}
		p.pos = save
	}

	e, err := p.parseExpr()
	if err != nil {
		return ir.SelectColumn{}, err
	}
	alias := ""
	if p.eatKeyword("AS") {
		a, err := p.identifier()
		if err != nil {
			return ir.SelectColumn{}, err
		}
		alias = a
	} else if a, ok := p.tryIdentifier(); ok {
		alias = a
	}
	return ir.SelectColumn{Kind: ir.SelectColExpr, ExprIdx: e, Alias: alias}, nil
}

// startsExprContinuation reports whether the current token continues an
// arithmetic/concat expression ('+ - * / || ::') rather than ending the
// select item (so a bare trailing identifier is treated as an alias, not
// the next operand).
func (p *Parser) startsExprContinuation() bool {
	t := p.cur()
	if t.kind != tokPunct {
		return false
	}
	switch t.text {
	case "+", "-", "*", "/", "||", "::":
		return true
	}
	return false
}

func (p *Parser) peekAggregateFunc() (ir.AggFunc, bool, bool) {
	t := p.cur()
	next := p.peek(1)
	if t.kind != tokIdent || next.kind != tokPunct || next.text != "(" {
		return 0, false, false
	}
	switch strings.ToUpper(t.text) {
	case "SUM":
		return ir.AggSum, true, true
	case "COUNT":
		return ir.AggCount, true, true
	case "MIN":
		return ir.AggMin, true, true
	case "MAX":
		return ir.AggMax, true, true
	case "AVG":
		return ir.AggAvg, true, true
	case "ROW_NUMBER":
		return ir.AggRowNumber, false, true
	case "RANK":
		return ir.AggRank, false, true
	case "DENSE_RANK":
		return ir.AggDenseRank, false, true
	case "NTILE":
		return ir.AggNTile, false, true
	case "PERCENT_RANK":
		return ir.AggPercentRank, false, true
	case "CUME_DIST":
		return ir.AggCumeDist, false, true
	case "LAG":
		return ir.AggLag, false, true
	case "LEAD":
		return ir.AggLead, false, true
	case "FIRST_VALUE":
		return ir.AggFirstValue, false, true
	case "LAST_VALUE":
		return ir.AggLastValue, false, true
	case "NTH_VALUE":
		return ir.AggNthValue, false, true
	default:
		return 0, false, false
	}
}

// parseAggregateOrWindow parses "FUNC(args) [OVER (...)]"; presence of OVER
// decides whether the call lands in SelectColAggregate or SelectColWindow
// (spec §6, §4.9, §4.12).
func (p *Parser) parseAggregateOrWindow(fn ir.AggFunc, allowsPlainAgg bool) (ir.SelectColumn, error) {
	p.advance() // func name
	if err := p.expectPunct("("); err != nil {
		return ir.SelectColumn{}, err
	}
	agg := ir.AggExpr{Func: fn}
	if fn == ir.AggCount && p.isPunct("*") {
		p.advance()
		agg.Func = ir.AggCountStar
	} else if !p.isPunct(")") {
		name, err := p.identifier()
		if err != nil {
			return ir.SelectColumn{}, err
		}
		agg.ColumnName = name
	}
	// LAG/LEAD/NTILE/NTH_VALUE take an optional/required integer second arg.
	if p.eatPunct(",") {
		n, err := p.parseIntLiteral()
		if err != nil {
			return ir.SelectColumn{}, err
		}
		agg.IntArg = int(n)
	}
	if err := p.expectPunct(")"); err != nil {
		return ir.SelectColumn{}, err
	}

	alias := ""
	isWindow := false
	if p.eatKeyword("OVER") {
		isWindow = true
		agg.IsWindow = true
		if err := p.expectPunct("("); err != nil {
			return ir.SelectColumn{}, err
		}
		if p.eatKeyword("PARTITION") {
			if err := p.expectKeyword("BY"); err != nil {
				return ir.SelectColumn{}, err
			}
			for {
				name, err := p.identifier()
				if err != nil {
					return ir.SelectColumn{}, err
				}
				agg.PartitionBy = append(agg.PartitionBy, name)
				if !p.eatPunct(",") {
					break
				}
			}
		}
		if p.eatKeyword("ORDER") {
			if err := p.expectKeyword("BY"); err != nil {
				return ir.SelectColumn{}, err
			}
			for {
				item, err := p.parseOrderByItem()
				if err != nil {
					return ir.SelectColumn{}, err
				}
				agg.OrderBy = append(agg.OrderBy, item)
				if !p.eatPunct(",") {
					break
				}
			}
		}
		if err := p.consumeFrameClause(&agg); err != nil {
			return ir.SelectColumn{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return ir.SelectColumn{}, err
		}
	} else if !allowsPlainAgg {
		return ir.SelectColumn{}, errorAt(p, "window function requires OVER clause")
	}

	if p.eatKeyword("AS") {
		a, err := p.identifier()
		if err != nil {
			return ir.SelectColumn{}, err
		}
		alias = a
	} else if a, ok := p.tryIdentifier(); ok {
		alias = a
	}

	idx := p.q.Aggregates.Push(agg)
	if isWindow {
		return ir.SelectColumn{Kind: ir.SelectColWindow, WinIdx: idx, Alias: alias}, nil
	}
	return ir.SelectColumn{Kind: ir.SelectColAggregate, AggIdx: idx, Alias: alias}, nil
}

// consumeFrameClause parses a ROWS/RANGE frame clause, including
// N PRECEDING/FOLLOWING bounds, and records it in agg.Frame. Neither
// executor reads agg.Frame: every window function covers the whole
// partition.
func (p *Parser) consumeFrameClause(agg *ir.AggExpr) error {
	if !p.isKeyword("ROWS") && !p.isKeyword("RANGE") {
		return nil
	}
	p.advance()
	agg.Frame.HasFrame = true
	if p.eatKeyword("BETWEEN") {
		if err := p.consumeFrameBound(agg, true); err != nil {
			return err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return err
		}
		return p.consumeFrameBound(agg, false)
	}
	return p.consumeFrameBound(agg, true)
}

func (p *Parser) consumeFrameBound(agg *ir.AggExpr, start bool) error {
	switch {
	case p.eatKeyword("UNBOUNDED"):
		if p.eatKeyword("PRECEDING") {
			if start {
				agg.Frame.Start = ir.FrameUnboundedPreceding
			} else {
				agg.Frame.End = ir.FrameUnboundedPreceding
			}
			return nil
		}
		if err := p.expectKeyword("FOLLOWING"); err != nil {
			return err
		}
		if start {
			agg.Frame.Start = ir.FrameUnboundedFollowing
		} else {
			agg.Frame.End = ir.FrameUnboundedFollowing
		}
		return nil
	case p.eatKeyword("CURRENT"):
		if err := p.expectKeyword("ROW"); err != nil {
			return err
		}
		if start {
			agg.Frame.Start = ir.FrameCurrentRow
		} else {
			agg.Frame.End = ir.FrameCurrentRow
		}
		return nil
	default:
		n, err := p.parseIntLiteral()
		if err != nil {
			return err
		}
		if p.eatKeyword("PRECEDING") {
			if start {
				agg.Frame.Start, agg.Frame.StartN = ir.FrameNPreceding, int(n)
			} else {
				agg.Frame.End, agg.Frame.EndN = ir.FrameNPreceding, int(n)
			}
			return nil
		}
		if err := p.expectKeyword("FOLLOWING"); err != nil {
			return err
		}
		if start {
			agg.Frame.Start, agg.Frame.StartN = ir.FrameNFollowing, int(n)
		} else {
			agg.Frame.End, agg.Frame.EndN = ir.FrameNFollowing, int(n)
		}
		return nil
	}
}

func (p *Parser) parseOrderByItem() (ir.OrderByItem, error) {
	name, err := p.identifier()
	if err != nil {
		return ir.OrderByItem{}, err
	}
	item := ir.OrderByItem{ColumnName: name}
	if p.eatKeyword("DESC") {
		item.Desc = true
	} else {
		p.eatKeyword("ASC")
	}
	if p.eatKeyword("NULLS") {
		item.HasNullsClause = true
		if p.eatKeyword("FIRST") {
			item.NullsFirst = true
		} else if err := p.expectKeyword("LAST"); err != nil {
			return ir.OrderByItem{}, err
		}
	}
	return item, nil
}

func (p *Parser) parseIntLiteral() (int64, error) {
	t := p.cur()
	if t.kind != tokNumber {
		return 0, errorAt(p, "expected integer literal")
	}
	p.advance()
	i, _, isInt := parseNumberLiteral(t.text)
	if !isInt {
		return 0, errorAt(p, "expected integer literal")
	}
	return i, nil
}

func (p *Parser) tryParseJoin() (ir.JoinInfo, bool, error) {
	jt, ok := p.peekJoinType()
	if !ok {
		return ir.JoinInfo{}, false, nil
	}
	natural := p.consumeJoinKeywords(jt)

	j := ir.JoinInfo{Type: jt, CondIdx: ir.IdxNone, LateralSQLIdx: ir.IdxNone, Natural: natural}

	if jt == ir.JoinLateral && p.parenStartsSelect() {
		p.advance()
		body, err := p.captureSubqueryBody()
		if err != nil {
			return ir.JoinInfo{}, false, err
		}
		j.LateralSQLIdx = p.q.CaptureSQL(body)
		if alias, ok := p.tryIdentifier(); ok {
			j.Alias = alias
		}
	} else {
		name, err := p.identifier()
		if err != nil {
			return ir.JoinInfo{}, false, err
		}
		j.TableName = name
		p.eatKeyword("AS")
		if alias, ok := p.tryIdentifier(); ok {
			j.Alias = alias
		}
	}

	switch {
	case p.eatKeyword("ON"):
		c, err := p.parseCondition()
		if err != nil {
			return ir.JoinInfo{}, false, err
		}
		j.CondIdx = c
	case p.eatKeyword("USING"):
		if err := p.expectPunct("("); err != nil {
			return ir.JoinInfo{}, false, err
		}
		for {
			name, err := p.identifier()
			if err != nil {
				return ir.JoinInfo{}, false, err
			}
			j.UsingColumns = append(j.UsingColumns, name)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return ir.JoinInfo{}, false, err
		}
	}

	return j, true, nil
}

func (p *Parser) peekJoinType() (ir.JoinType, bool) {
	switch {
	case p.isKeyword("JOIN"):
		return ir.JoinInner, true
	case p.isKeyword("INNER"):
		return ir.JoinInner, true
	case p.isKeyword("LEFT"):
		return ir.JoinLeft, true
	case p.isKeyword("RIGHT"):
		return ir.JoinRight, true
	case p.isKeyword("FULL"):
		return ir.JoinFull, true
	case p.isKeyword("CROSS"):
		return ir.JoinCross, true
	case p.isKeyword("LATERAL"):
		return ir.JoinLateral, true
	case p.isKeyword("NATURAL"):
		return ir.JoinInner, true
	default:
		return 0, false
	}
}

func (p *Parser) consumeJoinKeywords(jt ir.JoinType) bool {
	natural := p.eatKeyword("NATURAL")
	switch jt {
	case ir.JoinInner:
		p.eatKeyword("INNER")
	case ir.JoinLeft:
		p.advance()
		p.eatKeyword("OUTER")
	case ir.JoinRight:
		p.advance()
		p.eatKeyword("OUTER")
	case ir.JoinFull:
		p.advance()
		p.eatKeyword("OUTER")
	case ir.JoinCross:
		p.advance()
		p.eatKeyword("JOIN")
		return natural
	case ir.JoinLateral:
		p.advance()
		p.eatKeyword("JOIN")
		return natural
	}
	p.eatKeyword("JOIN")
	return natural
}
