package parser

import (
	"strings"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

func (p *Parser) parseInsert() (*ir.Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.identifier()
	if err != nil {
		return nil, err
	}
	ins := &ir.QueryInsert{TableName: table, SelectSQLIdx: ir.IdxNone}

	if p.eatPunct("(") {
		for {
			name, err := p.identifier()
			if err != nil {
				return nil, err
			}
			ins.ColumnList = append(ins.ColumnList, name)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	switch {
	case p.eatKeyword("VALUES"):
		for {
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			var row []types.Cell
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				lit, ok := p.literalOf(e)
				if !ok {
					return nil, errorAt(p, "VALUES entries must be literals")
				}
				row = append(row, lit)
				if !p.eatPunct(",") {
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			ins.ValuesRows = append(ins.ValuesRows, row)
			if !p.eatPunct(",") {
				break
			}
		}
	case p.isKeyword("SELECT") || p.isKeyword("WITH"):
		startPos := p.cur().pos
		p.skipToEndOfClause([]string{"ON", "RETURNING"})
		endPos := p.cur().pos
		ins.SelectSQLIdx = p.q.CaptureSQL(strings.TrimSpace(string(p.runes[startPos:endPos])))
	default:
		return nil, errorAt(p, "expected VALUES or SELECT")
	}

	if p.eatKeyword("ON") {
		if err := p.expectKeyword("CONFLICT"); err != nil {
			return nil, err
		}
		if p.eatPunct("(") {
			col, err := p.identifier()
			if err != nil {
				return nil, err
			}
			ins.ConflictColumn = col
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		if err := p.expectKeyword("DO"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NOTHING"); err != nil {
			return nil, err
		}
		ins.ConflictAction = ir.ConflictDoNothing
	}

	if p.eatKeyword("RETURNING") {
		cols, err := p.parseReturningList()
		if err != nil {
			return nil, err
		}
		ins.Returning = cols
	}

	return &ir.Statement{Kind: ir.StmtInsert, Insert: ins}, nil
}

// skipToEndOfClause advances the cursor until EOF or one of stop keywords
// is seen at the top nesting level, used to bound a captured SQL substring
// (e.g. the SELECT body of an INSERT ... SELECT before ON CONFLICT /
// RETURNING).
func (p *Parser) skipToEndOfClause(stop []string) {
	depth := 0
	for !p.atEOF() {
		if depth == 0 {
			for _, kw := range stop {
				if p.isKeyword(kw) {
					return
				}
			}
		}
		if p.isPunct("(") {
			depth++
		}
		if p.isPunct(")") {
			if depth == 0 {
				return
			}
			depth--
		}
		p.advance()
	}
}

func (p *Parser) parseReturningList() ([]string, error) {
	if p.isPunct("*") {
		p.advance()
		return []string{"*"}, nil
	}
	var cols []string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if !p.eatPunct(",") {
			break
		}
	}
	return cols, nil
}

func (p *Parser) parseUpdate() (*ir.Statement, error) {
	p.advance() // UPDATE
	table, err := p.identifier()
	if err != nil {
		return nil, err
	}
	upd := &ir.QueryUpdate{TableName: table, WhereCondIdx: ir.IdxNone}

	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		sc := ir.SetClause{ColumnName: col, ExprIdx: ir.IdxNone}
		if p.eatKeyword("DEFAULT") {
			sc.Kind = ir.SetExprDefault
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sc.Kind = ir.SetExprValue
			sc.ExprIdx = e
		}
		upd.Set = append(upd.Set, sc)
		if !p.eatPunct(",") {
			break
		}
	}

	if p.eatKeyword("FROM") {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		upd.FromTable = name
	}

	if p.eatKeyword("WHERE") {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		upd.WhereCondIdx = c
	}

	if p.eatKeyword("RETURNING") {
		cols, err := p.parseReturningList()
		if err != nil {
			return nil, err
		}
		upd.Returning = cols
	}

	return &ir.Statement{Kind: ir.StmtUpdate, Update: upd}, nil
}

func (p *Parser) parseDelete() (*ir.Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.identifier()
	if err != nil {
		return nil, err
	}
	del := &ir.QueryDelete{TableName: table, WhereCondIdx: ir.IdxNone}

	if p.eatKeyword("WHERE") {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		del.WhereCondIdx = c
	}

	if p.eatKeyword("RETURNING") {
		cols, err := p.parseReturningList()
		if err != nil {
			return nil, err
		}
		del.Returning = cols
	}

	return &ir.Statement{Kind: ir.StmtDelete, Delete: del}, nil
}
