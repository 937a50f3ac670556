package parser

import (
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/types"
)

func (p *Parser) parseCreate() (*ir.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.eatKeyword("TABLE"):
		return p.parseCreateTable()
	case p.eatKeyword("UNIQUE"):
		if err := p.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndex(true)
	case p.eatKeyword("INDEX"):
		return p.parseCreateIndex(false)
	case p.eatKeyword("TYPE"):
		return p.parseCreateType()
	default:
		return nil, errorAt(p, "expected TABLE, INDEX, or TYPE after CREATE")
	}
}

func (p *Parser) parseCreateTable() (*ir.Statement, error) {
	p.eatKeyword("IF")
	if p.isKeyword("NOT") {
		p.advance()
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
	}
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	ct := &ir.QueryCreateTable{TableName: name}

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	for {
		if p.isKeyword("CHECK") {
			p.advance()
			text, err := p.captureParenText()
			if err != nil {
				return nil, err
			}
			ct.Checks = append(ct.Checks, text)
		} else if p.isKeyword("PRIMARY") || p.isKeyword("UNIQUE") || p.isKeyword("FOREIGN") || p.isKeyword("CONSTRAINT") {
			// Table-level constraint clause: parsed and skipped to its
			// balancing paren / clause end, matching the CHECK
			// treatment (spec §6 "CHECK (…) (parsed and ignored)").
			if err := p.skipTableConstraint(); err != nil {
				return nil, err
			}
		} else {
			col, err := p.parseColumnDef(ct.TableName)
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
		}
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	return &ir.Statement{Kind: ir.StmtCreateTable, CreateTable: ct}, nil
}

// skipTableConstraint consumes a table-level PRIMARY KEY/UNIQUE/FOREIGN
// KEY/CONSTRAINT clause up to (but not past) the next top-level comma or
// closing paren.
func (p *Parser) skipTableConstraint() error {
	depth := 0
	for {
		if p.atEOF() {
			return errorAt(p, "unterminated table constraint")
		}
		if depth == 0 && (p.isPunct(",") || p.isPunct(")")) {
			return nil
		}
		if p.isPunct("(") {
			depth++
		}
		if p.isPunct(")") {
			depth--
		}
		p.advance()
	}
}

func (p *Parser) parseColumnDef(tableName string) (types.Column, error) {
	name, err := p.identifier()
	if err != nil {
		return types.Column{}, err
	}
	typeName, err := p.identifier()
	if err != nil {
		return types.Column{}, err
	}
	// Swallow a "(n)" / "(p,s)" type modifier, e.g. VARCHAR(255), NUMERIC(10,2).
	if p.isPunct("(") {
		if _, err := p.captureParenText(); err != nil {
			return types.Column{}, err
		}
	}
	tag, ok := columnTypeToTag(typeName)
	if !ok {
		return types.Column{}, errorAt(p, "unknown column type "+typeName)
	}
	col := types.Column{Name: name, Tag: tag}
	if isSerialType(typeName) {
		col.SequenceName = storage.SequenceNameFor(tableName, name)
	}

	for {
		switch {
		case p.eatKeyword("NOT"):
			if err := p.expectKeyword("NULL"); err != nil {
				return types.Column{}, err
			}
			col.NotNull = true
		case p.eatKeyword("UNIQUE"):
			col.Unique = true
		case p.eatKeyword("PRIMARY"):
			if err := p.expectKeyword("KEY"); err != nil {
				return types.Column{}, err
			}
			col.PrimaryKey = true
			col.NotNull = true
			col.Unique = true
		case p.eatKeyword("DEFAULT"):
			e, err := p.parseExpr()
			if err != nil {
				return types.Column{}, err
			}
			if lit, ok := p.literalOf(e); ok {
				col.HasDefault = true
				col.Default = lit
			}
		default:
			return col, nil
		}
	}
}

func (p *Parser) parseCreateIndex(unique bool) (*ir.Statement, error) {
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.identifier()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &ir.Statement{Kind: ir.StmtCreateIndex, CreateIndex: &ir.QueryCreateIndex{
		IndexName: name, TableName: table, Columns: cols, Unique: unique,
	}}, nil
}

func (p *Parser) parseCreateType() (*ir.Statement, error) {
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ENUM"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var vals []string
	for {
		t := p.cur()
		if t.kind != tokString {
			return nil, errorAt(p, "expected string literal in enum value list")
		}
		p.advance()
		vals = append(vals, t.text)
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &ir.Statement{Kind: ir.StmtCreateType, CreateType: &ir.QueryCreateType{TypeName: name, Values: vals}}, nil
}

func (p *Parser) parseDrop() (*ir.Statement, error) {
	p.advance() // DROP
	switch {
	case p.eatKeyword("TABLE"):
		p.eatKeyword("IF")
		p.eatKeyword("EXISTS")
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return &ir.Statement{Kind: ir.StmtDropTable, DropTable: &ir.QueryDropTable{TableName: name}}, nil
	case p.eatKeyword("INDEX"):
		p.eatKeyword("IF")
		p.eatKeyword("EXISTS")
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return &ir.Statement{Kind: ir.StmtDropIndex, DropIndex: &ir.QueryDropIndex{IndexName: name}}, nil
	case p.eatKeyword("TYPE"):
		p.eatKeyword("IF")
		p.eatKeyword("EXISTS")
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return &ir.Statement{Kind: ir.StmtDropType, DropType: &ir.QueryDropType{TypeName: name}}, nil
	default:
		return nil, errorAt(p, "expected TABLE, INDEX, or TYPE after DROP")
	}
}

func (p *Parser) parseAlter() (*ir.Statement, error) {
	p.advance() // ALTER
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.identifier()
	if err != nil {
		return nil, err
	}
	at := &ir.QueryAlterTable{TableName: table}

	switch {
	case p.eatKeyword("ADD"):
		p.eatKeyword("COLUMN")
		col, err := p.parseColumnDef(table)
		if err != nil {
			return nil, err
		}
		at.Action = ir.AlterAddColumn
		at.NewColumn = col
	case p.eatKeyword("DROP"):
		p.eatKeyword("COLUMN")
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		at.Action = ir.AlterDropColumn
		at.ColumnName = name
	case p.eatKeyword("RENAME"):
		p.eatKeyword("COLUMN")
		from, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("TO"); err != nil {
			return nil, err
		}
		to, err := p.identifier()
		if err != nil {
			return nil, err
		}
		at.Action = ir.AlterRenameColumn
		at.ColumnName = from
		at.NewName = to
	case p.eatKeyword("ALTER"):
		p.eatKeyword("COLUMN")
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("TYPE"); err != nil {
			return nil, err
		}
		typeName, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if p.isPunct("(") {
			if _, err := p.captureParenText(); err != nil {
				return nil, err
			}
		}
		tag, ok := columnTypeToTag(typeName)
		if !ok {
			return nil, errorAt(p, "unknown column type "+typeName)
		}
		at.Action = ir.AlterColumnType
		at.ColumnName = name
		at.NewType = tag
	default:
		return nil, errorAt(p, "expected ADD, DROP, RENAME, or ALTER after ALTER TABLE")
	}

	return &ir.Statement{Kind: ir.StmtAlterTable, AlterTable: at}, nil
}
