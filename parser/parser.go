package parser

import (
	"strings"

	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/types"
)

// Parser walks a token stream built from one SQL statement's text and
// emits an ir.Statement against a fresh ir.QueryArena (spec §3 "Query
// arena ... created per parse").
type Parser struct {
	sql   string
	runes []rune
	toks  []token
	pos   int
	q     *ir.QueryArena
}

// Parse tokenizes and parses one SQL statement, returning its IR.
func Parse(sql string) (*ir.Statement, error) {
	p := &Parser{sql: sql, runes: []rune(sql), q: ir.New()}
	l := newLexer(sql)
	for {
		t := l.next()
		p.toks = append(p.toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, errkind.Syntax.New(err.Error())
	}
	stmt.Arena = p.q
	return stmt, nil
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().kind == tokEOF }

// peek returns the token offset positions ahead of the cursor, or a
// synthetic EOF token if that would run past the end of the stream (the
// EOF sentinel token that terminates every token slice is always the last
// element, so offsets beyond it must not be indexed directly).
func (p *Parser) peek(offset int) token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[i]
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *Parser) eatKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.eatKeyword(kw) {
		return errorAt(p, "expected "+kw)
	}
	return nil
}

func (p *Parser) isPunct(s string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == s
}

func (p *Parser) eatPunct(s string) bool {
	if p.isPunct(s) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectPunct(s string) error {
	if !p.eatPunct(s) {
		return errorAt(p, "expected '"+s+"'")
	}
	return nil
}

func errorAt(p *Parser, msg string) error {
	return &syntaxErr{msg: msg, near: p.cur().text}
}

type syntaxErr struct {
	msg, near string
}

func (e *syntaxErr) Error() string { return e.msg + " near \"" + e.near + "\"" }

func (p *Parser) identifier() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", errorAt(p, "expected identifier")
	}
	p.advance()
	// Support dotted names (alias.column, schema.table) by gluing
	// consecutive ident.ident tokens.
	name := t.text
	for p.isPunct(".") {
		p.advance()
		nt := p.cur()
		if nt.kind != tokIdent {
			return "", errorAt(p, "expected identifier after '.'")
		}
		p.advance()
		name += "." + nt.text
	}
	return name, nil
}

func (p *Parser) parseStatement() (*ir.Statement, error) {
	switch {
	case p.isKeyword("SELECT"), p.isKeyword("WITH"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &ir.Statement{Kind: ir.StmtSelect, Select: sel}, nil
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("DROP"):
		return p.parseDrop()
	case p.isKeyword("ALTER"):
		return p.parseAlter()
	case p.isKeyword("BEGIN"):
		p.advance()
		p.eatKeyword("TRANSACTION")
		return &ir.Statement{Kind: ir.StmtBegin}, nil
	case p.isKeyword("COMMIT"):
		p.advance()
		p.eatKeyword("TRANSACTION")
		return &ir.Statement{Kind: ir.StmtCommit}, nil
	case p.isKeyword("ROLLBACK"):
		p.advance()
		p.eatKeyword("TRANSACTION")
		return &ir.Statement{Kind: ir.StmtRollback}, nil
	default:
		return nil, errorAt(p, "unrecognized statement")
	}
}

func columnTypeToTag(name string) (types.Tag, bool) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER", "INT4", "SERIAL":
		return types.TagInt, true
	case "BIGINT", "INT8", "BIGSERIAL":
		return types.TagBigInt, true
	case "SMALLINT":
		return types.TagSmallInt, true
	case "FLOAT", "FLOAT8", "DOUBLE", "REAL":
		return types.TagFloat, true
	case "NUMERIC", "DECIMAL":
		return types.TagNumeric, true
	case "TEXT", "VARCHAR", "CHAR":
		return types.TagText, true
	case "BOOLEAN", "BOOL":
		return types.TagBoolean, true
	case "DATE":
		return types.TagDate, true
	case "TIMESTAMP":
		return types.TagTimestamp, true
	case "TIMESTAMPTZ":
		return types.TagTimestamptz, true
	case "TIME":
		return types.TagTime, true
	case "INTERVAL":
		return types.TagInterval, true
	case "UUID":
		return types.TagUUID, true
	default:
		return 0, false
	}
}

func isSerialType(name string) bool {
	u := strings.ToUpper(name)
	return u == "SERIAL" || u == "BIGSERIAL"
}
