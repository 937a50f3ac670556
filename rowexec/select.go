package rowexec

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/eval"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// Select executes a full SELECT statement row-at-a-time (spec §4.13): a
// generalization of every join/grouping/windowing/set shape the planner
// declines, reusing package eval for every predicate and expression so
// it agrees with the block executor wherever both can run a query.
func Select(ctx *Ctx, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	schema, rows, err := resolveBaseRelation(ctx, sel)
	if err != nil {
		return nil, nil, err
	}

	schema, rows, err = execJoins(ctx, schema, rows, sel.Joins)
	if err != nil {
		return nil, nil, err
	}

	rows, err = filterRows(ctx, schema, rows, sel.WhereCondIdx)
	if err != nil {
		return nil, nil, err
	}

	var outSchema types.Schema
	var outRows []row.Row
	switch {
	case len(sel.GroupByColumns) > 0 || hasAggregate(sel.Columns):
		outSchema, outRows, err = execGroupBy(ctx, schema, rows, sel)
	case hasWindow(sel.Columns):
		outSchema, outRows, err = execWindowSelect(ctx, schema, rows, sel)
	default:
		outSchema, outRows, err = projectPlain(ctx, schema, rows, sel.Columns)
	}
	if err != nil {
		return nil, nil, err
	}

	if sel.Distinct {
		outRows = dedupRows(outRows)
	}
	if len(sel.OrderBy) > 0 {
		sortRows(outSchema, outRows, sel.OrderBy)
	}
	outRows = limitRows(outRows, sel.Offset, sel.Limit)
	return outSchema, outRows, nil
}

func hasAggregate(cols []ir.SelectColumn) bool {
	for _, c := range cols {
		if c.Kind == ir.SelectColAggregate {
			return true
		}
	}
	return false
}

func hasWindow(cols []ir.SelectColumn) bool {
	for _, c := range cols {
		if c.Kind == ir.SelectColWindow {
			return true
		}
	}
	return false
}

func resolveBaseRelation(ctx *Ctx, sel *ir.QuerySelect) (types.Schema, []row.Row, error) {
	if sel.FromTable == "" && sel.FromSubquerySQLIdx == ir.IdxNone {
		// No FROM clause: a single synthetic row lets constant
		// expressions (e.g. "SELECT 1 + 1") project once.
		return types.Schema{}, []row.Row{{}}, nil
	}
	return resolveRelation(ctx, sel.FromTable, sel.FromSubquerySQLIdx)
}

// resolveRelation materializes a base table, or runs a FROM (SELECT ...)
// subquery's captured SQL text through the injected StatementExecutor.
// WITH ... AS (...) bodies arrive as ordinary tables: the dispatcher
// installs each CTE as a temp table before the statement reaches rowexec.
func resolveRelation(ctx *Ctx, tableName string, subquerySQLIdx uint32) (types.Schema, []row.Row, error) {
	if subquerySQLIdx != ir.IdxNone {
		sql := ctx.Arena.Strings.Get(subquerySQLIdx)
		return ctx.Exec.ExecSQL(sql)
	}
	t := ctx.DB.FindTable(tableName)
	if t == nil {
		return nil, nil, errkind.NotFoundTable.New(tableName)
	}
	rows := make([]row.Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone(types.OwnerArena)
	}
	return t.Columns, rows, nil
}

func execJoins(ctx *Ctx, schema types.Schema, rows []row.Row, joins []ir.JoinInfo) (types.Schema, []row.Row, error) {
	for _, j := range joins {
		var err error
		schema, rows, err = applyJoin(ctx, schema, rows, j)
		if err != nil {
			return nil, nil, err
		}
	}
	return schema, rows, nil
}

// applyJoin implements INNER/LEFT/RIGHT/FULL/CROSS/NATURAL/USING joins
// as a nested loop with matched-row tracking for outer joins (spec §4.8
// exec_join, generalized from blockexec's hash-join to the full join
// vocabulary the legacy path must cover). Merged schemas keep both
// sides' column names unqualified (bare), relying on
// types.Schema.FindColumn's dot-suffix retry to resolve alias-qualified
// references like "o.id" against a bare "id" column.
func applyJoin(ctx *Ctx, leftSchema types.Schema, leftRows []row.Row, j ir.JoinInfo) (types.Schema, []row.Row, error) {
	if j.Type == ir.JoinLateral {
		return applyLateralJoin(ctx, leftSchema, leftRows, j)
	}

	rightSchema, rightRows, err := resolveRelation(ctx, j.TableName, ir.IdxNone)
	if err != nil {
		return nil, nil, err
	}
	outSchema := concatSchema(leftSchema, rightSchema)

	if j.Type == ir.JoinCross {
		return outSchema, crossJoin(leftRows, rightRows), nil
	}

	var matchCols []string
	switch {
	case j.Natural:
		matchCols = commonColumns(leftSchema, rightSchema)
	case len(j.UsingColumns) > 0:
		matchCols = j.UsingColumns
	}

	out := make([]row.Row, 0, len(leftRows))
	rightMatched := make([]bool, len(rightRows))
	for _, lr := range leftRows {
		matchedAny := false
		for ri, rr := range rightRows {
			ok, err := joinMatches(ctx, leftSchema, lr, rightSchema, rr, outSchema, j, matchCols)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			matchedAny = true
			rightMatched[ri] = true
			out = append(out, concatRows(lr, rr))
		}
		if !matchedAny && (j.Type == ir.JoinLeft || j.Type == ir.JoinFull) {
			out = append(out, concatRows(lr, nullRowFor(rightSchema)))
		}
	}
	if j.Type == ir.JoinRight || j.Type == ir.JoinFull {
		for ri, rr := range rightRows {
			if !rightMatched[ri] {
				out = append(out, concatRows(nullRowFor(leftSchema), rr))
			}
		}
	}
	return outSchema, out, nil
}

func joinMatches(ctx *Ctx, ls types.Schema, lr row.Row, rs types.Schema, rr row.Row, merged types.Schema, j ir.JoinInfo, matchCols []string) (bool, error) {
	if len(matchCols) > 0 {
		for _, col := range matchCols {
			li := ls.FindColumn(col)
			ri := rs.FindColumn(col)
			if li < 0 || ri < 0 {
				return false, errkind.NotFoundColumn.New(col)
			}
			if !types.Equal(lr[li], rr[ri]) {
				return false, nil
			}
		}
		return true, nil
	}
	if j.CondIdx == ir.IdxNone {
		return true, nil
	}
	return eval.Condition(ctx.Arena, merged, concatRows(lr, rr), j.CondIdx)
}

func commonColumns(ls, rs types.Schema) []string {
	var out []string
	for _, c := range ls {
		if rs.IndexOf(c.Name) >= 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

func crossJoin(leftRows, rightRows []row.Row) []row.Row {
	out := make([]row.Row, 0, len(leftRows)*len(rightRows))
	for _, lr := range leftRows {
		for _, rr := range rightRows {
			out = append(out, concatRows(lr, rr))
		}
	}
	return out
}

// applyLateralJoin evaluates the right-hand correlated subquery once
// per outer row by substituting outer column references with rendered
// literals in its captured SQL text, then re-dispatching it through the
// injected StatementExecutor (spec §4.8/§9: "LATERAL ... per-outer-row
// re-parse-and-execute").
func applyLateralJoin(ctx *Ctx, leftSchema types.Schema, leftRows []row.Row, j ir.JoinInfo) (types.Schema, []row.Row, error) {
	sqlText := ctx.Arena.Strings.Get(j.LateralSQLIdx)
	var rightSchema types.Schema
	out := make([]row.Row, 0, len(leftRows))
	for _, lr := range leftRows {
		substituted := substituteOuterRefs(sqlText, leftSchema, lr)
		rs, rows, err := ctx.Exec.ExecSQL(substituted)
		if err != nil {
			return nil, nil, err
		}
		if rightSchema == nil {
			rightSchema = rs
		}
		if len(rows) == 0 {
			if j.Type == ir.JoinLeft || j.Type == ir.JoinFull {
				out = append(out, concatRows(lr, nullRowFor(rs)))
			}
			continue
		}
		for _, rr := range rows {
			out = append(out, concatRows(lr, rr))
		}
	}
	if rightSchema == nil {
		rightSchema = types.Schema{}
	}
	return concatSchema(leftSchema, rightSchema), out, nil
}

var identifierToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)

// substituteOuterRefs rewrites every identifier token in sql that
// resolves against schema/r into a SQL literal, leaving everything else
// (keywords, the inner query's own table/column names) untouched. This
// is a regex-based rewrite rather than a real re-parse, a deliberate
// simplification of LATERAL's correlation mechanism (see DESIGN.md).
func substituteOuterRefs(sql string, schema types.Schema, r row.Row) string {
	return identifierToken.ReplaceAllStringFunc(sql, func(tok string) string {
		ci := schema.FindColumn(tok)
		if ci < 0 {
			return tok
		}
		return literalText(r[ci])
	})
}

// literalText renders a cell back into SQL literal syntax for LATERAL's
// outer-reference substitution.
func literalText(c types.Cell) string {
	if c.Null {
		return "NULL"
	}
	switch {
	case c.Tag.IsTextLike():
		return "'" + strings.ReplaceAll(c.Text, "'", "''") + "'"
	case c.Tag == types.TagBoolean:
		if c.Bool {
			return "true"
		}
		return "false"
	case c.Tag == types.TagFloat || c.Tag == types.TagNumeric:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case c.Tag.IsNumeric():
		return strconv.FormatInt(c.Int, 10)
	default:
		return "'" + c.AsText() + "'"
	}
}

func concatSchema(a, b types.Schema) types.Schema {
	out := make(types.Schema, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatRows(a, b row.Row) row.Row {
	out := make(row.Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func nullRowFor(schema types.Schema) row.Row {
	r := make(row.Row, len(schema))
	for i, c := range schema {
		r[i] = types.NullCell(c.Tag)
	}
	return r
}

func filterRows(ctx *Ctx, schema types.Schema, rows []row.Row, condIdx uint32) ([]row.Row, error) {
	if condIdx == ir.IdxNone {
		return rows, nil
	}
	out := rows[:0]
	for _, r := range rows {
		ok, err := eval.Condition(ctx.Arena, schema, r, condIdx)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// evalSelectColumn resolves one non-aggregate, non-window SELECT-list
// item (ColumnRef or Expr) against schema/r. Aggregate and window items
// are handled by their own execution paths, which call this only for
// the plain columns interleaved among them.
func evalSelectColumn(ctx *Ctx, schema types.Schema, r row.Row, sc ir.SelectColumn) (types.Cell, types.Column, error) {
	switch sc.Kind {
	case ir.SelectColColumnRef:
		ci := schema.FindColumn(sc.ColumnName)
		if ci < 0 {
			return types.Cell{}, types.Column{}, errkind.NotFoundColumn.New(sc.ColumnName)
		}
		col := *schema[ci]
		if sc.Alias != "" {
			col.Name = sc.Alias
		}
		return r[ci], col, nil
	case ir.SelectColExpr:
		v, err := eval.Expr(ctx.Arena, schema, r, sc.ExprIdx)
		if err != nil {
			return types.Cell{}, types.Column{}, err
		}
		name := sc.Alias
		if name == "" {
			name = "column"
		}
		return v, types.Column{Name: name, Tag: v.Tag}, nil
	}
	return types.Cell{}, types.Column{}, errkind.Execution.New("unsupported select column in this projection context")
}

func expandStar(schema types.Schema, cols []ir.SelectColumn) []ir.SelectColumn {
	var out []ir.SelectColumn
	for _, c := range cols {
		if c.Kind != ir.SelectColStar {
			out = append(out, c)
			continue
		}
		for _, sc := range schema {
			out = append(out, ir.SelectColumn{Kind: ir.SelectColColumnRef, ColumnName: sc.Name})
		}
	}
	return out
}

// projectPlain handles the no-GROUP-BY, no-window SELECT body: one
// projectRow-style pass per input row, in exact SELECT-list order.
func projectPlain(ctx *Ctx, schema types.Schema, rows []row.Row, cols []ir.SelectColumn) (types.Schema, []row.Row, error) {
	expanded := expandStar(schema, cols)
	outSchema := make(types.Schema, len(expanded))
	typed := make([]bool, len(expanded))
	out := make([]row.Row, len(rows))
	for ri, r := range rows {
		nr := make(row.Row, len(expanded))
		for ci, sc := range expanded {
			v, col, err := evalSelectColumn(ctx, schema, r, sc)
			if err != nil {
				return nil, nil, err
			}
			nr[ci] = v
			if !typed[ci] && (!v.Null || sc.Kind == ir.SelectColColumnRef) {
				c := col
				outSchema[ci] = &c
				typed[ci] = true
			}
		}
		out[ri] = nr
	}
	for ci, sc := range expanded {
		if outSchema[ci] != nil {
			continue
		}
		name := sc.Alias
		if name == "" {
			name = "column"
		}
		outSchema[ci] = &types.Column{Name: name, Tag: types.TagText}
	}
	return outSchema, out, nil
}

// dedupRows removes duplicate rows by full-row value equality via a
// quadratic nested-loop scan, matching the legacy executor's simpler
// (non-hashed) DISTINCT technique (spec §4.13), deliberately distinct
// from blockexec's hashed buildDistinct.
func dedupRows(rows []row.Row) []row.Row {
	out := rows[:0]
	for _, r := range rows {
		dup := false
		for _, seen := range out {
			if seen.Equal(r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func sortRows(schema types.Schema, rows []row.Row, items []ir.OrderByItem) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareOrderBy(schema, rows[i], rows[j], items) < 0
	})
}

// compareOrderBy is rowexec's own copy of the block executor's sort
// comparator (unexported there). ORDER BY is applied after final
// projection, so a key may name a SELECT-list alias or a projected
// column; a key naming a column that is not in schema is skipped.
func compareOrderBy(schema types.Schema, a, b row.Row, items []ir.OrderByItem) int {
	for _, it := range items {
		ci := schema.FindColumn(it.ColumnName)
		if ci < 0 {
			continue
		}
		av, bv := a[ci], b[ci]
		nullsFirst := it.NullsFirst
		if !it.HasNullsClause {
			nullsFirst = it.Desc
		}
		switch {
		case av.IsNullLike() && bv.IsNullLike():
			continue
		case av.IsNullLike():
			if nullsFirst {
				return -1
			}
			return 1
		case bv.IsNullLike():
			if nullsFirst {
				return 1
			}
			return -1
		}
		n, err := types.Compare(av, bv)
		if err != nil {
			continue
		}
		if it.Desc {
			n = -n
		}
		if n != 0 {
			return n
		}
	}
	return 0
}

func limitRows(rows []row.Row, offset, limit int64) []row.Row {
	start := int(offset)
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]
	if limit >= 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
