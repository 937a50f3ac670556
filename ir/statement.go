package ir

import "github.com/martinsk/mskql/types"

// StmtKind tags which statement a Statement carries, matching spec §6's
// SQL surface list.
type StmtKind uint8

const (
	StmtSelect StmtKind = iota
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtCreateTable
	StmtDropTable
	StmtCreateIndex
	StmtDropIndex
	StmtCreateType
	StmtDropType
	StmtAlterTable
	StmtBegin
	StmtCommit
	StmtRollback
)

// Statement is the parsed, arena-backed IR for one SQL statement (spec
// §3 "Query arena", §6 SQL surface). Exactly the fields matching Kind
// are meaningful; the rest are zero.
type Statement struct {
	Kind StmtKind
	Arena *QueryArena

	Select      *QuerySelect
	Insert      *QueryInsert
	Update      *QueryUpdate
	Delete      *QueryDelete
	CreateTable *QueryCreateTable
	DropTable   *QueryDropTable
	CreateIndex *QueryCreateIndex
	DropIndex   *QueryDropIndex
	CreateType  *QueryCreateType
	DropType    *QueryDropType
	AlterTable  *QueryAlterTable
}

// QuerySelect is a full SELECT statement (spec §6 SELECT grammar).
type QuerySelect struct {
	CTEs     []CTE
	Distinct bool
	Columns  []SelectColumn

	FromTable string
	FromAlias string
	// FromSubquerySQLIdx is set for FROM (SELECT ...) AS alias (spec §6).
	FromSubquerySQLIdx uint32

	Joins []JoinInfo

	WhereCondIdx uint32 // into Conditions, or IdxNone

	GroupByColumns []string
	HavingCondIdx  uint32 // into Conditions, or IdxNone

	OrderBy []OrderByItem
	Limit   int64 // -1 = unset
	Offset  int64

	SetOp       SetOpKind
	HasSetOp    bool
	SetOpAll    bool
	SetOpRHSSQL uint32 // into Strings: the right-hand SELECT's captured text
}

// ConflictAction enumerates ON CONFLICT behavior (spec §6: "ON CONFLICT
// [(col)] DO NOTHING" is the only supported action).
type ConflictAction uint8

const (
	ConflictNone ConflictAction = iota
	ConflictDoNothing
)

// QueryInsert is an INSERT statement (spec §6, §4.14).
type QueryInsert struct {
	TableName  string
	ColumnList []string // empty means "all columns, in schema order"

	// ValuesRows holds row-major literal cells for "VALUES (...)[, ...]";
	// empty when SelectSQLIdx is set instead (INSERT ... SELECT).
	ValuesRows   [][]types.Cell
	SelectSQLIdx uint32 // into Strings, IdxNone unless INSERT ... SELECT

	ConflictAction ConflictAction
	ConflictColumn string

	Returning []string // RETURNING column list, empty if absent
}

// QueryUpdate is an UPDATE statement (spec §6, §4.14).
type QueryUpdate struct {
	TableName string
	Set       []SetClause
	// FromTable is set for "UPDATE t SET ... FROM other" (spec §4.14).
	FromTable    string
	WhereCondIdx uint32 // into Conditions, or IdxNone
	Returning    []string
}

// QueryDelete is a DELETE statement (spec §6, §4.14).
type QueryDelete struct {
	TableName    string
	WhereCondIdx uint32 // into Conditions, or IdxNone
	Returning    []string
}

// QueryCreateTable is a CREATE TABLE statement (spec §6).
type QueryCreateTable struct {
	TableName string
	Columns   []types.Column
	// Checks holds CHECK (...) clause text: parsed and ignored per spec
	// §6 ("CHECK (…) (parsed and ignored)").
	Checks []string
}

// QueryDropTable is a DROP TABLE statement.
type QueryDropTable struct {
	TableName string
}

// QueryCreateIndex is a CREATE INDEX statement (spec §6, §4.5).
type QueryCreateIndex struct {
	IndexName string
	TableName string
	Columns   []string
	Unique    bool
}

// QueryDropIndex is a DROP INDEX statement.
type QueryDropIndex struct {
	IndexName string
}

// QueryCreateType is a CREATE TYPE ... AS ENUM statement.
type QueryCreateType struct {
	TypeName string
	Values   []string
}

// QueryDropType is a DROP TYPE statement.
type QueryDropType struct {
	TypeName string
}

// AlterAction enumerates spec §6's ALTER TABLE action kinds.
type AlterAction uint8

const (
	AlterAddColumn AlterAction = iota
	AlterDropColumn
	AlterRenameColumn
	AlterColumnType
)

// QueryAlterTable is an ALTER TABLE statement (spec §6, §4.14).
type QueryAlterTable struct {
	TableName  string
	Action     AlterAction
	ColumnName string
	NewName    string // AlterRenameColumn target
	NewType    types.Tag
	NewColumn  types.Column // AlterAddColumn payload
}
