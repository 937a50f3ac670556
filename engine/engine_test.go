package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/parser"
	"github.com/martinsk/mskql/storage"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db := storage.NewDatabase("test")
	return New(db, nil)
}

func mustExec(t *testing.T, e *Engine, sql string) (int, error) {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	_, rows, err := e.Exec(stmt)
	return len(rows), err
}

func TestCreateTableAndInsertWithSerialDefault(t *testing.T) {
	e := newTestEngine(t)

	_, err := mustExec(t, e, `CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL, age INT)`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `INSERT INTO users (name, age) VALUES ('ada', 30)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO users (name, age) VALUES ('bob', 40)`)
	require.NoError(t, err)

	stmt, err := parser.Parse(`SELECT id, name, age FROM users ORDER BY id`)
	require.NoError(t, err)
	schema, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "id", schema[0].Name)

	require.False(t, rows[0][0].Null)
	require.False(t, rows[1][0].Null)
	require.NotEqual(t, rows[0][0].AsText(), rows[1][0].AsText())
}

func TestInsertOnConflictDoNothing(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE t (k INT UNIQUE, v TEXT)`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `INSERT INTO t (k, v) VALUES (1, 'a')`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `INSERT INTO t (k, v) VALUES (1, 'b') ON CONFLICT (k) DO NOTHING`)
	require.NoError(t, err)

	stmt, err := parser.Parse(`SELECT v FROM t WHERE k = 1`)
	require.NoError(t, err)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0][0].AsText())
}

func TestUpdateAndDelete(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE t (id INT, v TEXT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO t (id, v) VALUES (1, 'a')`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO t (id, v) VALUES (2, 'b')`)
	require.NoError(t, err)

	n, err := mustExec(t, e, `UPDATE t SET v = 'z' WHERE id = 1`)
	require.NoError(t, err)
	require.Equal(t, 0, n) // no RETURNING clause, so no rows come back

	stmt, _ := parser.Parse(`SELECT v FROM t WHERE id = 1`)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Equal(t, "z", rows[0][0].AsText())

	_, err = mustExec(t, e, `DELETE FROM t WHERE id = 2`)
	require.NoError(t, err)

	stmt, _ = parser.Parse(`SELECT id FROM t`)
	_, rows, err = e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestAlterTableAddAndDropColumn(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE t (id INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `ALTER TABLE t ADD COLUMN label TEXT`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `INSERT INTO t (id, label) VALUES (1, 'x')`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `ALTER TABLE t DROP COLUMN label`)
	require.NoError(t, err)

	stmt, _ := parser.Parse(`SELECT id FROM t`)
	schema, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, schema, 1)
	require.Len(t, rows, 1)
}

func TestUnionAllCombinesBothBranches(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE a (v INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `CREATE TABLE b (v INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO a (v) VALUES (1)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO b (v) VALUES (1)`)
	require.NoError(t, err)

	stmt, err := parser.Parse(`SELECT v FROM a UNION ALL SELECT v FROM b`)
	require.NoError(t, err)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestUnionDedupsRows(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE a (v INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `CREATE TABLE b (v INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO a (v) VALUES (1)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO b (v) VALUES (1)`)
	require.NoError(t, err)

	stmt, err := parser.Parse(`SELECT v FROM a UNION SELECT v FROM b`)
	require.NoError(t, err)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExistsSubqueryResolution(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE t (id INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	stmt, err := parser.Parse(`SELECT id FROM t WHERE EXISTS (SELECT 1 FROM t WHERE id = 1)`)
	require.NoError(t, err)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	stmt, err = parser.Parse(`SELECT id FROM t WHERE EXISTS (SELECT 1 FROM t WHERE id = 99)`)
	require.NoError(t, err)
	_, rows, err = e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 0)
}

func TestBeginRollbackRestoresData(t *testing.T) {
	e := newTestEngine(t)
	_, err := mustExec(t, e, `CREATE TABLE t (id INT)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	_, err = mustExec(t, e, `BEGIN`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `INSERT INTO t (id) VALUES (2)`)
	require.NoError(t, err)
	_, err = mustExec(t, e, `ROLLBACK`)
	require.NoError(t, err)

	stmt, _ := parser.Parse(`SELECT id FROM t`)
	_, rows, err := e.Exec(stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
