package wire

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

func TestCommandTag(t *testing.T) {
	cases := []struct {
		kind ir.StmtKind
		n    int
		want string
	}{
		{ir.StmtSelect, 3, "SELECT 3"},
		{ir.StmtInsert, 1, "INSERT 0 1"},
		{ir.StmtUpdate, 2, "UPDATE 2"},
		{ir.StmtDelete, 0, "DELETE 0"},
		{ir.StmtCreateTable, 0, "CREATE TABLE"},
		{ir.StmtAlterTable, 0, "ALTER TABLE"},
		{ir.StmtBegin, 0, "BEGIN"},
		{ir.StmtCommit, 0, "COMMIT"},
		{ir.StmtRollback, 0, "ROLLBACK"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, commandTag(c.kind, c.n))
	}
}

func TestRowDescriptionMapsColumnTags(t *testing.T) {
	schema := types.Schema{
		&types.Column{Name: "id", Tag: types.TagInt},
		&types.Column{Name: "label", Tag: types.TagText},
	}
	rd := rowDescription(schema)
	require.Len(t, rd.Fields, 2)
	require.Equal(t, "id", string(rd.Fields[0].Name))
	require.Equal(t, uint32(23), rd.Fields[0].DataTypeOID) // int4
	require.Equal(t, "label", string(rd.Fields[1].Name))
	require.Equal(t, uint32(25), rd.Fields[1].DataTypeOID) // text
}

func TestDataRowEncodesNullAndText(t *testing.T) {
	r := row.Row{
		types.IntCell(types.TagInt, 7),
		types.NullCell(types.TagText),
	}
	dr := dataRow(r)
	require.Len(t, dr.Values, 2)
	require.Equal(t, "7", string(dr.Values[0]))
	require.Nil(t, dr.Values[1])
}

func TestSizeLimitedConnEnforcesMax(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	lc := &sizeLimitedConn{Conn: server, max: 4}

	go func() {
		client.Write([]byte("hello world"))
	}()

	buf := make([]byte, 16)
	_, err := lc.Read(buf)
	require.Error(t, err)
}

func TestSizeLimitedConnResetsBetweenMessages(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	lc := &sizeLimitedConn{Conn: server, max: 4}

	go func() {
		client.Write([]byte("ab"))
		client.Write([]byte("cd"))
	}()

	buf := make([]byte, 2)
	n, err := lc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	lc.reset()

	n, err = lc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

var _ io.Reader = (*sizeLimitedConn)(nil)
