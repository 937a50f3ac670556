package wire

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/sirupsen/logrus"

	"github.com/martinsk/mskql/engine"
	"github.com/martinsk/mskql/errkind"
	"github.com/martinsk/mskql/ir"
	"github.com/martinsk/mskql/parser"
	"github.com/martinsk/mskql/row"
	"github.com/martinsk/mskql/types"
)

// conn is one entry in Server's bounded client table. It owns exactly
// one pgproto3.Backend over one net.Conn and is driven entirely by
// poll, never by its own goroutine.
type conn struct {
	nc      net.Conn
	limited *sizeLimitedConn
	backend *pgproto3.Backend
	eng     *engine.Engine
	log     *logrus.Entry
	metrics *metrics

	startupDone bool
	closed      bool
}

func newConn(nc net.Conn, eng *engine.Engine, log *logrus.Entry, m *metrics) *conn {
	lc := &sizeLimitedConn{Conn: nc, max: MaxMessageBytes}
	return &conn{
		nc:      nc,
		limited: lc,
		backend: pgproto3.NewBackend(lc, nc),
		eng:     eng,
		log:     log.WithField("remote", nc.RemoteAddr().String()),
		metrics: m,
	}
}

// poll drives this connection one step: if startup hasn't completed,
// it attempts the handshake; otherwise it attempts to read and fully
// service one simple-query message. It returns false when the
// connection should be removed from the client table.
func (c *conn) poll() bool {
	if c.closed {
		return false
	}
	c.nc.SetReadDeadline(time.Now().Add(pollInterval))

	if !c.startupDone {
		ok := c.doStartup()
		if !ok {
			return false
		}
		return true
	}

	c.limited.reset()
	msg, err := c.backend.Receive()
	if err != nil {
		if isTimeout(err) {
			return true
		}
		return false
	}

	switch m := msg.(type) {
	case *pgproto3.Query:
		c.handleQuery(m.String)
		return true
	case *pgproto3.Terminate:
		return false
	default:
		c.sendError(errkind.Protocol.New(fmt.Sprintf("unsupported frontend message %T", msg)))
		c.flush()
		return true
	}
}

// doStartup negotiates SSLRequest (always declined: the core speaks
// plaintext only) and the StartupMessage, then completes the
// trust-auth handshake (spec treats authentication as out of scope;
// every connection is accepted).
func (c *conn) doStartup() bool {
	msg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		if isTimeout(err) {
			return true
		}
		c.log.WithError(err).Warn("startup failed")
		return false
	}

	switch msg.(type) {
	case *pgproto3.SSLRequest:
		if _, err := c.nc.Write([]byte{'N'}); err != nil {
			return false
		}
		return true // re-poll: client now sends the real StartupMessage
	case *pgproto3.CancelRequest:
		return false
	case *pgproto3.StartupMessage:
		c.backend.Send(&pgproto3.AuthenticationOk{})
		c.backend.Send(&pgproto3.ParameterStatus{Name: "server_version", Value: "14.0 (mskql)"})
		c.backend.Send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"})
		c.backend.Send(&pgproto3.BackendKeyData{ProcessID: 0, SecretKey: 0})
		c.backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		if err := c.flush(); err != nil {
			return false
		}
		c.startupDone = true
		return true
	default:
		c.log.Warn("unexpected startup message")
		return false
	}
}

func (c *conn) handleQuery(sql string) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		c.respondError(err)
		return
	}
	schema, rows, err := c.eng.Exec(stmt)
	if err != nil {
		c.respondError(err)
		return
	}

	if len(schema) > 0 || stmt.Kind == ir.StmtSelect {
		c.backend.Send(rowDescription(schema))
		for _, r := range rows {
			c.backend.Send(dataRow(r))
		}
	}
	c.backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(commandTag(stmt.Kind, len(rows)))})
	c.backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if err := c.flush(); err != nil {
		c.closed = true
		return
	}
	c.metrics.statementsTotal.WithLabelValues("ok").Inc()
}

func (c *conn) respondError(err error) {
	c.sendError(err)
	c.backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if ferr := c.flush(); ferr != nil {
		c.closed = true
	}
	c.metrics.statementsTotal.WithLabelValues("error").Inc()
}

func (c *conn) sendError(err error) {
	c.backend.Send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     errkind.SQLState(err),
		Message:  err.Error(),
	})
}

func (c *conn) flush() error {
	return c.backend.Flush()
}

func (c *conn) close() {
	if !c.closed {
		c.nc.Close()
		c.closed = true
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// rowDescription builds a RowDescription frame from a result schema,
// mapping each column's type tag to its PostgreSQL OID (spec §4.15).
// The alias-vs-column-ref-vs-default naming preference is already
// resolved upstream by the projection that produced schema; this layer
// only reads schema[i].Name.
func rowDescription(schema types.Schema) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(schema))
	for i, col := range schema {
		fields[i] = pgproto3.FieldDescription{
			Name:         []byte(col.Name),
			DataTypeOID:  engine.PgTypeOID(col.Tag),
			DataTypeSize: -1,
			TypeModifier: -1,
			Format:       0,
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

func dataRow(r row.Row) *pgproto3.DataRow {
	values := make([][]byte, len(r))
	for i, cell := range r {
		if cell.Null {
			values[i] = nil
			continue
		}
		values[i] = []byte(cell.AsText())
	}
	return &pgproto3.DataRow{Values: values}
}

// commandTag renders the CommandComplete tag PostgreSQL clients expect
// (e.g. "SELECT 3", "INSERT 0 1", "UPDATE 2").
func commandTag(kind ir.StmtKind, n int) string {
	switch kind {
	case ir.StmtSelect:
		return fmt.Sprintf("SELECT %d", n)
	case ir.StmtInsert:
		return fmt.Sprintf("INSERT 0 %d", n)
	case ir.StmtUpdate:
		return fmt.Sprintf("UPDATE %d", n)
	case ir.StmtDelete:
		return fmt.Sprintf("DELETE %d", n)
	case ir.StmtCreateTable:
		return "CREATE TABLE"
	case ir.StmtDropTable:
		return "DROP TABLE"
	case ir.StmtCreateIndex:
		return "CREATE INDEX"
	case ir.StmtDropIndex:
		return "DROP INDEX"
	case ir.StmtCreateType:
		return "CREATE TYPE"
	case ir.StmtDropType:
		return "DROP TYPE"
	case ir.StmtAlterTable:
		return "ALTER TABLE"
	case ir.StmtBegin:
		return "BEGIN"
	case ir.StmtCommit:
		return "COMMIT"
	case ir.StmtRollback:
		return "ROLLBACK"
	default:
		return "OK"
	}
}

// sizeLimitedConn enforces MaxMessageBytes cumulatively across the
// reads that make up decoding a single frontend message (spec §7
// "protocol violation / oversize message: wire-layer disconnect");
// reset is called between messages. This is a coarser approximation of
// true per-message framing than re-implementing pgproto3's own length
// decoding, acceptable since spec.md treats exact wire framing as an
// external byte-stream adapter the core does not specify.
type sizeLimitedConn struct {
	net.Conn
	max int64
	cur int64
}

func (c *sizeLimitedConn) reset() { c.cur = 0 }

func (c *sizeLimitedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.cur += int64(n)
	if c.cur > c.max {
		return n, errkind.Protocol.New("message exceeds maximum size")
	}
	return n, err
}
