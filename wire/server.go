// Package wire implements the PostgreSQL v3 wire adapter (spec §4.15,
// §6, C13): a pgproto3-based simple-query server that frames bytes on
// and off the core, without any protocol-level SQL semantics of its
// own. Every statement it receives is parsed with parser.Parse and run
// with engine.Engine.Exec; every result comes back as a (types.Schema,
// []row.Row, error) triple that this package turns into
// RowDescription/DataRow/CommandComplete/ErrorResponse frames.
package wire

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/martinsk/mskql/engine"
)

// MaxClients bounds the server's client table (spec §4.15: "a
// poll-driven event loop with a bounded client table (≤ 64)").
const MaxClients = 64

// MaxMessageBytes is the largest cumulative read size tolerated while
// decoding one client message before the connection is dropped as a
// protocol violation (spec §7 "protocol violation / oversize message:
// wire-layer disconnect").
const MaxMessageBytes = 16 << 20

// pollInterval is how long Accept/Read wait before yielding back to
// the loop body to check the next client and the stop signal. Real
// poll(2) blocks until any fd is ready; a short deadline loop is the
// portable Go translation (no epoll/kqueue dependency in the teacher's
// stack) of the same "wake on I/O readiness, otherwise sleep" contract.
const pollInterval = 20 * time.Millisecond

// Server is the single-threaded wire-protocol front end (spec §4.15
// "Scheduling model: single-threaded cooperative"). It holds no
// goroutines of its own beyond the optional metrics HTTP listener;
// Serve runs the entire poll loop on the calling goroutine.
type Server struct {
	Listener net.Listener
	Engine   *engine.Engine
	Log      *logrus.Entry

	registry *prometheus.Registry
	metrics  *metrics

	conns []*conn
}

// New returns a Server accepting connections on ln and dispatching
// statements through eng. A nil log falls back to logrus's standard
// logger.
func New(ln net.Listener, eng *engine.Engine, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reg := prometheus.NewRegistry()
	return &Server{
		Listener: ln,
		Engine:   eng,
		Log:      log,
		registry: reg,
		metrics:  newMetrics(reg),
	}
}

// ServeMetricsHTTP starts the optional /metrics HTTP listener
// (SPEC_FULL.md A.2) on its own goroutine, independent of the wire
// protocol's single-threaded loop.
func (s *Server) ServeMetricsHTTP(addr string) {
	serveMetricsHTTP(addr, s.registry, s.Log)
}

// Serve runs the poll loop until stop is closed or fires (the Go
// translation of spec §4.15's self-pipe wakeup: a signal handler
// closes/sends on stop, which this loop observes between I/O polls
// rather than a raw signal delivered mid-syscall), draining live
// connections before returning. It returns only once every accepted
// connection has been closed.
func (s *Server) Serve(stop <-chan struct{}) error {
	s.Log.WithField("addr", s.Listener.Addr().String()).Info("wire server listening")
	for {
		select {
		case <-stop:
			s.Log.Info("wire server draining on shutdown signal")
			s.drain()
			return nil
		default:
		}

		s.acceptOne()

		i := 0
		for i < len(s.conns) {
			c := s.conns[i]
			if !c.poll() {
				s.removeConn(i)
				continue
			}
			i++
		}
	}
}

func (s *Server) acceptOne() {
	if len(s.conns) >= MaxClients {
		return
	}
	tl, ok := s.Listener.(*net.TCPListener)
	if ok {
		tl.SetDeadline(time.Now().Add(pollInterval))
	}
	nc, err := s.Listener.Accept()
	if err != nil {
		return
	}
	c := newConn(nc, s.Engine, s.Log, s.metrics)
	s.conns = append(s.conns, c)
	s.metrics.connectionsActive.Inc()
	s.Log.WithField("remote", nc.RemoteAddr().String()).Info("client connected")
}

func (s *Server) removeConn(i int) {
	c := s.conns[i]
	c.close()
	s.metrics.connectionsActive.Dec()
	s.conns = append(s.conns[:i], s.conns[i+1:]...)
}

func (s *Server) drain() {
	for _, c := range s.conns {
		c.close()
	}
	s.conns = nil
	s.Listener.Close()
}
