package wire

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// metrics holds the Server's Prometheus instrumentation (SPEC_FULL.md
// A.2 "Connection / query metrics").
type metrics struct {
	connectionsActive prometheus.Gauge
	statementsTotal   *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mskql_connections_active",
			Help: "Number of client connections currently held in the server's client table.",
		}),
		statementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mskql_statements_total",
			Help: "Statements dispatched, partitioned by outcome.",
		}, []string{"status"}),
	}
}

// serveMetricsHTTP starts the optional /metrics HTTP listener
// (SPEC_FULL.md A.2); it runs in its own goroutine since it is
// unrelated to the wire protocol's single-threaded poll loop.
func serveMetricsHTTP(addr string, reg *prometheus.Registry, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Warn("metrics listener exited")
		}
	}()
}
