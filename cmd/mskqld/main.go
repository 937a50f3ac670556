// Command mskqld is the CLI entry point (spec §6, C14): it resolves
// configuration (flag > env > YAML > compiled default), wires a fresh
// storage.Database through engine.Engine to wire.Server, and runs the
// wire server's poll loop until SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/martinsk/mskql/block"
	"github.com/martinsk/mskql/engine"
	"github.com/martinsk/mskql/storage"
	"github.com/martinsk/mskql/wire"
)

func main() {
	var flagPort int
	var flagConfig string
	flag.IntVar(&flagPort, "port", 0, "listen port (overrides MSKQL_PORT and -config)")
	flag.StringVar(&flagConfig, "config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := loadConfig(flagPort, flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mskqld: loading config: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	entry := logrus.NewEntry(log)

	if cfg.BlockCapacity != 0 && cfg.BlockCapacity != block.Capacity {
		entry.WithFields(logrus.Fields{
			"requested": cfg.BlockCapacity,
			"compiled":  block.Capacity,
		}).Warn("block_capacity is compiled into the block layout and cannot be changed at runtime; ignoring")
	}

	db := storage.NewDatabase("mskql")
	eng := engine.New(db, entry)
	if cfg.RecursiveCTEIterationCap > 0 {
		eng.MaxRecursiveCTEIterations = cfg.RecursiveCTEIterationCap
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		entry.WithError(err).Fatal("failed to bind listener")
	}

	srv := wire.New(ln, eng, entry)
	if cfg.MetricsAddr != "" {
		srv.ServeMetricsHTTP(cfg.MetricsAddr)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		entry.Info("shutdown signal received")
		close(stop)
	}()

	entry.WithField("port", cfg.Port).Info("mskqld starting")
	if err := srv.Serve(stop); err != nil {
		entry.WithError(err).Fatal("wire server exited with error")
	}
}
