// Command flowbus-server embeds the flowbus registry and starts the
// dashboard-facing node described in SPEC_FULL.md. It also registers two
// demo flows (a Counter and a Gauge) so a freshly started node has something to look
// at; a real host embeds flowbus as a library and registers its own.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowbus"
	configpkg "flowbus/internal/config"
	"flowbus/internal/logging"
)

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logging.ReplaceGlobals(logger)

	handle, err := flowbus.Start(cfg)
	if err != nil {
		logger.Fatal("failed to start flowbus node", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("flowbus node started", logging.String("bind", cfg.Bind), logging.String("app_name", cfg.AppName))

	stop := registerDemoFlows(logger)
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down flowbus node")
	if err := handle.Close(); err != nil {
		logger.Warn("flowbus node shutdown reported errors", logging.Error(err))
	}
}

// registerDemoFlows wires up a demo Counter and a demo Gauge, updated once a
// second, so operators can confirm the node is fanning out deltas correctly
// before pointing a real host at it.
// It returns a stop function that closes every demo tracer.
func registerDemoFlows(logger *logging.Logger) func() {
	counter, err := flowbus.NewCounter(flowbus.NewPath("demo", "requests"))
	if err != nil {
		logger.Warn("demo counter registration failed", logging.Error(err))
	}
	gauge, err := flowbus.NewGauge(flowbus.NewPath("demo", "cpu"), flowbus.Range{Min: 0, Max: 100})
	if err != nil {
		logger.Warn("demo gauge registration failed", logging.Error(err))
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var n float64
		for {
			select {
			case <-ticker.C:
				n++
				if counter != nil {
					counter.Inc(1)
				}
				if gauge != nil {
					gauge.Set(50 + 10*((n-5)/5))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		if counter != nil {
			counter.Close()
		}
		if gauge != nil {
			gauge.Close()
		}
	}
}
