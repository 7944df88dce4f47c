// Command hydronet runs an extended-period hydraulic and water-quality
// simulation of a pipe network model and writes the report steps to a
// compressed results log.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/metrics"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/results"
	"github.com/dd0wney/cluso-hydronet/pkg/sim"
)

func main() {
	modelPath := flag.String("model", "", "Network model file (YAML)")
	resultsPath := flag.String("results", "", "Results log to write (optional)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	workers := flag.Int("workers", 1, "Worker threads for per-link phases (0 = all cores)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (optional)")
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(*logLevel))

	if *modelPath == "" {
		logger.Error("no model file given; use -model")
		os.Exit(2)
	}
	data, err := os.ReadFile(*modelPath)
	if err != nil {
		logger.Error("failed to read model", logging.Error(err))
		os.Exit(1)
	}
	net, err := model.Parse(data)
	if err != nil {
		logger.Error("invalid model", logging.Error(err))
		os.Exit(1)
	}

	reg := metrics.DefaultRegistry()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, logger)
	}

	engine, err := sim.Load(net,
		sim.WithLogger(logger),
		sim.WithMetrics(reg),
		sim.WithWorkers(*workers))
	if err != nil {
		logger.Error("failed to load network", logging.Error(err))
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, closeLog, err := makeReporter(*resultsPath, engine)
	if err != nil {
		logger.Error("failed to open results log", logging.Error(err))
		os.Exit(1)
	}

	start := time.Now()
	res, err := engine.Run(ctx, report)
	if cerr := closeLog(res); cerr != nil {
		logger.Error("failed to close results log", logging.Error(cerr))
	}
	if err != nil {
		logger.Error("run failed", logging.Error(err),
			logging.String("run_id", res.RunID.String()))
		os.Exit(1)
	}

	logger.Info("run complete",
		logging.String("run_id", res.RunID.String()),
		logging.SimTime(res.Duration),
		logging.Int("steps", res.Steps),
		logging.Int("reports", res.Reports),
		logging.Int("warnings", res.Warnings),
		logging.Duration("wall_time", time.Since(start)))
}

// makeReporter builds the per-step callback: a console summary line, plus a
// results-log append when a path was given. The returned closer finalizes
// the log once the run is over.
func makeReporter(path string, engine *sim.Engine) (sim.StepFunc, func(sim.Result) error, error) {
	var writer *results.Writer
	if path != "" {
		var err error
		writer, err = results.Create(path, engine.RunID())
		if err != nil {
			return nil, nil, err
		}
	}

	report := func(step sim.Step) error {
		fmt.Printf("t=%-10s warnings=%d\n", step.Time, len(step.Warnings))
		for _, w := range step.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		if writer != nil {
			_, err := writer.Append(results.FromStep(step))
			return err
		}
		return nil
	}

	closeLog := func(sim.Result) error {
		if writer == nil {
			return nil
		}
		stats := writer.Stats()
		fmt.Printf("results: %d records, %.0f%% compression\n", stats.Records, stats.Ratio()*100)
		return writer.Close()
	}
	return report, closeLog, nil
}

func serveMetrics(addr string, reg *metrics.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	logger.Info("metrics listening", logging.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", logging.Error(err))
	}
}
