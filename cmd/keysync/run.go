package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/block/keysync/pkg/buildinfo"
	"github.com/block/keysync/pkg/metrics"
	"github.com/block/keysync/pkg/sync"
	"github.com/block/keysync/pkg/utils"
)

type RunCmd struct {
	ConfigFile string        `arg:"" name:"config" help:"Path to YAML configuration file" type:"existingfile"`
	Interval   time.Duration `help:"Run continuously with this interval between cycles. Overrides sync.interval."`
	Once       bool          `help:"Run a single cycle even if an interval is configured."`
}

func (c *RunCmd) Run() error {
	config, err := sync.LoadConfig(c.ConfigFile)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(config.Sync.Logging)
	if err != nil {
		return err
	}
	defer utils.CloseAndLog(logCloser)
	slog.SetDefault(logger)
	logger.Info("starting", "build", buildinfo.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := sync.NewRunner(config)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	runner.SetLogger(logger)
	defer utils.CloseAndLog(runner)

	sinks := metrics.MultiSink{metrics.NewLogSink(logger.With("component", "metrics"))}
	if listen := config.Sync.Metrics.Listen; listen != "" {
		prom, err := metrics.NewPrometheusSink()
		if err != nil {
			return err
		}
		sinks = append(sinks, prom)
		srv := serveMetrics(listen, prom, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			utils.ErrInErr(srv.Shutdown(shutdownCtx))
		}()
	}
	runner.SetMetricsSink(sinks)

	if err := runner.Open(ctx); err != nil {
		return err
	}

	interval := config.Sync.Interval
	if c.Interval > 0 {
		interval = c.Interval
	}
	if c.Once || interval == 0 {
		_, err := runner.RunOnce(ctx)
		return err
	}
	return runner.Run(ctx, interval)
}

func serveMetrics(listen string, prom *metrics.PrometheusSink, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "listen", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
