// Command worker drains the blob cleanup queue.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/extractiq/internal/bootstrap"
	"github.com/dharsanguruparan/extractiq/internal/config"
	"github.com/dharsanguruparan/extractiq/internal/logging"
	"github.com/dharsanguruparan/extractiq/internal/metrics"
	"github.com/dharsanguruparan/extractiq/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load_config_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if !cfg.RedisConfigured() {
		logger.Error("redis_not_configured", "hint", "set REDIS_ADDR")
		os.Exit(1)
	}

	blobs, closeBlobs, err := bootstrap.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("init_blob_store_failed", "error", err)
		os.Exit(1)
	}
	defer closeBlobs()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	if cfg.WorkerMetricsAddress != "" {
		go serveMetrics(ctx, cfg.WorkerMetricsAddress, workerMetrics.Handler(), logger)
	}

	server := asynq.NewServer(bootstrap.RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      newAsynqLogger(logger),
	})
	processor := worker.NewProcessor(blobs, cfg.BlobBackend, workerMetrics, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker_started", "backend", cfg.BlobBackend, "concurrency", cfg.WorkerConcurrency)
	if err := server.Run(mux); err != nil {
		logger.Error("worker_stopped", "error", err)
		closeBlobs()
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics_listening", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics_server_failed", "error", err)
	}
}
