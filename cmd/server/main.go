// Command server runs the ExtractIQ HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/extractiq/internal/api"
	"github.com/dharsanguruparan/extractiq/internal/bootstrap"
	"github.com/dharsanguruparan/extractiq/internal/config"
	"github.com/dharsanguruparan/extractiq/internal/logging"
	"github.com/dharsanguruparan/extractiq/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load_config_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New("api", cfg.LogLevel)
	slog.SetDefault(logger)

	// Context cancels on SIGINT/SIGTERM and drives graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := api.New(api.Options{
		Address:         cfg.Address,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	}, api.Deps{
		Documents:  app.Documents,
		Schemas:    app.Schemas,
		Extraction: app.Extraction,
		Metrics:    metrics.NewHTTPServerMetrics("api"),
		Logger:     logger,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Error("server_stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("server_stopped")
}
