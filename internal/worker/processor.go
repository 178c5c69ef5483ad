// Package worker runs the background tasks defined in package queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/queue"
)

// BlobDeleter is the part of the blob store the worker needs.
type BlobDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// CleanupRecorder receives one observation per cleanup attempt.
type CleanupRecorder interface {
	FinishCleanup(status string, duration time.Duration)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	blobs   BlobDeleter
	backend string
	metrics CleanupRecorder
	logger  *slog.Logger
}

// NewProcessor constructs a worker processor for the blob store named backend.
// metrics may be nil.
func NewProcessor(blobs BlobDeleter, backend string, metrics CleanupRecorder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{blobs: blobs, backend: backend, metrics: metrics, logger: logger}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.BlobCleanupTask, p.handleCleanup)
	return mux
}

func (p *Processor) handleCleanup(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	payload, err := queue.ParseCleanupPayload(task)
	if err != nil {
		p.logger.Error("cleanup_payload_invalid", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logCtx := p.logger.With("blob_ref", payload.BlobRef, "backend", payload.Backend)
	if payload.Backend != "" && payload.Backend != p.backend {
		logCtx.Error("cleanup_backend_mismatch", "worker_backend", p.backend)
		return fmt.Errorf("blob %s belongs to backend %s, worker serves %s: %w", payload.BlobRef, payload.Backend, p.backend, asynq.SkipRetry)
	}

	err = p.blobs.Delete(ctx, payload.BlobRef)
	switch {
	case err == nil:
		p.record("deleted", start)
		logCtx.Info("orphan_blob_deleted")
		return nil
	case model.IsKind(err, model.ErrNotFound):
		p.record("already_gone", start)
		logCtx.Info("orphan_blob_already_gone")
		return nil
	default:
		p.record("error", start)
		logCtx.Error("orphan_blob_delete_failed", "error", err)
		return fmt.Errorf("delete orphan blob: %w", err)
	}
}

func (p *Processor) record(status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.FinishCleanup(status, time.Since(start))
	}
}
