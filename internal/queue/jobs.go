// Package queue defines the background tasks exchanged through Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// BlobCleanupTask is scheduled when an upload wrote a blob, failed to
	// record it in the catalog, and could not delete it right away.
	BlobCleanupTask = "blob:cleanup"
)

// CleanupPayload is serialized into the task payload so the worker knows
// which blob to remove.
type CleanupPayload struct {
	BlobRef string `json:"blob_ref"`
	Backend string `json:"backend"`
}

// NewCleanupTask builds the asynq task for payload.
func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	if payload.BlobRef == "" {
		return nil, fmt.Errorf("cleanup payload: blob ref is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(BlobCleanupTask, data, asynq.MaxRetry(10)), nil
}

// ParseCleanupPayload decodes a task payload.
func ParseCleanupPayload(task *asynq.Task) (CleanupPayload, error) {
	var payload CleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.BlobRef == "" {
		return payload, fmt.Errorf("decode payload: blob ref is empty")
	}
	return payload, nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// OrphanQueue hands orphaned blobs to the worker.
type OrphanQueue struct {
	client  enqueuer
	backend string
	logger  *slog.Logger
}

// NewOrphanQueue wraps an asynq client. backend names the blob store the refs
// belong to so a worker can reject refs for another store.
func NewOrphanQueue(client *asynq.Client, backend string, logger *slog.Logger) *OrphanQueue {
	return newOrphanQueue(client, backend, logger)
}

func newOrphanQueue(client enqueuer, backend string, logger *slog.Logger) *OrphanQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanQueue{client: client, backend: backend, logger: logger}
}

// ReportOrphan enqueues a cleanup task for blobRef.
func (q *OrphanQueue) ReportOrphan(ctx context.Context, blobRef string) error {
	task, err := NewCleanupTask(CleanupPayload{BlobRef: blobRef, Backend: q.backend})
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue cleanup task: %w", err)
	}
	q.logger.Warn("orphan_blob_queued", "blob_ref", blobRef, "task_id", info.ID, "queue", info.Queue)
	return nil
}
