package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creators-notebook/backend/pkg/queue"
	"github.com/creators-notebook/backend/pkg/storage"
)

// ImageCleaner processes deferred cover-image deletions. Deleting a project
// never waits on blob storage; the key lands on the queue and is removed
// here, with retries and a DLQ for objects that keep failing.
type ImageCleaner struct {
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewImageCleaner creates an image cleanup processor.
func NewImageCleaner(s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ImageCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageCleaner{s3: s3, queue: q, logger: logger}
}

// Process executes one image delete job.
func (p *ImageCleaner) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeImageDelete {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ImageDeletePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.ImageKey == "" {
		return nil
	}
	if err := p.s3.DeleteImage(ctx, payload.ImageKey); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	p.logger.Info("image deleted",
		zap.String("project_uuid", payload.ProjectUUID.String()),
		zap.String("image_key", payload.ImageKey))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ImageCleaner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("image cleanup worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
