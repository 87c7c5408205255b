package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"imgtasks/internal/models"
	"imgtasks/internal/services"
	"imgtasks/internal/storage"
	"imgtasks/internal/tasks"
	"imgtasks/internal/transform"
)

// ResizeDeps bundles everything the resize handler needs.
type ResizeDeps struct {
	Service     *services.TaskService
	Transformer transform.Transformer
	Artifacts   storage.ArtifactStore
	WorkerID    string
}

// RegisterHandlers wires the job handlers onto the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps ResizeDeps) {
	mux.HandleFunc(tasks.TypeImageResize, HandleResizeTask(deps))
}

// HandleResizeTask processes one resize job. Delivery is at-least-once: the
// completed short-circuit in BeginProcessing makes duplicate deliveries
// no-ops, and a processing failure is recorded on the task and then
// re-raised so the queue's backoff policy governs redelivery.
func HandleResizeTask(deps ResizeDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseResizePayload(t.Payload())
		if err != nil {
			// A payload that does not decode now never will.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		logger := log.WithFields(log.Fields{
			"task_id":   payload.TaskID,
			"worker_id": deps.WorkerID,
		})

		task, skip, err := deps.Service.BeginProcessing(ctx, payload.TaskID, deps.WorkerID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidTransition) {
				// Deterministic; redelivering the same job cannot change it.
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}
		if skip {
			logger.Info("task already completed, skipping duplicate delivery")
			return nil
		}

		outputDir, err := deps.Artifacts.VariantDir(task.ID)
		if err != nil {
			return err
		}

		start := time.Now()
		outputs, err := deps.Transformer.Transform(ctx, task.SourceLocation, outputDir)
		if err != nil {
			return deps.failTask(ctx, logger, task.ID, err)
		}

		err = deps.Service.ApplyStatusUpdate(ctx, task.ID, models.StatusCompleted, services.StatusUpdateParams{
			Outputs:        outputs,
			ProcessingTime: time.Since(start),
		})
		if errors.Is(err, models.ErrInvalidTransition) {
			// An overlapping delivery finished first; the task is already in
			// its terminal state, so this delivery has nothing left to do.
			logger.WithError(err).Warn("completion lost to a concurrent delivery")
			return nil
		}
		if err != nil {
			return err
		}

		logger.WithField("outputs", len(outputs)).Info("task completed")
		return nil
	}
}

// failTask records the failure on the task and re-raises the original error
// so the queue retries with backoff. Attempt metadata for the failed event
// comes from the delivery context.
func (deps ResizeDeps) failTask(ctx context.Context, logger *log.Entry, taskID string, cause error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	willRetry := retried < maxRetry

	reason := cause.Error()
	err := deps.Service.ApplyStatusUpdate(ctx, taskID, models.StatusFailed, services.StatusUpdateParams{
		FailureReason: &reason,
		Attempts:      retried + 1,
		WillRetry:     willRetry,
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		logger.WithError(err).Warn("failure report lost to a concurrent delivery")
		return nil
	}
	if err != nil {
		logger.WithError(err).Error("failed to record task failure")
	}

	logger.WithError(cause).WithFields(log.Fields{
		"attempt":    retried + 1,
		"will_retry": willRetry,
	}).Warn("task processing failed")
	return cause
}
