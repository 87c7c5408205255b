package store

import (
	"context"

	"imgtasks/internal/models"
)

// TaskFilter narrows listing and counting. A nil Status matches every task.
type TaskFilter struct {
	Status *models.TaskStatus
}

// StatusUpdate carries the optional fields that accompany a status change.
// Outputs is persisted only for completed, FailureReason only for failed;
// the store writes them verbatim and the orchestrator enforces which one is
// set for which transition.
type StatusUpdate struct {
	Outputs       []models.TaskOutput
	FailureReason *string
}

// CreateTaskParams is the admission-time projection of a task. ID and
// timestamps are assigned by the store.
type CreateTaskParams struct {
	Price            int
	SourceLocation   string
	IdempotencyToken *string
}

// TaskStore is the durable record of tasks. Every operation is atomic at the
// single-row level; nothing here assumes multi-row transactions.
type TaskStore interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetTaskByIdempotencyToken(ctx context.Context, token string) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, update StatusUpdate) error
	UpdateSourceLocation(ctx context.Context, id string, location string) error
	ListTasks(ctx context.Context, filter TaskFilter, skip, limit int) ([]*models.Task, error)
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)

	Ping(ctx context.Context) error
}

// JobClient enqueues processing jobs for the background worker.
type JobClient interface {
	EnqueueResizeJob(ctx context.Context, taskID, sourceLocation string) error
	Close() error
}
