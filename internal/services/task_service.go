package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"imgtasks/internal/cache"
	"imgtasks/internal/events"
	"imgtasks/internal/models"
	"imgtasks/internal/storage"
	"imgtasks/internal/store"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CacheTTLs bundles the TTLs the read paths use.
type CacheTTLs struct {
	Task        time.Duration
	List        time.Duration
	Idempotency time.Duration
}

// TaskServiceDeps lists the collaborators the orchestrator coordinates. All
// of them are injected; there is no package-level state.
type TaskServiceDeps struct {
	Tasks     store.TaskStore
	Jobs      store.JobClient
	Cache     *cache.Cache
	Publisher events.Publisher
	Artifacts storage.ArtifactStore
	TTLs      CacheTTLs
}

// TaskService is the orchestration façade: task admission with idempotency,
// read-through reads, retry, and status reconciliation. Every successful
// mutation invalidates the cache before publishing its lifecycle event, so a
// subscriber that re-reads on an event never sees pre-update data.
type TaskService struct {
	tasks     store.TaskStore
	jobs      store.JobClient
	cache     *cache.Cache
	publisher events.Publisher
	artifacts storage.ArtifactStore
	ttls      CacheTTLs
}

func NewTaskService(deps TaskServiceDeps) *TaskService {
	return &TaskService{
		tasks:     deps.Tasks,
		jobs:      deps.Jobs,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		artifacts: deps.Artifacts,
		ttls:      deps.TTLs,
	}
}

// CreateTaskParams describes one admission request.
type CreateTaskParams struct {
	SourceLocation   string
	IdempotencyToken *string
}

// CreateTask admits a task. When the idempotency token already maps to a
// task, that task is returned unchanged with existed=true, no new row and no
// new job; this is what makes client retries after a dropped response safe.
// Source relocation is best-effort: on failure the task keeps its original
// location and admission proceeds.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, bool, error) {
	if params.SourceLocation == "" {
		return nil, false, fmt.Errorf("%w: source location is required", models.ErrValidation)
	}

	if params.IdempotencyToken != nil {
		if existing, err := s.findByToken(ctx, *params.IdempotencyToken); err != nil {
			return nil, false, err
		} else if existing != nil {
			return existing, true, nil
		}
	}

	token := params.IdempotencyToken
	if token == nil {
		generated := uuid.NewString()
		token = &generated
	}

	task, err := s.tasks.CreateTask(ctx, store.CreateTaskParams{
		Price:            models.PriceMin + rand.Intn(models.PriceMax-models.PriceMin+1),
		SourceLocation:   params.SourceLocation,
		IdempotencyToken: token,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the admission race on the unique token index; the winner's
		// row is the task both callers get.
		winner, readErr := s.tasks.GetTaskByIdempotencyToken(ctx, *token)
		if readErr != nil {
			return nil, false, fmt.Errorf("re-read task after duplicate admission: %w", readErr)
		}
		return winner, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if relocated, relocErr := s.artifacts.RelocateSource(task.ID, task.SourceLocation); relocErr != nil {
		log.WithError(relocErr).WithFields(log.Fields{
			"task_id": task.ID,
			"source":  task.SourceLocation,
		}).Warn("source relocation failed, keeping original location")
	} else {
		if updateErr := s.tasks.UpdateSourceLocation(ctx, task.ID, relocated); updateErr != nil {
			return nil, false, fmt.Errorf("record relocated source: %w", updateErr)
		}
		task.SourceLocation = relocated
	}

	if err := s.jobs.EnqueueResizeJob(ctx, task.ID, task.SourceLocation); err != nil {
		return nil, false, fmt.Errorf("dispatch job for task %s: %w", task.ID, err)
	}

	if err := s.cache.Put(ctx, cache.IdempotencyKey(*token), task, s.ttls.Idempotency); err != nil {
		log.WithError(err).WithField("task_id", task.ID).Warn("failed to cache idempotency result")
	}
	if err := s.cache.InvalidateTask(ctx, task.ID); err != nil {
		return nil, false, err
	}
	s.publisher.Publish(ctx, events.NewCreated(task))
	return task, false, nil
}

// findByToken resolves an idempotency token to its existing task, first
// through the bounded idempotency window in the cache, then through the
// store's unique index. A nil task with nil error means the token is unused.
func (s *TaskService) findByToken(ctx context.Context, token string) (*models.Task, error) {
	cached, ok, err := cache.Peek[*models.Task](ctx, s.cache, cache.IdempotencyKey(token))
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}

	existing, err := s.tasks.GetTaskByIdempotencyToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// GetTask returns one task through the cache-aside read path.
func (s *TaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.TaskKey(id), s.ttls.Task, func(ctx context.Context) (*models.Task, error) {
		task, err := s.tasks.GetTask(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		return task, err
	})
}

// ListTasks returns one recency-ordered page. The page list and the total
// count are cached independently, each keyed by the filter-plus-pagination
// signature.
func (s *TaskService) ListTasks(ctx context.Context, page, limit int, statusFilter *models.TaskStatus) (*models.TaskPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if statusFilter != nil && !statusFilter.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *statusFilter)
	}

	filter := store.TaskFilter{Status: statusFilter}
	statusSig := ""
	if statusFilter != nil {
		statusSig = string(*statusFilter)
	}
	skip := (page - 1) * limit

	tasksPage, err := cache.GetOrCompute(ctx, s.cache, cache.ListKey(statusSig, skip, limit), s.ttls.List, func(ctx context.Context) ([]*models.Task, error) {
		return s.tasks.ListTasks(ctx, filter, skip, limit)
	})
	if err != nil {
		return nil, err
	}

	total, err := cache.GetOrCompute(ctx, s.cache, cache.CountKey(statusSig), s.ttls.List, func(ctx context.Context) (int, error) {
		return s.tasks.CountTasks(ctx, filter)
	})
	if err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit
	return &models.TaskPage{
		Tasks:      tasksPage,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// RetryTask re-admits a failed task: status resets to pending and a new job
// is dispatched with the task's current source location. This deliberately
// bypasses the transition table, which has no outbound edges from failed.
func (s *TaskService) RetryTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: cannot retry task in status %q", models.ErrInvalidState, task.Status)
	}

	if err := s.tasks.UpdateTaskStatus(ctx, id, models.StatusPending, store.StatusUpdate{}); err != nil {
		return nil, err
	}
	task.Status = models.StatusPending
	task.FailureReason = nil
	task.Outputs = nil

	if err := s.cache.InvalidateTask(ctx, id); err != nil {
		return nil, err
	}
	if err := s.jobs.EnqueueResizeJob(ctx, id, task.SourceLocation); err != nil {
		return nil, fmt.Errorf("dispatch retry job for task %s: %w", id, err)
	}
	s.publisher.Publish(ctx, events.NewCreated(task))
	return task, nil
}

// BeginProcessing claims a delivered job for a worker. It re-fetches the
// task and returns skip=true for a completed task, which is the idempotent
// no-op guarding against duplicate delivery. A failed task is first reset to
// pending with the same explicit override retryTask uses, so queue-level
// redelivery restarts the lifecycle. A task already in processing is handed
// back without a new transition: either a crashed worker left it there and
// this delivery resumes the work, or an overlapping delivery is in flight
// and the completed-check at reconciliation settles the race.
func (s *TaskService) BeginProcessing(ctx context.Context, id, workerID string) (task *models.Task, skip bool, err error) {
	task, err = s.tasks.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}

	switch task.Status {
	case models.StatusCompleted:
		return task, true, nil
	case models.StatusProcessing:
		return task, false, nil
	case models.StatusFailed:
		if err := s.tasks.UpdateTaskStatus(ctx, id, models.StatusPending, store.StatusUpdate{}); err != nil {
			return nil, false, err
		}
		if err := s.cache.InvalidateTask(ctx, id); err != nil {
			return nil, false, err
		}
		task.Status = models.StatusPending
		task.FailureReason = nil
	}

	if err := s.ApplyStatusUpdate(ctx, id, models.StatusProcessing, StatusUpdateParams{WorkerID: workerID}); err != nil {
		return nil, false, err
	}
	task.Status = models.StatusProcessing
	return task, false, nil
}

// StatusUpdateParams carries a status change plus the metadata its lifecycle
// event needs.
type StatusUpdateParams struct {
	Outputs        []models.TaskOutput
	FailureReason  *string
	WorkerID       string
	ProcessingTime time.Duration
	Attempts       int
	WillRetry      bool
}

// ApplyStatusUpdate reconciles a worker-reported state change. The state
// machine gates the transition; a rejection is surfaced to the caller and
// must not be retried there, since it stays invalid. On success the cache is
// invalidated and the matching lifecycle event published, in that order.
func (s *TaskService) ApplyStatusUpdate(ctx context.Context, id string, newStatus models.TaskStatus, params StatusUpdateParams) error {
	task, err := s.tasks.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if err := models.ValidateTransition(task.Status, newStatus); err != nil {
		return err
	}
	if newStatus == models.StatusCompleted && len(params.Outputs) == 0 {
		return fmt.Errorf("%w: completed task requires outputs", models.ErrValidation)
	}
	if newStatus == models.StatusFailed && (params.FailureReason == nil || *params.FailureReason == "") {
		return fmt.Errorf("%w: failed task requires a failure reason", models.ErrValidation)
	}

	err = s.tasks.UpdateTaskStatus(ctx, id, newStatus, store.StatusUpdate{
		Outputs:       params.Outputs,
		FailureReason: params.FailureReason,
	})
	if err != nil {
		return err
	}

	if err := s.cache.InvalidateTask(ctx, id); err != nil {
		return err
	}

	switch newStatus {
	case models.StatusProcessing:
		s.publisher.Publish(ctx, events.NewProcessing(id, params.WorkerID))
	case models.StatusCompleted:
		s.publisher.Publish(ctx, events.NewCompleted(id, params.Outputs, params.ProcessingTime))
	case models.StatusFailed:
		s.publisher.Publish(ctx, events.NewFailed(id, *params.FailureReason, params.Attempts, params.WillRetry))
	}
	return nil
}
