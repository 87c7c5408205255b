// Package mocks provides in-memory fakes for the orchestrator's
// collaborators. They implement the real interfaces so service and worker
// logic can be exercised without Postgres or Redis.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgtasks/internal/models"
	"imgtasks/internal/store"
)

var _ store.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory store.TaskStore enforcing the same uniqueness
// semantics as the sparse unique index in Postgres.
type TaskStore struct {
	mu      sync.Mutex
	byID    map[string]*models.Task
	byToken map[string]string

	// Err, when set, is returned by every operation. Simulates an
	// unreachable store.
	Err error
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		byID:    make(map[string]*models.Task),
		byToken: make(map[string]string),
	}
}

func (s *TaskStore) CreateTask(_ context.Context, params store.CreateTaskParams) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	if params.IdempotencyToken != nil {
		if _, taken := s.byToken[*params.IdempotencyToken]; taken {
			return nil, fmt.Errorf("token taken: %w", store.ErrDuplicate)
		}
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:               uuid.NewString(),
		Status:           models.StatusPending,
		Price:            params.Price,
		SourceLocation:   params.SourceLocation,
		IdempotencyToken: params.IdempotencyToken,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.byID[task.ID] = task
	if params.IdempotencyToken != nil {
		s.byToken[*params.IdempotencyToken] = task.ID
	}
	return copyTask(task), nil
}

func (s *TaskStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	task, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTask(task), nil
}

func (s *TaskStore) GetTaskByIdempotencyToken(_ context.Context, token string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	id, ok := s.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTask(s.byID[id]), nil
}

func (s *TaskStore) UpdateTaskStatus(_ context.Context, id string, status models.TaskStatus, update store.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	task, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	task.Status = status
	task.Outputs = update.Outputs
	task.FailureReason = update.FailureReason
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *TaskStore) UpdateSourceLocation(_ context.Context, id string, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	task, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	task.SourceLocation = location
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *TaskStore) ListTasks(_ context.Context, filter store.TaskFilter, skip, limit int) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	matched := s.matchLocked(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	out := make([]*models.Task, len(matched))
	for i, task := range matched {
		out[i] = copyTask(task)
	}
	return out, nil
}

func (s *TaskStore) CountTasks(_ context.Context, filter store.TaskFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.matchLocked(filter)), nil
}

func (s *TaskStore) Ping(context.Context) error {
	return s.Err
}

func (s *TaskStore) matchLocked(filter store.TaskFilter) []*models.Task {
	var matched []*models.Task
	for _, task := range s.byID {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		matched = append(matched, task)
	}
	return matched
}

func copyTask(task *models.Task) *models.Task {
	dup := *task
	if task.Outputs != nil {
		dup.Outputs = append([]models.TaskOutput(nil), task.Outputs...)
	}
	return &dup
}
