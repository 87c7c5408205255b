package primary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"imgtasks/internal/models"
	"imgtasks/internal/store"
)

var _ store.TaskStore = (*StoreImpl)(nil)

const taskColumns = `id, status, price, source_location, outputs, failure_reason, idempotency_token, created_at, updated_at`

// CreateTask inserts a pending task and returns it. A concurrent insert with
// the same idempotency token loses the race on the sparse unique index and
// surfaces as store.ErrDuplicate; the orchestrator converts that into a
// fetch of the winner's row.
func (s *StoreImpl) CreateTask(ctx context.Context, params store.CreateTaskParams) (*models.Task, error) {
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

	query := `
		INSERT INTO tasks (id, status, price, source_location, outputs, failure_reason, idempotency_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '[]'::jsonb, NULL, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		task.ID, task.Status, task.Price, task.SourceLocation,
		task.IdempotencyToken, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("task with idempotency token already exists: %w", store.ErrDuplicate)
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask fetches one task by id.
func (s *StoreImpl) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	return s.queryOne(ctx, query, id)
}

// GetTaskByIdempotencyToken fetches the task holding the given token.
func (s *StoreImpl) GetTaskByIdempotencyToken(ctx context.Context, token string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE idempotency_token = $1`, taskColumns)
	return s.queryOne(ctx, query, token)
}

// UpdateTaskStatus persists a status change together with its companion
// fields. Outputs and failure reason are rewritten on every call, so a
// retried task sheds its previous error and outputs stay empty for every
// status except completed.
func (s *StoreImpl) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, update store.StatusUpdate) error {
	outputs := update.Outputs
	if outputs == nil {
		outputs = []models.TaskOutput{}
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `UPDATE tasks SET status = $1, outputs = $2, failure_reason = $3, updated_at = $4 WHERE id = $5`
	cmdTag, err := s.db.Exec(ctx, query, status, outputsJSON, update.FailureReason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpdateSourceLocation records the relocated source artifact path.
func (s *StoreImpl) UpdateSourceLocation(ctx context.Context, id string, location string) error {
	query := `UPDATE tasks SET source_location = $1, updated_at = $2 WHERE id = $3`
	cmdTag, err := s.db.Exec(ctx, query, location, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task %s source location: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListTasks returns one recency-ordered page of tasks matching the filter.
func (s *StoreImpl) ListTasks(ctx context.Context, filter store.TaskFilter, skip, limit int) ([]*models.Task, error) {
	var rows pgx.Rows
	var err error
	if filter.Status != nil {
		query := fmt.Sprintf(`SELECT %s FROM tasks WHERE status = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`, taskColumns)
		rows, err = s.db.Query(ctx, query, *filter.Status, skip, limit)
	} else {
		query := fmt.Sprintf(`SELECT %s FROM tasks ORDER BY created_at DESC OFFSET $1 LIMIT $2`, taskColumns)
		rows, err = s.db.Query(ctx, query, skip, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list tasks: %w", rows.Err())
	}
	return out, nil
}

// CountTasks returns the number of tasks matching the filter.
func (s *StoreImpl) CountTasks(ctx context.Context, filter store.TaskFilter) (int, error) {
	var count int
	var err error
	if filter.Status != nil {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = $1`, *filter.Status).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func (s *StoreImpl) queryOne(ctx context.Context, query string, arg any) (*models.Task, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return nil, fmt.Errorf("query task: %w", rows.Err())
		}
		return nil, store.ErrNotFound
	}
	return scanTask(rows)
}

// scanTask scans a single row in taskColumns order.
func scanTask(rows pgx.Rows) (*models.Task, error) {
	var task models.Task
	var outputsJSON []byte
	err := rows.Scan(
		&task.ID,
		&task.Status,
		&task.Price,
		&task.SourceLocation,
		&outputsJSON,
		&task.FailureReason,
		&task.IdempotencyToken,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if len(outputsJSON) > 0 {
		if err := json.Unmarshal(outputsJSON, &task.Outputs); err != nil {
			return nil, fmt.Errorf("decode task outputs: %w", err)
		}
	}
	if len(task.Outputs) == 0 {
		task.Outputs = nil
	}
	return &task, nil
}
