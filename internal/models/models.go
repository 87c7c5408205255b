package models

import (
	"time"
)

// Task is the central record for one image submitted for processing. Rows
// live in the tasks table; all mutation goes through the orchestrator.
type Task struct {
	ID               string       `db:"id" json:"id"`
	Status           TaskStatus   `db:"status" json:"status"`
	Price            int          `db:"price" json:"price"`
	SourceLocation   string       `db:"source_location" json:"sourceLocation"`
	Outputs          []TaskOutput `db:"outputs" json:"outputs,omitempty"`
	FailureReason    *string      `db:"failure_reason" json:"failureReason,omitempty"`
	IdempotencyToken *string      `db:"idempotency_token" json:"idempotencyToken,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
}

// TaskOutput is one resized variant produced for a task. The slice on Task
// is ordered and non-empty exactly when the task is completed.
type TaskOutput struct {
	VariantLabel string `json:"variantLabel"`
	Location     string `json:"location"`
}

// Price bounds for newly admitted tasks. The price is assigned once at
// creation and never changes.
const (
	PriceMin = 5
	PriceMax = 50
)

// TaskPage carries one page of a filtered listing together with the
// pagination totals computed from the matching row count.
type TaskPage struct {
	Tasks      []*Task `json:"tasks"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}
