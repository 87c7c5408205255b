package events

import (
	"encoding/json"
	"time"

	"imgtasks/internal/models"
)

// Kind identifies a task lifecycle event.
type Kind string

const (
	KindCreated    Kind = "created"
	KindProcessing Kind = "processing"
	KindCompleted  Kind = "completed"
	KindFailed     Kind = "failed"
)

// Event is one task lifecycle notification. Events are best-effort and never
// a correctness dependency; task state lives in the store.
type Event struct {
	TaskID    string `json:"taskId"`
	Timestamp int64  `json:"timestamp"`
	Kind      Kind   `json:"kind"`

	// created
	SourceLocation   string `json:"sourceLocation,omitempty"`
	Price            int    `json:"price,omitempty"`
	IdempotencyToken string `json:"idempotencyToken,omitempty"`

	// processing
	WorkerID string `json:"workerId,omitempty"`

	// completed
	Outputs          []models.TaskOutput `json:"outputs,omitempty"`
	ProcessingTimeMs int64               `json:"processingTimeMs,omitempty"`

	// failed
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	WillRetry bool   `json:"willRetry"`
}

func newEvent(kind Kind, taskID string) Event {
	return Event{
		TaskID:    taskID,
		Timestamp: time.Now().UnixMilli(),
		Kind:      kind,
	}
}

// NewCreated announces a freshly admitted task.
func NewCreated(task *models.Task) Event {
	ev := newEvent(KindCreated, task.ID)
	ev.SourceLocation = task.SourceLocation
	ev.Price = task.Price
	if task.IdempotencyToken != nil {
		ev.IdempotencyToken = *task.IdempotencyToken
	}
	return ev
}

// NewProcessing announces that a worker picked the task up.
func NewProcessing(taskID, workerID string) Event {
	ev := newEvent(KindProcessing, taskID)
	ev.WorkerID = workerID
	return ev
}

// NewCompleted announces successful processing.
func NewCompleted(taskID string, outputs []models.TaskOutput, processingTime time.Duration) Event {
	ev := newEvent(KindCompleted, taskID)
	ev.Outputs = outputs
	ev.ProcessingTimeMs = processingTime.Milliseconds()
	return ev
}

// NewFailed announces a processing failure and whether the queue will
// redeliver the job.
func NewFailed(taskID, errMsg string, attempts int, willRetry bool) Event {
	ev := newEvent(KindFailed, taskID)
	ev.Error = errMsg
	ev.Attempts = attempts
	ev.WillRetry = willRetry
	return ev
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
