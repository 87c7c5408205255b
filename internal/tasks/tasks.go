package tasks

// Defines constants and payload types for tasks carried through Asynq.

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeImageResize is the task type for processing one image task.
	TypeImageResize = "image:resize"

	// QueueResize is the queue resize jobs are published to.
	QueueResize = "resize"
)

// ResizePayload is the queue-resident projection of a task. It is not
// persisted independently; if lost before consumption it is reconstructable
// from the task store.
type ResizePayload struct {
	TaskID         string `json:"taskId"`
	SourceLocation string `json:"sourceLocation"`
	EnqueuedAt     int64  `json:"enqueuedAt"`
}

// NewResizeTask builds the Asynq task for one image task.
func NewResizeTask(taskID, sourceLocation string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResizePayload{
		TaskID:         taskID,
		SourceLocation: sourceLocation,
		EnqueuedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal resize payload: %w", err)
	}
	return asynq.NewTask(TypeImageResize, payload), nil
}

// ParseResizePayload decodes a queue message body.
func ParseResizePayload(data []byte) (ResizePayload, error) {
	var p ResizePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ResizePayload{}, fmt.Errorf("unmarshal resize payload: %w", err)
	}
	if p.TaskID == "" {
		return ResizePayload{}, fmt.Errorf("resize payload missing taskId")
	}
	return p, nil
}
