package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgtasks/internal/models"
)

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
	channels []string
	err      error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, payload)
	return nil
}

func TestChannelPublisher_Publish(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	p := NewChannelPublisher(broadcaster, "imgtasks:events")

	token := "tok-1"
	task := &models.Task{
		ID:               "task-1",
		Status:           models.StatusPending,
		Price:            17,
		SourceLocation:   "/in/a.jpg",
		IdempotencyToken: &token,
	}
	p.Publish(context.Background(), NewCreated(task))

	require.Len(t, broadcaster.messages, 1)
	assert.Equal(t, "imgtasks:events", broadcaster.channels[0])

	var decoded Event
	require.NoError(t, json.Unmarshal(broadcaster.messages[0], &decoded))
	assert.Equal(t, KindCreated, decoded.Kind)
	assert.Equal(t, "task-1", decoded.TaskID)
	assert.Equal(t, 17, decoded.Price)
	assert.Equal(t, "/in/a.jpg", decoded.SourceLocation)
	assert.Equal(t, "tok-1", decoded.IdempotencyToken)
	assert.NotZero(t, decoded.Timestamp)
}

func TestChannelPublisher_SwallowsBroadcastFailure(t *testing.T) {
	broadcaster := &fakeBroadcaster{err: errors.New("redis gone")}
	p := NewChannelPublisher(broadcaster, "imgtasks:events")

	// Must not panic or propagate; events are best-effort.
	p.Publish(context.Background(), NewProcessing("task-1", "worker-a"))
	assert.Empty(t, broadcaster.messages)
}

func TestEventConstructors(t *testing.T) {
	proc := NewProcessing("t", "host:1")
	assert.Equal(t, KindProcessing, proc.Kind)
	assert.Equal(t, "host:1", proc.WorkerID)

	outputs := []models.TaskOutput{{VariantLabel: "thumbnail", Location: "/out/t.jpg"}}
	done := NewCompleted("t", outputs, 1500*time.Millisecond)
	assert.Equal(t, KindCompleted, done.Kind)
	assert.Equal(t, int64(1500), done.ProcessingTimeMs)
	assert.Equal(t, outputs, done.Outputs)

	failed := NewFailed("t", "decode error", 3, true)
	assert.Equal(t, KindFailed, failed.Kind)
	assert.Equal(t, "decode error", failed.Error)
	assert.Equal(t, 3, failed.Attempts)
	assert.True(t, failed.WillRetry)
}
