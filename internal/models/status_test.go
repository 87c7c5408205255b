package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition_AllowedPairs(t *testing.T) {
	allowed := [][2]TaskStatus{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}
	for _, pair := range allowed {
		assert.NoError(t, ValidateTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}
}

func TestValidateTransition_RejectsEverythingElse(t *testing.T) {
	statuses := []TaskStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]TaskStatus]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusFailed}:       true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if allowed[[2]TaskStatus{from, to}] {
				continue
			}
			err := ValidateTransition(from, to)
			require.Error(t, err, "%s -> %s should be rejected", from, to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	err := ValidateTransition(TaskStatus("queued"), StatusProcessing)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = ValidateTransition(StatusPending, TaskStatus(""))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTaskStatus_IsValid(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.False(t, TaskStatus("done").IsValid())
}
