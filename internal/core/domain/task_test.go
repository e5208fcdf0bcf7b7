package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskDefaults(t *testing.T) {
	task := NewReindexDocumentTask("doc-1")

	require.NotEmpty(t, task.ID)
	assert.Equal(t, TaskTypeReindexDocument, task.Type)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, "doc-1", task.DocumentID())
	assert.Equal(t, 0, task.Attempts)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.False(t, task.ScheduledFor.After(time.Now()))
}

func TestReindexAllTaskHasNoDocument(t *testing.T) {
	task := NewReindexAllTask()

	assert.Equal(t, TaskTypeReindexAll, task.Type)
	assert.Empty(t, task.DocumentID())
}

func TestTaskLifecycle(t *testing.T) {
	task := NewReindexDocumentTask("doc-1")

	task.MarkProcessing()
	assert.Equal(t, TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)

	task.MarkCompleted()
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Empty(t, task.Error)
}

func TestTaskCanRetry(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     bool
	}{
		{"no attempts yet", 0, true},
		{"below limit", 2, true},
		{"at limit", 3, false},
		{"past limit", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewReindexAllTask()
			task.Attempts = tt.attempts
			assert.Equal(t, tt.want, task.CanRetry())
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		backoff  time.Duration
	}{
		{"first retry", 1, 2 * time.Second},
		{"second retry", 2, 4 * time.Second},
		{"third retry", 3, 8 * time.Second},
		{"capped at five minutes", 12, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewReindexDocumentTask("doc-1")
			task.Attempts = tt.attempts

			before := time.Now()
			task.Retry("transient failure")

			assert.Equal(t, TaskStatusPending, task.Status)
			assert.Equal(t, "transient failure", task.Error)

			got := task.ScheduledFor.Sub(before)
			assert.InDelta(t, tt.backoff.Seconds(), got.Seconds(), 1.0)
		})
	}
}
