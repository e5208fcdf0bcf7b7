package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// MockTaskQueue is a mock implementation of TaskQueue for testing
type MockTaskQueue struct {
	mu     sync.Mutex
	tasks  []*domain.Task
	acked  []*domain.Task
	nacked []*domain.Task
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, nil
}

func (m *MockTaskQueue) Ack(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, task)
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked = append(m.nacked, task)
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockTaskQueue) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *MockTaskQueue) Acked() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

func (m *MockTaskQueue) NackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nacked)
}
