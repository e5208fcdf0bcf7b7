package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock for testing
type MockDistributedLock struct {
	mu    sync.Mutex
	held  map[string]bool
	fail  bool
	calls []string
}

// NewMockDistributedLock creates a new mock lock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]bool)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "acquire:"+name)
	if m.fail {
		return false, fmt.Errorf("lock backend unavailable")
	}
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "release:"+name)
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.held[name] {
		return fmt.Errorf("lock %s not held", name)
	}
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// SetHeld marks a lock as held by another instance
func (m *MockDistributedLock) SetHeld(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = true
}

// SetFail makes Acquire return an error
func (m *MockDistributedLock) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Calls returns the recorded acquire/release calls in order
func (m *MockDistributedLock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
