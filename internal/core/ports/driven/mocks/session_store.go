package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// MockSessionStore is a mock implementation of SessionStore for testing
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	messages map[string][]*domain.Message
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]*domain.Message),
	}
}

func (m *MockSessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MockSessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (m *MockSessionStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (m *MockSessionStore) RenameSession(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	session.Title = title
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MockSessionStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *MockSessionStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[msg.SessionID]
	if !ok {
		return domain.ErrNotFound
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MockSessionStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.messages[sessionID], nil
}

func (m *MockSessionStore) Ping(ctx context.Context) error {
	return nil
}
