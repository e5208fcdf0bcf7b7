package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// SessionStore persists chat sessions and their messages
type SessionStore interface {
	// CreateSession inserts a new session
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession returns a session by ID, domain.ErrNotFound when absent
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, most recently updated first
	ListSessions(ctx context.Context) ([]*domain.Session, error)

	// RenameSession updates a session's title
	RenameSession(ctx context.Context, id, title string) error

	// DeleteSession removes a session and its messages
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage adds a message to a session and bumps its updated time
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns a session's messages in chronological order
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}
