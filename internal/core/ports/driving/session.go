package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// SessionService manages chat sessions and their history
type SessionService interface {
	// Create starts a new session with an optional title
	Create(ctx context.Context, title string) (*domain.Session, error)

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List retrieves all sessions, most recently active first
	List(ctx context.Context) ([]*domain.Session, error)

	// Rename updates a session's title
	Rename(ctx context.Context, id, title string) error

	// Delete removes a session and its messages
	Delete(ctx context.Context, id string) error

	// Messages returns a session's messages in chronological order
	Messages(ctx context.Context, id string) ([]*domain.Message, error)

	// Record appends a question/answer exchange to a session
	Record(ctx context.Context, sessionID, question string, answer *domain.Answer) error
}
