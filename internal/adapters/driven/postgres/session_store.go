package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore implements driven.SessionStore using PostgreSQL
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// CreateSession inserts a new session
func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Title,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID
func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, title, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	var session domain.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions, most recently updated first
func (s *SessionStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	query := `
		SELECT id, title, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's title
func (s *SessionStore) RenameSession(ctx context.Context, id, title string) error {
	query := `UPDATE sessions SET title = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, title, time.Now(), id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return requireRow(result)
}

// DeleteSession removes a session. Messages cascade via the schema.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(result)
}

// AppendMessage adds a message and bumps the session's updated time
func (s *SessionStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var sources []byte
	if len(msg.Sources) > 0 {
		var err error
		sources, err = json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE sessions SET updated_at = $1 WHERE id = $2`,
			msg.CreatedAt, msg.SessionID,
		)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}

		query := `
			INSERT INTO messages (id, session_id, role, content, sources, confidence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err = tx.ExecContext(ctx, query,
			msg.ID,
			msg.SessionID,
			msg.Role,
			msg.Content,
			sources,
			msg.Confidence,
			msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// ListMessages returns a session's messages in chronological order
func (s *SessionStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, sources, confidence, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var sources []byte
		var confidence sql.NullFloat64
		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&sources,
			&confidence,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		if confidence.Valid {
			msg.Confidence = &confidence.Float64
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// Ping verifies the store is reachable
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
