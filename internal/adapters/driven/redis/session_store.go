// Package redis holds the Redis-backed adapters: the chat session
// store, the distributed lock, and (under queue/redis) the task queue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

const (
	chatSessionPrefix  = "orion:session:"
	chatSessionsByTime = "orion:sessions"
	chatMessagesSuffix = ":messages"
)

// SessionStore implements driven.SessionStore using Redis.
// Each session is a JSON record; messages live in a per-session list
// and a sorted set orders sessions by last update for listing.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Redis-backed SessionStore
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// CreateSession inserts a new session
func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, chatSessionPrefix+session.ID, data, 0)
	pipe.ZAdd(ctx, chatSessionsByTime, redis.Z{
		Score:  float64(session.UpdatedAt.UnixNano()),
		Member: session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID
func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, chatSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions, most recently updated first
func (s *SessionStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	ids, err := s.client.ZRevRange(ctx, chatSessionsByTime, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session IDs: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Stale index entry, clean it up
			s.client.ZRem(ctx, chatSessionsByTime, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// RenameSession updates a session's title
func (s *SessionStore) RenameSession(ctx context.Context, id, title string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}

	session.Title = title
	session.UpdatedAt = time.Now()
	return s.saveSession(ctx, session)
}

// DeleteSession removes a session and its messages
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, chatSessionPrefix+id)
	pipe.Del(ctx, chatSessionPrefix+id+chatMessagesSuffix)
	pipe.ZRem(ctx, chatSessionsByTime, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// AppendMessage adds a message to a session and bumps its updated time
func (s *SessionStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	session, err := s.GetSession(ctx, msg.SessionID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	session.UpdatedAt = msg.CreatedAt

	sessionData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, chatSessionPrefix+msg.SessionID+chatMessagesSuffix, data)
	pipe.Set(ctx, chatSessionPrefix+session.ID, sessionData, 0)
	pipe.ZAdd(ctx, chatSessionsByTime, redis.Z{
		Score:  float64(session.UpdatedAt.UnixNano()),
		Member: session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages in chronological order
func (s *SessionStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	entries, err := s.client.LRange(ctx, chatSessionPrefix+sessionID+chatMessagesSuffix, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]*domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Ping verifies the store is reachable
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) saveSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, chatSessionPrefix+session.ID, data, 0)
	pipe.ZAdd(ctx, chatSessionsByTime, redis.Z{
		Score:  float64(session.UpdatedAt.UnixNano()),
		Member: session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
