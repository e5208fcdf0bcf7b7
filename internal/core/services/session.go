package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// sessionTitleLimit bounds auto-derived session titles
const sessionTitleLimit = 50

// Ensure sessionService implements SessionService
var _ driving.SessionService = (*sessionService)(nil)

// sessionService manages chat sessions and their append-only history
type sessionService struct {
	store driven.SessionStore
}

// NewSessionService creates a SessionService
func NewSessionService(store driven.SessionStore) driving.SessionService {
	return &sessionService{store: store}
}

// Create starts a new session. Untitled sessions take their title from
// the first recorded question.
func (s *sessionService) Create(ctx context.Context, title string) (*domain.Session, error) {
	now := time.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get retrieves a session by ID
func (s *sessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.GetSession(ctx, id)
}

// List retrieves all sessions, most recently active first
func (s *sessionService) List(ctx context.Context) ([]*domain.Session, error) {
	return s.store.ListSessions(ctx)
}

// Rename updates a session's title
func (s *sessionService) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ErrInvalidInput
	}
	return s.store.RenameSession(ctx, id, title)
}

// Delete removes a session and its messages
func (s *sessionService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteSession(ctx, id)
}

// Messages returns a session's messages in chronological order
func (s *sessionService) Messages(ctx context.Context, id string) ([]*domain.Message, error) {
	return s.store.ListMessages(ctx, id)
}

// Record appends a question/answer exchange to a session
func (s *sessionService) Record(ctx context.Context, sessionID, question string, answer *domain.Answer) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: now,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return err
	}

	confidence := answer.Confidence
	assistantMsg := &domain.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       domain.RoleAssistant,
		Content:    answer.Answer,
		Sources:    answer.Sources,
		Confidence: &confidence,
		CreatedAt:  now.Add(time.Millisecond),
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return err
	}

	if session.Title == "" {
		title := question
		if runes := []rune(title); len(runes) > sessionTitleLimit {
			title = string(runes[:sessionTitleLimit])
		}
		if err := s.store.RenameSession(ctx, sessionID, title); err != nil {
			return err
		}
	}
	return nil
}
