package domain

import "time"

// Session is a persisted query session: an append-only sequence of
// question/answer messages owned by the caller of the query service.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole distinguishes the two sides of a session message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a session. Assistant messages carry the
// sources and confidence of the answer they record.
type Message struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	Role       MessageRole       `json:"role"`
	Content    string            `json:"content"`
	Sources    []FormattedSource `json:"sources,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
