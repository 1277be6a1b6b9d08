package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatSession represents one conversation transcript tied to an opaque
// session identifier. The message sequence is append-only.
type ChatSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// SessionStore defines transcript storage in the remote document store.
type SessionStore interface {
	// Get returns the session record, or ErrNotFound if no messages have
	// been appended under this session ID yet.
	Get(ctx context.Context, sessionID uuid.UUID) (*ChatSession, error)

	// AppendMessage appends a message to the session transcript. The
	// session document is created (with owning user and creation time)
	// on the first append for a new session ID.
	AppendMessage(ctx context.Context, sessionID, userID uuid.UUID, msg Message) error
}
