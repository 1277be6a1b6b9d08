package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single chat message. Messages are immutable once
// appended to a session; ordering is insertion order, timestamps are
// informational only.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	TokenUsage int         `json:"token_usage,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewMessage builds a message with a fresh identifier and timestamp.
func NewMessage(role MessageRole, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
