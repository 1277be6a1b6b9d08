package llm

import "context"

// History roles understood by the generation service.
const (
	HistoryRoleUser  = "user"
	HistoryRoleModel = "model"
)

// HistoryEntry is one prior conversation message, role-tagged the way
// the generation service expects it.
type HistoryEntry struct {
	Role string
	Text string
}

// Request contains the user prompt plus the running conversation context
type Request struct {
	Prompt  string
	History []HistoryEntry
}

// Reply contains a generation result
type Reply struct {
	Text       string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for text-generation services
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate produces a reply for the prompt given the conversation history
	Generate(ctx context.Context, req Request) (*Reply, error)
}
