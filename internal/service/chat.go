package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/config"
	"github.com/ira-app/sally-api/internal/domain"
	"github.com/ira-app/sally-api/internal/llm"
	"github.com/rs/zerolog/log"
)

// User-visible texts for the two absorbed outcomes: quota exhaustion and
// generation failure. Kept verbatim from the widget copy.
const (
	limitReachedMessage = "Vous avez atteint votre limite de messages pour aujourd'hui."
	fallbackMessage     = "Je suis désolée, j'ai rencontré une erreur. Pourriez-vous reformuler votre question?"
)

// TurnResult is the outcome of one chat turn
type TurnResult struct {
	UserMessage     *domain.Message `json:"user_message,omitempty"`
	Reply           domain.Message  `json:"reply"`
	Remaining       int             `json:"remaining"`
	Blocked         bool            `json:"blocked"`
	Degraded        bool            `json:"degraded"`
	SuggestDownload bool            `json:"suggest_download"`
	DownloadURL     string          `json:"download_url,omitempty"`
}

// ChatService drives one chat turn end-to-end: quota gate, transcript
// persistence, and the round trip to the text-generation service. At
// most one turn may be in flight per session.
type ChatService struct {
	quota    *QuotaService
	sessions domain.SessionStore
	provider llm.Provider
	cfg      config.ChatConfig

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewChatService creates a new chat service
func NewChatService(quota *QuotaService, sessions domain.SessionStore, provider llm.Provider, cfg config.ChatConfig) *ChatService {
	return &ChatService{
		quota:    quota,
		sessions: sessions,
		provider: provider,
		cfg:      cfg,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// acquire marks a session turn as in flight. Explicit guard rather than
// a UI convention: the invariant holds under rapid-fire submissions.
func (s *ChatService) acquire(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *ChatService) release(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}

// Transcript loads the message history for a session, seeding the
// assistant greeting for new sessions. When the store is unreachable the
// greeting is served memory-only and the degraded flag is set so the
// client can show a passive warning.
func (s *ChatService) Transcript(ctx context.Context, sessionID, userID uuid.UUID) ([]domain.Message, bool, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err == nil && len(session.Messages) > 0 {
		return session.Messages, false, nil
	}

	welcome := domain.NewMessage(domain.RoleAssistant, s.cfg.WelcomeMessage)

	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to load transcript, serving welcome message only")
		return []domain.Message{welcome}, true, nil
	}

	// New or empty session: persist the greeting best-effort
	if appendErr := s.sessions.AppendMessage(ctx, sessionID, userID, welcome); appendErr != nil {
		log.Warn().Err(appendErr).Str("session_id", sessionID.String()).Msg("failed to persist welcome message")
		return []domain.Message{welcome}, true, nil
	}

	return []domain.Message{welcome}, false, nil
}

// Submit runs one turn: consume a quota token, persist the user message,
// call the generation service with the running history, persist and
// return the reply. Quota exhaustion blocks the turn before any
// generation call; generation failure is absorbed into a fallback reply
// and does not refund the consumed token.
func (s *ChatService) Submit(ctx context.Context, sessionID, userID uuid.UUID, text string) (*TurnResult, error) {
	if !s.acquire(sessionID) {
		return nil, domain.ErrTurnInFlight
	}
	defer s.release(sessionID)

	// Conditionally resets the allowance on a new day before gating.
	if _, err := s.quota.EnsureInitialized(ctx, userID); err != nil {
		return nil, err
	}

	// History is the transcript before this turn's user message.
	history, degraded, _ := s.Transcript(ctx, sessionID, userID)

	consumed, err := s.quota.Consume(ctx, userID)
	if err != nil {
		// Transport failure: surface as retryable, never as exhaustion.
		return nil, err
	}
	if !consumed {
		blocked := domain.NewMessage(domain.RoleAssistant, limitReachedMessage)
		if appendErr := s.sessions.AppendMessage(ctx, sessionID, userID, blocked); appendErr != nil {
			log.Warn().Err(appendErr).Str("session_id", sessionID.String()).Msg("failed to persist limit-reached message")
			degraded = true
		}
		return &TurnResult{
			Reply:           blocked,
			Remaining:       0,
			Blocked:         true,
			Degraded:        degraded,
			SuggestDownload: true,
			DownloadURL:     s.cfg.DownloadURL,
		}, nil
	}

	userMsg := domain.NewMessage(domain.RoleUser, text)
	if appendErr := s.sessions.AppendMessage(ctx, sessionID, userID, userMsg); appendErr != nil {
		// The visible transcript keeps the message; store may diverge.
		log.Error().Err(appendErr).Str("session_id", sessionID.String()).Msg("failed to persist user message")
		degraded = true
	}

	reply := s.generate(ctx, text, history)
	if appendErr := s.sessions.AppendMessage(ctx, sessionID, userID, reply); appendErr != nil {
		log.Error().Err(appendErr).Str("session_id", sessionID.String()).Msg("failed to persist assistant message")
		degraded = true
	}

	remaining, err := s.quota.Remaining(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to refresh remaining quota")
		degraded = true
	}

	return &TurnResult{
		UserMessage:     &userMsg,
		Reply:           reply,
		Remaining:       remaining,
		Degraded:        degraded,
		SuggestDownload: remaining <= s.cfg.LowTokenThreshold,
		DownloadURL:     s.cfg.DownloadURL,
	}, nil
}

// generate calls the provider and absorbs failures into the apologetic
// fallback reply. The consumed quota token is not refunded on failure.
func (s *ChatService) generate(ctx context.Context, prompt string, history []domain.Message) domain.Message {
	req := llm.Request{
		Prompt:  prompt,
		History: historyEntries(history, s.cfg.HistoryLimit),
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("generation service call failed")
		return domain.NewMessage(domain.RoleAssistant, fallbackMessage)
	}

	reply := domain.NewMessage(domain.RoleAssistant, llm.FormatReply(resp.Text))
	reply.TokenUsage = resp.TokensUsed
	return reply
}

// historyEntries converts the most recent transcript messages into the
// role tagging the generation service expects.
func historyEntries(messages []domain.Message, limit int) []llm.HistoryEntry {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	entries := make([]llm.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		role := llm.HistoryRoleModel
		if m.Role == domain.RoleUser {
			role = llm.HistoryRoleUser
		}
		entries = append(entries, llm.HistoryEntry{Role: role, Text: m.Content})
	}
	return entries
}
