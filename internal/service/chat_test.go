package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/config"
	"github.com/ira-app/sally-api/internal/domain"
	"github.com/ira-app/sally-api/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stubReply = llm.Reply{Text: "Voici une réponse **importante**.", TokensUsed: 42}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		DailyTokens:       10,
		WelcomeMessage:    "Bonjour! Je suis Sally.",
		HistoryLimit:      20,
		DownloadURL:       "https://example.com/app",
		LowTokenThreshold: 3,
	}
}

type chatFixture struct {
	svc      *ChatService
	quota    *memQuotaStore
	sessions *memSessionStore
	provider *stubProvider
}

func newChatFixture(provider *stubProvider) *chatFixture {
	quota := newMemQuotaStore()
	sessions := newMemSessionStore()
	svc := NewChatService(
		newQuotaServiceOnDay(quota, "2025-03-01"),
		sessions,
		provider,
		testChatConfig(),
	)
	return &chatFixture{svc: svc, quota: quota, sessions: sessions, provider: provider}
}

func TestChatService_Transcript_SeedsWelcome(t *testing.T) {
	fx := newChatFixture(&stubProvider{})
	sessionID, userID := uuid.New(), uuid.New()

	messages, degraded, err := fx.svc.Transcript(context.Background(), sessionID, userID)

	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleAssistant, messages[0].Role)
	assert.Equal(t, "Bonjour! Je suis Sally.", messages[0].Content)

	// The greeting is persisted so a second load does not duplicate it
	messages, degraded, err = fx.svc.Transcript(context.Background(), sessionID, userID)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Len(t, messages, 1)
}

func TestChatService_Transcript_DegradedOnStoreFailure(t *testing.T) {
	fx := newChatFixture(&stubProvider{})
	fx.sessions.getErr = errors.New("connection reset")

	messages, degraded, err := fx.svc.Transcript(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleAssistant, messages[0].Role)
}

func TestChatService_Submit_FullAllowanceScenario(t *testing.T) {
	fx := newChatFixture(&stubProvider{})
	sessionID, userID := uuid.New(), uuid.New()

	for i := 0; i < 10; i++ {
		result, err := fx.svc.Submit(context.Background(), sessionID, userID, "question")
		require.NoError(t, err)
		assert.False(t, result.Blocked, "turn %d should pass the gate", i+1)
		assert.Equal(t, 10-(i+1), result.Remaining)
	}
	assert.Equal(t, 10, fx.provider.callCount())

	// Eleventh turn is blocked before any generation call
	result, err := fx.svc.Submit(context.Background(), sessionID, userID, "one more")
	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Equal(t, 0, result.Remaining)
	assert.True(t, result.SuggestDownload)
	assert.Equal(t, "https://example.com/app", result.DownloadURL)
	assert.Equal(t, 10, fx.provider.callCount(), "exhausted turn must not reach the provider")

	// Transcript: welcome + 10 turns of two messages + the limit notice
	messages := fx.sessions.messages(sessionID)
	require.Len(t, messages, 22)
	assert.Equal(t, limitReachedMessage, messages[21].Content)
	assert.Equal(t, domain.RoleAssistant, messages[21].Role)
}

func TestChatService_Submit_SuggestsDownloadWhenLow(t *testing.T) {
	fx := newChatFixture(&stubProvider{})
	sessionID, userID := uuid.New(), uuid.New()

	var result *TurnResult
	var err error
	for i := 0; i < 7; i++ {
		result, err = fx.svc.Submit(context.Background(), sessionID, userID, "question")
		require.NoError(t, err)
	}

	assert.Equal(t, 3, result.Remaining)
	assert.True(t, result.SuggestDownload)

	// Above the threshold the nudge is absent
	fx2 := newChatFixture(&stubProvider{})
	result, err = fx2.svc.Submit(context.Background(), uuid.New(), uuid.New(), "question")
	require.NoError(t, err)
	assert.Equal(t, 9, result.Remaining)
	assert.False(t, result.SuggestDownload)
}

func TestChatService_Submit_SingleFlightPerSession(t *testing.T) {
	provider := &stubProvider{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	fx := newChatFixture(provider)
	sessionID, userID := uuid.New(), uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := fx.svc.Submit(context.Background(), sessionID, userID, "first")
		done <- err
	}()

	// Wait until the first turn is inside the provider call
	select {
	case <-provider.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first turn never reached the provider")
	}

	_, err := fx.svc.Submit(context.Background(), sessionID, userID, "second")
	assert.ErrorIs(t, err, domain.ErrTurnInFlight)

	// A different session is not held up by this one
	otherDone := make(chan error, 1)
	go func() {
		_, err := fx.svc.Submit(context.Background(), uuid.New(), userID, "elsewhere")
		otherDone <- err
	}()

	close(provider.release)
	require.NoError(t, <-done)
	require.NoError(t, <-otherDone)

	// Rejected turn consumed nothing: 10 - 2 completed turns
	remaining, err := fx.svc.quota.Remaining(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 8, remaining)
}

func TestChatService_Submit_GenerationFailureFallback(t *testing.T) {
	fx := newChatFixture(&stubProvider{err: errors.New("model overloaded")})
	sessionID, userID := uuid.New(), uuid.New()

	result, err := fx.svc.Submit(context.Background(), sessionID, userID, "question")

	require.NoError(t, err)
	assert.False(t, result.Blocked)
	assert.Equal(t, fallbackMessage, result.Reply.Content)
	assert.Equal(t, 9, result.Remaining, "the consumed token is not refunded")

	// Exactly one assistant message after the user's, and it is the fallback
	messages := fx.sessions.messages(sessionID)
	require.Len(t, messages, 3)
	assert.Equal(t, domain.RoleUser, messages[1].Role)
	assert.Equal(t, "question", messages[1].Content)
	assert.Equal(t, domain.RoleAssistant, messages[2].Role)
	assert.Equal(t, fallbackMessage, messages[2].Content)
}

func TestChatService_Submit_QuotaTransportError(t *testing.T) {
	fx := newChatFixture(&stubProvider{})
	fx.quota.incErr = errors.New("network timeout")
	sessionID, userID := uuid.New(), uuid.New()

	result, err := fx.svc.Submit(context.Background(), sessionID, userID, "question")

	// Surfaced as retryable, never as exhaustion
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, fx.provider.callCount())
}

func TestChatService_Submit_FormatsReply(t *testing.T) {
	fx := newChatFixture(&stubProvider{reply: &stubReply})
	sessionID, userID := uuid.New(), uuid.New()

	result, err := fx.svc.Submit(context.Background(), sessionID, userID, "question")

	require.NoError(t, err)
	assert.Equal(t, "<p>Voici une réponse <strong>importante</strong>.</p>", result.Reply.Content)
	assert.Equal(t, 42, result.Reply.TokenUsage)
}

func TestHistoryEntries(t *testing.T) {
	messages := []domain.Message{
		domain.NewMessage(domain.RoleAssistant, "bonjour"),
		domain.NewMessage(domain.RoleUser, "salut"),
		domain.NewMessage(domain.RoleAssistant, "comment puis-je aider?"),
	}

	entries := historyEntries(messages, 2)

	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "salut", entries[0].Text)
	assert.Equal(t, "model", entries[1].Role)
}
