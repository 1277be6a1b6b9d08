package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/domain"
	"github.com/ira-app/sally-api/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockQuotaStore mocks the QuotaStore interface
type MockQuotaStore struct {
	mock.Mock
}

func (m *MockQuotaStore) Get(ctx context.Context, userID uuid.UUID) (*domain.QuotaRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuotaRecord), args.Error(1)
}

func (m *MockQuotaStore) Put(ctx context.Context, record *domain.QuotaRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockQuotaStore) Increment(ctx context.Context, userID uuid.UUID, deltaTokens, deltaMessages int) (bool, error) {
	args := m.Called(ctx, userID, deltaTokens, deltaMessages)
	return args.Bool(0), args.Error(1)
}

// memQuotaStore is an in-memory QuotaStore with the same increment
// semantics as the document store: atomic, clamped at zero.
type memQuotaStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.QuotaRecord
	getErr  error
	putErr  error
	incErr  error
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{records: make(map[uuid.UUID]domain.QuotaRecord)}
}

func (s *memQuotaStore) Get(ctx context.Context, userID uuid.UUID) (*domain.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	record, ok := s.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

func (s *memQuotaStore) Put(ctx context.Context, record *domain.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.records[record.UserID] = *record
	return nil
}

func (s *memQuotaStore) Increment(ctx context.Context, userID uuid.UUID, deltaTokens, deltaMessages int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incErr != nil {
		return false, s.incErr
	}
	record, ok := s.records[userID]
	if !ok {
		return false, nil
	}
	if deltaTokens < 0 && record.TokensRemaining < -deltaTokens {
		return false, nil
	}
	record.TokensRemaining += deltaTokens
	record.TotalMessages += deltaMessages
	s.records[userID] = record
	return true, nil
}

// memSessionStore is an in-memory SessionStore
type memSessionStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*domain.ChatSession
	getErr    error
	appendErr error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*domain.ChatSession)}
}

func (s *memSessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *session
	copied.Messages = append([]domain.Message(nil), session.Messages...)
	return &copied, nil
}

func (s *memSessionStore) AppendMessage(ctx context.Context, sessionID, userID uuid.UUID, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &domain.ChatSession{
			ID:        sessionID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		s.sessions[sessionID] = session
	}
	session.Messages = append(session.Messages, msg)
	return nil
}

func (s *memSessionStore) messages(sessionID uuid.UUID) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), session.Messages...)
}

// stubProvider is a controllable llm.Provider
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	reply   *llm.Reply
	err     error
	entered chan struct{}
	release chan struct{}
}

func (p *stubProvider) Name() string       { return "stub" }
func (p *stubProvider) IsConfigured() bool { return true }

func (p *stubProvider) Generate(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}

	if p.err != nil {
		return nil, p.err
	}
	if p.reply != nil {
		return p.reply, nil
	}
	return &llm.Reply{Text: "stub reply", TokensUsed: 7}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
