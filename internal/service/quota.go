package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/domain"
)

// dateLayout is the calendar-date form stored in quota records. Reset
// boundaries compare these strings in the server's local timezone, so
// the daily allowance rolls over at local midnight.
const dateLayout = "2006-01-02"

// QuotaService enforces the daily per-user message allowance
type QuotaService struct {
	store       domain.QuotaStore
	dailyTokens int
	today       func() string
}

// NewQuotaService creates a new quota service
func NewQuotaService(store domain.QuotaStore, dailyTokens int) *QuotaService {
	return &QuotaService{
		store:       store,
		dailyTokens: dailyTokens,
		today: func() string {
			return time.Now().Format(dateLayout)
		},
	}
}

// EnsureInitialized creates the quota record with the full daily
// allowance on first contact, and resets the allowance when the stored
// date is not today. TotalMessages survives resets. Idempotent within a
// day. Returns the resulting remaining count.
func (s *QuotaService) EnsureInitialized(ctx context.Context, userID uuid.UUID) (int, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("failed to load quota record: %w", err)
		}
		record = &domain.QuotaRecord{
			UserID:          userID,
			TokensRemaining: s.dailyTokens,
			LastResetDate:   s.today(),
		}
		if err := s.store.Put(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to create quota record: %w", err)
		}
		return record.TokensRemaining, nil
	}

	if today := s.today(); record.LastResetDate != today {
		record.TokensRemaining = s.dailyTokens
		record.LastResetDate = today
		if err := s.store.Put(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to reset quota record: %w", err)
		}
	}

	return record.TokensRemaining, nil
}

// Remaining returns the current allowance. An unknown user is exhausted,
// not an error; only transport failures propagate.
func (s *QuotaService) Remaining(ctx context.Context, userID uuid.UUID) (int, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load quota record: %w", err)
	}

	if record.TokensRemaining < 0 {
		return 0, nil
	}
	return record.TokensRemaining, nil
}

// Consume atomically spends one message token and bumps the lifetime
// counter. Returns false when the allowance is exhausted or the user is
// unknown; errors are transport failures and must not be read as either
// grant or denial.
func (s *QuotaService) Consume(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := s.store.Increment(ctx, userID, -1, 1)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}
	return ok, nil
}

// Status returns the full quota record after ensuring it is initialized
// for today.
func (s *QuotaService) Status(ctx context.Context, userID uuid.UUID) (*domain.QuotaRecord, error) {
	if _, err := s.EnsureInitialized(ctx, userID); err != nil {
		return nil, err
	}
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quota record: %w", err)
	}
	return record, nil
}
