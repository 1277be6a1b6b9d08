package domain

import (
	"context"

	"github.com/google/uuid"
)

// QuotaRecord is the per-user daily message allowance counter.
// LastResetDate is a plain calendar date (YYYY-MM-DD) in the server's
// local timezone; the allowance boundary is wall-clock-local.
type QuotaRecord struct {
	UserID          uuid.UUID `json:"user_id"`
	TokensRemaining int       `json:"tokens_remaining"`
	LastResetDate   string    `json:"last_reset"`
	TotalMessages   int       `json:"total_messages"`
}

// QuotaStore defines quota record storage in the remote document store.
type QuotaStore interface {
	// Get returns the quota record, or ErrNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID) (*QuotaRecord, error)

	// Put upserts the full quota record.
	Put(ctx context.Context, record *QuotaRecord) error

	// Increment atomically applies deltaTokens to TokensRemaining and
	// deltaMessages to TotalMessages. When deltaTokens is negative the
	// update only applies if the counter stays at or above zero; it
	// returns false (no error) when the record is missing or the
	// decrement would go negative. Errors are transport failures only.
	Increment(ctx context.Context, userID uuid.UUID, deltaTokens, deltaMessages int) (bool, error)
}
