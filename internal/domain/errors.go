package domain

import "errors"

var (
	// ErrNotFound indicates a record does not exist in the store.
	// Callers must not confuse it with transport failures: an unknown
	// quota record means "exhausted", a transport failure is retryable.
	ErrNotFound = errors.New("record not found")

	// ErrTurnInFlight indicates a chat turn is already in progress for
	// the session.
	ErrTurnInFlight = errors.New("turn already in flight for session")
)
