package service

import "github.com/google/uuid"

// Identity is the pair of opaque identifiers a client holds: a user ID
// stable across sessions on one device, and a session ID for the current
// browser context. Clients persist both and send them back on every
// request; they are the only keys into the remote store.
type Identity struct {
	UserID    uuid.UUID `json:"user_id"`
	SessionID uuid.UUID `json:"session_id"`
}

// IdentityService provisions opaque client identifiers. The generator is
// injectable so tests can produce deterministic identities.
type IdentityService struct {
	newID func() uuid.UUID
}

// NewIdentityService creates an identity service backed by random UUIDs
func NewIdentityService() *IdentityService {
	return &IdentityService{newID: uuid.New}
}

// Provision generates a fresh identity pair
func (s *IdentityService) Provision() Identity {
	return Identity{
		UserID:    s.newID(),
		SessionID: s.newID(),
	}
}

// NewSessionID generates a session identifier for an existing user
func (s *IdentityService) NewSessionID() uuid.UUID {
	return s.newID()
}
