package handler

import (
	"net/http"

	"github.com/ira-app/sally-api/internal/api/response"
	"github.com/ira-app/sally-api/internal/service"
)

// IdentityHandler provisions opaque client identifiers
type IdentityHandler struct {
	identityService *service.IdentityService
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identityService: identityService}
}

// Provision returns a fresh user/session identifier pair. Clients
// persist both locally and only call this again when their copy is lost.
func (h *IdentityHandler) Provision(w http.ResponseWriter, r *http.Request) {
	response.Created(w, h.identityService.Provision())
}
