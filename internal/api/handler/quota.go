package handler

import (
	"net/http"

	"github.com/ira-app/sally-api/internal/api/middleware"
	"github.com/ira-app/sally-api/internal/api/response"
	"github.com/ira-app/sally-api/internal/service"
)

// QuotaHandler handles the remaining-allowance endpoint
type QuotaHandler struct {
	quotaService *service.QuotaService
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// Get initializes the quota record for today if needed and returns the
// visible counter state
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.BadRequest(w, "missing user identity")
		return
	}

	record, err := h.quotaService.Status(r.Context(), userID)
	if err != nil {
		response.Unavailable(w, "temporary error, please retry")
		return
	}

	response.OK(w, map[string]any{
		"remaining":      record.TokensRemaining,
		"total_messages": record.TotalMessages,
		"last_reset":     record.LastResetDate,
	})
}
