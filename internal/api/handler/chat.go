package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/api/middleware"
	"github.com/ira-app/sally-api/internal/api/response"
	"github.com/ira-app/sally-api/internal/domain"
	"github.com/ira-app/sally-api/internal/service"
)

var validate = validator.New()

// ChatHandler handles chat turn and transcript endpoints
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type submitRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

// Submit runs one chat turn for the session
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.BadRequest(w, "missing user identity")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.chatService.Submit(r.Context(), sessionID, userID, req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrTurnInFlight) {
			response.TooManyRequests(w, "a message is already being processed for this session")
			return
		}
		// Store transport failure: retryable, never exposed as detail
		response.Unavailable(w, "temporary error, please retry")
		return
	}

	response.OK(w, result)
}

// Transcript returns the message history for the session, seeding the
// welcome message for new sessions
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.BadRequest(w, "missing user identity")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	messages, degraded, err := h.chatService.Transcript(r.Context(), sessionID, userID)
	if err != nil {
		response.Unavailable(w, "temporary error, please retry")
		return
	}

	response.OK(w, map[string]any{
		"messages": messages,
		"degraded": degraded,
	})
}
