package handler

import (
	"net/http"

	"github.com/ira-app/sally-api/internal/api/response"
	"github.com/ira-app/sally-api/internal/repository/mongo"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including document-store connectivity
func ReadyCheck(store *mongo.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			response.Unavailable(w, "document store not ready")
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
