package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ira-app/sally-api/internal/api/handler"
	customMiddleware "github.com/ira-app/sally-api/internal/api/middleware"
	"github.com/ira-app/sally-api/internal/config"
	"github.com/ira-app/sally-api/internal/llm/gemini"
	"github.com/ira-app/sally-api/internal/repository/mongo"
	"github.com/ira-app/sally-api/internal/repository/redis"
	"github.com/ira-app/sally-api/internal/service"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, store *mongo.Client, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS: the chat widget is embedded in the marketing site
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Initialize repositories
	quotaRepo := mongo.NewQuotaRepository(store)
	sessionRepo := mongo.NewSessionRepository(store)

	// Initialize rate limiter
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Chat.RateLimit.RequestsPerMinute,
		cfg.Chat.RateLimit.Burst,
	)

	// Initialize generation provider
	provider := gemini.NewProvider(cfg.Gemini)
	if !provider.IsConfigured() {
		log.Warn().Msg("Gemini API key is empty, chat turns will fail over to the fallback reply")
	}

	// Initialize services
	identityService := service.NewIdentityService()
	quotaService := service.NewQuotaService(quotaRepo, cfg.Chat.DailyTokens)
	chatService := service.NewChatService(quotaService, sessionRepo, provider, cfg.Chat)

	// Initialize handlers
	identityHandler := handler.NewIdentityHandler(identityService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	chatHandler := handler.NewChatHandler(chatService)

	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(store))

		// Identity provisioning (public, no identity yet)
		r.Post("/identity", identityHandler.Provision)

		// Identity-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Identity)
			r.Use(rateLimitMiddleware.Limit)

			r.Get("/quota", quotaHandler.Get)

			r.Route("/chat/{sessionID}", func(r chi.Router) {
				r.Get("/messages", chatHandler.Transcript)
				r.Post("/messages", chatHandler.Submit)
			})
		})
	})

	return r
}
