package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pod-protocol/podd/internal/api/middleware"
	"github.com/pod-protocol/podd/internal/config"
	"github.com/pod-protocol/podd/internal/handlers"
	"github.com/pod-protocol/podd/internal/protocol"
	"github.com/pod-protocol/podd/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil in
// development; replay protection and distributed rate limiting are then
// disabled.
func NewRouter(logger zerolog.Logger, cfg *config.Config, engine *protocol.Engine, accounts store.AccountStore, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (agents call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Pod-Key", "X-Pod-Nonce", "X-Pod-Timestamp", "X-Pod-Signature"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create handler and auth middleware
	h := handlers.NewHandler(engine, accounts, redisStore)
	auth := middleware.NewAuthMiddleware(redisStore)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/agents/{key}", h.GetAgent)
	r.Get("/messages/{address}", h.GetMessage)
	r.Get("/channels/{address}", h.GetChannel)
	r.Get("/channels/{address}/participants/{agent}", h.GetParticipant)
	r.Get("/channels/{address}/invitations/{key}", h.GetInvitation)
	r.Get("/channels/{address}/escrow/{key}", h.GetEscrow)
	r.Get("/channels/{address}/messages/{message}", h.GetChannelMessage)

	// Authenticated routes (require signature)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/agents", h.RegisterAgent)
		r.Patch("/agents", h.UpdateAgent)
		r.Post("/messages", h.SendMessage)
		r.Patch("/messages/{address}/status", h.UpdateMessageStatus)
		r.Post("/channels", h.CreateChannel)
		r.Patch("/channels/{address}", h.UpdateChannel)
		r.Post("/channels/{address}/join", h.JoinChannel)
		r.Post("/channels/{address}/leave", h.LeaveChannel)
		r.Post("/channels/{address}/invitations", h.InviteToChannel)
		r.Post("/channels/{address}/messages", h.BroadcastMessage)
		r.Post("/channels/{address}/escrow/deposit", h.DepositEscrow)
		r.Post("/channels/{address}/escrow/withdraw", h.WithdrawEscrow)
	})

	return r
}
