package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/draftwise/draftwise/internal/database"
	mw "github.com/draftwise/draftwise/internal/middleware"
	inats "github.com/draftwise/draftwise/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// User-facing handlers
	Me                http.HandlerFunc
	SetProviderKey    http.HandlerFunc
	DeleteProviderKey http.HandlerFunc
	Generate          http.HandlerFunc
	RecordActivity    http.HandlerFunc
	Usage             http.HandlerFunc
	ListSharedModels  http.HandlerFunc
	ListHistory       http.HandlerFunc

	// Admin handlers
	ListTierPolicies http.HandlerFunc
	GetTierPolicy    http.HandlerFunc
	UpsertTierPolicy http.HandlerFunc
	CreateSharedKey  http.HandlerFunc
	ListSharedKeys   http.HandlerFunc
	ToggleSharedKey  http.HandlerFunc
	DeleteSharedKey  http.HandlerFunc

	// Middleware
	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins  []string
	AuthRateLimiter     func(http.Handler) http.Handler
	GenerateRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/me", h.Me)
			r.Get("/usage", h.Usage)
			r.Get("/models/shared", h.ListSharedModels)
			r.Get("/history", h.ListHistory)
			r.Post("/activities", h.RecordActivity)

			r.Route("/keys/{provider}", func(r chi.Router) {
				r.Put("/", h.SetProviderKey)
				r.Delete("/", h.DeleteProviderKey)
			})

			r.Group(func(r chi.Router) {
				if cfg.GenerateRateLimiter != nil {
					r.Use(cfg.GenerateRateLimiter)
				}
				r.Post("/generate", h.Generate)
			})

			// Admin routes (tier gate)
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.AdminMiddleware)

				r.Route("/tiers", func(r chi.Router) {
					r.Get("/", h.ListTierPolicies)
					r.Get("/{tier}", h.GetTierPolicy)
					r.Put("/{tier}", h.UpsertTierPolicy)
				})

				r.Route("/shared-keys", func(r chi.Router) {
					r.Post("/", h.CreateSharedKey)
					r.Get("/", h.ListSharedKeys)
					r.Patch("/{id}/toggle", h.ToggleSharedKey)
					r.Delete("/{id}", h.DeleteSharedKey)
				})
			})
		})
	})

	return r
}
