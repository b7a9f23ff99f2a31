// Package server provides the HTTP server setup for Reclaim.
package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/reclaimhq/reclaim/internal/api"
	"github.com/reclaimhq/reclaim/internal/config"
	"github.com/reclaimhq/reclaim/internal/encryption"
	"github.com/reclaimhq/reclaim/internal/events"
	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/middleware"
	"github.com/reclaimhq/reclaim/internal/store"
)

// Server holds all dependencies for the Reclaim HTTP server.
type Server struct {
	Router *chi.Mux
	Config *config.Config
	DB     *store.DB
	Logger *slog.Logger
}

// New creates a new Server with all routes configured.
func New(cfg *config.Config, db *store.DB, engine *matching.Engine, refresher *matching.Refresher, activity *store.ActivityStore, bus *events.Client, publisher *events.Publisher, encryptor *encryption.Encryptor, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))

	// Handlers
	healthHandler := api.NewHealthHandler(db, bus)
	postsHandler := api.NewPostsHandler(engine, refresher, encryptor, publisher, logger)
	activityHandler := api.NewActivityHandler(activity)

	// Rate limiters
	searchRL := middleware.NewRateLimiter(cfg.SearchRateLimit, cfg.RateWindow)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (no rate limit)
		r.Get("/health", healthHandler.Health)
		r.Get("/stats", healthHandler.Stats)
		r.Get("/activity", activityHandler.List)

		r.Route("/posts", func(r chi.Router) {
			r.Use(searchRL.Middleware)
			r.Get("/{id}/similar", postsHandler.Similar)
			r.Post("/{id}/refresh", postsHandler.Refresh)
			r.Post("/search", postsHandler.Search)
		})
	})

	return &Server{
		Router: r,
		Config: cfg,
		DB:     db,
		Logger: logger,
	}
}
