package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
)

// NewRouter constructs the HTTP router with middleware and routes.
func NewRouter(cfg *config.Config, deps Dependencies, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware)

	h := NewHandler(deps, cfg, logger)

	r.Get("/test", h.HandleTest)
	r.Method("GET", "/metrics", h.MetricsHandler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.APIKey != "" {
			r.Use(AuthMiddleware(cfg.Auth.APIKey))
		}

		r.Get("/", h.HandleIndex)
		r.Post("/", h.HandleIndex)
		r.Post("/analyze_realtime", h.HandleAnalyzeRealtime)
		r.Get("/ws/analyze", h.HandleAnalyzeStream)

		r.Get("/v1/health", h.HandleHealthGet)
		r.Post("/v1/health", h.HandleHealthPost)
	})

	return r
}
