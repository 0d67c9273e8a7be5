// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ballotbot-gg/ballotbot/cmd/ballotbot-api/handlers"
	"github.com/ballotbot-gg/ballotbot/cmd/ballotbot-api/middleware"
	"github.com/ballotbot-gg/ballotbot/internal/api/grpc"
	"github.com/ballotbot-gg/ballotbot/internal/app"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

// ServerConfig holds the HTTP-layer settings.
type ServerConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	APIKeys        []string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, a *app.App, cfg ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"ballotbot"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := a.Ready(ctx); err != nil {
			logger.WithContext(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	if a.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	}

	chatHandler := handlers.NewChatHandler(logger, a.Router)
	topicsHandler := handlers.NewTopicsHandler(a.Table, a.Summaries)

	var queryLog handlers.QueryLog
	if a.QueryLog != nil {
		queryLog = a.QueryLog
	}
	adminHandler := handlers.NewAdminHandler(logger, queryLog, a.Responses)

	r.Post("/chat", chatHandler.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", topicsHandler.List)
			r.Get("/{topic}/summary", topicsHandler.Summary)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(cfg.APIKeys))
			r.Get("/queries", adminHandler.Queries)
			r.Delete("/cache/responses", adminHandler.ClearResponses)
		})
	})

	path, handler := grpc.NewChatServiceHandler(grpc.NewChatService(logger, a.Router))
	r.Mount(path, handler)

	return r
}
