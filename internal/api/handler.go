// Package api exposes lookup sessions and the saved history over a local
// REST API and an MCP server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/session"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds what the REST handlers need.
type Deps struct {
	Sessions *session.Registry
	History  *history.Store
	Token    string
	DB       Pinger // optional; health reports degraded when the ping fails
}

// NewHandler returns the daemon's HTTP handler. Everything except /health
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(traced("wrench.api"))

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/sessions", handleCreateSession(deps))
		r.Get("/sessions/{id}", handleGetSession(deps))
		r.Post("/sessions/{id}/lookups", handleLookup(deps))
		r.Post("/sessions/{id}/save", handleSave(deps))
		r.Post("/sessions/{id}/expand", handleExpand(deps))

		r.Get("/history", handleListHistory(deps))
		r.Get("/history/{id}", handleGetHistory(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
