package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stitchtool/stitch/internal/engine"
	"github.com/stitchtool/stitch/internal/history"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(eng *engine.Engine, db history.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Run history and per-file state.
	r.Get("/runs", h.ListRuns)
	r.Get("/files", h.ListFiles)
	r.Get("/files/*", h.GetFile)

	// Configured rules.
	r.Get("/rules", h.ListRules)

	// On-demand patch run.
	r.Post("/patch", h.TriggerPatch)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
