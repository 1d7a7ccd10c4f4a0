package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memolink/internal/memoservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memoservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Links.
	r.Get("/backlinks", h.Backlinks)
	r.Get("/outbound", h.Outbound)
	r.Get("/referrers", h.Referrers)
	r.Get("/orphans", h.Orphans)
	r.Get("/stats", h.Stats)

	// Tags.
	r.Get("/tags", h.Tags)
	r.Get("/tags/memos", h.MemosByTags)

	// Graph.
	r.Get("/graph", h.Graph)

	// Commands.
	r.Post("/rename", h.Rename)
	r.Delete("/documents", h.DeleteDocument)
	r.Post("/index/rebuild", h.Rebuild)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
