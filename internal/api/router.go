package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/attachsync/internal/attachservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *attachservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/workspace/active", func(r chi.Router) {
		r.Get("/", h.GetActive)
		r.Put("/", h.SetActive)
		r.Delete("/", h.ClearActive)
	})

	r.Post("/rename", h.Rename)
	r.Post("/drop", h.Drop)
	r.Get("/resolve", h.Resolve)
	r.Get("/relocations", h.Relocations)
	r.Get("/settings", h.Settings)
	r.Get("/files/*", h.ServeFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
