package transaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventify/eventify-api/internal/middleware"
)

// Routes returns transaction router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/my", h.ListMine)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/upload-proof", h.UploadProof)
	r.Post("/{id}/proof-upload-url", h.ProofUploadURL)
	r.Patch("/{id}/accept", h.Accept)
	r.Patch("/{id}/reject", h.Reject)
	r.Patch("/{id}/cancel", h.Cancel)

	return r
}

// EventRoutes mounts the organizer view under /events
func (h *Handler) EventRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.With(middleware.RequireOrganizer()).Get("/{eventId}/transactions", h.ListForEvent)

	return r
}
