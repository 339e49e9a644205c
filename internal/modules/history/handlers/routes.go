package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/assets", h.HandleListAssets)
		r.Get("/assets/{asset}/prices", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPrices(w, r, chi.URLParam(r, "asset"))
		})
		r.Post("/import", h.HandleImport)
	})
}
