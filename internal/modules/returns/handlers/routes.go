package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the asset routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)
		r.Get("/covariance", h.HandleGetCovariance)
		r.Get("/{asset}/stats", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetStats(w, r, chi.URLParam(r, "asset"))
		})
		r.Get("/{asset}/returns", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetReturns(w, r, chi.URLParam(r, "asset"))
		})
	})
}
