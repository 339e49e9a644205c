package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.HandleStartRun)
		r.Get("/", h.HandleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRun(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
				h.HandleCancelRun(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/chart.png", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetChart(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
				h.HandleStream(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
