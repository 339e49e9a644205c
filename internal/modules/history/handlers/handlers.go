// Package handlers provides HTTP handlers for the stored price history.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/history"
	"github.com/rs/zerolog"
)

// Handler handles price history requests
type Handler struct {
	historyDB *history.HistoryDB
	importJob *history.ImportJob
	log       zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(historyDB *history.HistoryDB, importJob *history.ImportJob, log zerolog.Logger) *Handler {
	return &Handler{
		historyDB: historyDB,
		importJob: importJob,
		log:       log.With().Str("handler", "history").Logger(),
	}
}

// HandleListAssets handles GET /api/history/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.historyDB.ListAssets()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		http.Error(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []history.AssetInfo{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"assets": assets,
			"count":  len(assets),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPrices handles GET /api/history/assets/{asset}/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, asset string) {
	prices, err := h.historyDB.GetDailyPrices(asset)
	if err != nil {
		h.log.Error().Err(err).Str("asset", asset).Msg("Failed to get daily prices")
		http.Error(w, "Failed to get daily prices", http.StatusInternalServerError)
		return
	}
	if len(prices) == 0 {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"asset":  asset,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleImport handles POST /api/history/import
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	result, err := h.importJob.Import(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Quote import failed")
		http.Error(w, "Quote import failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
