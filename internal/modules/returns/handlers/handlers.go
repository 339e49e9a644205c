// Package handlers provides HTTP handlers for asset and return statistics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/rs/zerolog"
)

// Handler serves asset return statistics
type Handler struct {
	provider *returns.Provider
	log      zerolog.Logger
}

// NewHandler creates a new returns handler
func NewHandler(provider *returns.Provider, log zerolog.Logger) *Handler {
	return &Handler{
		provider: provider,
		log:      log.With().Str("handler", "returns").Logger(),
	}
}

// HandleListAssets handles GET /api/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.provider.AssetUniverse()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load asset universe")
		http.Error(w, "Failed to load assets", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"assets": assets,
			"count":  len(assets),
			"method": h.provider.Method(),
		},
		"metadata": metadata(),
	})
}

// HandleGetStats handles GET /api/assets/{asset}/stats
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request, asset string) {
	stats, err := h.provider.Stats(asset)
	if err != nil {
		h.writeError(w, err, asset, "Failed to compute asset stats")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     stats,
		"metadata": metadata(),
	})
}

// HandleGetReturns handles GET /api/assets/{asset}/returns
func (h *Handler) HandleGetReturns(w http.ResponseWriter, r *http.Request, asset string) {
	series, err := h.provider.Series(asset)
	if err != nil {
		h.writeError(w, err, asset, "Failed to compute returns")
		return
	}

	points := make([]map[string]interface{}, series.Len())
	for i := range series.Values {
		points[i] = map[string]interface{}{
			"date":   series.Dates[i],
			"return": series.Values[i],
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"asset":   asset,
			"method":  h.provider.Method(),
			"returns": points,
			"count":   len(points),
		},
		"metadata": metadata(),
	})
}

// HandleGetCovariance handles GET /api/assets/covariance?assets=BTC,ETH
func (h *Handler) HandleGetCovariance(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("assets")
	if raw == "" {
		http.Error(w, "assets parameter is required", http.StatusBadRequest)
		return
	}

	assets := make([]string, 0)
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		http.Error(w, "assets parameter is required", http.StatusBadRequest)
		return
	}

	means, cov, err := h.provider.MeanAndCovariance(assets)
	if err != nil {
		h.writeError(w, err, raw, "Failed to compute covariance")
		return
	}
	observations, err := h.provider.Observations(assets)
	if err != nil {
		h.writeError(w, err, raw, "Failed to compute covariance")
		return
	}

	matrix := make([][]float64, len(assets))
	for i := range assets {
		matrix[i] = make([]float64, len(assets))
		for j := range assets {
			matrix[i][j] = cov.At(i, j)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"assets":       assets,
			"means":        means,
			"covariance":   matrix,
			"observations": observations,
		},
		"metadata": metadata(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, asset, msg string) {
	switch {
	case errors.Is(err, returns.ErrUnknownAsset):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, returns.ErrInsufficientHistory):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Str("asset", asset).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
