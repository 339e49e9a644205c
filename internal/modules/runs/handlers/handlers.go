// Package handlers provides HTTP handlers for optimizer runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/runs"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamWriteTimeout = 10 * time.Second

// Handler handles run requests
type Handler struct {
	service  *runs.Service
	defaults evolution.Config
	log      zerolog.Logger
}

// NewHandler creates a new runs handler. Request bodies override defaults field by field.
func NewHandler(service *runs.Service, defaults evolution.Config, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		log:      log.With().Str("handler", "runs").Logger(),
	}
}

// HandleStartRun handles POST /api/runs
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	cfg := h.defaults
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.service.Start(cfg)
	if err != nil {
		h.writeError(w, err, "Failed to start run")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data":     run,
		"metadata": metadata(),
	})
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.service.List(limit)
	if err != nil {
		h.writeError(w, err, "Failed to list runs")
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":   list,
			"count":  len(list),
			"active": h.service.Active(),
		},
		"metadata": metadata(),
	})
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.service.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to get run")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     run,
		"metadata": metadata(),
	})
}

// HandleCancelRun handles POST /api/runs/{id}/cancel
func (h *Handler) HandleCancelRun(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Cancel(id); err != nil {
		h.writeError(w, err, "Failed to cancel run")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"id":     id,
			"status": "cancelling",
		},
		"metadata": metadata(),
	})
}

// HandleGetChart handles GET /api/runs/{id}/chart.png
func (h *Handler) HandleGetChart(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.service.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to get run")
		return
	}

	png, err := runs.RenderFitnessChart("Run "+shortID(run.ID)+" - "+string(run.State), run.History)
	if err != nil {
		h.writeError(w, err, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart")
	}
}

// HandleStream handles GET /api/runs/{id}/stream. Every generation is sent as one JSON
// message; the connection closes after the terminal event. Finished runs get their final
// event only.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.service.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to get run")
		return
	}

	events, unsubscribe, err := h.service.Subscribe(id)
	if err != nil && !errors.Is(err, runs.ErrRunNotActive) {
		h.writeError(w, err, "Failed to subscribe")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to accept websocket")
		if unsubscribe != nil {
			unsubscribe()
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended unexpectedly")

	ctx := conn.CloseRead(r.Context())

	if events == nil {
		if run, err = h.service.Get(id); err != nil {
			h.log.Error().Err(err).Str("run_id", id).Msg("Failed to reload run")
			return
		}
		if err := writeEvent(ctx, conn, finalEvent(run)); err != nil {
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.log.Debug().Err(err).Str("run_id", id).Msg("Stream client went away")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev runs.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func finalEvent(run *runs.Run) runs.Event {
	return runs.Event{
		RunID:       run.ID,
		State:       run.State,
		Generation:  run.Generation,
		BestFitness: run.BestFitness(),
		BestWallet:  run.BestWallet,
		Error:       run.Error,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, evolution.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, runs.ErrRunNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
	case errors.Is(err, runs.ErrRunNotActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, runs.ErrEmptyHistory):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error().Err(err).Msg(msg)
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
