package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/store"
)

// TriggerSweep handles POST /v1/sweeps/{name}. Partial failures still return 200 with the summary.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	name, ok := models.ParseSweepName(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown sweep")
		return
	}
	summary, err := h.runner.Run(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetMonitoring handles GET /v1/monitoring/{shipmentID}.
func (h *Handler) GetMonitoring(w http.ResponseWriter, r *http.Request) {
	view, err := h.runner.Monitoring(r.Context(), chi.URLParam(r, "shipmentID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "shipment is not monitored")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMonitoringResponse(view))
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
