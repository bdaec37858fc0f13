package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ecoiq/internal/models"
)

// TelemetryReader is the read surface the room endpoints need.
type TelemetryReader interface {
	Latest(ctx context.Context) ([]models.TelemetrySample, error)
	History(ctx context.Context, roomID string, since time.Time, limit int) ([]models.TelemetrySample, error)
}

// RoomsHandler serves telemetry reads for the dashboard.
type RoomsHandler struct {
	store TelemetryReader
}

// NewRoomsHandler creates a rooms handler over the given store.
func NewRoomsHandler(store TelemetryReader) *RoomsHandler {
	return &RoomsHandler{store: store}
}

// Latest handles GET /rooms/latest: the most recent sample per room.
func (h *RoomsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load room data")
		return
	}
	if samples == nil {
		samples = []models.TelemetrySample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

// History handles GET /rooms/{room}/history?hours=24&limit=1000.
func (h *RoomsHandler) History(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "room id is required")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = n
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	samples, err := h.store.History(r.Context(), roomID, since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load room history")
		return
	}
	if samples == nil {
		samples = []models.TelemetrySample{}
	}
	writeJSON(w, http.StatusOK, samples)
}
