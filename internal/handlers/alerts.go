package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ecoiq/internal/models"
	"ecoiq/internal/store"
)

// AlertReader is the query/acknowledge surface the alert endpoints need.
// Acknowledgement is the only mutation the dashboard may perform.
type AlertReader interface {
	List(ctx context.Context, filter store.AlertFilter) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id string) (*models.Alert, error)
}

// AlertsHandler serves the alert query and acknowledge API.
type AlertsHandler struct {
	store AlertReader
}

// NewAlertsHandler creates an alerts handler over the given store.
func NewAlertsHandler(store AlertReader) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// List handles GET /alerts?room_id=&type=&acknowledged=&limit=.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.AlertFilter{
		RoomID: r.URL.Query().Get("room_id"),
	}

	if v := r.URL.Query().Get("type"); v != "" {
		t := models.AlertType(v)
		if !t.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid alert type")
			return
		}
		filter.Type = t
	}

	if v := r.URL.Query().Get("acknowledged"); v != "" {
		ack, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid acknowledged parameter")
			return
		}
		filter.Acknowledged = &ack
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		filter.Limit = n
	}

	alerts, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Acknowledge handles POST /alerts/{id}/acknowledge.
func (h *AlertsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "alert id is required")
		return
	}

	alert, err := h.store.Acknowledge(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}
