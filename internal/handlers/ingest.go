package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ecoiq/internal/metrics"
	"ecoiq/internal/models"
	"ecoiq/internal/policy"
)

// IngestHandler accepts telemetry readings, computes the operating mode,
// and queues the sample for persistence and feed publication.
type IngestHandler struct {
	sampleChan  chan<- *models.TelemetrySample
	maxBodySize int64
	now         func() time.Time
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	SampleChan  chan<- *models.TelemetrySample
	MaxBodySize int64
	Now         func() time.Time
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 1 * 1024 * 1024 // 1MB default
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &IngestHandler{
		sampleChan:  cfg.SampleChan,
		maxBodySize: maxBodySize,
		now:         now,
	}
}

// IngestRequest is the incoming reading. Pointer fields distinguish a
// missing value from a legitimate zero.
type IngestRequest struct {
	RoomID      string   `json:"room_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Occupancy   *int     `json:"occupancy"`
	AQI         *float64 `json:"aqi"`
}

var errMissingFields = errors.New("missing required sensor data")

// ServeHTTP handles POST /ingest.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.IngestSamplesTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	sample, err := h.buildSample(req)
	if err != nil {
		metrics.IngestSamplesTotal.WithLabelValues("rejected").Inc()
		metrics.IngestValidationErrors.WithLabelValues(errorType(err)).Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case h.sampleChan <- sample:
		metrics.IngestSamplesTotal.WithLabelValues("accepted").Inc()
		writeJSON(w, http.StatusAccepted, sample)
	default:
		metrics.IngestSamplesTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusServiceUnavailable, "ingest queue full, try again later")
	}
}

// buildSample validates the request and stamps timestamp and mode. The
// mode decision is pure: Eco for empty rooms, Cool for hot or polluted
// rooms, Comfort otherwise.
func (h *IngestHandler) buildSample(req IngestRequest) (*models.TelemetrySample, error) {
	if req.RoomID == "" || req.Temperature == nil || req.Humidity == nil || req.Occupancy == nil || req.AQI == nil {
		return nil, errMissingFields
	}

	sample := &models.TelemetrySample{
		RoomID:      req.RoomID,
		Timestamp:   h.now(),
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
		Occupancy:   *req.Occupancy,
		AQI:         *req.AQI,
		Mode:        policy.ComputeMode(*req.Temperature, *req.AQI, *req.Occupancy),
	}

	sample.Normalize()
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	return sample, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, errMissingFields):
		return "missing_fields"
	case errors.Is(err, models.ErrEmptyRoomID):
		return "empty_room_id"
	case errors.Is(err, models.ErrNegativeOccupancy):
		return "negative_occupancy"
	default:
		return "invalid"
	}
}
