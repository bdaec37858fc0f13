package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ChangeKind classifies a change-feed entry.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	// ChangeOther covers kinds the engine must ignore (deletes, TTL expiry).
	ChangeOther ChangeKind = "other"
)

// ChangeEvent is one entry in the telemetry change feed. Old is present
// only for updates, where it carries the previous sample for the room.
type ChangeEvent struct {
	Kind ChangeKind       `json:"kind"`
	New  *TelemetrySample `json:"new,omitempty"`
	Old  *TelemetrySample `json:"old,omitempty"`
}

var ErrEmptyChangeEvent = errors.New("change event payload is empty")

// ParseChangeKind maps a raw feed kind onto a ChangeKind. Anything that is
// not an insert or update collapses to ChangeOther.
func ParseChangeKind(raw string) ChangeKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "insert":
		return ChangeInsert
	case "update", "modify":
		return ChangeUpdate
	default:
		return ChangeOther
	}
}

// wireSample mirrors TelemetrySample with loosely typed numeric fields.
// Feed producers are not always well behaved: numbers arrive as JSON
// numbers, quoted strings, or garbage. Malformed numerics coerce to zero
// instead of rejecting the whole event, so one bad field cannot block the
// remaining checks. See DESIGN.md for the trade-off.
type wireSample struct {
	RoomID      string          `json:"room_id"`
	Timestamp   string          `json:"timestamp"`
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`
	Occupancy   json.RawMessage `json:"occupancy"`
	AQI         json.RawMessage `json:"aqi"`
	Mode        string          `json:"mode"`
}

type wireEvent struct {
	Kind string      `json:"kind"`
	New  *wireSample `json:"new"`
	Old  *wireSample `json:"old"`
}

// DecodeChangeEvent parses a raw feed payload into a ChangeEvent,
// applying the zero-default numeric coercion.
func DecodeChangeEvent(data []byte) (*ChangeEvent, error) {
	if len(data) == 0 {
		return nil, ErrEmptyChangeEvent
	}

	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		return nil, err
	}

	return &ChangeEvent{
		Kind: ParseChangeKind(we.Kind),
		New:  we.New.toSample(),
		Old:  we.Old.toSample(),
	}, nil
}

// Encode serializes the event for the change feed.
func (e *ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (w *wireSample) toSample() *TelemetrySample {
	if w == nil {
		return nil
	}

	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		ts = ts.UTC() // zero time; Validate downstream rejects it where it matters
	}

	return &TelemetrySample{
		RoomID:      strings.TrimSpace(w.RoomID),
		Timestamp:   ts,
		Temperature: coerceFloat(w.Temperature),
		Humidity:    coerceFloat(w.Humidity),
		Occupancy:   coerceInt(w.Occupancy),
		AQI:         coerceFloat(w.AQI),
		Mode:        ParseMode(w.Mode),
	}
}

// coerceFloat parses a raw JSON value as a float64, accepting numbers and
// quoted numbers. Anything unparseable defaults to 0.
func coerceFloat(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// coerceInt parses a raw JSON value as an int with the same zero default.
// Fractional values truncate toward zero.
func coerceInt(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
