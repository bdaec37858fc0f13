package models

import (
	"errors"
	"strings"
	"time"
)

// Mode is the operating state assigned to a room at ingestion time.
type Mode string

const (
	ModeEco     Mode = "Eco"
	ModeComfort Mode = "Comfort"
	ModeCool    Mode = "Cool"
)

// TelemetrySample is one sensor reading for a room at an instant.
// Samples are immutable once written; they are unique per (room, timestamp).
type TelemetrySample struct {
	RoomID      string    `json:"room_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Occupancy   int       `json:"occupancy"`
	AQI         float64   `json:"aqi"`
	Mode        Mode      `json:"mode"`
}

// Validation errors
var (
	ErrEmptyRoomID       = errors.New("room id cannot be empty")
	ErrZeroTimestamp     = errors.New("timestamp cannot be zero")
	ErrInvalidTimestamp  = errors.New("invalid timestamp format")
	ErrNegativeOccupancy = errors.New("occupancy cannot be negative")
	ErrInvalidMode       = errors.New("invalid operating mode")
)

// Validate checks that the sample has all required fields and valid values.
func (s *TelemetrySample) Validate() error {
	if s.RoomID == "" {
		return ErrEmptyRoomID
	}

	if s.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	if s.Occupancy < 0 {
		return ErrNegativeOccupancy
	}

	if s.Mode != "" && !s.Mode.IsValid() {
		return ErrInvalidMode
	}

	return nil
}

// Normalize trims identifier fields and canonicalizes the mode casing.
func (s *TelemetrySample) Normalize() {
	s.RoomID = strings.TrimSpace(s.RoomID)
	s.Mode = ParseMode(string(s.Mode))
}

// IsValid checks if the mode is one of the recognized operating states.
func (m Mode) IsValid() bool {
	switch m {
	case ModeEco, ModeComfort, ModeCool:
		return true
	default:
		return false
	}
}

// ParseMode maps a raw string onto a Mode, case-insensitively.
// Unrecognized values pass through unchanged so callers can reject them.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "eco":
		return ModeEco
	case "comfort":
		return ModeComfort
	case "cool":
		return ModeCool
	default:
		return Mode(strings.TrimSpace(raw))
	}
}

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
