package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AlertType identifies the condition an alert was raised for.
type AlertType string

const (
	AlertModeChange           AlertType = "mode_change"
	AlertSystemFault          AlertType = "system_fault"
	AlertHighOccupancy        AlertType = "high_occupancy"
	AlertTemperatureThreshold AlertType = "temperature_threshold"
)

// Severity represents alert severity levels
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertDetails is the closed variant payload carried by an Alert. Exactly
// one concrete type exists per AlertType, so consumers (the notification
// formatter, the dashboard API) can type-switch exhaustively and adding a
// new alert type breaks every switch at compile time.
type AlertDetails interface {
	alertDetails()
}

// ModeChangeDetails records an operating-mode transition.
type ModeChangeDetails struct {
	OldMode Mode `json:"oldMode"`
	NewMode Mode `json:"newMode"`
}

// SystemFaultDetails carries the fault code of a detected HVAC fault.
type SystemFaultDetails struct {
	FaultCode string `json:"faultCode"`
}

// HighOccupancyDetails records the occupancy that breached the ceiling.
type HighOccupancyDetails struct {
	Occupancy int `json:"occupancy"`
}

// TemperatureDetails records the temperature that left the configured band.
type TemperatureDetails struct {
	Temperature float64 `json:"temperature"`
}

func (ModeChangeDetails) alertDetails()    {}
func (SystemFaultDetails) alertDetails()   {}
func (HighOccupancyDetails) alertDetails() {}
func (TemperatureDetails) alertDetails()   {}

// Alert is one detected condition worth surfacing to an operator. It is
// created exactly once by the derivation engine; afterwards only the
// acknowledgement fields may change, via the acknowledge endpoint.
type Alert struct {
	ID             string       `json:"id"`
	Timestamp      time.Time    `json:"timestamp"`
	RoomID         string       `json:"room_id"`
	Type           AlertType    `json:"type"`
	Severity       Severity     `json:"severity"`
	Message        string       `json:"message"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledgedAt,omitempty"`
	Details        AlertDetails `json:"details,omitempty"`
}

// Validation errors
var (
	ErrEmptyAlertID     = errors.New("alert id cannot be empty")
	ErrInvalidAlertType = errors.New("invalid alert type")
	ErrInvalidSeverity  = errors.New("invalid severity level")
	ErrAckMismatch      = errors.New("acknowledged flag and acknowledgedAt must be set together")
	ErrUnknownDetails   = errors.New("unknown alert details payload")
)

// IsValid checks if the alert type is recognized.
func (t AlertType) IsValid() bool {
	switch t {
	case AlertModeChange, AlertSystemFault, AlertHighOccupancy, AlertTemperatureThreshold:
		return true
	default:
		return false
	}
}

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Validate checks the alert's structural invariants.
func (a *Alert) Validate() error {
	if a.ID == "" {
		return ErrEmptyAlertID
	}
	if a.RoomID == "" {
		return ErrEmptyRoomID
	}
	if a.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if !a.Type.IsValid() {
		return ErrInvalidAlertType
	}
	if !a.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	if a.Acknowledged != (a.AcknowledgedAt != nil) {
		return ErrAckMismatch
	}
	return nil
}

// alertAlias avoids recursion in UnmarshalJSON.
type alertAlias struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	RoomID         string          `json:"room_id"`
	Type           AlertType       `json:"type"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	Acknowledged   bool            `json:"acknowledged"`
	AcknowledgedAt *time.Time      `json:"acknowledgedAt,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
}

// UnmarshalJSON decodes the details payload into the concrete variant
// matching the alert type.
func (a *Alert) UnmarshalJSON(data []byte) error {
	var alias alertAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	details, err := DecodeDetails(alias.Type, alias.Details)
	if err != nil {
		return err
	}

	*a = Alert{
		ID:             alias.ID,
		Timestamp:      alias.Timestamp,
		RoomID:         alias.RoomID,
		Type:           alias.Type,
		Severity:       alias.Severity,
		Message:        alias.Message,
		Acknowledged:   alias.Acknowledged,
		AcknowledgedAt: alias.AcknowledgedAt,
		Details:        details,
	}
	return nil
}

// DecodeDetails parses a raw details payload for the given alert type.
// An absent payload decodes to nil.
func DecodeDetails(t AlertType, raw json.RawMessage) (AlertDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch t {
	case AlertModeChange:
		var d ModeChangeDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertSystemFault:
		var d SystemFaultDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertHighOccupancy:
		var d HighOccupancyDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case AlertTemperatureThreshold:
		var d TemperatureDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnknownDetails, t)
	}
}
