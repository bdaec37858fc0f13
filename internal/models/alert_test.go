package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAlertJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		details AlertDetails
		typ     AlertType
	}{
		{"mode change", ModeChangeDetails{OldMode: ModeEco, NewMode: ModeCool}, AlertModeChange},
		{"system fault", SystemFaultDetails{FaultCode: "E201"}, AlertSystemFault},
		{"high occupancy", HighOccupancyDetails{Occupancy: 11}, AlertHighOccupancy},
		{"temperature", TemperatureDetails{Temperature: 31.4}, AlertTemperatureThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := Alert{
				ID:        "id-1",
				Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
				RoomID:    "room-1",
				Type:      tt.typ,
				Severity:  SeverityWarning,
				Message:   "msg",
				Details:   tt.details,
			}

			data, err := json.Marshal(orig)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var got Alert
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if got.Details != tt.details {
				t.Errorf("details = %#v, want %#v", got.Details, tt.details)
			}
		})
	}
}

func TestAlertValidateAcknowledgementInvariant(t *testing.T) {
	now := time.Now().UTC()
	base := Alert{
		ID:        "id-1",
		Timestamp: now,
		RoomID:    "room-1",
		Type:      AlertModeChange,
		Severity:  SeverityInfo,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid alert rejected: %v", err)
	}

	ackFlagOnly := base
	ackFlagOnly.Acknowledged = true
	if err := ackFlagOnly.Validate(); err != ErrAckMismatch {
		t.Errorf("acknowledged without timestamp: err = %v, want ErrAckMismatch", err)
	}

	ackTimeOnly := base
	ackTimeOnly.AcknowledgedAt = &now
	if err := ackTimeOnly.Validate(); err != ErrAckMismatch {
		t.Errorf("timestamp without flag: err = %v, want ErrAckMismatch", err)
	}

	acked := base
	acked.Acknowledged = true
	acked.AcknowledgedAt = &now
	if err := acked.Validate(); err != nil {
		t.Errorf("properly acknowledged alert rejected: %v", err)
	}
}

func TestAlertValidateRejectsUnknownEnumValues(t *testing.T) {
	a := Alert{
		ID:        "id-1",
		Timestamp: time.Now(),
		RoomID:    "room-1",
		Type:      "power_surge",
		Severity:  SeverityInfo,
	}
	if err := a.Validate(); err != ErrInvalidAlertType {
		t.Errorf("err = %v, want ErrInvalidAlertType", err)
	}

	a.Type = AlertModeChange
	a.Severity = "fatal"
	if err := a.Validate(); err != ErrInvalidSeverity {
		t.Errorf("err = %v, want ErrInvalidSeverity", err)
	}
}

func TestDecodeDetailsUnknownType(t *testing.T) {
	if _, err := DecodeDetails("power_surge", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown alert type")
	}
	if d, err := DecodeDetails(AlertModeChange, nil); err != nil || d != nil {
		t.Errorf("absent payload: d=%v err=%v, want nil,nil", d, err)
	}
}
