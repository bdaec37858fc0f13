package engine

import (
	"fmt"
	"testing"
	"time"

	"ecoiq/internal/models"
	"ecoiq/internal/policy"
)

func testPolicy() policy.ThresholdPolicy {
	return policy.ThresholdPolicy{
		TemperatureMin: 18,
		TemperatureMax: 30,
		OccupancyMax:   8,
	}
}

// sequentialIDs returns a deterministic id generator for assertions.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
}

func sample(mutate func(*models.TelemetrySample)) *models.TelemetrySample {
	s := &models.TelemetrySample{
		RoomID:      "room-1",
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Temperature: 22,
		Humidity:    45,
		Occupancy:   3,
		AQI:         40,
		Mode:        models.ModeComfort,
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestDeriveIgnoresNonInsertUpdate(t *testing.T) {
	d := New(testPolicy())

	tests := []struct {
		name  string
		event *models.ChangeEvent
	}{
		{"nil event", nil},
		{"other kind", &models.ChangeEvent{Kind: models.ChangeOther, New: sample(nil)}},
		{"missing new image", &models.ChangeEvent{Kind: models.ChangeInsert}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if alerts := d.Derive(tt.event); len(alerts) != 0 {
				t.Errorf("expected no alerts, got %d", len(alerts))
			}
		})
	}
}

func TestDeriveNoOldImageNoModeChange(t *testing.T) {
	d := New(testPolicy())

	event := &models.ChangeEvent{
		Kind: models.ChangeInsert,
		New:  sample(func(s *models.TelemetrySample) { s.Mode = models.ModeCool }),
	}

	for _, a := range d.Derive(event) {
		if a.Type == models.AlertModeChange {
			t.Errorf("mode change alert produced without old image")
		}
	}
}

func TestDeriveModeChange(t *testing.T) {
	d := New(testPolicy())

	event := &models.ChangeEvent{
		Kind: models.ChangeUpdate,
		New:  sample(func(s *models.TelemetrySample) { s.Mode = models.ModeCool }),
		Old:  sample(func(s *models.TelemetrySample) { s.Mode = models.ModeEco }),
	}

	alerts := d.Derive(event)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}

	a := alerts[0]
	if a.Type != models.AlertModeChange {
		t.Errorf("type = %s, want %s", a.Type, models.AlertModeChange)
	}
	if a.Severity != models.SeverityInfo {
		t.Errorf("severity = %s, want %s", a.Severity, models.SeverityInfo)
	}
	details, ok := a.Details.(models.ModeChangeDetails)
	if !ok {
		t.Fatalf("details = %T, want ModeChangeDetails", a.Details)
	}
	if details.OldMode != models.ModeEco || details.NewMode != models.ModeCool {
		t.Errorf("details = %+v, want Eco -> Cool", details)
	}
	if a.Acknowledged {
		t.Error("new alert must not be acknowledged")
	}
}

func TestDeriveTemperatureBoundaries(t *testing.T) {
	d := New(testPolicy())

	tests := []struct {
		name         string
		temperature  float64
		wantAlerts   int
		wantSeverity models.Severity
	}{
		{"at max is in range", 30, 0, ""},
		{"at min is in range", 18, 0, ""},
		{"just above max", 30.1, 1, models.SeverityCritical},
		{"just below min", 17.9, 1, models.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.ChangeEvent{
				Kind: models.ChangeInsert,
				New:  sample(func(s *models.TelemetrySample) { s.Temperature = tt.temperature }),
			}

			alerts := d.Derive(event)
			if len(alerts) != tt.wantAlerts {
				t.Fatalf("got %d alerts, want %d", len(alerts), tt.wantAlerts)
			}
			if tt.wantAlerts == 0 {
				return
			}

			a := alerts[0]
			if a.Type != models.AlertTemperatureThreshold {
				t.Errorf("type = %s, want %s", a.Type, models.AlertTemperatureThreshold)
			}
			if a.Severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", a.Severity, tt.wantSeverity)
			}
			details, ok := a.Details.(models.TemperatureDetails)
			if !ok {
				t.Fatalf("details = %T, want TemperatureDetails", a.Details)
			}
			if details.Temperature != tt.temperature {
				t.Errorf("details.Temperature = %v, want %v", details.Temperature, tt.temperature)
			}
		})
	}
}

func TestDeriveOccupancyBoundary(t *testing.T) {
	d := New(testPolicy())

	atMax := &models.ChangeEvent{
		Kind: models.ChangeInsert,
		New:  sample(func(s *models.TelemetrySample) { s.Occupancy = 8 }),
	}
	if alerts := d.Derive(atMax); len(alerts) != 0 {
		t.Errorf("occupancy at ceiling produced %d alerts, want 0", len(alerts))
	}

	aboveMax := &models.ChangeEvent{
		Kind: models.ChangeInsert,
		New:  sample(func(s *models.TelemetrySample) { s.Occupancy = 9 }),
	}
	alerts := d.Derive(aboveMax)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Type != models.AlertHighOccupancy {
		t.Errorf("type = %s, want %s", a.Type, models.AlertHighOccupancy)
	}
	if a.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want %s", a.Severity, models.SeverityWarning)
	}
	details, ok := a.Details.(models.HighOccupancyDetails)
	if !ok {
		t.Fatalf("details = %T, want HighOccupancyDetails", a.Details)
	}
	if details.Occupancy != 9 {
		t.Errorf("details.Occupancy = %d, want 9", details.Occupancy)
	}
}

func TestDeriveMultiConditionOrdering(t *testing.T) {
	d := New(testPolicy(), WithIDGenerator(sequentialIDs()))

	event := &models.ChangeEvent{
		Kind: models.ChangeUpdate,
		New: sample(func(s *models.TelemetrySample) {
			s.Mode = models.ModeCool
			s.Temperature = 35
			s.Occupancy = 12
		}),
		Old: sample(func(s *models.TelemetrySample) { s.Mode = models.ModeComfort }),
	}

	alerts := d.Derive(event)
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}

	wantOrder := []models.AlertType{
		models.AlertModeChange,
		models.AlertTemperatureThreshold,
		models.AlertHighOccupancy,
	}
	seen := make(map[string]bool)
	for i, a := range alerts {
		if a.Type != wantOrder[i] {
			t.Errorf("alerts[%d].Type = %s, want %s", i, a.Type, wantOrder[i])
		}
		if seen[a.ID] {
			t.Errorf("duplicate alert id %s", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestDeriveFaultSimulation(t *testing.T) {
	p := testPolicy()
	p.FaultProbability = 1

	// First draw fires the fault, second selects the code.
	draws := []float64{0, 0}
	i := 0
	d := New(p, WithRandSource(func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}))

	event := &models.ChangeEvent{Kind: models.ChangeInsert, New: sample(nil)}
	alerts := d.Derive(event)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Type != models.AlertSystemFault {
		t.Errorf("type = %s, want %s", a.Type, models.AlertSystemFault)
	}
	if a.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want %s", a.Severity, models.SeverityCritical)
	}
	details, ok := a.Details.(models.SystemFaultDetails)
	if !ok {
		t.Fatalf("details = %T, want SystemFaultDetails", a.Details)
	}
	if details.FaultCode != "F104" {
		t.Errorf("fault code = %s, want F104", details.FaultCode)
	}
}

func TestDeriveFaultSimulationDisabledByDefault(t *testing.T) {
	// Probability zero must never draw from the random source at all.
	d := New(testPolicy(), WithRandSource(func() float64 {
		t.Fatal("random source consulted with fault simulation disabled")
		return 0
	}))

	event := &models.ChangeEvent{Kind: models.ChangeInsert, New: sample(nil)}
	if alerts := d.Derive(event); len(alerts) != 0 {
		t.Errorf("got %d alerts, want 0", len(alerts))
	}
}

func TestDeriveRedeliveryProducesFreshIdentity(t *testing.T) {
	d := New(testPolicy())

	event := &models.ChangeEvent{
		Kind: models.ChangeInsert,
		New:  sample(func(s *models.TelemetrySample) { s.Temperature = 35 }),
	}

	first := d.Derive(event)
	second := d.Derive(event)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d alerts, want 1 and 1", len(first), len(second))
	}

	if first[0].ID == second[0].ID {
		t.Error("redelivered event reused the alert id")
	}
	if first[0].RoomID != second[0].RoomID || first[0].Type != second[0].Type {
		t.Error("redelivered event changed room or type")
	}
	if first[0].Details != second[0].Details {
		t.Errorf("redelivered event changed details: %+v vs %+v", first[0].Details, second[0].Details)
	}
}
