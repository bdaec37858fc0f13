// Package engine derives alerts from telemetry change-feed events. The
// deriver is a pure function of (event, policy) plus injected id, clock,
// and random sources; it performs no I/O and holds no shared mutable
// state, so concurrent invocations for independent events are safe.
package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ecoiq/internal/metrics"
	"ecoiq/internal/models"
	"ecoiq/internal/policy"
)

// faultCodes is the fixed set of codes used by fault simulation.
var faultCodes = []string{"F104", "E201", "H503"}

// Deriver evaluates a threshold policy against change-feed events.
type Deriver struct {
	policy policy.ThresholdPolicy
	now    func() time.Time
	newID  func() string
	rand   func() float64
}

// Option is a functional option for configuring the deriver.
type Option func(*Deriver)

// WithClock overrides the wall-clock source (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Deriver) { d.now = now }
}

// WithIDGenerator overrides the alert id source (tests).
func WithIDGenerator(newID func() string) Option {
	return func(d *Deriver) { d.newID = newID }
}

// WithRandSource overrides the random source driving fault simulation.
// The function must return values in [0,1).
func WithRandSource(fn func() float64) Option {
	return func(d *Deriver) { d.rand = fn }
}

// New constructs a Deriver for the given policy.
func New(p policy.ThresholdPolicy, opts ...Option) *Deriver {
	d := &Deriver{
		policy: p,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive produces the ordered sequence of alerts triggered by one change
// event: mode change, then temperature threshold, then high occupancy,
// then (when enabled) fault simulation. Events without a new image, and
// kinds other than insert/update, yield an empty result. The order is
// observable in the sink's write order and must not change.
//
// Redelivered events produce duplicate alerts with fresh ids; the feed is
// at-least-once and the engine does not deduplicate.
func (d *Deriver) Derive(event *models.ChangeEvent) []models.Alert {
	if event == nil || event.New == nil {
		return nil
	}
	if event.Kind != models.ChangeInsert && event.Kind != models.ChangeUpdate {
		return nil
	}

	sample := event.New
	var alerts []models.Alert

	if event.Old != nil && event.Old.Mode != "" && event.Old.Mode != sample.Mode {
		alerts = append(alerts, d.newAlert(sample,
			models.AlertModeChange,
			models.SeverityInfo,
			fmt.Sprintf("Room %s HVAC mode changed to %s", sample.RoomID, sample.Mode),
			models.ModeChangeDetails{OldMode: event.Old.Mode, NewMode: sample.Mode},
		))
	}

	if sample.Temperature > d.policy.TemperatureMax {
		alerts = append(alerts, d.newAlert(sample,
			models.AlertTemperatureThreshold,
			models.SeverityCritical,
			fmt.Sprintf("High temperature detected in Room %s", sample.RoomID),
			models.TemperatureDetails{Temperature: sample.Temperature},
		))
	} else if sample.Temperature < d.policy.TemperatureMin {
		alerts = append(alerts, d.newAlert(sample,
			models.AlertTemperatureThreshold,
			models.SeverityWarning,
			fmt.Sprintf("Low temperature detected in Room %s", sample.RoomID),
			models.TemperatureDetails{Temperature: sample.Temperature},
		))
	}

	if sample.Occupancy > d.policy.OccupancyMax {
		alerts = append(alerts, d.newAlert(sample,
			models.AlertHighOccupancy,
			models.SeverityWarning,
			fmt.Sprintf("High occupancy detected in Room %s", sample.RoomID),
			models.HighOccupancyDetails{Occupancy: sample.Occupancy},
		))
	}

	if d.policy.FaultProbability > 0 && d.rand() < d.policy.FaultProbability {
		code := faultCodes[int(d.rand()*float64(len(faultCodes)))%len(faultCodes)]
		alerts = append(alerts, d.newAlert(sample,
			models.AlertSystemFault,
			models.SeverityCritical,
			fmt.Sprintf("HVAC system fault detected in Room %s", sample.RoomID),
			models.SystemFaultDetails{FaultCode: code},
		))
	}

	for _, a := range alerts {
		metrics.AlertsDerivedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}

	return alerts
}

// newAlert stamps a fresh id and derivation-time timestamp; the alert
// timestamp is independent of the sample's timestamp.
func (d *Deriver) newAlert(sample *models.TelemetrySample, t models.AlertType, sev models.Severity, msg string, details models.AlertDetails) models.Alert {
	return models.Alert{
		ID:           d.newID(),
		Timestamp:    d.now(),
		RoomID:       sample.RoomID,
		Type:         t,
		Severity:     sev,
		Message:      msg,
		Acknowledged: false,
		Details:      details,
	}
}
