// Package policy holds the configurable classification rules applied to
// telemetry samples: the temperature band, the occupancy ceiling, and the
// optional fault-simulation probability. The policy is a plain value passed
// into the derivation engine at call time, never ambient state.
package policy

import (
	"fmt"

	"ecoiq/internal/models"
)

// Default thresholds, matching the production deployment.
const (
	DefaultTemperatureMin = 18.0
	DefaultTemperatureMax = 30.0
	DefaultOccupancyMax   = 8
)

// ThresholdPolicy classifies a sample as alert-worthy. Temperatures inside
// [TemperatureMin, TemperatureMax] (inclusive) are in range; occupancy up
// to and including OccupancyMax is acceptable.
type ThresholdPolicy struct {
	TemperatureMin float64 `yaml:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	OccupancyMax   int     `yaml:"occupancy_max"`

	// FaultProbability is the per-event chance of synthesizing a system
	// fault alert. Zero disables fault simulation entirely; non-zero is an
	// explicit opt-in for demo and staging environments.
	FaultProbability float64 `yaml:"fault_probability"`
}

// Default returns the production threshold policy with fault simulation off.
func Default() ThresholdPolicy {
	return ThresholdPolicy{
		TemperatureMin:   DefaultTemperatureMin,
		TemperatureMax:   DefaultTemperatureMax,
		OccupancyMax:     DefaultOccupancyMax,
		FaultProbability: 0,
	}
}

// Validate checks policy invariants.
func (p ThresholdPolicy) Validate() error {
	if p.TemperatureMin > p.TemperatureMax {
		return fmt.Errorf("threshold policy: temperature min %.1f exceeds max %.1f", p.TemperatureMin, p.TemperatureMax)
	}
	if p.OccupancyMax < 0 {
		return fmt.Errorf("threshold policy: negative occupancy ceiling %d", p.OccupancyMax)
	}
	if p.FaultProbability < 0 || p.FaultProbability > 1 {
		return fmt.Errorf("threshold policy: fault probability %.3f outside [0,1]", p.FaultProbability)
	}
	return nil
}

// Decision thresholds for mode selection at ingest.
const (
	coolTemperature = 26.0
	coolAQI         = 100.0
)

// ComputeMode assigns the operating mode for a reading: empty rooms run
// Eco, hot or polluted rooms run Cool, everything else runs Comfort.
func ComputeMode(temperature, aqi float64, occupancy int) models.Mode {
	if occupancy == 0 {
		return models.ModeEco
	}
	if temperature > coolTemperature || aqi > coolAQI {
		return models.ModeCool
	}
	return models.ModeComfort
}
