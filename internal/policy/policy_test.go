package policy

import (
	"testing"

	"ecoiq/internal/models"
)

func TestComputeMode(t *testing.T) {
	tests := []struct {
		name        string
		temperature float64
		aqi         float64
		occupancy   int
		want        models.Mode
	}{
		{"empty room runs eco", 22, 40, 0, models.ModeEco},
		{"empty hot room still eco", 30, 40, 0, models.ModeEco},
		{"hot room runs cool", 26.5, 40, 2, models.ModeCool},
		{"polluted room runs cool", 22, 101, 2, models.ModeCool},
		{"boundary temperature stays comfort", 26, 40, 2, models.ModeComfort},
		{"boundary aqi stays comfort", 22, 100, 2, models.ModeComfort},
		{"normal room runs comfort", 22, 40, 4, models.ModeComfort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeMode(tt.temperature, tt.aqi, tt.occupancy); got != tt.want {
				t.Errorf("ComputeMode(%v, %v, %d) = %s, want %s",
					tt.temperature, tt.aqi, tt.occupancy, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	if p.TemperatureMin != 18 || p.TemperatureMax != 30 || p.OccupancyMax != 8 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.FaultProbability != 0 {
		t.Errorf("fault simulation must be off by default, got %v", p.FaultProbability)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ThresholdPolicy)
		wantErr bool
	}{
		{"default ok", func(p *ThresholdPolicy) {}, false},
		{"inverted band", func(p *ThresholdPolicy) { p.TemperatureMin = 31 }, true},
		{"negative ceiling", func(p *ThresholdPolicy) { p.OccupancyMax = -1 }, true},
		{"probability above one", func(p *ThresholdPolicy) { p.FaultProbability = 1.5 }, true},
		{"negative probability", func(p *ThresholdPolicy) { p.FaultProbability = -0.1 }, true},
		{"probability one ok", func(p *ThresholdPolicy) { p.FaultProbability = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
