package model

import (
	"fmt"
	"math"
	"time"
)

// GridSignal is an immutable snapshot of grid conditions for one region at
// one point in time. Signals are produced per query and never mutated.
type GridSignal struct {
	Region    Region    `json:"region"`
	Timestamp time.Time `json:"timestamp"`

	CarbonIntensityGPerKWh float64  `json:"carbon_intensity_g_per_kwh"`
	CarbonForecast         *float64 `json:"carbon_forecast,omitempty"`

	PricePerKWh float64 `json:"price_per_kwh"`
	PricePerMWh float64 `json:"price_per_mwh"`

	// GenerationMix maps fuel tag to percentage. Upstream noise means the
	// percentages need not sum to exactly 100.
	GenerationMix     map[string]float64 `json:"generation_mix"`
	RenewableFraction float64            `json:"renewable_fraction"`

	DemandMW    *float64 `json:"demand_mw,omitempty"`
	FrequencyHz *float64 `json:"frequency_hz,omitempty"`
	StressLevel float64  `json:"stress_level"`

	// DataSource names the upstream APIs that contributed to this value.
	DataSource string `json:"data_source"`
}

// Validate checks the signal invariants.
func (s GridSignal) Validate() error {
	if !s.Region.Valid() {
		return fmt.Errorf("invalid region: %s", s.Region)
	}
	if s.CarbonIntensityGPerKWh < 0 {
		return fmt.Errorf("carbon intensity must be >= 0, got %f", s.CarbonIntensityGPerKWh)
	}
	if math.Abs(s.PricePerMWh-s.PricePerKWh*1000) > 1e-6 {
		return fmt.Errorf("price_per_mwh %f inconsistent with price_per_kwh %f", s.PricePerMWh, s.PricePerKWh)
	}
	if s.RenewableFraction < 0 || s.RenewableFraction > 1 {
		return fmt.Errorf("renewable fraction must be in [0,1], got %f", s.RenewableFraction)
	}
	if s.StressLevel < 0 || s.StressLevel > 1 {
		return fmt.Errorf("stress level must be in [0,1], got %f", s.StressLevel)
	}
	return nil
}
