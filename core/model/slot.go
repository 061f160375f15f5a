package model

import "time"

// BecknSlot is a published, time-boxed offer of a pending flexible job's
// capacity, discoverable through the marketplace search/confirm flow.
type BecknSlot struct {
	SlotID string `json:"slot_id"`
	JobID  string `json:"job_id"`

	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationHours float64   `json:"duration_hours"`

	Region Region `json:"region"`

	ExpectedEnergyKWh      float64 `json:"expected_energy_kwh"`
	ExpectedCarbonKg       float64 `json:"expected_carbon_kg"`
	ExpectedCostGBP        float64 `json:"expected_cost_gbp"`
	CarbonIntensityGPerKWh float64 `json:"carbon_intensity_g_per_kwh"`

	FlexibilityValueGBP float64 `json:"flexibility_value_gbp"`
	RenewableFraction   float64 `json:"renewable_fraction"`

	ProviderID string `json:"provider_id"`
	ItemType   string `json:"item_type"`
}

// Beckn catalog metadata defaults.
const (
	BecknProviderID = "compute-energy-system"
	BecknItemType   = "flexible_compute_slot"
)
