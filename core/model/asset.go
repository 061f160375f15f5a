package model

import "fmt"

// ComputeAsset represents a compute resource such as a GPU cluster or
// server rack. Assets are registered once and immutable afterwards.
type ComputeAsset struct {
	AssetID   string `json:"asset_id"`
	AssetType string `json:"asset_type"`
	Region    Region `json:"region"`

	MaxPowerKW float64 `json:"max_power_kw"`
	MinPowerKW float64 `json:"min_power_kw"`

	FlexibilityType FlexibilityType `json:"flexibility_type"`
	IsDeferrable    bool            `json:"is_deferrable"`
	IsThrottlable   bool            `json:"is_throttlable"`

	// HourlyCostGBP is the operational cost per hour, when known.
	HourlyCostGBP *float64 `json:"hourly_cost_gbp,omitempty"`
}

// Validate checks the asset invariants at registration time.
func (a ComputeAsset) Validate() error {
	if a.AssetID == "" {
		return fmt.Errorf("asset_id is required")
	}
	if a.AssetType == "" {
		return fmt.Errorf("asset_type is required")
	}
	if !a.Region.Valid() {
		return fmt.Errorf("invalid region: %s", a.Region)
	}
	if a.MinPowerKW < 0 {
		return fmt.Errorf("min_power_kw must be >= 0, got %f", a.MinPowerKW)
	}
	if a.MaxPowerKW < a.MinPowerKW {
		return fmt.Errorf("max_power_kw %f below min_power_kw %f", a.MaxPowerKW, a.MinPowerKW)
	}
	return nil
}
