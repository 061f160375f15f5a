package model

import (
	"fmt"
	"time"
)

// ThrottlingSegment is a contiguous slice of a schedule with a specific
// power level, used for throttlable jobs.
type ThrottlingSegment struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	PowerFraction   float64   `json:"power_fraction"`
	CarbonIntensity float64   `json:"carbon_intensity"`
	PricePerKWh     float64   `json:"price_per_kwh"`
}

// Schedule is the chosen execution plan for a job.
type Schedule struct {
	ScheduleID string `json:"schedule_id"`
	JobID      string `json:"job_id"`

	Region    Region    `json:"region"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// ThrottlingProfile partitions [StartTime, EndTime) contiguously.
	// Only set for throttlable jobs.
	ThrottlingProfile []ThrottlingSegment `json:"throttling_profile,omitempty"`

	EstimatedEnergyKWh float64 `json:"estimated_energy_kwh"`
	EstimatedCarbonKg  float64 `json:"estimated_carbon_kg"`
	EstimatedCostGBP   float64 `json:"estimated_cost_gbp"`

	BaselineCarbonKg float64 `json:"baseline_carbon_kg"`
	BaselineCostGBP  float64 `json:"baseline_cost_gbp"`

	CarbonSavedKg          float64 `json:"carbon_saved_kg"`
	CostSavedGBP           float64 `json:"cost_saved_gbp"`
	CarbonReductionPercent float64 `json:"carbon_reduction_percent"`
	CostReductionPercent   float64 `json:"cost_reduction_percent"`

	// FlexibilityValueGBP is the estimated flexibility revenue for the slot.
	FlexibilityValueGBP *float64 `json:"flexibility_value_gbp,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	DataSources []string  `json:"data_sources"`
}

// ComputeSavings fills the derived saving fields from the baseline and
// estimated figures. A zero baseline yields a 0% reduction.
func (s *Schedule) ComputeSavings() {
	s.CarbonSavedKg = s.BaselineCarbonKg - s.EstimatedCarbonKg
	s.CostSavedGBP = s.BaselineCostGBP - s.EstimatedCostGBP
	if s.BaselineCarbonKg != 0 {
		s.CarbonReductionPercent = 100 * s.CarbonSavedKg / s.BaselineCarbonKg
	} else {
		s.CarbonReductionPercent = 0
	}
	if s.BaselineCostGBP != 0 {
		s.CostReductionPercent = 100 * s.CostSavedGBP / s.BaselineCostGBP
	} else {
		s.CostReductionPercent = 0
	}
}

// ValidateFor checks the schedule against the job it is attached to.
func (s Schedule) ValidateFor(job Job) error {
	if s.EstimatedCarbonKg < 0 {
		return fmt.Errorf("estimated_carbon_kg must be >= 0, got %f", s.EstimatedCarbonKg)
	}
	if s.EstimatedCostGBP < 0 {
		return fmt.Errorf("estimated_cost_gbp must be >= 0, got %f", s.EstimatedCostGBP)
	}
	if s.StartTime.Before(job.EarliestStart) {
		return fmt.Errorf("start_time %v before earliest_start %v", s.StartTime, job.EarliestStart)
	}
	if s.EndTime.After(job.LatestFinish) {
		return fmt.Errorf("end_time %v after latest_finish %v", s.EndTime, job.LatestFinish)
	}
	if !job.AllowsRegion(s.Region) {
		return fmt.Errorf("region %s not in allowed regions", s.Region)
	}
	for _, seg := range s.ThrottlingProfile {
		if seg.PowerFraction < 0 || seg.PowerFraction > 1 {
			return fmt.Errorf("power fraction must be in [0,1], got %f", seg.PowerFraction)
		}
	}
	return nil
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	c := s
	c.ThrottlingProfile = append([]ThrottlingSegment(nil), s.ThrottlingProfile...)
	c.DataSources = append([]string(nil), s.DataSources...)
	if s.FlexibilityValueGBP != nil {
		v := *s.FlexibilityValueGBP
		c.FlexibilityValueGBP = &v
	}
	return c
}
