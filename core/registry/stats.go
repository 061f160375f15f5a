package registry

import (
	"github.com/gridflex/gridflex/core/model"
)

// Statistics summarizes the registry for operators and the reporting
// endpoints.
type Statistics struct {
	TotalJobs      int            `json:"total_jobs"`
	JobsByStatus   map[string]int `json:"jobs_by_status"`
	JobsByPriority map[string]int `json:"jobs_by_priority"`
	TotalAssets    int            `json:"total_assets"`
	AssetsByRegion map[string]int `json:"assets_by_region"`

	TotalCarbonSavedKg        float64 `json:"total_carbon_saved_kg"`
	TotalCostSavedGBP         float64 `json:"total_cost_saved_gbp"`
	AvgCarbonReductionPercent float64 `json:"avg_carbon_reduction_percent"`
	AvgCostReductionPercent   float64 `json:"avg_cost_reduction_percent"`
	AvgDelayHours             float64 `json:"avg_delay_hours"`
}

// FlexibilitySummary aggregates the shiftable load currently pending,
// the figure a flexibility marketplace would advertise.
type FlexibilitySummary struct {
	FlexibleJobs       int     `json:"flexible_jobs"`
	TotalEnergyKWh     float64 `json:"total_energy_kwh"`
	TotalPowerKW       float64 `json:"total_power_kw"`
	AvgDeferralHours   float64 `json:"avg_deferral_hours"`
	ThrottlableJobs    int     `json:"throttlable_jobs"`
	ThrottlablePowerKW float64 `json:"throttlable_power_kw"`
}

// Stats computes registry-wide aggregates over a consistent snapshot.
func (r *Registry) Stats() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Statistics{
		TotalJobs:      len(r.jobs),
		JobsByStatus:   make(map[string]int),
		JobsByPriority: make(map[string]int),
		TotalAssets:    len(r.assets),
		AssetsByRegion: make(map[string]int),
	}
	for _, a := range r.assets {
		st.AssetsByRegion[string(a.Region)]++
	}

	var delaySum, carbonPctSum, costPctSum float64
	var scheduled int
	for _, j := range r.jobs {
		st.JobsByStatus[string(j.Status)]++
		st.JobsByPriority[string(j.Priority)]++
		if j.Schedule != nil {
			st.TotalCarbonSavedKg += j.Schedule.CarbonSavedKg
			st.TotalCostSavedGBP += j.Schedule.CostSavedGBP
			carbonPctSum += j.Schedule.CarbonReductionPercent
			costPctSum += j.Schedule.CostReductionPercent
			delaySum += j.Schedule.StartTime.Sub(j.EarliestStart).Hours()
			scheduled++
		}
	}
	if scheduled > 0 {
		st.AvgCarbonReductionPercent = carbonPctSum / float64(scheduled)
		st.AvgCostReductionPercent = costPctSum / float64(scheduled)
		st.AvgDelayHours = delaySum / float64(scheduled)
	}
	return st
}

// Flexibility summarizes the pending jobs that can still be shifted or
// throttled.
func (r *Registry) Flexibility() FlexibilitySummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum FlexibilitySummary
	var deferralSum float64
	for _, j := range r.jobs {
		if j.Status != model.StatusPending || !j.FlexibilityType.IsFlexible() {
			continue
		}
		sum.FlexibleJobs++
		sum.TotalEnergyKWh += j.EstimatedEnergyKWh()
		sum.TotalPowerKW += j.EstimatedPowerKW
		deferralSum += j.MaxDeferralHours
		if j.FlexibilityType == model.FlexibilityThrottlable {
			sum.ThrottlableJobs++
			sum.ThrottlablePowerKW += j.EstimatedPowerKW
		}
	}
	if sum.FlexibleJobs > 0 {
		sum.AvgDeferralHours = deferralSum / float64(sum.FlexibleJobs)
	}
	return sum
}
