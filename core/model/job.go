package model

import (
	"fmt"
	"time"
)

// JobSubmission is the validated input for submitting a compute job.
type JobSubmission struct {
	JobID   string `json:"job_id,omitempty"`
	JobName string `json:"job_name"`
	JobType string `json:"job_type"`

	AssetID       string  `json:"asset_id"`
	DurationHours float64 `json:"duration_hours"`

	EarliestStart time.Time `json:"earliest_start"`
	LatestFinish  time.Time `json:"latest_finish"`

	AllowedRegions []Region `json:"allowed_regions"`

	FlexibilityType FlexibilityType `json:"flexibility_type"`
	Priority        Priority        `json:"priority"`

	CarbonCapGPerKWh *float64 `json:"carbon_cap_g_per_kwh,omitempty"`
	MaxPricePerKWh   *float64 `json:"max_price_per_kwh,omitempty"`

	EstimatedPowerKW float64 `json:"estimated_power_kw"`
}

// WindowHours returns the length of the flexibility window in hours.
func (s JobSubmission) WindowHours() float64 {
	return s.LatestFinish.Sub(s.EarliestStart).Hours()
}

// Validate checks shape constraints that do not need the registry.
func (s JobSubmission) Validate() error {
	if s.JobName == "" {
		return fmt.Errorf("job_name is required")
	}
	if s.JobType == "" {
		return fmt.Errorf("job_type is required")
	}
	if s.AssetID == "" {
		return fmt.Errorf("asset_id is required")
	}
	if s.DurationHours <= 0 {
		return fmt.Errorf("duration_hours must be > 0, got %f", s.DurationHours)
	}
	if s.EstimatedPowerKW <= 0 {
		return fmt.Errorf("estimated_power_kw must be > 0, got %f", s.EstimatedPowerKW)
	}
	if len(s.AllowedRegions) == 0 {
		return fmt.Errorf("allowed_regions must not be empty")
	}
	for _, r := range s.AllowedRegions {
		if !r.Valid() {
			return fmt.Errorf("invalid region: %s", r)
		}
	}
	if _, err := ParseFlexibilityType(string(s.FlexibilityType)); err != nil {
		return err
	}
	if _, err := ParsePriority(string(s.Priority)); err != nil {
		return err
	}
	if !s.LatestFinish.After(s.EarliestStart) {
		return fmt.Errorf("latest_finish must be after earliest_start")
	}
	if s.WindowHours() < s.DurationHours {
		return fmt.Errorf("time window (%.1fh) is smaller than job duration (%.1fh)",
			s.WindowHours(), s.DurationHours)
	}
	return nil
}

// Job is the durable record created from a JobSubmission.
type Job struct {
	JobID   string `json:"job_id"`
	JobName string `json:"job_name"`
	JobType string `json:"job_type"`
	AssetID string `json:"asset_id"`

	DurationHours  float64   `json:"duration_hours"`
	EarliestStart  time.Time `json:"earliest_start"`
	LatestFinish   time.Time `json:"latest_finish"`
	AllowedRegions []Region  `json:"allowed_regions"`

	FlexibilityType FlexibilityType `json:"flexibility_type"`
	Priority        Priority        `json:"priority"`

	CarbonCapGPerKWh *float64 `json:"carbon_cap_g_per_kwh,omitempty"`
	MaxPricePerKWh   *float64 `json:"max_price_per_kwh,omitempty"`
	EstimatedPowerKW float64  `json:"estimated_power_kw"`

	Status   JobStatus `json:"status"`
	Schedule *Schedule `json:"schedule,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// MaxDeferralHours is the slack between window length and duration.
	MaxDeferralHours float64 `json:"max_deferral_hours"`
}

// AllowsRegion reports whether the job may run in the given region.
func (j Job) AllowsRegion(r Region) bool {
	for _, allowed := range j.AllowedRegions {
		if allowed == r {
			return true
		}
	}
	return false
}

// EstimatedEnergyKWh returns the projected energy consumption of the job.
func (j Job) EstimatedEnergyKWh() float64 {
	return j.EstimatedPowerKW * j.DurationHours
}

// Clone returns a deep copy so registry snapshots cannot alias callers.
func (j Job) Clone() Job {
	c := j
	c.AllowedRegions = append([]Region(nil), j.AllowedRegions...)
	if j.CarbonCapGPerKWh != nil {
		v := *j.CarbonCapGPerKWh
		c.CarbonCapGPerKWh = &v
	}
	if j.MaxPricePerKWh != nil {
		v := *j.MaxPricePerKWh
		c.MaxPricePerKWh = &v
	}
	if j.ScheduledAt != nil {
		t := *j.ScheduledAt
		c.ScheduledAt = &t
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Schedule != nil {
		sc := j.Schedule.Clone()
		c.Schedule = &sc
	}
	return c
}
