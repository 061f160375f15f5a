package model

import (
	"math"
	"strings"
	"testing"
	"time"
)

var modelBase = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func validSubmission() JobSubmission {
	return JobSubmission{
		JobName:          "nightly-training",
		JobType:          "batch_ml",
		AssetID:          "dc-1",
		DurationHours:    4,
		EarliestStart:    modelBase,
		LatestFinish:     modelBase.Add(24 * time.Hour),
		AllowedRegions:   []Region{RegionLondon, RegionScotland},
		FlexibilityType:  FlexibilityDeferrable,
		Priority:         PriorityNormal,
		EstimatedPowerKW: 200,
	}
}

func TestSubmissionValidate(t *testing.T) {
	if err := validSubmission().Validate(); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
}

func TestSubmissionDurationExceedsWindow(t *testing.T) {
	sub := validSubmission()
	sub.DurationHours = 25
	err := sub.Validate()
	if err == nil {
		t.Fatal("expected validation error for duration longer than window")
	}
	if !strings.Contains(err.Error(), "smaller than job duration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSignalValidate(t *testing.T) {
	sig := GridSignal{
		Region:                 RegionLondon,
		Timestamp:              modelBase,
		CarbonIntensityGPerKWh: 180,
		PricePerKWh:            0.12,
		PricePerMWh:            120,
		RenewableFraction:      0.4,
		StressLevel:            0.5,
	}
	if err := sig.Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}

	bad := sig
	bad.PricePerMWh = 130
	if err := bad.Validate(); err == nil {
		t.Error("expected error for inconsistent price_per_mwh")
	}

	bad = sig
	bad.StressLevel = 1.2
	if err := bad.Validate(); err == nil {
		t.Error("expected error for stress level above 1")
	}
}

func TestComputeSavings(t *testing.T) {
	s := Schedule{
		EstimatedCarbonKg: 64,
		EstimatedCostGBP:  24,
		BaselineCarbonKg:  240,
		BaselineCostGBP:   48,
	}
	s.ComputeSavings()
	if s.CarbonSavedKg != 176 || s.CostSavedGBP != 24 {
		t.Errorf("saved = %f kg / %f gbp", s.CarbonSavedKg, s.CostSavedGBP)
	}
	if math.Abs(s.CarbonReductionPercent-100*176.0/240.0) > 1e-9 {
		t.Errorf("carbon reduction = %f", s.CarbonReductionPercent)
	}
	if s.CostReductionPercent != 50 {
		t.Errorf("cost reduction = %f, want 50", s.CostReductionPercent)
	}
}

func TestComputeSavingsZeroBaseline(t *testing.T) {
	s := Schedule{EstimatedCarbonKg: 10, EstimatedCostGBP: 5}
	s.ComputeSavings()
	if s.CarbonReductionPercent != 0 || s.CostReductionPercent != 0 {
		t.Errorf("zero baseline must yield 0%% reduction, got %f / %f",
			s.CarbonReductionPercent, s.CostReductionPercent)
	}
	if s.CarbonSavedKg != -10 {
		t.Errorf("carbon saved = %f, want -10", s.CarbonSavedKg)
	}
}

func TestScheduleValidateFor(t *testing.T) {
	job := Job{
		EarliestStart:  modelBase,
		LatestFinish:   modelBase.Add(24 * time.Hour),
		AllowedRegions: []Region{RegionLondon},
	}
	sched := Schedule{
		Region:    RegionLondon,
		StartTime: modelBase.Add(2 * time.Hour),
		EndTime:   modelBase.Add(6 * time.Hour),
	}
	if err := sched.ValidateFor(job); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	bad := sched
	bad.Region = RegionScotland
	if err := bad.ValidateFor(job); err == nil {
		t.Error("expected error for region outside allowed set")
	}

	bad = sched
	bad.EndTime = modelBase.Add(25 * time.Hour)
	if err := bad.ValidateFor(job); err == nil {
		t.Error("expected error for end past latest_finish")
	}

	bad = sched
	bad.ThrottlingProfile = []ThrottlingSegment{{PowerFraction: 1.5}}
	if err := bad.ValidateFor(job); err == nil {
		t.Error("expected error for power fraction above 1")
	}
}

func TestScheduleCloneIsDeep(t *testing.T) {
	v := 12.5
	s := Schedule{
		ThrottlingProfile:   []ThrottlingSegment{{PowerFraction: 0.5}},
		DataSources:         []string{"carbonintensity.org.uk"},
		FlexibilityValueGBP: &v,
	}
	c := s.Clone()
	c.ThrottlingProfile[0].PowerFraction = 1
	c.DataSources[0] = "other"
	*c.FlexibilityValueGBP = 0
	if s.ThrottlingProfile[0].PowerFraction != 0.5 || s.DataSources[0] != "carbonintensity.org.uk" || *s.FlexibilityValueGBP != 12.5 {
		t.Error("clone shares memory with the original")
	}
}
