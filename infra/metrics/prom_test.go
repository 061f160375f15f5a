package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	events := []coremetrics.ScheduleEvent{
		{JobID: "job_1", Region: model.RegionScotland, DecisionType: "SCHEDULE", CarbonSavedKg: 10, CostSavedGBP: 2, DelayHours: 3},
		{JobID: "job_2", DecisionType: "DEFER"},
	}
	for _, ev := range events {
		if err := sink.RecordScheduleEvent(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := sink.RecordUpstreamEvent(coremetrics.UpstreamEvent{API: "carbon_intensity_api", Attempts: 1, Success: true}); err != nil {
		t.Fatalf("upstream: %v", err)
	}
	if err := sink.RecordSlotEvent(coremetrics.SlotEvent{SlotID: "slot_1", Action: "search", Success: true}); err != nil {
		t.Fatalf("slot: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]bool{}
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"schedule_decisions_total",
		"carbon_saved_kg_total",
		"cost_saved_gbp_total",
		"schedule_delay_hours",
		"upstream_requests_total",
		"marketplace_slot_events_total",
	} {
		if !got[name] {
			t.Errorf("metric %s not collected", name)
		}
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration not tolerated: %v", err)
	}
}
