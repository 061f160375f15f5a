package metrics

import (
	"testing"

	coremetrics "github.com/gridflex/gridflex/core/metrics"
)

type countSink struct {
	schedule int
	upstream int
	slots    int
}

func (c *countSink) RecordScheduleEvent(coremetrics.ScheduleEvent) error {
	c.schedule++
	return nil
}

func (c *countSink) RecordUpstreamEvent(coremetrics.UpstreamEvent) error {
	c.upstream++
	return nil
}

func (c *countSink) RecordSlotEvent(coremetrics.SlotEvent) error {
	c.slots++
	return nil
}

type scheduleOnlySink struct{ schedule int }

func (s *scheduleOnlySink) RecordScheduleEvent(coremetrics.ScheduleEvent) error {
	s.schedule++
	return nil
}

func TestMultiSinkFanout(t *testing.T) {
	full := &countSink{}
	partial := &scheduleOnlySink{}
	m := NewMultiSink(full, partial)

	if err := m.RecordScheduleEvent(coremetrics.ScheduleEvent{}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := m.RecordUpstreamEvent(coremetrics.UpstreamEvent{}); err != nil {
		t.Fatalf("upstream: %v", err)
	}
	if err := m.RecordSlotEvent(coremetrics.SlotEvent{}); err != nil {
		t.Fatalf("slot: %v", err)
	}

	if full.schedule != 1 || full.upstream != 1 || full.slots != 1 {
		t.Errorf("full sink counts = %+v", full)
	}
	// Sinks without the optional recorders are skipped, not an error.
	if partial.schedule != 1 {
		t.Errorf("partial sink schedule = %d", partial.schedule)
	}
}
