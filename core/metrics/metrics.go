package metrics

import (
	"time"

	"github.com/gridflex/gridflex/core/model"
)

// ScheduleEvent describes one scheduling decision to be recorded.
type ScheduleEvent struct {
	JobID         string
	Region        model.Region
	DecisionType  string // SCHEDULE, DEFER, REJECT
	Score         float64
	CarbonSavedKg float64
	CostSavedGBP  float64
	DelayHours    float64
	Duration      time.Duration
	Time          time.Time
}

// MetricsSink records scheduling decisions for observability purposes.
type MetricsSink interface {
	RecordScheduleEvent(ev ScheduleEvent) error
}

// UpstreamEvent captures one outbound call to the grid signal source.
type UpstreamEvent struct {
	API      string
	Attempts int
	Success  bool
	Duration time.Duration
	Time     time.Time
}

// UpstreamRecorder is implemented by sinks able to record upstream calls.
type UpstreamRecorder interface {
	RecordUpstreamEvent(ev UpstreamEvent) error
}

// SlotEvent captures a marketplace search or confirm outcome.
type SlotEvent struct {
	SlotID  string
	JobID   string
	Region  model.Region
	Action  string // "search", "confirm"
	Success bool
	Time    time.Time
}

// SlotRecorder is implemented by sinks able to record marketplace activity.
type SlotRecorder interface {
	RecordSlotEvent(ev SlotEvent) error
}

// NopSink implements every recorder interface with no-op methods.
type NopSink struct{}

func (NopSink) RecordScheduleEvent(ScheduleEvent) error { return nil }
func (NopSink) RecordUpstreamEvent(UpstreamEvent) error { return nil }
func (NopSink) RecordSlotEvent(SlotEvent) error         { return nil }
