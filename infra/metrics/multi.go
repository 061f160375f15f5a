package metrics

import coremetrics "github.com/gridflex/gridflex/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScheduleEvent forwards the event to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordScheduleEvent(ev coremetrics.ScheduleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordUpstreamEvent forwards upstream call events when supported by
// the sink.
func (m *MultiSink) RecordUpstreamEvent(ev coremetrics.UpstreamEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.UpstreamRecorder); ok {
			if err := rec.RecordUpstreamEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSlotEvent forwards marketplace events when supported by the sink.
func (m *MultiSink) RecordSlotEvent(ev coremetrics.SlotEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SlotRecorder); ok {
			if err := rec.RecordSlotEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
