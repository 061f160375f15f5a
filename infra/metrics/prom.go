package metrics

import (
	coremetrics "github.com/gridflex/gridflex/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records scheduling activity in Prometheus metrics.
type PromSink struct {
	decisions *prometheus.CounterVec
	carbon    prometheus.Counter
	cost      prometheus.Counter
	delay     prometheus.Histogram
	upstream  *prometheus.CounterVec
	slots     *prometheus.CounterVec
}

// NewPromSink registers scheduling metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_decisions_total",
		Help: "Total number of scheduling decisions",
	}, []string{"decision", "region"})
	carbon := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbon_saved_kg_total",
		Help: "Cumulative carbon avoided versus the run-now baseline",
	})
	cost := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cost_saved_gbp_total",
		Help: "Cumulative cost avoided versus the run-now baseline",
	})
	delay := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_delay_hours",
		Help:    "Hours between earliest start and scheduled start",
		Buckets: []float64{0, 1, 2, 4, 8, 12, 24, 48},
	})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total outbound grid data requests",
	}, []string{"api", "outcome"})
	slots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_slot_events_total",
		Help: "Total marketplace slot searches and confirmations",
	}, []string{"action", "outcome"})

	if err := reg.Register(decisions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			decisions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(carbon); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			carbon = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cost); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cost = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(delay); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			delay = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(upstream); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			upstream = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(slots); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			slots = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		decisions: decisions,
		carbon:    carbon,
		cost:      cost,
		delay:     delay,
		upstream:  upstream,
		slots:     slots,
	}, nil
}

// RecordScheduleEvent counts the decision and accumulates savings.
func (s *PromSink) RecordScheduleEvent(ev coremetrics.ScheduleEvent) error {
	s.decisions.WithLabelValues(ev.DecisionType, string(ev.Region)).Inc()
	if ev.CarbonSavedKg > 0 {
		s.carbon.Add(ev.CarbonSavedKg)
	}
	if ev.CostSavedGBP > 0 {
		s.cost.Add(ev.CostSavedGBP)
	}
	if ev.DecisionType == "SCHEDULE" {
		s.delay.Observe(ev.DelayHours)
	}
	return nil
}

// RecordUpstreamEvent counts an outbound grid data call.
func (s *PromSink) RecordUpstreamEvent(ev coremetrics.UpstreamEvent) error {
	s.upstream.WithLabelValues(ev.API, outcome(ev.Success)).Inc()
	return nil
}

// RecordSlotEvent counts a marketplace action.
func (s *PromSink) RecordSlotEvent(ev coremetrics.SlotEvent) error {
	s.slots.WithLabelValues(ev.Action, outcome(ev.Success)).Inc()
	return nil
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
