package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridflex/gridflex/core/model"
)

// DecisionType classifies the outcome of a scheduling pass for a job.
type DecisionType string

const (
	DecisionSchedule DecisionType = "SCHEDULE"
	DecisionDefer    DecisionType = "DEFER"
	DecisionReject   DecisionType = "REJECT"
	DecisionConfirm  DecisionType = "CONFIRM"
)

// Option is one candidate window considered during a decision.
type Option struct {
	Region           model.Region `json:"region"`
	StartTime        time.Time    `json:"start_time"`
	Score            float64      `json:"score"`
	AvgCarbonGPerKWh float64      `json:"avg_carbon_g_per_kwh"`
	AvgPricePerKWh   float64      `json:"avg_price_per_kwh"`
}

// Constraints snapshots the job constraints active at decision time.
type Constraints struct {
	EarliestStart    time.Time      `json:"earliest_start"`
	LatestFinish     time.Time      `json:"latest_finish"`
	AllowedRegions   []model.Region `json:"allowed_regions"`
	Priority         model.Priority `json:"priority"`
	CarbonCapGPerKWh *float64       `json:"carbon_cap_g_per_kwh,omitempty"`
	MaxPricePerKWh   *float64       `json:"max_price_per_kwh,omitempty"`
}

// DecisionRecord captures one scheduling decision end to end: the grid
// state that was seen, the options weighed, and the outcome. Records are
// append-only.
type DecisionRecord struct {
	LogID        string       `json:"log_id"`
	Timestamp    time.Time    `json:"timestamp"`
	JobID        string       `json:"job_id"`
	DecisionType DecisionType `json:"decision_type"`

	InputSignals map[string]model.GridSignal `json:"input_signals,omitempty"`
	Constraints  Constraints                 `json:"constraints"`

	OptionsConsidered []Option `json:"options_considered,omitempty"`
	Selected          *Option  `json:"selected,omitempty"`

	Rationale string   `json:"rationale"`
	Tradeoffs []string `json:"tradeoffs,omitempty"`

	Schedule    *model.Schedule `json:"schedule,omitempty"`
	DataSources []string        `json:"data_sources,omitempty"`
}

// NewLogID returns a fresh audit record identifier.
func NewLogID() string {
	return "log_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Query defines filters for retrieving decision records.
type Query struct {
	Start        time.Time
	End          time.Time
	JobID        string
	DecisionType DecisionType
	Limit        int
}

func (q Query) matches(r DecisionRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	if q.DecisionType != "" && r.DecisionType != q.DecisionType {
		return false
	}
	return true
}

// Store persists DecisionRecords and supports querying. Results are
// ordered by timestamp ascending.
type Store interface {
	Append(ctx context.Context, rec DecisionRecord) error
	Query(ctx context.Context, q Query) ([]DecisionRecord, error)
	Close() error
}
