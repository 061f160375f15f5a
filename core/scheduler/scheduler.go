package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/optimizer"
)

// ErrNoFeasibleWindow is returned when no candidate window satisfies the
// job's constraints. The job is left schedulable unless its window has
// already expired.
var ErrNoFeasibleWindow = errors.New("no feasible window")

// ErrWindowExpired wraps ErrNoFeasibleWindow for jobs whose window can no
// longer fit the run. Such jobs are cancelled.
var ErrWindowExpired = fmt.Errorf("window expired: %w", ErrNoFeasibleWindow)

// SignalProvider supplies grid conditions for baselines and throttling
// profiles.
type SignalProvider interface {
	CurrentSignal(ctx context.Context, region model.Region) (model.GridSignal, error)
	ForecastSignals(ctx context.Context, region model.Region, horizonHours int) ([]model.GridSignal, error)
}

// WindowFinder ranks candidate start windows for a job.
type WindowFinder interface {
	FindOptimalWindows(ctx context.Context, region model.Region,
		windowStart, windowEnd time.Time, durationHours float64,
		carbonCap, maxPrice *float64) ([]optimizer.Candidate, error)
}

// JobStore is the registry surface the scheduler needs.
type JobStore interface {
	GetJob(jobID string) (model.Job, error)
	GetAsset(assetID string) (model.ComputeAsset, error)
	PendingJobs() []model.Job
	AttachSchedule(jobID string, sched model.Schedule) (model.Job, error)
	UpdateStatus(jobID string, next model.JobStatus) (model.Job, error)
}

// Config tunes scheduling behavior.
type Config struct {
	// CarbonValueGBPPerKg monetizes avoided carbon when estimating the
	// flexibility value of a slot.
	CarbonValueGBPPerKg float64 `json:"carbon_value_gbp_per_kg"`
	// MaxOptionsLogged bounds the candidates recorded per region in the
	// audit trail.
	MaxOptionsLogged int `json:"max_options_logged"`
}

func (c *Config) SetDefaults() {
	if c.CarbonValueGBPPerKg == 0 {
		c.CarbonValueGBPPerKg = 0.05
	}
	if c.MaxOptionsLogged == 0 {
		c.MaxOptionsLogged = 3
	}
}

// Scheduler turns pending jobs into schedules by searching candidate
// windows across the job's allowed regions. Every decision, including
// deferrals and rejections, is written to the audit store.
type Scheduler struct {
	signals SignalProvider
	windows WindowFinder
	jobs    JobStore
	auditor audit.Store
	sink    metrics.MetricsSink
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

// New creates a Scheduler. auditor and sink must not be nil; use the
// memory store and NopSink when persistence is not wanted.
func New(signals SignalProvider, windows WindowFinder, jobs JobStore,
	auditor audit.Store, sink metrics.MetricsSink, cfg Config, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{
		signals: signals,
		windows: windows,
		jobs:    jobs,
		auditor: auditor,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

type regionCandidates struct {
	region model.Region
	cands  []optimizer.Candidate
}

// ScheduleJob finds the best window for a pending job, attaches the
// resulting schedule, and records the decision. On ErrNoFeasibleWindow
// the job stays PENDING unless its window has expired, in which case it
// is cancelled.
func (s *Scheduler) ScheduleJob(ctx context.Context, jobID string) (model.Job, error) {
	job, err := s.jobs.GetJob(jobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Status != model.StatusPending {
		return model.Job{}, &model.InvalidStateError{JobID: jobID, Status: job.Status, Op: "schedule"}
	}
	asset, err := s.jobs.GetAsset(job.AssetID)
	if err != nil {
		return model.Job{}, err
	}

	// All upstream reads happen before any registry write so a failed
	// fetch cannot leave the job half scheduled.
	baseline, err := s.signals.CurrentSignal(ctx, asset.Region)
	if err != nil {
		return model.Job{}, fmt.Errorf("baseline signal for %s: %w", asset.Region, err)
	}

	var perRegion []regionCandidates
	for _, region := range job.AllowedRegions {
		cands, err := s.windows.FindOptimalWindows(ctx, region,
			job.EarliestStart, job.LatestFinish, job.DurationHours,
			job.CarbonCapGPerKWh, job.MaxPricePerKWh)
		if err != nil {
			s.log.Errorf("window search in %s for job %s: %v", region, jobID, err)
			continue
		}
		if len(cands) > 0 {
			perRegion = append(perRegion, regionCandidates{region: region, cands: cands})
		}
	}

	best, bestRegion, ok := pickBest(perRegion)
	if !ok {
		return s.recordInfeasible(ctx, job, baseline, perRegion)
	}

	sched := s.buildSchedule(ctx, job, baseline, bestRegion, best)
	updated, err := s.jobs.AttachSchedule(jobID, sched)
	if err != nil {
		return model.Job{}, err
	}

	s.recordDecision(ctx, updated, baseline, perRegion, bestRegion, best, &sched)
	s.log.Infof("scheduled job %s in %s at %s (score %.3f, carbon saved %.1fkg)",
		jobID, bestRegion, sched.StartTime.Format(time.RFC3339), best.Score, sched.CarbonSavedKg)
	return updated, nil
}

// pickBest selects the lowest-scoring candidate across regions. Ties go
// to the earliest start time.
func pickBest(perRegion []regionCandidates) (optimizer.Candidate, model.Region, bool) {
	var best optimizer.Candidate
	var bestRegion model.Region
	found := false
	for _, rc := range perRegion {
		for _, c := range rc.cands {
			switch {
			case !found,
				c.Score < best.Score,
				c.Score == best.Score && c.StartTime.Before(best.StartTime):
				best = c
				bestRegion = rc.region
				found = true
			}
		}
	}
	return best, bestRegion, found
}

func (s *Scheduler) buildSchedule(ctx context.Context, job model.Job,
	baseline model.GridSignal, region model.Region, best optimizer.Candidate) model.Schedule {

	energy := job.EstimatedEnergyKWh()
	sched := model.Schedule{
		ScheduleID: newID("sched"),
		JobID:      job.JobID,
		Region:     region,
		StartTime:  best.StartTime,
		EndTime:    best.StartTime.Add(hoursDur(job.DurationHours)),

		EstimatedEnergyKWh: energy,
		EstimatedCarbonKg:  best.AvgCarbon * energy / 1000,
		EstimatedCostGBP:   best.AvgPrice * energy,

		BaselineCarbonKg: baseline.CarbonIntensityGPerKWh * energy / 1000,
		BaselineCostGBP:  baseline.PricePerKWh * energy,

		CreatedAt:   s.now(),
		DataSources: strings.Split(baseline.DataSource, ","),
	}
	sched.ComputeSavings()

	if job.FlexibilityType == model.FlexibilityThrottlable {
		sched.ThrottlingProfile = s.throttlingProfile(ctx, region, sched.StartTime, sched.EndTime)
	}

	value := sched.CostSavedGBP + s.cfg.CarbonValueGBPPerKg*sched.CarbonSavedKg
	if value > 0 {
		sched.FlexibilityValueGBP = &value
	}
	return sched
}

// throttlingProfile partitions the run window into segments whose power
// fraction tracks forecast carbon intensity: full power at the cleanest
// point, half power at the dirtiest. A flat forecast runs at full power.
func (s *Scheduler) throttlingProfile(ctx context.Context, region model.Region,
	start, end time.Time) []model.ThrottlingSegment {

	horizon := int(end.Sub(s.now()).Hours()) + 1
	forecast, err := s.signals.ForecastSignals(ctx, region, horizon)
	if err != nil {
		s.log.Warnf("throttling profile for %s unavailable: %v", region, err)
		return nil
	}

	var covering []model.GridSignal
	for _, sig := range forecast {
		if !sig.Timestamp.Before(start) && sig.Timestamp.Before(end) {
			covering = append(covering, sig)
		}
	}
	if len(covering) == 0 {
		return nil
	}

	cMin, cMax := covering[0].CarbonIntensityGPerKWh, covering[0].CarbonIntensityGPerKWh
	for _, sig := range covering[1:] {
		if sig.CarbonIntensityGPerKWh < cMin {
			cMin = sig.CarbonIntensityGPerKWh
		}
		if sig.CarbonIntensityGPerKWh > cMax {
			cMax = sig.CarbonIntensityGPerKWh
		}
	}

	segments := make([]model.ThrottlingSegment, 0, len(covering))
	for i, sig := range covering {
		fraction := 1.0
		if cMax > cMin {
			fraction = 1 - 0.5*(sig.CarbonIntensityGPerKWh-cMin)/(cMax-cMin)
		}
		segStart := sig.Timestamp
		if i == 0 {
			segStart = start
		}
		segEnd := end
		if i+1 < len(covering) {
			segEnd = covering[i+1].Timestamp
		}
		segments = append(segments, model.ThrottlingSegment{
			StartTime:       segStart,
			EndTime:         segEnd,
			PowerFraction:   fraction,
			CarbonIntensity: sig.CarbonIntensityGPerKWh,
			PricePerKWh:     sig.PricePerKWh,
		})
	}
	return segments
}

// recordInfeasible audits a DEFER or REJECT and decides the job's fate.
// A job whose window can still fit the run stays PENDING; a job that can
// no longer finish in time is cancelled.
func (s *Scheduler) recordInfeasible(ctx context.Context, job model.Job,
	baseline model.GridSignal, perRegion []regionCandidates) (model.Job, error) {

	expired := s.now().Add(hoursDur(job.DurationHours)).After(job.LatestFinish)
	decision := audit.DecisionDefer
	rationale := "no window satisfied the carbon and price constraints; job remains pending"
	if expired {
		decision = audit.DecisionReject
		rationale = "flexibility window can no longer fit the job duration"
	}

	rec := s.baseRecord(job, baseline, perRegion)
	rec.DecisionType = decision
	rec.Rationale = rationale
	if err := s.auditor.Append(ctx, rec); err != nil {
		s.log.Errorf("audit append for job %s: %v", job.JobID, err)
	}
	s.emit(metrics.ScheduleEvent{
		JobID:        job.JobID,
		DecisionType: string(decision),
	})

	if expired {
		if _, err := s.jobs.UpdateStatus(job.JobID, model.StatusCancelled); err != nil {
			s.log.Errorf("cancelling expired job %s: %v", job.JobID, err)
		}
		return model.Job{}, fmt.Errorf("job %s: %w", job.JobID, ErrWindowExpired)
	}
	return model.Job{}, fmt.Errorf("job %s: %w", job.JobID, ErrNoFeasibleWindow)
}

func (s *Scheduler) recordDecision(ctx context.Context, job model.Job,
	baseline model.GridSignal, perRegion []regionCandidates,
	region model.Region, best optimizer.Candidate, sched *model.Schedule) {

	rec := s.baseRecord(job, baseline, perRegion)
	rec.DecisionType = audit.DecisionSchedule
	rec.Selected = &audit.Option{
		Region:           region,
		StartTime:        best.StartTime,
		Score:            best.Score,
		AvgCarbonGPerKWh: best.AvgCarbon,
		AvgPricePerKWh:   best.AvgPrice,
	}
	rec.Schedule = sched
	rec.Rationale = fmt.Sprintf(
		"selected %s starting %s: score %.3f, avg carbon %.0f gCO2/kWh, avg price %.3f GBP/kWh",
		region, best.StartTime.Format(time.RFC3339), best.Score, best.AvgCarbon, best.AvgPrice)

	delay := best.StartTime.Sub(job.EarliestStart).Hours()
	if delay > 0 {
		rec.Tradeoffs = append(rec.Tradeoffs, fmt.Sprintf(
			"delayed start by %.1fh for a %.1f%% carbon reduction", delay, sched.CarbonReductionPercent))
	}
	if region != baseline.Region {
		rec.Tradeoffs = append(rec.Tradeoffs, fmt.Sprintf(
			"moved from %s to %s", baseline.Region, region))
	}
	if err := s.auditor.Append(ctx, rec); err != nil {
		s.log.Errorf("audit append for job %s: %v", job.JobID, err)
	}

	s.emit(metrics.ScheduleEvent{
		JobID:         job.JobID,
		Region:        region,
		DecisionType:  string(audit.DecisionSchedule),
		Score:         best.Score,
		CarbonSavedKg: sched.CarbonSavedKg,
		CostSavedGBP:  sched.CostSavedGBP,
		DelayHours:    delay,
	})
}

func (s *Scheduler) baseRecord(job model.Job, baseline model.GridSignal,
	perRegion []regionCandidates) audit.DecisionRecord {

	rec := audit.DecisionRecord{
		LogID:     audit.NewLogID(),
		Timestamp: s.now(),
		JobID:     job.JobID,
		InputSignals: map[string]model.GridSignal{
			string(baseline.Region): baseline,
		},
		Constraints: audit.Constraints{
			EarliestStart:    job.EarliestStart,
			LatestFinish:     job.LatestFinish,
			AllowedRegions:   job.AllowedRegions,
			Priority:         job.Priority,
			CarbonCapGPerKWh: job.CarbonCapGPerKWh,
			MaxPricePerKWh:   job.MaxPricePerKWh,
		},
		DataSources: strings.Split(baseline.DataSource, ","),
	}
	for _, rc := range perRegion {
		n := len(rc.cands)
		if n > s.cfg.MaxOptionsLogged {
			n = s.cfg.MaxOptionsLogged
		}
		for _, c := range rc.cands[:n] {
			rec.OptionsConsidered = append(rec.OptionsConsidered, audit.Option{
				Region:           rc.region,
				StartTime:        c.StartTime,
				Score:            c.Score,
				AvgCarbonGPerKWh: c.AvgCarbon,
				AvgPricePerKWh:   c.AvgPrice,
			})
		}
	}
	return rec
}

func (s *Scheduler) emit(ev metrics.ScheduleEvent) {
	ev.Time = s.now()
	if err := s.sink.RecordScheduleEvent(ev); err != nil {
		s.log.Warnf("metrics sink: %v", err)
	}
}

// Summary reports the outcome of a scheduling pass over the pending
// queue.
type Summary struct {
	Scheduled int               `json:"scheduled"`
	Deferred  int               `json:"deferred"`
	Rejected  int               `json:"rejected"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ScheduleAllPending schedules every pending job, critical priority
// first, tighter windows first within a priority. One job's failure
// never aborts the pass.
func (s *Scheduler) ScheduleAllPending(ctx context.Context) (Summary, error) {
	pending := s.jobs.PendingJobs()
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority.Rank() != pending[j].Priority.Rank() {
			return pending[i].Priority.Rank() < pending[j].Priority.Rank()
		}
		return pending[i].MaxDeferralHours < pending[j].MaxDeferralHours
	})

	sum := Summary{Errors: make(map[string]string)}
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		_, err := s.ScheduleJob(ctx, job.JobID)
		switch {
		case err == nil:
			sum.Scheduled++
		case errors.Is(err, ErrWindowExpired):
			sum.Rejected++
			sum.Errors[job.JobID] = err.Error()
		case errors.Is(err, ErrNoFeasibleWindow):
			sum.Deferred++
			sum.Errors[job.JobID] = err.Error()
		default:
			sum.Failed++
			sum.Errors[job.JobID] = err.Error()
			s.log.Errorf("scheduling job %s: %v", job.JobID, err)
		}
	}
	s.log.Infof("scheduling pass: %d scheduled, %d deferred, %d rejected, %d failed",
		sum.Scheduled, sum.Deferred, sum.Rejected, sum.Failed)
	return sum, nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func hoursDur(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
