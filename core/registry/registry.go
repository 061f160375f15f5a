package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/internal/eventbus"
)

// tightWindowFactor flags submissions whose window barely exceeds the
// job duration. Flagged jobs are accepted, not rejected.
const tightWindowFactor = 1.5

// EventType classifies a job lifecycle event on the bus.
type EventType string

const (
	EventSubmitted     EventType = "submitted"
	EventStatusChanged EventType = "status_changed"
	EventScheduled     EventType = "scheduled"
	EventDeleted       EventType = "deleted"
)

// JobEvent is published on every registry mutation.
type JobEvent struct {
	Type     EventType
	Job      model.Job
	Previous model.JobStatus
	Time     time.Time
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	Status   model.JobStatus
	Priority model.Priority
	Region   model.Region
}

// Registry owns the canonical state of compute assets and jobs and
// drives the job lifecycle state machine. All mutations are serialized
// behind a single write lock; reads return deep copies so callers never
// observe a partially updated job.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	assets map[string]model.ComputeAsset

	log logger.Logger
	bus *eventbus.Bus[JobEvent]
	now func() time.Time
}

// New creates an empty Registry. bus may be nil when lifecycle events
// need not be published.
func New(log logger.Logger, bus *eventbus.Bus[JobEvent]) *Registry {
	return &Registry{
		jobs:   make(map[string]*model.Job),
		assets: make(map[string]model.ComputeAsset),
		log:    log,
		bus:    bus,
		now:    time.Now,
	}
}

func (r *Registry) publish(ev JobEvent) {
	if r.bus != nil {
		ev.Time = r.now()
		r.bus.Publish(ev)
	}
}

// RegisterAsset stores a compute asset. Assets are immutable after
// registration; registering an existing id is a validation failure.
func (r *Registry) RegisterAsset(asset model.ComputeAsset) (model.ComputeAsset, error) {
	if err := asset.Validate(); err != nil {
		return model.ComputeAsset{}, model.NewValidationError("%v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.assets[asset.AssetID]; exists {
		return model.ComputeAsset{}, model.NewValidationError("asset %s already registered", asset.AssetID)
	}
	r.assets[asset.AssetID] = asset
	r.log.Infof("registered asset %s (%s) in %s, %.0fkW",
		asset.AssetID, asset.AssetType, asset.Region, asset.MaxPowerKW)
	return asset, nil
}

// GetAsset returns the asset with the given id.
func (r *Registry) GetAsset(assetID string) (model.ComputeAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[assetID]
	if !ok {
		return model.ComputeAsset{}, &model.NotFoundError{Kind: "asset", ID: assetID}
	}
	return asset, nil
}

// ListAssets returns all assets, optionally filtered by region.
func (r *Registry) ListAssets(region model.Region) []model.ComputeAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ComputeAsset, 0, len(r.assets))
	for _, a := range r.assets {
		if region != "" && a.Region != region {
			continue
		}
		out = append(out, a)
	}
	sortAssets(out)
	return out
}

// SubmitJob validates a submission and creates the durable job record in
// state PENDING.
func (r *Registry) SubmitJob(sub model.JobSubmission) (model.Job, error) {
	if err := sub.Validate(); err != nil {
		return model.Job{}, model.NewValidationError("%v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	asset, ok := r.assets[sub.AssetID]
	if !ok {
		return model.Job{}, &model.NotFoundError{Kind: "asset", ID: sub.AssetID}
	}
	if !regionAllowed(asset.Region, sub.AllowedRegions) {
		r.log.Warnf("asset %s in %s but allowed regions are %v",
			asset.AssetID, asset.Region, sub.AllowedRegions)
	}
	if sub.WindowHours() < sub.DurationHours*tightWindowFactor {
		r.log.Warnf("job %s has very tight deadline (window: %.1fh, duration: %.1fh)",
			sub.JobName, sub.WindowHours(), sub.DurationHours)
	}

	jobID := sub.JobID
	if jobID == "" {
		jobID = newID("job")
	}
	if _, exists := r.jobs[jobID]; exists {
		return model.Job{}, model.NewValidationError("job %s already exists", jobID)
	}

	job := &model.Job{
		JobID:            jobID,
		JobName:          sub.JobName,
		JobType:          sub.JobType,
		AssetID:          sub.AssetID,
		DurationHours:    sub.DurationHours,
		EarliestStart:    sub.EarliestStart,
		LatestFinish:     sub.LatestFinish,
		AllowedRegions:   append([]model.Region(nil), sub.AllowedRegions...),
		FlexibilityType:  sub.FlexibilityType,
		Priority:         sub.Priority,
		CarbonCapGPerKWh: sub.CarbonCapGPerKWh,
		MaxPricePerKWh:   sub.MaxPricePerKWh,
		EstimatedPowerKW: sub.EstimatedPowerKW,
		Status:           model.StatusPending,
		SubmittedAt:      r.now(),
		MaxDeferralHours: sub.WindowHours() - sub.DurationHours,
	}
	r.jobs[jobID] = job

	r.log.Infof("submitted job %s: %s (%.1fh, flexibility: %.1fh, priority: %s)",
		jobID, job.JobName, job.DurationHours, job.MaxDeferralHours, job.Priority)
	r.publish(JobEvent{Type: EventSubmitted, Job: job.Clone()})
	return job.Clone(), nil
}

// GetJob returns a snapshot of the job with the given id.
func (r *Registry) GetJob(jobID string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, &model.NotFoundError{Kind: "job", ID: jobID}
	}
	return job.Clone(), nil
}

// ListJobs returns snapshots of all jobs matching the filter.
func (r *Registry) ListJobs(f JobFilter) []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Priority != "" && j.Priority != f.Priority {
			continue
		}
		if f.Region != "" && !j.AllowsRegion(f.Region) {
			continue
		}
		out = append(out, j.Clone())
	}
	sortJobs(out)
	return out
}

// PendingJobs returns all jobs awaiting scheduling.
func (r *Registry) PendingJobs() []model.Job {
	return r.ListJobs(JobFilter{Status: model.StatusPending})
}

// UpdateStatus drives the lifecycle state machine, setting the
// corresponding timestamp exactly once per transition.
func (r *Registry) UpdateStatus(jobID string, next model.JobStatus) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, &model.NotFoundError{Kind: "job", ID: jobID}
	}
	prev := job.Status
	if !prev.CanTransitionTo(next) {
		return model.Job{}, &model.InvalidStateError{JobID: jobID, Status: prev, Op: "transition to " + string(next)}
	}
	job.Status = next
	now := r.now()
	switch {
	case next == model.StatusScheduled && job.ScheduledAt == nil:
		job.ScheduledAt = &now
	case next == model.StatusRunning && job.StartedAt == nil:
		job.StartedAt = &now
	case next.Terminal() && job.CompletedAt == nil:
		job.CompletedAt = &now
	}
	r.log.Infof("job %s status: %s -> %s", jobID, prev, next)
	r.publish(JobEvent{Type: EventStatusChanged, Job: job.Clone(), Previous: prev})
	return job.Clone(), nil
}

// AttachSchedule attaches a schedule to a PENDING job and forces the
// transition to SCHEDULED.
func (r *Registry) AttachSchedule(jobID string, sched model.Schedule) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, &model.NotFoundError{Kind: "job", ID: jobID}
	}
	if job.Status != model.StatusPending {
		return model.Job{}, &model.InvalidStateError{JobID: jobID, Status: job.Status, Op: "attach schedule"}
	}
	if err := sched.ValidateFor(*job); err != nil {
		return model.Job{}, model.NewValidationError("%v", err)
	}
	prev := job.Status
	sc := sched.Clone()
	job.Schedule = &sc
	job.Status = model.StatusScheduled
	now := r.now()
	job.ScheduledAt = &now
	r.log.Infof("attached schedule to job %s: %s, %v", jobID, sched.Region, sched.StartTime)
	r.publish(JobEvent{Type: EventScheduled, Job: job.Clone(), Previous: prev})
	return job.Clone(), nil
}

// DeleteJob removes the job from the registry.
func (r *Registry) DeleteJob(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return &model.NotFoundError{Kind: "job", ID: jobID}
	}
	delete(r.jobs, jobID)
	r.log.Infof("deleted job %s (%s)", jobID, job.JobName)
	r.publish(JobEvent{Type: EventDeleted, Job: job.Clone()})
	return nil
}

// CanDefer reports whether a job may still be shifted in time.
func (r *Registry) CanDefer(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	return job.FlexibilityType.IsFlexible() &&
		job.Status == model.StatusPending &&
		job.MaxDeferralHours > 0
}

// DeadlineApproaching reports whether a pending job must start within
// thresholdHours to still meet its latest finish.
func (r *Registry) DeadlineApproaching(jobID string, thresholdHours float64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != model.StatusPending {
		return false
	}
	remaining := job.LatestFinish.Sub(r.now()).Hours() - job.DurationHours
	return remaining <= thresholdHours
}

func regionAllowed(region model.Region, allowed []model.Region) bool {
	for _, r := range allowed {
		if r == region {
			return true
		}
	}
	return false
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func sortAssets(assets []model.ComputeAsset) {
	sort.Slice(assets, func(i, j int) bool { return assets[i].AssetID < assets[j].AssetID })
}

func sortJobs(jobs []model.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt) })
}
