package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/optimizer"
)

// ErrSlotExpired is returned when confirming a slot that was retired,
// aged out, or whose job is no longer pending.
var ErrSlotExpired = errors.New("slot expired")

// ErrSlotInfeasible is returned when the slot's window no longer holds
// against fresh grid data.
var ErrSlotInfeasible = errors.New("slot no longer feasible")

// JobDirectory is the registry surface the marketplace reads. Search
// never mutates jobs.
type JobDirectory interface {
	GetJob(jobID string) (model.Job, error)
	PendingJobs() []model.Job
}

// WindowFinder ranks candidate start windows for a job.
type WindowFinder interface {
	FindOptimalWindows(ctx context.Context, region model.Region,
		windowStart, windowEnd time.Time, durationHours float64,
		carbonCap, maxPrice *float64) ([]optimizer.Candidate, error)
}

// JobScheduler commits a job to a schedule on confirmation.
type JobScheduler interface {
	ScheduleJob(ctx context.Context, jobID string) (model.Job, error)
}

// Config tunes the marketplace adapter.
type Config struct {
	// SlotTTLMinutes is how long an offered slot stays confirmable.
	SlotTTLMinutes int `json:"slot_ttl_minutes"`
	// CarbonValueGBPPerKg monetizes avoided carbon in the advertised
	// flexibility value.
	CarbonValueGBPPerKg float64 `json:"carbon_value_gbp_per_kg"`
}

func (c *Config) SetDefaults() {
	if c.SlotTTLMinutes == 0 {
		c.SlotTTLMinutes = 30
	}
	if c.CarbonValueGBPPerKg == 0 {
		c.CarbonValueGBPPerKg = 0.05
	}
}

type offeredSlot struct {
	slot    model.BecknSlot
	created time.Time
	retired bool
}

// Marketplace exposes pending flexible jobs as discoverable slots in a
// Beckn-style search/confirm flow. Search is read-only; only confirm
// commits a job.
type Marketplace struct {
	jobs    JobDirectory
	windows WindowFinder
	sched   JobScheduler
	auditor audit.Store
	rec     metrics.SlotRecorder
	cfg     Config
	log     logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	slots map[string]*offeredSlot
}

// New creates a Marketplace adapter.
func New(jobs JobDirectory, windows WindowFinder, sched JobScheduler,
	auditor audit.Store, rec metrics.SlotRecorder, cfg Config, log logger.Logger) *Marketplace {
	cfg.SetDefaults()
	return &Marketplace{
		jobs:    jobs,
		windows: windows,
		sched:   sched,
		auditor: auditor,
		rec:     rec,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		slots:   make(map[string]*offeredSlot),
	}
}

// SearchFlexibilitySlots offers one slot per pending flexible job whose
// best window falls within the next hoursAhead. region narrows the
// search; the zero value searches every allowed region. Jobs are not
// mutated.
func (m *Marketplace) SearchFlexibilitySlots(ctx context.Context, region model.Region, hoursAhead int) ([]model.BecknSlot, error) {
	if hoursAhead <= 0 {
		hoursAhead = 24
	}
	now := m.now()
	searchEnd := now.Add(time.Duration(hoursAhead) * time.Hour)

	var offers []model.BecknSlot
	for _, job := range m.jobs.PendingJobs() {
		if !job.FlexibilityType.IsFlexible() {
			continue
		}
		if region != "" && !job.AllowsRegion(region) {
			continue
		}

		windowStart := job.EarliestStart
		if windowStart.Before(now) {
			windowStart = now
		}
		windowEnd := job.LatestFinish
		if windowEnd.After(searchEnd) {
			windowEnd = searchEnd
		}
		if !windowEnd.After(windowStart) {
			continue
		}

		searchRegions := job.AllowedRegions
		if region != "" {
			searchRegions = []model.Region{region}
		}

		best, bestRegion, found := m.bestWindow(ctx, job, searchRegions, windowStart, windowEnd)
		if !found {
			continue
		}

		slot := m.buildSlot(job, bestRegion, best)
		m.mu.Lock()
		m.slots[slot.SlotID] = &offeredSlot{slot: slot, created: now}
		m.mu.Unlock()
		offers = append(offers, slot)

		m.emit(metrics.SlotEvent{SlotID: slot.SlotID, JobID: job.JobID, Region: bestRegion, Action: "search", Success: true})
	}
	m.log.Infof("slot search (%s, %dh ahead): %d offers", regionLabel(region), hoursAhead, len(offers))
	return offers, nil
}

func (m *Marketplace) bestWindow(ctx context.Context, job model.Job,
	regions []model.Region, windowStart, windowEnd time.Time) (optimizer.Candidate, model.Region, bool) {

	var best optimizer.Candidate
	var bestRegion model.Region
	found := false
	for _, region := range regions {
		cands, err := m.windows.FindOptimalWindows(ctx, region, windowStart, windowEnd,
			job.DurationHours, job.CarbonCapGPerKWh, job.MaxPricePerKWh)
		if err != nil {
			m.log.Warnf("slot search in %s for job %s: %v", region, job.JobID, err)
			continue
		}
		for _, c := range cands {
			if !found || c.Score < best.Score ||
				(c.Score == best.Score && c.StartTime.Before(best.StartTime)) {
				best = c
				bestRegion = region
				found = true
			}
		}
	}
	return best, bestRegion, found
}

func (m *Marketplace) buildSlot(job model.Job, region model.Region, best optimizer.Candidate) model.BecknSlot {
	energy := job.EstimatedEnergyKWh()
	carbonKg := best.AvgCarbon * energy / 1000
	costGBP := best.AvgPrice * energy
	return model.BecknSlot{
		SlotID:        "slot_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		JobID:         job.JobID,
		StartTime:     best.StartTime,
		EndTime:       best.StartTime.Add(time.Duration(job.DurationHours * float64(time.Hour))),
		DurationHours: job.DurationHours,
		Region:        region,

		ExpectedEnergyKWh:      energy,
		ExpectedCarbonKg:       carbonKg,
		ExpectedCostGBP:        costGBP,
		CarbonIntensityGPerKWh: best.AvgCarbon,

		FlexibilityValueGBP: m.cfg.CarbonValueGBPPerKg * carbonKg,
		RenewableFraction:   best.AvgRenewable,

		ProviderID: model.BecknProviderID,
		ItemType:   model.BecknItemType,
	}
}

// ConfirmSlot commits the job behind an offered slot. jobID must match
// the job the slot was offered for, the slot must still be live, its job
// still pending, and its window still feasible against fresh grid data.
// On success every other live slot for the same job is retired.
func (m *Marketplace) ConfirmSlot(ctx context.Context, slotID, jobID string) (model.Job, error) {
	m.mu.Lock()
	offer, ok := m.slots[slotID]
	if !ok {
		m.mu.Unlock()
		return model.Job{}, &model.NotFoundError{Kind: "slot", ID: slotID}
	}
	slot := offer.slot
	expired := offer.retired ||
		m.now().Sub(offer.created) > time.Duration(m.cfg.SlotTTLMinutes)*time.Minute
	m.mu.Unlock()

	if jobID != slot.JobID {
		return model.Job{}, model.NewValidationError("slot %s belongs to job %s, not %s", slotID, slot.JobID, jobID)
	}
	if expired {
		m.emit(metrics.SlotEvent{SlotID: slotID, JobID: slot.JobID, Region: slot.Region, Action: "confirm"})
		return model.Job{}, fmt.Errorf("slot %s: %w", slotID, ErrSlotExpired)
	}

	job, err := m.jobs.GetJob(slot.JobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Status != model.StatusPending {
		m.retire(slotID)
		m.emit(metrics.SlotEvent{SlotID: slotID, JobID: slot.JobID, Region: slot.Region, Action: "confirm"})
		return model.Job{}, fmt.Errorf("slot %s: job %s is %s: %w", slotID, job.JobID, job.Status, ErrSlotExpired)
	}

	// Re-derive the window before committing; grid data may have moved
	// since the slot was offered.
	windowStart := job.EarliestStart
	if now := m.now(); windowStart.Before(now) {
		windowStart = now
	}
	cands, err := m.windows.FindOptimalWindows(ctx, slot.Region, windowStart, job.LatestFinish,
		job.DurationHours, job.CarbonCapGPerKWh, job.MaxPricePerKWh)
	if err != nil {
		return model.Job{}, err
	}
	if !containsStart(cands, slot.StartTime) {
		m.emit(metrics.SlotEvent{SlotID: slotID, JobID: slot.JobID, Region: slot.Region, Action: "confirm"})
		return model.Job{}, fmt.Errorf("slot %s: %w", slotID, ErrSlotInfeasible)
	}

	scheduled, err := m.sched.ScheduleJob(ctx, job.JobID)
	if err != nil {
		return model.Job{}, fmt.Errorf("confirming slot %s: %w", slotID, err)
	}

	m.retireJobSlots(job.JobID)
	m.emit(metrics.SlotEvent{SlotID: slotID, JobID: job.JobID, Region: slot.Region, Action: "confirm", Success: true})

	rec := audit.DecisionRecord{
		LogID:        audit.NewLogID(),
		Timestamp:    m.now(),
		JobID:        job.JobID,
		DecisionType: audit.DecisionConfirm,
		Rationale:    fmt.Sprintf("slot %s confirmed for %s starting %s", slotID, slot.Region, slot.StartTime.Format(time.RFC3339)),
		Schedule:     scheduled.Schedule,
	}
	if err := m.auditor.Append(ctx, rec); err != nil {
		m.log.Errorf("audit append for slot %s: %v", slotID, err)
	}
	m.log.Infof("confirmed slot %s for job %s", slotID, job.JobID)
	return scheduled, nil
}

func (m *Marketplace) retire(slotID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offer, ok := m.slots[slotID]; ok {
		offer.retired = true
	}
}

func (m *Marketplace) retireJobSlots(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offer := range m.slots {
		if offer.slot.JobID == jobID {
			offer.retired = true
		}
	}
}

func (m *Marketplace) emit(ev metrics.SlotEvent) {
	ev.Time = m.now()
	if err := m.rec.RecordSlotEvent(ev); err != nil {
		m.log.Warnf("metrics sink: %v", err)
	}
}

func containsStart(cands []optimizer.Candidate, start time.Time) bool {
	for _, c := range cands {
		if c.StartTime.Equal(start) {
			return true
		}
	}
	return false
}

func regionLabel(r model.Region) string {
	if r == "" {
		return "all regions"
	}
	return string(r)
}
