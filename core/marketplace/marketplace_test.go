package marketplace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/optimizer"
	"github.com/gridflex/gridflex/core/registry"
	"github.com/gridflex/gridflex/core/scheduler"
	"github.com/gridflex/gridflex/infra/logger"
)

var testBase = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeWindows struct {
	byRegion map[model.Region][]optimizer.Candidate
}

func (f *fakeWindows) FindOptimalWindows(_ context.Context, region model.Region,
	_, _ time.Time, _ float64, _, _ *float64) ([]optimizer.Candidate, error) {
	return f.byRegion[region], nil
}

type fakeSignals struct {
	signal model.GridSignal
}

func (f *fakeSignals) CurrentSignal(_ context.Context, _ model.Region) (model.GridSignal, error) {
	return f.signal, nil
}

func (f *fakeSignals) ForecastSignals(_ context.Context, _ model.Region, _ int) ([]model.GridSignal, error) {
	return nil, nil
}

type fixture struct {
	mkt     *Marketplace
	reg     *registry.Registry
	windows *fakeWindows
	store   *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New(logger.NopLogger{}, nil)
	if _, err := reg.RegisterAsset(model.ComputeAsset{
		AssetID:         "dc-manchester-1",
		AssetType:       "datacenter",
		Region:          model.RegionNorthWestEngland,
		MaxPowerKW:      500,
		FlexibilityType: model.FlexibilityDeferrable,
	}); err != nil {
		t.Fatalf("register asset: %v", err)
	}

	windows := &fakeWindows{byRegion: map[model.Region][]optimizer.Candidate{}}
	store := audit.NewMemoryStore()
	signals := &fakeSignals{signal: model.GridSignal{
		Region:                 model.RegionNorthWestEngland,
		CarbonIntensityGPerKWh: 300,
		PricePerKWh:            0.20,
		DataSource:             "carbon_intensity_api",
	}}

	sched := scheduler.New(signals, windows, reg, store, metrics.NopSink{}, scheduler.Config{}, logger.NopLogger{})
	mkt := New(reg, windows, sched, store, metrics.NopSink{}, Config{}, logger.NopLogger{})
	mkt.now = func() time.Time { return testBase }
	return &fixture{mkt: mkt, reg: reg, windows: windows, store: store}
}

func (f *fixture) submit(t *testing.T, mutate func(*model.JobSubmission)) model.Job {
	t.Helper()
	sub := model.JobSubmission{
		JobName:          "nightly-training",
		JobType:          "ml_training",
		AssetID:          "dc-manchester-1",
		DurationHours:    4,
		EarliestStart:    testBase,
		LatestFinish:     testBase.Add(24 * time.Hour),
		AllowedRegions:   []model.Region{model.RegionNorthWestEngland, model.RegionScotland},
		FlexibilityType:  model.FlexibilityDeferrable,
		Priority:         model.PriorityNormal,
		EstimatedPowerKW: 200,
	}
	if mutate != nil {
		mutate(&sub)
	}
	job, err := f.reg.SubmitJob(sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return job
}

func TestSearchOffersSlotsWithoutMutatingJobs(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, nil)

	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10, AvgRenewable: 0.7},
	}

	slots, err := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
	slot := slots[0]
	if slot.JobID != job.JobID || slot.Region != model.RegionScotland {
		t.Errorf("slot = %+v", slot)
	}
	if slot.ExpectedEnergyKWh != 800 {
		t.Errorf("energy = %f", slot.ExpectedEnergyKWh)
	}
	// 80 g/kWh * 800kWh = 64kg.
	if slot.ExpectedCarbonKg != 64 {
		t.Errorf("carbon = %f", slot.ExpectedCarbonKg)
	}
	if slot.ProviderID != model.BecknProviderID || slot.ItemType != model.BecknItemType {
		t.Errorf("catalog metadata = %q %q", slot.ProviderID, slot.ItemType)
	}
	if slot.RenewableFraction != 0.7 {
		t.Errorf("renewable = %f", slot.RenewableFraction)
	}

	got, _ := f.reg.GetJob(job.JobID)
	if got.Status != model.StatusPending {
		t.Errorf("search mutated job to %s", got.Status)
	}
}

func TestSearchFiltersByRegionAndFlexibility(t *testing.T) {
	f := newFixture(t)
	f.submit(t, nil)
	f.submit(t, func(sub *model.JobSubmission) {
		sub.JobName = "fixed-run"
		sub.FlexibilityType = model.FlexibilityFixed
	})

	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}
	f.windows.byRegion[model.RegionNorthWestEngland] = []optimizer.Candidate{
		{StartTime: testBase.Add(1 * time.Hour), Score: 0.30, AvgCarbon: 200, AvgPrice: 0.15},
	}

	slots, err := f.mkt.SearchFlexibilitySlots(context.Background(), model.RegionScotland, 24)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Fixed job excluded; deferrable job offered only in scotland.
	if len(slots) != 1 || slots[0].Region != model.RegionScotland {
		t.Fatalf("slots = %+v", slots)
	}

	none, err := f.mkt.SearchFlexibilitySlots(context.Background(), model.RegionLondon, 24)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("london slots = %+v", none)
	}
}

func TestConfirmSlotSchedulesJob(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, nil)

	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}

	slots, _ := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)
	if len(slots) != 1 {
		t.Fatalf("slots = %d", len(slots))
	}

	got, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != model.StatusScheduled {
		t.Errorf("status = %s", got.Status)
	}
	if got.JobID != job.JobID {
		t.Errorf("job = %s", got.JobID)
	}

	recs, _ := f.store.Query(context.Background(), audit.Query{DecisionType: audit.DecisionConfirm})
	if len(recs) != 1 {
		t.Fatalf("confirm records = %d, want 1", len(recs))
	}
}

func TestConfirmSlotTwice(t *testing.T) {
	f := newFixture(t)
	f.submit(t, nil)

	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}

	slots, _ := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)
	if _, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID)
	if !errors.Is(err, ErrSlotExpired) {
		t.Fatalf("second confirm err = %v, want ErrSlotExpired", err)
	}
}

func TestConfirmSlotJobMismatch(t *testing.T) {
	f := newFixture(t)
	f.submit(t, nil)
	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}

	slots, _ := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)
	_, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, "job_other")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// Mismatch must not consume the offer.
	if _, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID); err != nil {
		t.Fatalf("confirm after mismatch: %v", err)
	}
}

func TestConfirmUnknownSlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.mkt.ConfirmSlot(context.Background(), "slot_missing", "job_missing")
	var nf *model.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestConfirmSlotPastTTL(t *testing.T) {
	f := newFixture(t)
	f.submit(t, nil)
	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}

	slots, _ := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)
	f.mkt.now = func() time.Time { return testBase.Add(31 * time.Minute) }

	_, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID)
	if !errors.Is(err, ErrSlotExpired) {
		t.Fatalf("err = %v, want ErrSlotExpired", err)
	}
}

func TestConfirmSlotInfeasibleAfterDataShift(t *testing.T) {
	f := newFixture(t)
	f.submit(t, nil)
	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(2 * time.Hour), Score: 0.15, AvgCarbon: 80, AvgPrice: 0.10},
	}

	slots, _ := f.mkt.SearchFlexibilitySlots(context.Background(), "", 24)

	// Fresh data no longer offers the slot's start time.
	f.windows.byRegion[model.RegionScotland] = []optimizer.Candidate{
		{StartTime: testBase.Add(8 * time.Hour), Score: 0.25, AvgCarbon: 150, AvgPrice: 0.14},
	}

	_, err := f.mkt.ConfirmSlot(context.Background(), slots[0].SlotID, slots[0].JobID)
	if !errors.Is(err, ErrSlotInfeasible) {
		t.Fatalf("err = %v, want ErrSlotInfeasible", err)
	}
	got := f.reg.PendingJobs()
	if len(got) != 1 {
		t.Errorf("failed confirm mutated the job queue: %+v", got)
	}
}
