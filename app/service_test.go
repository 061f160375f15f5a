package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridflex/gridflex/config"
	coremetrics "github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/infra/mqtt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Audit.Backend = "memory"
	cfg.Audit.Path = ""
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	svc, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	if svc.Registry == nil || svc.Scheduler == nil || svc.Marketplace == nil {
		t.Fatal("missing core components")
	}
	if svc.Signals == nil || svc.Optimizer == nil || svc.Audit == nil {
		t.Fatal("missing signal components")
	}
}

func TestNewJSONLAudit(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Backend = "jsonl"
	cfg.Audit.Path = filepath.Join(t.TempDir(), "decisions.log")

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBuildAuditStoreUnknownBackend(t *testing.T) {
	if _, err := buildAuditStore(config.AuditConfig{Backend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildSinkDefaultsToNop(t *testing.T) {
	sink, err := buildSink(coremetrics.Config{})
	if err != nil {
		t.Fatalf("build sink: %v", err)
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
}

func TestPublishSchedulesBridge(t *testing.T) {
	svc, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	pub := &mqtt.MockPublisher{}
	svc.publisher = pub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.publishSchedules(ctx, svc.bus.Subscribe())

	if _, err := svc.Registry.RegisterAsset(model.ComputeAsset{
		AssetID:         "dc-1",
		AssetType:       "gpu_cluster",
		Region:          model.RegionScotland,
		MaxPowerKW:      500,
		FlexibilityType: model.FlexibilityDeferrable,
	}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	start := time.Now().UTC().Add(time.Hour)
	job, err := svc.Registry.SubmitJob(model.JobSubmission{
		JobName:          "nightly-training",
		JobType:          "batch_ml",
		AssetID:          "dc-1",
		DurationHours:    2,
		EarliestStart:    start,
		LatestFinish:     start.Add(12 * time.Hour),
		AllowedRegions:   []model.Region{model.RegionScotland},
		FlexibilityType:  model.FlexibilityDeferrable,
		Priority:         model.PriorityNormal,
		EstimatedPowerKW: 100,
	})
	if err != nil {
		t.Fatalf("submit job: %v", err)
	}

	sched := model.Schedule{
		ScheduleID: "sched_test",
		JobID:      job.JobID,
		Region:     model.RegionScotland,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
	}
	if _, err := svc.Registry.AttachSchedule(job.JobID, sched); err != nil {
		t.Fatalf("attach schedule: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(pub.Jobs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("schedule was never published")
		case <-time.After(10 * time.Millisecond):
		}
	}
	published := pub.Jobs()[0]
	if published.JobID != job.JobID || published.Schedule == nil {
		t.Fatalf("unexpected published job %+v", published)
	}
}
