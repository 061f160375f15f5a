package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/infra/logger"
)

type stubAssets struct {
	asset model.ComputeAsset
	err   error
}

func (s stubAssets) GetAsset(string) (model.ComputeAsset, error) { return s.asset, s.err }

func newTestManager(assets AssetDirectory) *Manager {
	return &Manager{
		assets: assets,
		log:    logger.NopLogger{},
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_asset_power_kw"}, []string{"asset_id"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_asset_utilization"}, []string{"asset_id"}),
		reports:    prometheus.NewCounter(prometheus.CounterOpts{Name: "test_reports_total"}),
		badReports: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_bad_reports_total"}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_last_report"}),
	}
}

func TestProcess(t *testing.T) {
	mgr := newTestManager(nil)
	payload := []byte(`{"asset_id":"dc-1","power_kw":320,"utilization":0.8,"job_id":"job_x"}`)
	if err := mgr.process(payload, ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	if v := testutil.ToFloat64(mgr.power.WithLabelValues("dc-1")); v != 320 {
		t.Fatalf("power = %v", v)
	}
	if v := testutil.ToFloat64(mgr.utilization.WithLabelValues("dc-1")); v != 0.8 {
		t.Fatalf("utilization = %v", v)
	}
	if v := testutil.ToFloat64(mgr.reports); v != 1 {
		t.Fatalf("reports = %v", v)
	}
}

func TestProcessFromTopic(t *testing.T) {
	mgr := newTestManager(nil)
	payload := []byte(`{"power_kw":10,"utilization":1.5}`)
	if err := mgr.process(payload, "gridflex/telemetry/dc-9"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if v := testutil.ToFloat64(mgr.utilization.WithLabelValues("dc-9")); v != 1 {
		t.Fatalf("expected utilization clamp to 1, got %v", v)
	}
}

func TestProcessClampsToAssetRating(t *testing.T) {
	mgr := newTestManager(stubAssets{asset: model.ComputeAsset{AssetID: "dc-1", MaxPowerKW: 500}})
	payload := []byte(`{"asset_id":"dc-1","power_kw":900}`)
	if err := mgr.process(payload, ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	if v := testutil.ToFloat64(mgr.power.WithLabelValues("dc-1")); v != 500 {
		t.Fatalf("expected clamp to rating, got %v", v)
	}
}

func TestProcessBadPayload(t *testing.T) {
	mgr := newTestManager(nil)
	if err := mgr.process([]byte("not json"), "gridflex/telemetry/dc-1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractID(t *testing.T) {
	if id := extractID("gridflex/telemetry/dc-42"); id != "dc-42" {
		t.Fatalf("unexpected id %s", id)
	}
}
