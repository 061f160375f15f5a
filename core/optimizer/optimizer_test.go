package optimizer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/infra/logger"
)

// fakeForecaster serves a fixed sequence of half-hourly signals per region.
type fakeForecaster struct {
	signals map[model.Region][]model.GridSignal
	err     error
}

func (f *fakeForecaster) ForecastSignals(ctx context.Context, region model.Region, horizonHours int) ([]model.GridSignal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.signals[region], nil
}

// halfHourly builds a forecast with the given carbon intensities starting
// at base, one signal per 30 minutes.
func halfHourly(region model.Region, base time.Time, carbons []float64, price float64) []model.GridSignal {
	out := make([]model.GridSignal, len(carbons))
	for i, c := range carbons {
		out[i] = model.GridSignal{
			Region:                 region,
			Timestamp:              base.Add(time.Duration(i) * 30 * time.Minute),
			CarbonIntensityGPerKWh: c,
			PricePerKWh:            price,
			PricePerMWh:            price * 1000,
			RenewableFraction:      0.4,
			StressLevel:            0.2,
		}
	}
	return out
}

func TestFindOptimalWindowsPicksCleanest(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// carbon dips in the middle of the window
	carbons := []float64{400, 400, 100, 100, 100, 100, 400, 400}
	fc := &fakeForecaster{signals: map[model.Region][]model.GridSignal{
		model.RegionLondon: halfHourly(model.RegionLondon, base, carbons, 0.15),
	}}
	o := New(fc, logger.NopLogger{})
	o.now = func() time.Time { return base }

	windows, err := o.FindOptimalWindows(context.Background(), model.RegionLondon,
		base, base.Add(4*time.Hour), 2, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) == 0 {
		t.Fatalf("expected candidates")
	}
	best := windows[0]
	if !best.StartTime.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected best start at +1h, got %v", best.StartTime)
	}
	if math.Abs(best.AvgCarbon-100) > 1e-9 {
		t.Fatalf("expected avg carbon 100, got %f", best.AvgCarbon)
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Score < windows[i-1].Score {
			t.Fatalf("candidates not sorted by score")
		}
	}
}

func TestFindOptimalWindowsRespectsCarbonCap(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	carbons := []float64{300, 300, 150, 150, 300, 300}
	fc := &fakeForecaster{signals: map[model.Region][]model.GridSignal{
		model.RegionLondon: halfHourly(model.RegionLondon, base, carbons, 0.15),
	}}
	o := New(fc, logger.NopLogger{})
	o.now = func() time.Time { return base }

	cap := 200.0
	windows, err := o.FindOptimalWindows(context.Background(), model.RegionLondon,
		base, base.Add(3*time.Hour), 1, &cap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, w := range windows {
		if w.AvgCarbon > cap {
			t.Fatalf("candidate exceeds carbon cap: %f", w.AvgCarbon)
		}
	}
	if len(windows) == 0 {
		t.Fatalf("expected at least the 150g window")
	}
}

func TestFindOptimalWindowsNeverExtendsPastWindowEnd(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	carbons := []float64{100, 100, 100, 100}
	fc := &fakeForecaster{signals: map[model.Region][]model.GridSignal{
		model.RegionLondon: halfHourly(model.RegionLondon, base, carbons, 0.15),
	}}
	o := New(fc, logger.NopLogger{})
	o.now = func() time.Time { return base }

	windowEnd := base.Add(2 * time.Hour)
	windows, err := o.FindOptimalWindows(context.Background(), model.RegionLondon,
		base, windowEnd, 1, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, w := range windows {
		if w.StartTime.Add(time.Hour).After(windowEnd) {
			t.Fatalf("candidate %v extends past window end", w.StartTime)
		}
	}
}

func TestFindOptimalWindowsEmptyForecast(t *testing.T) {
	fc := &fakeForecaster{signals: map[model.Region][]model.GridSignal{}}
	o := New(fc, logger.NopLogger{})
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return base }

	windows, err := o.FindOptimalWindows(context.Background(), model.RegionLondon,
		base, base.Add(4*time.Hour), 2, nil, nil)
	if err != nil {
		t.Fatalf("no data is not an error: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("expected no candidates, got %d", len(windows))
	}
}

func TestCompareRegionsOmitsMissingData(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeForecaster{signals: map[model.Region][]model.GridSignal{
		model.RegionScotland: halfHourly(model.RegionScotland, base, []float64{50, 50, 50, 50}, 0.08),
		model.RegionLondon:   halfHourly(model.RegionLondon, base, []float64{300, 300, 300, 300}, 0.20),
	}}
	o := New(fc, logger.NopLogger{})
	o.now = func() time.Time { return base }

	cmp, err := o.CompareRegions(context.Background(),
		[]model.Region{model.RegionScotland, model.RegionLondon, model.RegionWales},
		base, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmp) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(cmp))
	}
	if _, ok := cmp[model.RegionWales]; ok {
		t.Fatalf("region without data must be omitted")
	}
	if cmp[model.RegionScotland].Score >= cmp[model.RegionLondon].Score {
		t.Fatalf("scotland should score better than london")
	}
}
