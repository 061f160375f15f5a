package optimizer

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/model"
)

// Scoring weights and normalization constants. 500 g/kWh is treated as
// very dirty, £0.30/kWh as very expensive.
const (
	carbonNorm = 500.0
	priceNorm  = 0.30

	windowCarbonWeight = 0.6
	windowPriceWeight  = 0.3
	windowStressWeight = 0.1

	regionCarbonWeight = 0.7
	regionPriceWeight  = 0.3
)

// Forecaster supplies forecast signal sequences for a region.
type Forecaster interface {
	ForecastSignals(ctx context.Context, region model.Region, horizonHours int) ([]model.GridSignal, error)
}

// Candidate is one feasible start time, scored. Lower scores are better.
type Candidate struct {
	StartTime    time.Time `json:"start_time"`
	Score        float64   `json:"score"`
	AvgCarbon    float64   `json:"avg_carbon"`
	AvgPrice     float64   `json:"avg_price"`
	AvgRenewable float64   `json:"avg_renewable"`
}

// RegionMetrics summarizes a region's conditions over a fixed window.
type RegionMetrics struct {
	AvgCarbon    float64 `json:"avg_carbon"`
	AvgPrice     float64 `json:"avg_price"`
	AvgRenewable float64 `json:"avg_renewable"`
	Score        float64 `json:"score"`
}

// Optimizer searches candidate start times over the forecast horizon.
type Optimizer struct {
	fc  Forecaster
	log logger.Logger
	now func() time.Time
}

// New creates an Optimizer backed by the given forecaster.
func New(fc Forecaster, log logger.Logger) *Optimizer {
	return &Optimizer{fc: fc, log: log, now: time.Now}
}

// FindOptimalWindows ranks start times for a job of durationHours within
// [windowStart, windowEnd], best first. Candidates violating carbonCap or
// maxPrice are discarded. An empty result signals no feasible window and
// is not an error.
func (o *Optimizer) FindOptimalWindows(
	ctx context.Context,
	region model.Region,
	windowStart, windowEnd time.Time,
	durationHours float64,
	carbonCap, maxPrice *float64,
) ([]Candidate, error) {
	horizon := int(windowEnd.Sub(o.now()).Hours()) + 24
	forecast, err := o.fc.ForecastSignals(ctx, region, horizon)
	if err != nil {
		return nil, err
	}

	var relevant []model.GridSignal
	for _, s := range forecast {
		if !s.Timestamp.Before(windowStart) && !s.Timestamp.After(windowEnd) {
			relevant = append(relevant, s)
		}
	}
	if len(relevant) == 0 {
		o.log.Warnf("no forecast data for %s in window", region)
		return nil, nil
	}

	duration := time.Duration(durationHours * float64(time.Hour))
	var candidates []Candidate
	for _, s := range relevant {
		start := s.Timestamp
		end := start.Add(duration)
		if end.After(windowEnd) {
			continue
		}
		covering := signalsIn(relevant, start, end)
		if len(covering) == 0 {
			continue
		}

		avgCarbon := meanOf(covering, func(s model.GridSignal) float64 { return s.CarbonIntensityGPerKWh })
		avgPrice := meanOf(covering, func(s model.GridSignal) float64 { return s.PricePerKWh })
		avgStress := meanOf(covering, func(s model.GridSignal) float64 { return s.StressLevel })
		avgRenewable := meanOf(covering, func(s model.GridSignal) float64 { return s.RenewableFraction })

		if carbonCap != nil && avgCarbon > *carbonCap {
			continue
		}
		if maxPrice != nil && avgPrice > *maxPrice {
			continue
		}

		score := windowCarbonWeight*(avgCarbon/carbonNorm) +
			windowPriceWeight*(avgPrice/priceNorm) +
			windowStressWeight*avgStress

		candidates = append(candidates, Candidate{
			StartTime:    start,
			Score:        score,
			AvgCarbon:    avgCarbon,
			AvgPrice:     avgPrice,
			AvgRenewable: avgRenewable,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})
	if len(candidates) > 0 {
		best := candidates[0]
		o.log.Infow("best window", map[string]any{
			"region": region.String(),
			"start":  best.StartTime,
			"score":  best.Score,
			"carbon": best.AvgCarbon,
		})
	}
	return candidates, nil
}

// CompareRegions evaluates a fixed window across regions. Regions with no
// covering forecast data are omitted, not erred.
func (o *Optimizer) CompareRegions(
	ctx context.Context,
	regions []model.Region,
	startTime time.Time,
	durationHours float64,
) (map[model.Region]RegionMetrics, error) {
	endTime := startTime.Add(time.Duration(durationHours * float64(time.Hour)))
	comparison := make(map[model.Region]RegionMetrics)

	for _, region := range regions {
		horizon := int(endTime.Sub(o.now()).Hours()) + 1
		forecast, err := o.fc.ForecastSignals(ctx, region, horizon)
		if err != nil {
			o.log.Errorf("comparing region %s: %v", region, err)
			continue
		}
		covering := signalsIn(forecast, startTime, endTime)
		if len(covering) == 0 {
			o.log.Warnf("no forecast data for %s", region)
			continue
		}
		avgCarbon := meanOf(covering, func(s model.GridSignal) float64 { return s.CarbonIntensityGPerKWh })
		avgPrice := meanOf(covering, func(s model.GridSignal) float64 { return s.PricePerKWh })
		avgRenewable := meanOf(covering, func(s model.GridSignal) float64 { return s.RenewableFraction })

		comparison[region] = RegionMetrics{
			AvgCarbon:    avgCarbon,
			AvgPrice:     avgPrice,
			AvgRenewable: avgRenewable,
			Score:        regionCarbonWeight*(avgCarbon/carbonNorm) + regionPriceWeight*(avgPrice/priceNorm),
		}
	}
	return comparison, nil
}

// signalsIn returns the signals with timestamp in [start, end).
func signalsIn(signals []model.GridSignal, start, end time.Time) []model.GridSignal {
	var out []model.GridSignal
	for _, s := range signals {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	return out
}

func meanOf(signals []model.GridSignal, f func(model.GridSignal) float64) float64 {
	xs := make([]float64, len(signals))
	for i, s := range signals {
		xs[i] = f(s)
	}
	return stat.Mean(xs, nil)
}
