package signal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/internal/cache"
)

// Documented fallbacks applied when upstream data is malformed or absent.
const (
	defaultCarbonIntensity   = 250.0
	defaultPricePerKWh       = 0.15
	defaultRenewableFraction = 0.3
)

// renewableFuels are the fuel tags counted towards the renewable fraction.
var renewableFuels = map[string]struct{}{
	"wind": {}, "solar": {}, "hydro": {}, "biomass": {},
}

// dataSources names the upstream providers contributing to each signal.
var dataSources = "carbon_intensity_api,octopus_agile_api,national_grid_eso"

// Config holds aggregator tuning knobs.
type Config struct {
	// MaxAttempts bounds the retry loop per upstream call.
	MaxAttempts int `json:"max_attempts"`
	// InitialBackoffMS seeds the exponential backoff between attempts.
	InitialBackoffMS int `json:"initial_backoff_ms"`
	// SpotTTLMinutes is the cache lifetime for current signals.
	SpotTTLMinutes int `json:"spot_ttl_minutes"`
	// ForecastTTLMinutes is the cache lifetime for forecast sequences.
	ForecastTTLMinutes int `json:"forecast_ttl_minutes"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoffMS <= 0 {
		c.InitialBackoffMS = 500
	}
	if c.SpotTTLMinutes <= 0 {
		c.SpotTTLMinutes = 30
	}
	if c.ForecastTTLMinutes <= 0 {
		c.ForecastTTLMinutes = 60
	}
}

// Aggregator normalizes heterogeneous upstream responses into GridSignal
// values and forecast sequences. It never fabricates carbon or price
// numbers beyond the documented fallbacks.
type Aggregator struct {
	src   Source
	cache *cache.TTLCache
	cfg   Config
	log   logger.Logger
	rec   metrics.UpstreamRecorder
	now   func() time.Time
}

// New creates an Aggregator. rec may be nil when upstream calls need not
// be recorded.
func New(src Source, cfg Config, log logger.Logger, rec metrics.UpstreamRecorder) *Aggregator {
	cfg.SetDefaults()
	return &Aggregator{
		src:   src,
		cache: cache.New(),
		cfg:   cfg,
		log:   log,
		rec:   rec,
		now:   time.Now,
	}
}

// CurrentSignal returns the current grid signal for a region, aggregating
// carbon intensity, generation mix, price, demand and frequency.
func (a *Aggregator) CurrentSignal(ctx context.Context, region model.Region) (model.GridSignal, error) {
	key := fmt.Sprintf("current:%s", region)
	if v, ok := a.cache.Get(key); ok {
		return v.(model.GridSignal), nil
	}

	reading, err := fetchRetry(ctx, a, "current_intensity", func(ctx context.Context) (IntensityReading, error) {
		return a.src.FetchCurrentIntensity(ctx, region)
	})
	if err != nil {
		return model.GridSignal{}, err
	}
	carbon := extractCarbon(reading)

	mixShares, err := fetchRetry(ctx, a, "generation_mix", func(ctx context.Context) ([]FuelShare, error) {
		return a.src.FetchGenerationMix(ctx, region)
	})
	if err != nil {
		a.log.Warnf("generation mix unavailable for %s: %v", region, err)
		mixShares = nil
	}
	mix, renewable := summarizeMix(mixShares)

	price, err := fetchRetry(ctx, a, "current_price", func(ctx context.Context) (*float64, error) {
		return a.src.FetchCurrentPrice(ctx, region)
	})
	pricePerKWh := defaultPricePerKWh
	if err != nil || price == nil {
		a.log.Warnf("using fallback price for %s", region)
	} else {
		pricePerKWh = *price
	}

	demand, err := fetchRetry(ctx, a, "demand", func(ctx context.Context) (*float64, error) {
		return a.src.FetchDemand(ctx)
	})
	if err != nil {
		demand = nil
	}
	freq, err := fetchRetry(ctx, a, "frequency", func(ctx context.Context) (*float64, error) {
		return a.src.FetchFrequency(ctx)
	})
	if err != nil {
		freq = nil
	}

	sig := model.GridSignal{
		Region:                 region,
		Timestamp:              a.now(),
		CarbonIntensityGPerKWh: carbon,
		PricePerKWh:            pricePerKWh,
		PricePerMWh:            pricePerKWh * 1000,
		GenerationMix:          mix,
		RenewableFraction:      renewable,
		DemandMW:               demand,
		FrequencyHz:            freq,
		StressLevel:            stressLevel(carbon, demand, freq),
		DataSource:             dataSources,
	}
	a.cache.Set(key, sig, time.Duration(a.cfg.SpotTTLMinutes)*time.Minute)
	a.log.Debugw("grid signal", map[string]any{
		"region":    region.String(),
		"carbon":    carbon,
		"price":     pricePerKWh,
		"renewable": renewable,
	})
	return sig, nil
}

// ForecastSignals returns forecast signals for the next horizonHours,
// ordered by timestamp ascending at half-hour cadence.
func (a *Aggregator) ForecastSignals(ctx context.Context, region model.Region, horizonHours int) ([]model.GridSignal, error) {
	key := fmt.Sprintf("forecast:%s:%d", region, horizonHours)
	if v, ok := a.cache.Get(key); ok {
		return v.([]model.GridSignal), nil
	}

	periods, err := fetchRetry(ctx, a, "intensity_forecast", func(ctx context.Context) ([]IntensityPeriod, error) {
		return a.src.FetchIntensityForecast(ctx, horizonHours)
	})
	if err != nil {
		return nil, err
	}

	prices, err := fetchRetry(ctx, a, "price_forecast", func(ctx context.Context) ([]PricePoint, error) {
		return a.src.FetchPriceForecast(ctx, region, horizonHours)
	})
	if err != nil {
		a.log.Warnf("price forecast unavailable for %s: %v", region, err)
		prices = nil
	}

	signals := make([]model.GridSignal, 0, len(periods))
	for _, p := range periods {
		carbon := defaultCarbonIntensity
		if p.Forecast != nil {
			carbon = *p.Forecast
		}
		price := matchPrice(prices, p.From)
		cf := carbon
		signals = append(signals, model.GridSignal{
			Region:                 region,
			Timestamp:              p.From,
			CarbonIntensityGPerKWh: carbon,
			CarbonForecast:         &cf,
			PricePerKWh:            price,
			PricePerMWh:            price * 1000,
			GenerationMix:          map[string]float64{},
			RenewableFraction:      estimateRenewable(carbon),
			StressLevel:            estimateStressFromTime(p.From),
			DataSource:             "carbon_intensity_api,octopus_agile_api",
		})
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Timestamp.Before(signals[j].Timestamp)
	})
	a.cache.Set(key, signals, time.Duration(a.cfg.ForecastTTLMinutes)*time.Minute)
	a.log.Infof("generated %d forecast signals for %s", len(signals), region)
	return signals, nil
}

// fetchRetry applies the bounded exponential backoff policy to an
// upstream call. ClientError aborts immediately; a cancelled context
// aborts the loop and surfaces ErrUpstreamUnavailable.
func fetchRetry[T any](ctx context.Context, a *Aggregator, api string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	attempts := 0
	start := a.now()

	pol := backoff.NewExponentialBackOff()
	pol.InitialInterval = time.Duration(a.cfg.InitialBackoffMS) * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(pol, uint64(a.cfg.MaxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			var se *SourceError
			if errors.As(err, &se) && !se.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}, b)

	if a.rec != nil {
		_ = a.rec.RecordUpstreamEvent(metrics.UpstreamEvent{
			API:      api,
			Attempts: attempts,
			Success:  err == nil,
			Duration: a.now().Sub(start),
			Time:     a.now(),
		})
	}
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) && !se.Retryable() {
			return out, err
		}
		return out, fmt.Errorf("%s after %d attempts: %w", api, attempts, ErrUpstreamUnavailable)
	}
	return out, nil
}

// extractCarbon prefers an actual reading, falls back to the forecast and
// finally to the documented default.
func extractCarbon(r IntensityReading) float64 {
	if r.Actual != nil {
		return *r.Actual
	}
	if r.Forecast != nil {
		return *r.Forecast
	}
	return defaultCarbonIntensity
}

// summarizeMix converts fuel shares into the generation-mix map and the
// renewable fraction. The shares are summed as reported; upstream noise
// means they need not total 100.
func summarizeMix(shares []FuelShare) (map[string]float64, float64) {
	if len(shares) == 0 {
		return map[string]float64{}, defaultRenewableFraction
	}
	mix := make(map[string]float64, len(shares))
	total := 0.0
	for _, s := range shares {
		mix[s.Fuel] = s.Perc
		if _, ok := renewableFuels[s.Fuel]; ok {
			total += s.Perc
		}
	}
	frac := total / 100.0
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return mix, frac
}

// matchPrice finds the forecast price within half an hour of ts.
func matchPrice(prices []PricePoint, ts time.Time) float64 {
	for _, p := range prices {
		if math.Abs(ts.Sub(p.Timestamp).Seconds()) < 1800 {
			return p.PricePerKWh
		}
	}
	return defaultPricePerKWh
}

// stressLevel computes the additive 0-1 grid stress score. Carbon
// contributes up to 0.5, demand up to 0.3 and frequency deviation from
// 50 Hz up to 0.2; missing demand or frequency contribute 0.
func stressLevel(carbon float64, demandMW, frequencyHz *float64) float64 {
	stress := 0.0
	switch {
	case carbon > 400:
		stress += 0.5
	case carbon > 300:
		stress += 0.3
	case carbon > 200:
		stress += 0.1
	}
	if demandMW != nil {
		switch {
		case *demandMW > 40000:
			stress += 0.3
		case *demandMW > 35000:
			stress += 0.2
		case *demandMW > 30000:
			stress += 0.1
		}
	}
	if frequencyHz != nil {
		dev := math.Abs(*frequencyHz - 50.0)
		switch {
		case dev > 0.2:
			stress += 0.2
		case dev > 0.1:
			stress += 0.1
		}
	}
	return math.Min(stress, 1.0)
}

// estimateRenewable maps carbon intensity to a renewable fraction when
// the forecast lacks a generation mix.
func estimateRenewable(carbon float64) float64 {
	switch {
	case carbon < 100:
		return 0.7
	case carbon < 200:
		return 0.5
	case carbon < 300:
		return 0.3
	default:
		return 0.15
	}
}

// estimateStressFromTime maps local time of day to an expected stress
// level: evening peak is high, work hours medium, night low.
func estimateStressFromTime(ts time.Time) float64 {
	hour := ts.Hour()
	switch {
	case hour >= 17 && hour < 20:
		return 0.8
	case (hour >= 8 && hour < 17) || (hour >= 20 && hour < 22):
		return 0.5
	default:
		return 0.2
	}
}
