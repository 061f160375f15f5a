package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridflex/gridflex/core/model"
)

// ErrUpstreamUnavailable is returned once the bounded retry policy has
// been exhausted against the grid signal source.
var ErrUpstreamUnavailable = errors.New("grid signal source unavailable")

// ErrorKind classifies a failed upstream call.
type ErrorKind int

const (
	KindRateLimited ErrorKind = iota
	KindServerError
	KindTimeout
	KindClientError
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	default:
		return "client_error"
	}
}

// SourceError wraps an upstream failure with its kind. RateLimited,
// ServerError and Timeout are retried; ClientError surfaces immediately.
type SourceError struct {
	API  string
	Kind ErrorKind
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.API, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *SourceError) Retryable() bool { return e.Kind != KindClientError }

// IntensityReading is the raw carbon intensity payload. Either field may
// be missing when the upstream response is incomplete.
type IntensityReading struct {
	Actual   *float64
	Forecast *float64
}

// IntensityPeriod is one half-hour block of the carbon intensity forecast.
type IntensityPeriod struct {
	From     time.Time
	To       time.Time
	Forecast *float64
}

// FuelShare is one entry of the generation mix.
type FuelShare struct {
	Fuel string
	Perc float64
}

// PricePoint is one half-hour block of the price forecast.
type PricePoint struct {
	Timestamp   time.Time
	PricePerKWh float64
}

// Source supplies raw grid data. Implementations talk to the external
// providers; the aggregator owns retry, caching and normalization.
type Source interface {
	FetchCurrentIntensity(ctx context.Context, region model.Region) (IntensityReading, error)
	FetchIntensityForecast(ctx context.Context, horizonHours int) ([]IntensityPeriod, error)
	FetchGenerationMix(ctx context.Context, region model.Region) ([]FuelShare, error)
	// FetchCurrentPrice returns nil when no price is currently published.
	FetchCurrentPrice(ctx context.Context, region model.Region) (*float64, error)
	FetchPriceForecast(ctx context.Context, region model.Region, horizonHours int) ([]PricePoint, error)
	FetchDemand(ctx context.Context) (*float64, error)
	FetchFrequency(ctx context.Context) (*float64, error)
}
