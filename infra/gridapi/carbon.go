package gridapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/signal"
)

const apiCarbon = "carbon_intensity_api"

// regionIDs maps scheduling regions to Carbon Intensity API region ids.
// Unknown regions fall back to London.
var regionIDs = map[model.Region]int{
	model.RegionScotland:         1,
	model.RegionNorthScotland:    1,
	model.RegionSouthScotland:    1,
	model.RegionNorthEngland:     2,
	model.RegionNorthEastEngland: 3,
	model.RegionNorthWestEngland: 4,
	model.RegionYorkshire:        5,
	model.RegionWales:            6,
	model.RegionNorthWales:       6,
	model.RegionSouthWales:       7,
	model.RegionWestMidlands:     8,
	model.RegionEastMidlands:     9,
	model.RegionEastEngland:      10,
	model.RegionLondon:           11,
	model.RegionSouthEngland:     12,
	model.RegionSouthEastEngland: 13,
	model.RegionSouthWestEngland: 14,
}

func carbonRegionID(region model.Region) int {
	if id, ok := regionIDs[region]; ok {
		return id
	}
	return regionIDs[model.RegionLondon]
}

type intensityBlock struct {
	Forecast *float64 `json:"forecast"`
	Actual   *float64 `json:"actual"`
	Index    string   `json:"index"`
}

type fuelBlock struct {
	Fuel string  `json:"fuel"`
	Perc float64 `json:"perc"`
}

type periodBlock struct {
	From          string         `json:"from"`
	To            string         `json:"to"`
	Intensity     intensityBlock `json:"intensity"`
	GenerationMix []fuelBlock    `json:"generationmix"`
}

type regionalResponse struct {
	Data []struct {
		RegionID int           `json:"regionid"`
		Data     []periodBlock `json:"data"`
	} `json:"data"`
}

type forecastResponse struct {
	Data []periodBlock `json:"data"`
}

// FetchCurrentIntensity returns the latest regional intensity reading.
func (c *Client) FetchCurrentIntensity(ctx context.Context, region model.Region) (signal.IntensityReading, error) {
	u := fmt.Sprintf("%s/regional/regionid/%d", c.cfg.CarbonBaseURL, carbonRegionID(region))
	var resp regionalResponse
	if err := c.getJSON(ctx, apiCarbon, u, nil, &resp); err != nil {
		return signal.IntensityReading{}, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Data) == 0 {
		return signal.IntensityReading{}, nil
	}
	block := resp.Data[0].Data[0].Intensity
	return signal.IntensityReading{Actual: block.Actual, Forecast: block.Forecast}, nil
}

// FetchIntensityForecast returns the national half-hourly forecast for
// the next horizonHours.
func (c *Client) FetchIntensityForecast(ctx context.Context, horizonHours int) ([]signal.IntensityPeriod, error) {
	u := c.cfg.CarbonBaseURL + "/intensity/date"
	var resp forecastResponse
	if err := c.getJSON(ctx, apiCarbon, u, nil, &resp); err != nil {
		return nil, err
	}

	// The API publishes 30-minute blocks.
	limit := horizonHours * 2
	var periods []signal.IntensityPeriod
	for _, block := range resp.Data {
		if len(periods) == limit {
			break
		}
		from, err := parseCarbonTime(block.From)
		if err != nil {
			c.log.Warnf("skipping forecast block with bad timestamp %q: %v", block.From, err)
			continue
		}
		to, err := parseCarbonTime(block.To)
		if err != nil {
			to = from.Add(30 * time.Minute)
		}
		periods = append(periods, signal.IntensityPeriod{
			From:     from,
			To:       to,
			Forecast: block.Intensity.Forecast,
		})
	}
	return periods, nil
}

// FetchGenerationMix returns the regional fuel mix for the current
// half-hour.
func (c *Client) FetchGenerationMix(ctx context.Context, region model.Region) ([]signal.FuelShare, error) {
	from := c.now().UTC().Format("2006-01-02T15:04Z")
	u := fmt.Sprintf("%s/regional/intensity/%s/fw24h/regionid/%d",
		c.cfg.CarbonBaseURL, from, carbonRegionID(region))

	var resp struct {
		Data struct {
			RegionID int           `json:"regionid"`
			Data     []periodBlock `json:"data"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, apiCarbon, u, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Data) == 0 {
		return nil, nil
	}
	mix := resp.Data.Data[0].GenerationMix
	shares := make([]signal.FuelShare, 0, len(mix))
	for _, f := range mix {
		shares = append(shares, signal.FuelShare{Fuel: f.Fuel, Perc: f.Perc})
	}
	return shares, nil
}

// parseCarbonTime accepts the API's minute-precision timestamps as well
// as full RFC3339.
func parseCarbonTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04Z", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
