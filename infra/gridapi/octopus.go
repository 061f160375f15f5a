package gridapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/signal"
)

const apiOctopus = "octopus_agile_api"

// octopusCodes maps scheduling regions to Octopus grid supply point
// codes. Unknown regions fall back to London.
var octopusCodes = map[model.Region]string{
	model.RegionScotland:         "P",
	model.RegionNorthScotland:    "P",
	model.RegionSouthScotland:    "N",
	model.RegionNorthEngland:     "G",
	model.RegionNorthEastEngland: "F",
	model.RegionNorthWestEngland: "G",
	model.RegionYorkshire:        "M",
	model.RegionWales:            "L",
	model.RegionNorthWales:       "L",
	model.RegionSouthWales:       "L",
	model.RegionWestMidlands:     "E",
	model.RegionEastMidlands:     "B",
	model.RegionEastEngland:      "A",
	model.RegionLondon:           "C",
	model.RegionSouthEngland:     "J",
	model.RegionSouthEastEngland: "H",
	model.RegionSouthWestEngland: "K",
}

func octopusRegionCode(region model.Region) string {
	if code, ok := octopusCodes[region]; ok {
		return code
	}
	return octopusCodes[model.RegionLondon]
}

type agileRate struct {
	ValueExcVAT float64 `json:"value_exc_vat"`
	ValueIncVAT float64 `json:"value_inc_vat"`
	ValidFrom   string  `json:"valid_from"`
	ValidTo     string  `json:"valid_to"`
}

type agileResponse struct {
	Results []agileRate `json:"results"`
}

func (c *Client) agileRates(ctx context.Context, region model.Region, from, to time.Time) ([]agileRate, error) {
	code := octopusRegionCode(region)
	tariff := fmt.Sprintf("E-1R-%s-%s", c.cfg.AgileProduct, code)
	u := fmt.Sprintf("%s/v1/products/%s/electricity-tariffs/%s/standard-unit-rates/",
		c.cfg.OctopusBaseURL, c.cfg.AgileProduct, tariff)

	params := url.Values{}
	params.Set("period_from", from.UTC().Format(time.RFC3339))
	params.Set("period_to", to.UTC().Format(time.RFC3339))

	var resp agileResponse
	if err := c.getJSON(ctx, apiOctopus, u, params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// FetchCurrentPrice returns the Agile rate valid right now in GBP/kWh,
// or nil when no rate covers the current half-hour.
func (c *Client) FetchCurrentPrice(ctx context.Context, region model.Region) (*float64, error) {
	now := c.now().UTC()
	rates, err := c.agileRates(ctx, region, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		return nil, err
	}
	for _, rate := range rates {
		from, err1 := time.Parse(time.RFC3339, rate.ValidFrom)
		to, err2 := time.Parse(time.RFC3339, rate.ValidTo)
		if err1 != nil || err2 != nil {
			continue
		}
		if !now.Before(from) && now.Before(to) {
			// Rates are published in pence.
			price := rate.ValueIncVAT / 100
			return &price, nil
		}
	}
	c.log.Warnf("no current agile rate for %s", region)
	return nil, nil
}

// FetchPriceForecast returns half-hourly Agile rates for the next
// horizonHours in GBP/kWh.
func (c *Client) FetchPriceForecast(ctx context.Context, region model.Region, horizonHours int) ([]signal.PricePoint, error) {
	now := c.now().UTC()
	rates, err := c.agileRates(ctx, region, now, now.Add(time.Duration(horizonHours)*time.Hour))
	if err != nil {
		return nil, err
	}
	points := make([]signal.PricePoint, 0, len(rates))
	for _, rate := range rates {
		ts, err := time.Parse(time.RFC3339, rate.ValidFrom)
		if err != nil {
			c.log.Warnf("skipping agile rate with bad timestamp %q: %v", rate.ValidFrom, err)
			continue
		}
		points = append(points, signal.PricePoint{
			Timestamp:   ts,
			PricePerKWh: rate.ValueIncVAT / 100,
		})
	}
	return points, nil
}
