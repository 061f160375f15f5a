package gridapi

// National Grid ESO publishes demand and frequency as CSV downloads
// rather than a realtime JSON API. Until a proper feed is wired up the
// figures are estimated: typical GB demand ranges from 20GW at night to
// 45GW at peak, and a healthy grid sits at 50Hz.
// TODO: integrate the BMRS realtime feed for measured demand and frequency.

import "context"

const (
	estimatedDayDemandMW   = 35000.0
	estimatedNightDemandMW = 25000.0
	nominalFrequencyHz     = 50.0
)

// FetchDemand returns the estimated GB electricity demand in MW.
func (c *Client) FetchDemand(ctx context.Context) (*float64, error) {
	_ = ctx
	demand := estimatedNightDemandMW
	if hour := c.now().Hour(); hour >= 7 && hour <= 19 {
		demand = estimatedDayDemandMW
	}
	return &demand, nil
}

// FetchFrequency returns the grid frequency in Hz. Without a realtime
// feed a stable grid is assumed.
func (c *Client) FetchFrequency(ctx context.Context) (*float64, error) {
	_ = ctx
	f := nominalFrequencyHz
	return &f, nil
}
