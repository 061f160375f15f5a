// Package gridapi implements the upstream grid data providers: the UK
// Carbon Intensity API, the Octopus Energy Agile tariff, and National
// Grid ESO system data.
package gridapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gridflex/gridflex/auth"
	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/signal"
	infralog "github.com/gridflex/gridflex/infra/logger"
)

const userAgent = "gridflex/1.0"

// Config holds the upstream endpoints. The defaults point at the public
// production APIs; tests point them at local servers.
type Config struct {
	CarbonBaseURL  string `json:"carbon_base_url"`
	OctopusBaseURL string `json:"octopus_base_url"`
	// AgileProduct is the Octopus Agile product code used to build
	// tariff codes.
	AgileProduct   string `json:"agile_product"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	// Auth enables OAuth2 client credentials for providers that
	// require authenticated access.
	Auth auth.Conf `json:"auth"`
}

func (c *Config) SetDefaults() {
	if c.CarbonBaseURL == "" {
		c.CarbonBaseURL = "https://api.carbonintensity.org.uk"
	}
	if c.OctopusBaseURL == "" {
		c.OctopusBaseURL = "https://api.octopus.energy"
	}
	if c.AgileProduct == "" {
		c.AgileProduct = "AGILE-FLEX-22-11-25"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Client talks to the grid data providers and implements signal.Source.
type Client struct {
	cfg   Config
	http  *http.Client
	creds *auth.TokenProvider
	log   logger.Logger
	now   func() time.Time
}

var _ signal.Source = (*Client)(nil)

// New creates a Client with the given configuration.
func New(cfg Config) *Client {
	cfg.SetDefaults()
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  infralog.New("gridapi"),
		now:  time.Now,
	}
	if cfg.Auth.Enabled {
		c.creds = auth.NewTokenProvider(cfg.Auth)
	}
	return c
}

// getJSON performs a GET and decodes the JSON body into out, classifying
// failures so the aggregator can decide whether to retry.
func (c *Client) getJSON(ctx context.Context, api, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &signal.SourceError{API: api, Kind: signal.KindClientError, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if err := c.creds.Authorize(req); err != nil {
			return &signal.SourceError{API: api, Kind: signal.KindClientError,
				Err: fmt.Errorf("auth token: %w", err)}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		kind := signal.KindServerError
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = signal.KindTimeout
		}
		return &signal.SourceError{API: api, Kind: kind, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("GET %s: status %d: %s", u, resp.StatusCode, body)
		return &signal.SourceError{API: api, Kind: classifyStatus(resp.StatusCode), Err: err}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &signal.SourceError{API: api, Kind: signal.KindClientError,
			Err: fmt.Errorf("decoding %s response: %w", api, err)}
	}
	return nil
}

func classifyStatus(code int) signal.ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return signal.KindRateLimited
	case code >= 500:
		return signal.KindServerError
	default:
		return signal.KindClientError
	}
}
