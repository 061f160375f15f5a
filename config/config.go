package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gridflex/gridflex/core/marketplace"
	"github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/scheduler"
	"github.com/gridflex/gridflex/core/signal"
	"github.com/gridflex/gridflex/infra/gridapi"
	"github.com/gridflex/gridflex/infra/mqtt"
)

type Config struct {
	API         APIConfig          `json:"api"`
	Signals     signal.Config      `json:"signals"`
	Scheduler   scheduler.Config   `json:"scheduler"`
	Marketplace marketplace.Config `json:"marketplace"`
	Audit       AuditConfig        `json:"audit"`
	Metrics     metrics.Config     `json:"metrics"`
	GridAPI     gridapi.Config     `json:"grid_api"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Sentry      SentryConfig       `json:"sentry"`
	Telemetry   TelemetryConfig    `json:"telemetry"`
}

// APIConfig defines the HTTP API listener. AuthToken, when set, guards
// the audit log endpoint.
type APIConfig struct {
	Addr      string `json:"addr"`
	AuthToken string `json:"auth_token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("GF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "gf_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a ready-to-run configuration without reading a file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	c.API.SetDefaults()
	c.Signals.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Marketplace.SetDefaults()
	c.Audit.SetDefaults()
	c.Metrics.SetDefaults()
	c.GridAPI.SetDefaults()
	c.MQTT.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Audit.Validate(); err != nil {
		return err
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt enabled but broker is empty")
	}
	return nil
}
