package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `api:
  addr: ":9000"
signals:
  max_attempts: 5
  spot_ttl_minutes: 10
scheduler:
  carbon_value_gbp_per_kg: 0.08
marketplace:
  slot_ttl_minutes: 15
audit:
  backend: "sqlite"
  path: "decisions.db"
metrics:
  prometheus_enabled: true
  prometheus_port: ":9091"
grid_api:
  agile_product: "AGILE-24-04-03"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "gridflex-test"
  topic_prefix: "flex"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"api.addr", cfg.API.Addr, ":9000"},
		{"signals.max_attempts", cfg.Signals.MaxAttempts, 5},
		{"signals.spot_ttl", cfg.Signals.SpotTTLMinutes, 10},
		{"scheduler.carbon_value", cfg.Scheduler.CarbonValueGBPPerKg, 0.08},
		{"scheduler.max_options_default", cfg.Scheduler.MaxOptionsLogged, 3},
		{"marketplace.slot_ttl", cfg.Marketplace.SlotTTLMinutes, 15},
		{"audit.backend", cfg.Audit.Backend, "sqlite"},
		{"audit.path", cfg.Audit.Path, "decisions.db"},
		{"metrics.prom_enabled", cfg.Metrics.PrometheusEnabled, true},
		{"metrics.prom_port", cfg.Metrics.PrometheusPort, ":9091"},
		{"grid_api.product", cfg.GridAPI.AgileProduct, "AGILE-24-04-03"},
		{"grid_api.carbon_default", cfg.GridAPI.CarbonBaseURL, "https://api.carbonintensity.org.uk"},
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "flex"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GF_API__ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Addr != ":7070" {
		t.Fatalf("env override ignored, got %s", cfg.API.Addr)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestAuditConfigValidate(t *testing.T) {
	cases := []struct {
		cfg     AuditConfig
		wantErr bool
	}{
		{AuditConfig{Backend: "memory"}, false},
		{AuditConfig{Backend: "jsonl", Path: "d.log"}, false},
		{AuditConfig{Backend: "sqlite"}, true},
		{AuditConfig{Backend: "postgres", Path: "x"}, true},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%+v: err=%v wantErr=%v", c.cfg, err, c.wantErr)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.API.Addr != ":8080" {
		t.Fatalf("unexpected api addr %s", cfg.API.Addr)
	}
	if cfg.Audit.Backend != "jsonl" || cfg.Audit.Path != "decisions.log" {
		t.Fatalf("unexpected audit defaults %+v", cfg.Audit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
