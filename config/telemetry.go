package config

// TelemetryConfig holds configuration for asset telemetry collection.
type TelemetryConfig struct {
	Enabled bool `json:"enabled"`
	// StatePrefix is the topic prefix assets publish their power
	// reports under.
	StatePrefix string `json:"state_topic_prefix"`
}

// Prefix returns the configured state topic prefix or the default.
func (c TelemetryConfig) Prefix() string {
	if c.StatePrefix == "" {
		return "gridflex/telemetry"
	}
	return c.StatePrefix
}
