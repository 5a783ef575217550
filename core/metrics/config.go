package metrics

import "github.com/kilianp07/fleetdispatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusPort exposes /metrics on a dedicated listener when set.
	PrometheusPort string `json:"prometheus_port" yaml:"prometheus_port"`
	// FleetSampleSeconds is the interval of fleet size sampling.
	FleetSampleSeconds int `json:"fleet_sample_seconds" yaml:"fleet_sample_seconds"`
	// EmissionsDB is the SQLite file of the emissions ledger. Empty keeps
	// the ledger in memory.
	EmissionsDB string `json:"emissions_db" yaml:"emissions_db"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.FleetSampleSeconds <= 0 {
		c.FleetSampleSeconds = 15
	}
}
