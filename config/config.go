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

	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/factory"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config          `json:"mqtt"`
	Dispatch  dispatch.Config      `json:"dispatch"`
	Cost      cost.Config          `json:"cost"`
	Fleet     fleet.Config         `json:"fleet"`
	Metrics   metrics.Config       `json:"metrics"`
	Logging   logger.Config        `json:"logging"`
	Audit     logging.Config       `json:"audit"`
	HTTP      HTTPConfig           `json:"http"`
	Sentry    SentryConfig         `json:"sentry"`
	Telemetry TelemetryConfig      `json:"telemetry"`
	Simulator SimulatorConfig      `json:"simulator"`
	Notifier  factory.ModuleConfig `json:"notifier"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides and
// validates every section.
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
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every section defaulted.
func Default() *Config {
	var cfg Config
	_ = cfg.Finalize()
	return &cfg
}

// Finalize applies defaults and validates each section.
func (c *Config) Finalize() error {
	c.MQTT.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Cost.SetDefaults()
	c.Fleet.SetDefaults()
	c.Metrics.SetDefaults()
	setLoggingDefaults(&c.Logging)
	setAuditDefaults(&c.Audit)
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
	c.Telemetry.SetDefaults()
	c.Simulator.SetDefaults()

	checks := []struct {
		name string
		fn   func() error
	}{
		{"mqtt", c.MQTT.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"cost", c.Cost.Validate},
		{"fleet", c.Fleet.Validate},
		{"logging", func() error { return validateLogging(c.Logging) }},
		{"audit", func() error { return validateAudit(c.Audit) }},
		{"http", c.HTTP.Validate},
		{"sentry", c.Sentry.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"simulator", c.Simulator.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("config %s: %w", ch.name, err)
		}
	}
	if c.Telemetry.Enabled && !c.MQTT.Enabled() {
		return fmt.Errorf("config telemetry: enabled without mqtt.broker")
	}
	return nil
}
