package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
  qos:
    command: 1
dispatch:
  retry_interval_seconds: 20
  planner: "lp"
cost:
  bike_max_km: 4
fleet:
  seed_demo: true
  seed:
    - id: "van-1"
      type: "BIKE"
      battery: 70
      position: {lat: 1.30, lng: 103.80}
      capacity: {weight_kg: 40, volume_l: 100}
metrics:
  sinks:
    - type: "nop"
audit:
  backend: "sqlite"
http:
  addr: ":8080"
notifier:
  type: "mock"
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
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"qos", cfg.MQTT.QoS["command"], byte(1)},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "fleet/vehicle"},
		{"retry_interval", cfg.Dispatch.RetryIntervalSeconds, 20},
		{"planner", cfg.Dispatch.Planner, "lp"},
		{"default_timeout", cfg.Dispatch.AssignmentTimeoutSeconds, 300},
		{"bike_max_km", cfg.Cost.BikeMaxKm, 4.0},
		{"seed_demo", cfg.Fleet.SeedDemo, true},
		{"seed_len", len(cfg.Fleet.Seed), 1},
		{"charged_battery", cfg.Fleet.ChargedBattery, 80.0},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"audit_path", cfg.Audit.Path, "dispatch.db"},
		{"http_addr", cfg.HTTP.Addr, ":8080"},
		{"log_level", cfg.Logging.Level, "info"},
		{"notifier", cfg.Notifier.Type, "mock"},
		{"telemetry_mode", cfg.Telemetry.Mode, "push"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	require.Len(t, cfg.Fleet.Seed, 1)
	assert.Equal(t, "van-1", cfg.Fleet.Seed[0].ID)
	assert.Equal(t, 40.0, cfg.Fleet.Seed[0].Capacity.WeightKg)
	assert.Equal(t, 1.30, cfg.Fleet.Seed[0].Position.Lat)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dispatch": {"retry_interval_seconds": 20}}`), 0o644))
	t.Setenv("K_DISPATCH__RETRY_INTERVAL_SECONDS", "10")
	t.Setenv("K_HTTP__ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Dispatch.RetryIntervalSeconds)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	tests := []struct {
		name string
		path string
		want string
	}{
		{"format", write("c.toml", ""), "unsupported config format"},
		{"missing", filepath.Join(dir, "absent.yaml"), "no such file"},
		{"audit backend", write("a.yaml", "audit:\n  backend: csv\n"), "config audit"},
		{"planner", write("p.yaml", "dispatch:\n  planner: magic\n"), "config dispatch"},
		{"thresholds", write("f.yaml", "fleet:\n  critical_battery: 90\n"), "config fleet"},
		{"log level", write("l.yaml", "logging:\n  level: loud\n"), "config logging"},
		{"telemetry", write("t.yaml", "telemetry:\n  enabled: true\n"), "without mqtt.broker"},
		{"simulator", write("s.yaml", "simulator:\n  drop_rate: 1.5\n"), "config simulator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.MQTT.Enabled())
	assert.Equal(t, "", cfg.Audit.Backend)
	assert.Equal(t, SimTransportDirect, cfg.Simulator.Transport)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	assert.Equal(t, 15, cfg.Metrics.FleetSampleSeconds)
}
