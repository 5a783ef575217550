package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetryConfig(t *testing.T) {
	var cfg TelemetryConfig
	assert.Equal(t, 10, cfg.Interval())
	assert.Equal(t, 3, cfg.Timeout())
	cfg.SetDefaults()
	assert.Equal(t, "push", cfg.Mode)
	assert.Equal(t, "fleet/telemetry/poll", cfg.PollTopic)
	require.NoError(t, cfg.Validate())

	cfg = TelemetryConfig{IntervalSeconds: 5, TimeoutSeconds: 2, Mode: "hybrid"}
	assert.Equal(t, 5, cfg.Interval())
	assert.Equal(t, 2, cfg.Timeout())
	require.NoError(t, cfg.Validate())

	cfg.Mode = "smoke-signals"
	assert.Error(t, cfg.Validate())
}
