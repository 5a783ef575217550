package config

import "fmt"

// TelemetryConfig holds configuration for the telemetry manager.
type TelemetryConfig struct {
	Enabled bool `json:"enabled"`
	// Mode is push (vehicles publish on their own), pull (periodic poll) or hybrid.
	Mode            string `json:"mode"`
	IntervalSeconds int    `json:"interval_seconds"`
	PollTopic       string `json:"poll_topic"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 10
	}
	return c.IntervalSeconds
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}

// SetDefaults applies push mode and the default poll topic.
func (c *TelemetryConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "push"
	}
	if c.PollTopic == "" {
		c.PollTopic = "fleet/telemetry/poll"
	}
}

// Validate checks the mode.
func (c TelemetryConfig) Validate() error {
	switch c.Mode {
	case "push", "pull", "hybrid":
		return nil
	}
	return fmt.Errorf("telemetry: unknown mode %s", c.Mode)
}
