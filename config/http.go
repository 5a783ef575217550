package config

import (
	"fmt"
	"time"
)

// HTTPConfig defines settings for the HTTP gateway.
type HTTPConfig struct {
	// Addr is the listen address. Empty disables the gateway.
	Addr string `json:"addr"`
	// LogsToken protects the dispatch log endpoint when set.
	LogsToken      string   `json:"logs_token"`
	AllowedOrigins []string `json:"allowed_origins"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}

// Timeout returns the per request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
