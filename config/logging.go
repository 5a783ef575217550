package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

func setLoggingDefaults(c *logger.Config) {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
}

func validateLogging(c logger.Config) error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("unknown format %s", c.Format)
}

// setAuditDefaults picks a file name matching the backend.
func setAuditDefaults(c *logging.Config) {
	switch c.Backend {
	case "jsonl", "rotating":
		if c.Path == "" {
			c.Path = "dispatch.log"
		}
	case "sqlite":
		if c.Path == "" {
			c.Path = "dispatch.db"
		}
	}
	if c.Backend == "rotating" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
}

func validateAudit(c logging.Config) error {
	switch c.Backend {
	case "", "none":
		return nil
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
