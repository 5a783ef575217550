package logging

import "fmt"

// Config selects the audit log backend.
type Config struct {
	// Backend is one of jsonl, rotating, sqlite or empty to disable.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Open creates the configured store. It returns nil when auditing is disabled.
func Open(cfg Config) (LogStore, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("audit: unknown backend %q", cfg.Backend)
	}
}
