package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/pkg/export"
)

var logsOpts struct {
	backend string
	path    string
	order   string
	vehicle string
	action  string
	since   time.Duration
	start   string
	end     string
	limit   int
	format  string
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the dispatch audit log",
	Example: `  fleetdispatch logs --vehicle bike-1 --since 2h
  fleetdispatch logs --backend sqlite --path dispatch.db --action requeued --format csv`,
	RunE: runLogs,
}

func init() {
	f := logsCmd.Flags()
	f.StringVar(&logsOpts.backend, "backend", "", "store backend (defaults to audit.backend)")
	f.StringVar(&logsOpts.path, "path", "", "store path (defaults to audit.path)")
	f.StringVar(&logsOpts.order, "order", "", "filter by order id")
	f.StringVar(&logsOpts.vehicle, "vehicle", "", "filter by vehicle id")
	f.StringVar(&logsOpts.action, "action", "", "filter by action")
	f.DurationVar(&logsOpts.since, "since", 0, "only records newer than this duration")
	f.StringVar(&logsOpts.start, "start", "", "start time (RFC3339)")
	f.StringVar(&logsOpts.end, "end", "", "end time (RFC3339)")
	f.IntVar(&logsOpts.limit, "limit", 0, "keep the most recent records")
	f.StringVar(&logsOpts.format, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc := cfg.Audit
	if logsOpts.backend != "" {
		sc.Backend = logsOpts.backend
	}
	if logsOpts.path != "" {
		sc.Path = logsOpts.path
	}
	if logsOpts.format != "json" && logsOpts.format != "csv" {
		return fmt.Errorf("unknown format %q", logsOpts.format)
	}
	q, err := buildLogQuery(time.Now())
	if err != nil {
		return err
	}

	store, err := logging.Open(sc)
	if err != nil {
		return fmt.Errorf("open %s store: %w", sc.Backend, err)
	}
	if store == nil {
		return fmt.Errorf("audit log disabled: set audit.backend or --backend")
	}
	defer store.Close()

	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	if logsOpts.format == "csv" {
		return export.WriteCSV(cmd.OutOrStdout(), recs)
	}
	return export.WriteJSON(cmd.OutOrStdout(), recs)
}

func buildLogQuery(now time.Time) (logging.LogQuery, error) {
	q := logging.LogQuery{
		OrderID:   logsOpts.order,
		VehicleID: logsOpts.vehicle,
		Action:    logsOpts.action,
		Limit:     logsOpts.limit,
	}
	if logsOpts.since > 0 {
		q.Start = now.Add(-logsOpts.since)
	}
	if logsOpts.start != "" {
		t, err := time.Parse(time.RFC3339, logsOpts.start)
		if err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
		q.Start = t
	}
	if logsOpts.end != "" {
		t, err := time.Parse(time.RFC3339, logsOpts.end)
		if err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
		q.End = t
	}
	return q, nil
}
