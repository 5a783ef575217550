package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/infra/kpi"
	"github.com/kilianp07/fleetdispatch/jobs/ecokpi"
)

var kpiOpts struct {
	db    string
	since time.Duration
}

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Emissions ledger maintenance",
}

var kpiBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild the emissions ledger from delivered orders in the audit log",
	RunE:  runKPIBackfill,
}

func init() {
	f := kpiBackfillCmd.Flags()
	f.StringVar(&kpiOpts.db, "db", "", "emissions SQLite file (defaults to metrics.emissions_db)")
	f.DurationVar(&kpiOpts.since, "since", 0, "only deliveries newer than this duration")
	kpiCmd.AddCommand(kpiBackfillCmd)
	rootCmd.AddCommand(kpiCmd)
}

func runKPIBackfill(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db := kpiOpts.db
	if db == "" {
		db = cfg.Metrics.EmissionsDB
	}
	if db == "" {
		return fmt.Errorf("no emissions database: set --db or metrics.emissions_db")
	}
	logs, err := logging.Open(cfg.Audit)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Audit.Backend, err)
	}
	if logs == nil {
		return fmt.Errorf("audit log disabled: set audit.backend")
	}
	defer logs.Close()

	store, err := kpi.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	defer store.Close()

	var q logging.LogQuery
	if kpiOpts.since > 0 {
		q.Start = time.Now().Add(-kpiOpts.since)
	}
	n, err := ecokpi.Backfill(cmd.Context(), logs, store, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d deliveries into %s\n", n, db)
	return nil
}
