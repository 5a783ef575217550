package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/api/vehicles"
)

var fleetOpts struct {
	addr       string
	vehicleTyp string
	status     string
}

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List vehicles known to a running service",
	RunE:  runFleetLs,
}

func init() {
	f := fleetLsCmd.Flags()
	f.StringVar(&fleetOpts.addr, "addr", "", "gateway base URL (defaults to http.addr)")
	f.StringVar(&fleetOpts.vehicleTyp, "type", "", "filter by vehicle type")
	f.StringVar(&fleetOpts.status, "status", "", "filter by status")
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, _ []string) error {
	base := fleetOpts.addr
	if base == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.HTTP.Addr == "" {
			return fmt.Errorf("no gateway address: set --addr or http.addr")
		}
		base = cfg.HTTP.Addr
		if strings.HasPrefix(base, ":") {
			base = "localhost" + base
		}
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	q := url.Values{}
	if fleetOpts.vehicleTyp != "" {
		q.Set("type", fleetOpts.vehicleTyp)
	}
	if fleetOpts.status != "" {
		q.Set("status", fleetOpts.status)
	}
	u := strings.TrimSuffix(base, "/") + "/v1/fleet/status"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fleet status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fleet status: %s", resp.Status)
	}
	var sum vehicles.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		return fmt.Errorf("decode fleet status: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tBATTERY\tPOSITION\tORDER")
	for _, v := range sum.Vehicles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%.4f,%.4f\t%s\n",
			v.VehicleID, v.Type, v.Status, v.Battery, v.Position.Lat, v.Position.Lng, v.CurrentOrderID)
	}
	return tw.Flush()
}
