package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/model"
)

var (
	planPickup  string
	planDropoff string
	planMode    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Quote a route between two points without dispatching",
	Example: `  fleetdispatch plan --pickup 1.3048,103.8318 --dropoff 1.3521,103.8198
  fleetdispatch plan --pickup 1.30,103.83 --dropoff 1.45,103.70 --mode HYBRID`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planPickup, "pickup", "", "pickup as lat,lng")
	planCmd.Flags().StringVar(&planDropoff, "dropoff", "", "dropoff as lat,lng")
	planCmd.Flags().StringVar(&planMode, "mode", "", "preferred mode: BIKE, DRONE or HYBRID")
	_ = planCmd.MarkFlagRequired("pickup")
	_ = planCmd.MarkFlagRequired("dropoff")
	rootCmd.AddCommand(planCmd)
}

type planOutput struct {
	DirectDistanceKm float64     `json:"direct_distance_km"`
	Route            model.Route `json:"route"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pickup, err := parsePoint(planPickup)
	if err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	dropoff, err := parsePoint(planDropoff)
	if err != nil {
		return fmt.Errorf("dropoff: %w", err)
	}
	mode := model.DeliveryMode(strings.ToUpper(planMode))
	switch mode {
	case "", model.ModeBike, model.ModeDrone, model.ModeHybrid:
	default:
		return fmt.Errorf("unknown mode %q", planMode)
	}

	out := planOutput{
		DirectDistanceKm: geo.DistanceKm(pickup, dropoff),
		Route:            cost.New(cfg.Cost).PlanRoute(pickup, dropoff, mode),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parsePoint(s string) (model.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Point{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Point{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Point{}, err
	}
	p := model.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return model.Point{}, fmt.Errorf("coordinates out of range: %q", s)
	}
	return p, nil
}
