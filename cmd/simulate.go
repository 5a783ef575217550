package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/app"
)

var simOpts struct {
	vehicles      int
	orderInterval int
	speed         float64
	dropRate      float64
	transport     string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the service with a simulated fleet",
	Long: `Runs the full service and an in-process fleet that drives assigned
vehicles to their pickup and dropoff points, drains and recharges batteries,
confirms pickups and deliveries and submits random orders.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simOpts.vehicles, "vehicles", 0, "generated vehicles (overrides simulator.vehicles)")
	f.IntVar(&simOpts.orderInterval, "order-interval", 0, "simulated seconds between random orders")
	f.Float64Var(&simOpts.speed, "speed", 0, "simulated seconds per real second")
	f.Float64Var(&simOpts.dropRate, "drop-rate", 0, "share of lost pickup and delivery reports")
	f.StringVar(&simOpts.transport, "transport", "", "direct or mqtt")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc := &cfg.Simulator
	flags := cmd.Flags()
	if flags.Changed("vehicles") {
		sc.Vehicles = simOpts.vehicles
	}
	if flags.Changed("order-interval") {
		sc.OrderIntervalSeconds = simOpts.orderInterval
	}
	if flags.Changed("speed") {
		sc.SpeedFactor = simOpts.speed
	}
	if flags.Changed("drop-rate") {
		sc.DropRate = simOpts.dropRate
	}
	if flags.Changed("transport") {
		sc.Transport = simOpts.transport
	}
	if sc.Vehicles == 0 && !cfg.Fleet.SeedDemo && len(cfg.Fleet.Seed) == 0 {
		sc.Vehicles = 10
	}
	if sc.OrderIntervalSeconds == 0 {
		sc.OrderIntervalSeconds = 120
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}
	return serve(cfg, app.WithSimulator())
}
