package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Simulator transports for vehicle reports.
const (
	SimTransportDirect = "direct"
	SimTransportMQTT   = "mqtt"
)

// SimulatorConfig holds parameters for the fleet simulator.
type SimulatorConfig struct {
	TickMS int `json:"tick_ms"`
	// SpeedFactor is the simulated time elapsed per real second.
	SpeedFactor float64 `json:"speed_factor"`
	// OrderIntervalSeconds is the simulated time between random orders.
	// Zero disables order generation.
	OrderIntervalSeconds int `json:"order_interval_seconds"`
	// Vehicles is the number of generated vehicles registered by Seed.
	Vehicles        int         `json:"vehicles"`
	DronePct        float64     `json:"drone_pct"`
	Center          model.Point `json:"center"`
	SpreadKm        float64     `json:"spread_km"`
	ChargePctPerMin float64     `json:"charge_pct_per_min"`
	// Transport is direct (in-process calls) or mqtt.
	Transport     string  `json:"transport"`
	ReportDelayMS int     `json:"report_delay_ms"`
	DropRate      float64 `json:"drop_rate"`
	Seed          int64   `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *SimulatorConfig) SetDefaults() {
	if c.TickMS <= 0 {
		c.TickMS = 1000
	}
	if c.SpeedFactor <= 0 {
		c.SpeedFactor = 10
	}
	if c.Center == (model.Point{}) {
		c.Center = model.Point{Lat: 1.3521, Lng: 103.8198}
	}
	if c.SpreadKm <= 0 {
		c.SpreadKm = 5
	}
	if c.ChargePctPerMin <= 0 {
		c.ChargePctPerMin = 2
	}
	if c.Transport == "" {
		c.Transport = SimTransportDirect
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Validate checks ranges and the transport name.
func (c SimulatorConfig) Validate() error {
	if c.DropRate < 0 || c.DropRate >= 1 {
		return fmt.Errorf("simulator: drop_rate must be in [0,1)")
	}
	if c.DronePct < 0 || c.DronePct > 1 {
		return fmt.Errorf("simulator: drone_pct must be in [0,1]")
	}
	if c.Vehicles < 0 || c.OrderIntervalSeconds < 0 || c.ReportDelayMS < 0 {
		return fmt.Errorf("simulator: counts and intervals must not be negative")
	}
	if !c.Center.Valid() {
		return fmt.Errorf("simulator: center out of range")
	}
	switch c.Transport {
	case SimTransportDirect, SimTransportMQTT:
	default:
		return fmt.Errorf("simulator: unknown transport %q", c.Transport)
	}
	return nil
}

// Tick is the real interval between steps.
func (c SimulatorConfig) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// Step is the simulated time covered by one tick.
func (c SimulatorConfig) Step() time.Duration {
	return time.Duration(float64(c.Tick()) * c.SpeedFactor)
}
