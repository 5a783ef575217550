package cost

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// TypeParams overrides the physical model for one vehicle type.
type TypeParams struct {
	SpeedKmh    float64 `json:"speed_kmh"`
	KwhPerKm    float64 `json:"kwh_per_km"`
	CO2PerKm    float64 `json:"co2_per_km"`
	BatteryKWh  float64 `json:"battery_kwh"`
	MaxRadiusKm float64 `json:"max_radius_km"`
}

// Weights tunes Score.
type Weights struct {
	Duration     float64 `json:"duration"`
	Battery      float64 `json:"battery"`
	Urgency      float64 `json:"urgency"`
	ModeMismatch float64 `json:"mode_mismatch"`
}

// Config is the injectable cost model configuration. The zero value gets the
// reference constants: 30 km/h, 0.1 kWh/km and 50 gCO2e/km.
type Config struct {
	SpeedKmh float64 `json:"speed_kmh"`
	KwhPerKm float64 `json:"kwh_per_km"`
	CO2PerKm float64 `json:"co2_per_km"`

	// Mode policy thresholds on the pickup to dropoff distance.
	BikeMaxKm  float64 `json:"bike_max_km"`
	DroneMaxKm float64 `json:"drone_max_km"`

	// ReservePct is the battery that must remain after a trip.
	ReservePct float64 `json:"reserve_pct"`

	Types   map[string]TypeParams `json:"types"`
	Weights Weights               `json:"weights"`
}

var defaultTypes = map[string]TypeParams{
	string(model.VehicleBike):  {BatteryKWh: 2.0, MaxRadiusKm: 20},
	string(model.VehicleDrone): {BatteryKWh: 1.5, MaxRadiusKm: 15},
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.SpeedKmh <= 0 {
		c.SpeedKmh = 30
	}
	if c.KwhPerKm <= 0 {
		c.KwhPerKm = 0.1
	}
	if c.CO2PerKm <= 0 {
		c.CO2PerKm = 50
	}
	if c.BikeMaxKm <= 0 {
		c.BikeMaxKm = 5
	}
	if c.DroneMaxKm <= 0 {
		c.DroneMaxKm = 15
	}
	if c.ReservePct <= 0 {
		c.ReservePct = 15
	}
	if c.Types == nil {
		c.Types = map[string]TypeParams{}
	}
	for name, def := range defaultTypes {
		p := c.Types[name]
		if p.BatteryKWh <= 0 {
			p.BatteryKWh = def.BatteryKWh
		}
		if p.MaxRadiusKm <= 0 {
			p.MaxRadiusKm = def.MaxRadiusKm
		}
		c.Types[name] = p
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Duration: 1, Battery: 0.1, Urgency: 0.25, ModeMismatch: 15}
	}
}

// Validate rejects inconsistent thresholds.
func (c Config) Validate() error {
	if c.BikeMaxKm > c.DroneMaxKm {
		return fmt.Errorf("cost: bike_max_km (%v) exceeds drone_max_km (%v)", c.BikeMaxKm, c.DroneMaxKm)
	}
	if c.ReservePct >= 100 {
		return fmt.Errorf("cost: reserve_pct must be below 100")
	}
	for name := range c.Types {
		if name != string(model.VehicleBike) && name != string(model.VehicleDrone) {
			return fmt.Errorf("cost: unknown vehicle type %q", name)
		}
	}
	return nil
}
