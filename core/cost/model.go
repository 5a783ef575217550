// Package cost scores vehicle and order pairings with a deterministic
// physical model. Nothing here holds state beyond its configuration.
package cost

import (
	"math"

	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Model is the cost model. It is immutable and safe for concurrent use.
type Model struct {
	cfg Config
}

// New returns a Model with defaults applied to cfg.
func New(cfg Config) *Model {
	cfg.SetDefaults()
	return &Model{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Model) Config() Config { return m.cfg }

func (m *Model) params(vt model.VehicleType) TypeParams {
	p := m.cfg.Types[string(vt)]
	if p.SpeedKmh <= 0 {
		p.SpeedKmh = m.cfg.SpeedKmh
	}
	if p.KwhPerKm <= 0 {
		p.KwhPerKm = m.cfg.KwhPerKm
	}
	if p.CO2PerKm <= 0 {
		p.CO2PerKm = m.cfg.CO2PerKm
	}
	return p
}

// LegCost returns duration in minutes, energy in kWh and emissions in grams
// for distanceKm travelled by a vehicle of type vt.
func (m *Model) LegCost(vt model.VehicleType, distanceKm float64) model.LegCost {
	p := m.params(vt)
	return model.LegCost{
		DurationMin: distanceKm / p.SpeedKmh * 60,
		EnergyKWh:   distanceKm * p.KwhPerKm,
		CO2eGrams:   distanceKm * p.CO2PerKm,
	}
}

// MaxRadiusKm is the furthest a vehicle of type vt may travel to a pickup.
func (m *Model) MaxRadiusKm(vt model.VehicleType) float64 {
	return m.params(vt).MaxRadiusKm
}

// RangeKm estimates how far a vehicle can travel on its remaining battery
// while keeping the reserve.
func (m *Model) RangeKm(vt model.VehicleType, battery float64) float64 {
	p := m.params(vt)
	usable := (battery - m.cfg.ReservePct) / 100 * p.BatteryKWh
	if usable <= 0 {
		return 0
	}
	return usable / p.KwhPerKm
}

// BatteryPctPerKm is the battery percentage a vehicle of type vt uses per km.
func (m *Model) BatteryPctPerKm(vt model.VehicleType) float64 {
	p := m.params(vt)
	if p.BatteryKWh <= 0 {
		return 0
	}
	return p.KwhPerKm / p.BatteryKWh * 100
}

// SelectMode applies the mode policy to a trip distance. A preferred mode
// always wins.
func (m *Model) SelectMode(distanceKm float64, preferred model.DeliveryMode) model.DeliveryMode {
	if preferred != "" {
		return preferred
	}
	switch {
	case distanceKm <= m.cfg.BikeMaxKm:
		return model.ModeBike
	case distanceKm <= m.cfg.DroneMaxKm:
		return model.ModeDrone
	default:
		return model.ModeHybrid
	}
}

// Feasible reports whether v can reach the pickup at distanceKm and finish
// the delivery within its type radius and battery reserve.
func (m *Model) Feasible(o model.Order, v model.Vehicle, distanceKm float64) bool {
	if distanceKm > m.MaxRadiusKm(v.Type) {
		return false
	}
	trip := distanceKm + geo.DistanceKm(o.Pickup, o.Dropoff)
	return trip <= m.RangeKm(v.Type, v.Battery)
}

// Score rates serving o with v located distanceKm from the pickup. Lower is
// better. Infeasible pairings score +Inf.
func (m *Model) Score(o model.Order, v model.Vehicle, distanceKm float64) float64 {
	if !m.Feasible(o, v, distanceKm) {
		return math.Inf(1)
	}
	w := m.cfg.Weights
	p := m.params(v.Type)
	delivery := geo.DistanceKm(o.Pickup, o.Dropoff)

	urgency := 1 + w.Urgency*float64(o.Priority.Weight()-1)
	s := w.Duration * m.LegCost(v.Type, distanceKm).DurationMin * urgency

	needPct := (distanceKm + delivery) * p.KwhPerKm / p.BatteryKWh * 100
	margin := v.Battery - needPct
	s += w.Battery * (100 - margin)

	mode := m.SelectMode(delivery, o.PreferredMode)
	if vt, ok := mode.VehicleType(); ok && vt != v.Type {
		s += w.ModeMismatch
	}
	return s
}

// Less orders candidates by score, then by vehicle id.
func Less(scoreA float64, idA string, scoreB float64, idB string) bool {
	if scoreA != scoreB {
		return scoreA < scoreB
	}
	return idA < idB
}
