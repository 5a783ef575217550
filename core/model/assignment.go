package model

import "time"

// LegKind distinguishes the approach from the delivery part of a route.
type LegKind string

const (
	LegApproach LegKind = "APPROACH"
	LegDelivery LegKind = "DELIVERY"
)

// LegCost is the physical cost of one leg.
type LegCost struct {
	DurationMin float64 `json:"duration_min"`
	EnergyKWh   float64 `json:"energy_kwh"`
	CO2eGrams   float64 `json:"co2e_grams"`
}

// Add returns the sum of two costs.
func (c LegCost) Add(o LegCost) LegCost {
	return LegCost{
		DurationMin: c.DurationMin + o.DurationMin,
		EnergyKWh:   c.EnergyKWh + o.EnergyKWh,
		CO2eGrams:   c.CO2eGrams + o.CO2eGrams,
	}
}

// RouteLeg is one continuous segment served in a single mode.
type RouteLeg struct {
	Kind       LegKind      `json:"kind"`
	Mode       DeliveryMode `json:"mode"`
	From       Point        `json:"from"`
	To         Point        `json:"to"`
	DistanceKm float64      `json:"distance_km"`
	Cost       LegCost      `json:"cost"`
}

// Route is an ordered list of legs with totals.
type Route struct {
	Mode            DeliveryMode `json:"mode"`
	Legs            []RouteLeg   `json:"legs"`
	TotalDistanceKm float64      `json:"total_distance_km"`
	Total           LegCost      `json:"total"`
}

// Append adds a leg and updates the totals.
func (r *Route) Append(l RouteLeg) {
	r.Legs = append(r.Legs, l)
	r.TotalDistanceKm += l.DistanceKm
	r.Total = r.Total.Add(l.Cost)
}

// Assignment binds one order to one vehicle.
type Assignment struct {
	OrderID   string    `json:"order_id"`
	VehicleID string    `json:"vehicle_id"`
	Route     Route     `json:"route"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	ETA       time.Time `json:"eta"`
}

// Clone returns a copy that does not share the legs slice.
func (a Assignment) Clone() Assignment {
	a.Route.Legs = append([]RouteLeg(nil), a.Route.Legs...)
	return a
}
