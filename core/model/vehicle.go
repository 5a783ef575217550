package model

import "time"

// VehicleType identifies the kind of delivery asset.
type VehicleType string

const (
	VehicleBike  VehicleType = "BIKE"
	VehicleDrone VehicleType = "DRONE"
)

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleIdle        VehicleStatus = "IDLE"
	VehicleAssigned    VehicleStatus = "ASSIGNED"
	VehicleEnRoute     VehicleStatus = "EN_ROUTE"
	VehicleCharging    VehicleStatus = "CHARGING"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
	VehicleOffline     VehicleStatus = "OFFLINE"
)

// Busy reports whether the status implies a current order.
func (s VehicleStatus) Busy() bool {
	return s == VehicleAssigned || s == VehicleEnRoute
}

// Valid reports whether s is one of the known statuses.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleIdle, VehicleAssigned, VehicleEnRoute, VehicleCharging, VehicleMaintenance, VehicleOffline:
		return true
	}
	return false
}

// Capacity describes the payload a vehicle can carry.
type Capacity struct {
	WeightKg float64 `json:"weight_kg" yaml:"weight_kg" validate:"gt=0"`
	VolumeL  float64 `json:"volume_l" yaml:"volume_l" validate:"gte=0"`
}

// Vehicle is a delivery asset tracked by the fleet registry.
//
// Status ASSIGNED or EN_ROUTE implies CurrentOrderID is set; IDLE implies it
// is empty. Values handed out by the registry are copies.
type Vehicle struct {
	ID             string        `json:"id" yaml:"id" validate:"required"`
	Type           VehicleType   `json:"type" yaml:"type" validate:"oneof=BIKE DRONE"`
	Capacity       Capacity      `json:"capacity" yaml:"capacity"`
	Battery        float64       `json:"battery" yaml:"battery" validate:"gte=0,lte=100"`
	Position       Point         `json:"position" yaml:"position"`
	Heading        float64       `json:"heading,omitempty" yaml:"heading,omitempty" validate:"gte=0,lt=360"`
	Status         VehicleStatus `json:"status" yaml:"status" validate:"omitempty,oneof=IDLE ASSIGNED EN_ROUTE CHARGING MAINTENANCE OFFLINE"`
	CurrentOrderID string        `json:"current_order_id,omitempty" yaml:"current_order_id,omitempty"`
	Serial         string        `json:"serial,omitempty" yaml:"serial,omitempty"`
	LastSeen       time.Time     `json:"last_seen" yaml:"-"`
}

// Validate checks identity, type, battery range and coordinates.
func (v Vehicle) Validate() error {
	return validateStruct(v)
}

// CanCarry reports whether the vehicle payload limits cover the order.
func (v Vehicle) CanCarry(weightKg, volumeL float64) bool {
	return v.Capacity.WeightKg >= weightKg && v.Capacity.VolumeL >= volumeL
}

// Telemetry is a position and battery sample reported by a vehicle.
type Telemetry struct {
	Position Point     `json:"position"`
	Heading  *float64  `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Battery  float64   `json:"battery" validate:"gte=0,lte=100"`
	Time     time.Time `json:"time"`
}
