package model

import "time"

// Priority expresses delivery urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Weight returns the urgency weight of the priority, 1 for LOW up to 4 for URGENT.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 2
	}
}

// OrderStatus is a state of the dispatch lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderAssigned  OrderStatus = "ASSIGNED"
	OrderInTransit OrderStatus = "IN_TRANSIT"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderFailed || s == OrderCancelled
}

// Active reports whether the order holds a vehicle.
func (s OrderStatus) Active() bool {
	return s == OrderAssigned || s == OrderInTransit
}

// CapacityClass is the parcel size class required by an order.
type CapacityClass string

const (
	CapacitySmall  CapacityClass = "SMALL"
	CapacityMedium CapacityClass = "MEDIUM"
	CapacityLarge  CapacityClass = "LARGE"
)

// DeliveryMode is the transport mode chosen for a delivery.
type DeliveryMode string

const (
	ModeBike   DeliveryMode = "BIKE"
	ModeDrone  DeliveryMode = "DRONE"
	ModeHybrid DeliveryMode = "HYBRID"
)

// VehicleType returns the vehicle type serving the mode. HYBRID has none.
func (m DeliveryMode) VehicleType() (VehicleType, bool) {
	switch m {
	case ModeBike:
		return VehicleBike, true
	case ModeDrone:
		return VehicleDrone, true
	}
	return "", false
}

// Order is a delivery request managed by the dispatch scheduler.
type Order struct {
	ID            string        `json:"id" yaml:"id"`
	Pickup        Point         `json:"pickup" yaml:"pickup"`
	Dropoff       Point         `json:"dropoff" yaml:"dropoff"`
	WeightKg      float64       `json:"weight_kg" yaml:"weight_kg" validate:"gt=0"`
	CapacityClass CapacityClass `json:"capacity_class,omitempty" yaml:"capacity_class,omitempty" validate:"omitempty,oneof=SMALL MEDIUM LARGE"`
	Priority      Priority      `json:"priority,omitempty" yaml:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	PreferredMode DeliveryMode  `json:"preferred_mode,omitempty" yaml:"preferred_mode,omitempty" validate:"omitempty,oneof=BIKE DRONE HYBRID"`

	Status        OrderStatus `json:"status"`
	VehicleID     string      `json:"vehicle_id,omitempty"`
	Assignment    *Assignment `json:"assignment,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Deadline      time.Time   `json:"deadline"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Attempts      int         `json:"attempts"`
	RequeuedFrom  string      `json:"requeued_from,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// Validate checks coordinates, weight and enum fields of an incoming order.
func (o Order) Validate() error {
	return validateStruct(o)
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.Assignment != nil {
		a := o.Assignment.Clone()
		o.Assignment = &a
	}
	return o
}
