package events

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// OrderSubmitted is emitted when an order enters the scheduler.
type OrderSubmitted struct {
	Order model.Order
}

// OrderAssigned is emitted when an order is bound to a vehicle.
type OrderAssigned struct {
	Order      model.Order
	Assignment model.Assignment
	Attempts   int
	Latency    time.Duration
}

// OrderReassigned is emitted when a disrupted order is failed and cloned.
type OrderReassigned struct {
	OriginalOrderID string
	NewOrderID      string
	VehicleID       string
	Reason          string
	Time            time.Time
}

// OrderStatusChanged is emitted on every order transition.
type OrderStatusChanged struct {
	OrderID   string
	VehicleID string
	From      model.OrderStatus
	To        model.OrderStatus
	Reason    string
	Time      time.Time
}

// AssignmentTimedOut is emitted when an ASSIGNED order was not picked up
// before its assignment expired.
type AssignmentTimedOut struct {
	OrderID   string
	VehicleID string
	Time      time.Time
}

// DispatchFailedRetryExceeded is emitted once when an order has stayed
// PENDING for the configured number of dispatch passes.
type DispatchFailedRetryExceeded struct {
	OrderID  string
	Attempts int
	Time     time.Time
}

// PlannerEvent is emitted when the batch planner picks a strategy.
// Action can be "lp_attempt", "lp_failure" or "greedy_fallback".
type PlannerEvent struct {
	Action string
	Orders int
	Err    error
}

// OrderDelivered carries the final order snapshot, including its route.
type OrderDelivered struct {
	Order model.Order
	Time  time.Time
}
