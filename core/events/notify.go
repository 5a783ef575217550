package events

import "time"

// VehicleNotified reports the outcome of a command published to a vehicle.
// Kind is "assignment" or "cancellation".
type VehicleNotified struct {
	VehicleID string
	OrderID   string
	Kind      string
	Err       error
	Time      time.Time
}
