package events

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// CriticalBattery is emitted when an EN_ROUTE vehicle drops under the
// critical battery threshold.
type CriticalBattery struct {
	VehicleID string
	OrderID   string
	Battery   float64
	Time      time.Time
}

// VehicleAvailable is emitted when a vehicle becomes IDLE. PreviousOrderID is
// the order it held before a release, if any.
type VehicleAvailable struct {
	VehicleID       string
	PreviousOrderID string
	Time            time.Time
}

// VehicleStatusChanged is emitted on administrative status overrides.
// OrphanedOrderID is set when the override cleared an assignment.
type VehicleStatusChanged struct {
	VehicleID       string
	From            model.VehicleStatus
	To              model.VehicleStatus
	OrphanedOrderID string
	Time            time.Time
}

// VehicleTelemetry carries the vehicle snapshot after a telemetry update.
type VehicleTelemetry struct {
	Vehicle model.Vehicle
	Time    time.Time
}

// VehicleReleased is emitted when an assignment is cleared by Release.
// Status is the vehicle status after the release.
type VehicleReleased struct {
	VehicleID       string
	PreviousOrderID string
	Status          model.VehicleStatus
	Time            time.Time
}
