// Package notify defines how dispatch decisions are pushed to vehicles.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Command kinds.
const (
	KindAssignment   = "assignment"
	KindCancellation = "cancellation"
)

// ErrNotConnected is returned when the transport has no live connection.
var ErrNotConnected = errors.New("notifier not connected")

// Command is the payload sent to a vehicle.
type Command struct {
	ID        string             `json:"command_id"`
	Kind      string             `json:"kind"`
	VehicleID string             `json:"vehicle_id"`
	OrderID   string             `json:"order_id"`
	Pickup    *model.Point       `json:"pickup,omitempty"`
	Dropoff   *model.Point       `json:"dropoff,omitempty"`
	Priority  model.Priority     `json:"priority,omitempty"`
	Deadline  *time.Time         `json:"deadline,omitempty"`
	ETA       *time.Time         `json:"eta,omitempty"`
	Route     *model.Route       `json:"route,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Timestamp int64              `json:"timestamp"`
	Mode      model.DeliveryMode `json:"mode,omitempty"`
}

// Notifier pushes commands to vehicles.
type Notifier interface {
	NotifyAssignment(ctx context.Context, o model.Order, a model.Assignment) error
	NotifyCancellation(ctx context.Context, vehicleID, orderID, reason string) error
}

// NopNotifier drops every command.
type NopNotifier struct{}

func (NopNotifier) NotifyAssignment(context.Context, model.Order, model.Assignment) error {
	return nil
}

func (NopNotifier) NotifyCancellation(context.Context, string, string, string) error { return nil }

// AssignmentCommand builds the command announcing an assignment.
func AssignmentCommand(id string, o model.Order, a model.Assignment, now time.Time) Command {
	pickup, dropoff := o.Pickup, o.Dropoff
	deadline, eta := o.Deadline, a.ETA
	route := a.Route
	return Command{
		ID:        id,
		Kind:      KindAssignment,
		VehicleID: a.VehicleID,
		OrderID:   o.ID,
		Pickup:    &pickup,
		Dropoff:   &dropoff,
		Priority:  o.Priority,
		Deadline:  &deadline,
		ETA:       &eta,
		Route:     &route,
		Mode:      a.Route.Mode,
		Timestamp: now.UnixMilli(),
	}
}

// CancellationCommand builds the command withdrawing an order from a vehicle.
func CancellationCommand(id, vehicleID, orderID, reason string, now time.Time) Command {
	return Command{
		ID:        id,
		Kind:      KindCancellation,
		VehicleID: vehicleID,
		OrderID:   orderID,
		Reason:    reason,
		Timestamp: now.UnixMilli(),
	}
}
