package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateVehicle   = errors.New("duplicate vehicle")
	ErrAlreadyAssigned    = errors.New("vehicle already assigned")
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
	ErrAlreadyTerminal    = errors.New("order already terminal")
)

// ValidationError rejects malformed input at the boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown vehicle, order or incident id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateVehicleError is returned when registering an existing id.
type DuplicateVehicleError struct {
	ID string
}

func (e *DuplicateVehicleError) Error() string {
	return fmt.Sprintf("vehicle %q already registered", e.ID)
}

func (e *DuplicateVehicleError) Is(target error) bool { return target == ErrDuplicateVehicle }

// AlreadyAssignedError is returned by TryAssign when another order holds the vehicle.
type AlreadyAssignedError struct {
	VehicleID      string
	CurrentOrderID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("vehicle %q already assigned to order %q", e.VehicleID, e.CurrentOrderID)
}

func (e *AlreadyAssignedError) Is(target error) bool { return target == ErrAlreadyAssigned }

// VehicleUnavailableError is returned by TryAssign when the vehicle cannot take work.
type VehicleUnavailableError struct {
	VehicleID string
	Status    VehicleStatus
}

func (e *VehicleUnavailableError) Error() string {
	return fmt.Sprintf("vehicle %q unavailable (%s)", e.VehicleID, e.Status)
}

func (e *VehicleUnavailableError) Is(target error) bool { return target == ErrVehicleUnavailable }

// AlreadyTerminalError is returned when acting on a finished order.
type AlreadyTerminalError struct {
	OrderID string
	Status  OrderStatus
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("order %q already %s", e.OrderID, e.Status)
}

func (e *AlreadyTerminalError) Is(target error) bool { return target == ErrAlreadyTerminal }

// NewNotFound builds a NotFoundError.
func NewNotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }
