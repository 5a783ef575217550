package metrics

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// AssignmentEvent represents a committed order-to-vehicle assignment.
type AssignmentEvent struct {
	OrderID     string
	VehicleID   string
	VehicleType model.VehicleType
	Priority    model.Priority
	Mode        model.DeliveryMode
	Score       float64
	DistanceKm  float64
	DurationMin float64
	EnergyKWh   float64
	CO2eGrams   float64
	Attempts    int
	Time        time.Time
}

// MetricsSink records dispatch results for observability purposes.
type MetricsSink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// OrderStatusEvent captures an order lifecycle transition.
type OrderStatusEvent struct {
	OrderID   string
	VehicleID string
	From      model.OrderStatus
	To        model.OrderStatus
	Reason    string
	Time      time.Time
}

// OrderStatusRecorder records order transitions.
type OrderStatusRecorder interface {
	RecordOrderStatus(ev OrderStatusEvent) error
}

// DisruptionEvent records a failed order and its requeued clone.
type DisruptionEvent struct {
	OrderID    string
	NewOrderID string
	VehicleID  string
	Reason     string
	Time       time.Time
}

// DisruptionRecorder records disruptions.
type DisruptionRecorder interface {
	RecordDisruption(ev DisruptionEvent) error
}

// IncidentEvent is emitted when an incident is reported or resolved.
type IncidentEvent struct {
	Incident model.Incident
	Time     time.Time
}

// IncidentRecorder records incidents.
type IncidentRecorder interface {
	RecordIncident(ev IncidentEvent) error
}

// VehicleStateEvent is a snapshot of a vehicle.
type VehicleStateEvent struct {
	Vehicle   model.Vehicle
	Component string
	Time      time.Time
}

// VehicleStateRecorder records vehicle state snapshots.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// NotificationEvent records a command published to a vehicle.
type NotificationEvent struct {
	VehicleID string
	OrderID   string
	Kind      string
	Delivered bool
	Error     string
	Time      time.Time
}

// NotificationRecorder records vehicle notifications.
type NotificationRecorder interface {
	RecordNotification(ev NotificationEvent) error
}

// DeliveryEvent carries the route totals of a delivered order.
type DeliveryEvent struct {
	OrderID     string
	VehicleID   string
	VehicleType model.VehicleType
	Mode        model.DeliveryMode
	DistanceKm  float64
	EnergyKWh   float64
	CO2eGrams   float64
	Time        time.Time
}

// DeliveryRecorder records completed deliveries.
type DeliveryRecorder interface {
	RecordDelivery(ev DeliveryEvent) error
}

// DispatchLatency is the time from submission to the outcome of an assignment pass.
type DispatchLatency struct {
	OrderID  string
	Priority model.Priority
	Assigned bool
	Latency  time.Duration
}

// LatencyRecorder is implemented by sinks able to record dispatch latency.
type LatencyRecorder interface {
	RecordDispatchLatency(latencies []DispatchLatency) error
}

// FleetSizeRecorder records the number of vehicles per status.
type FleetSizeRecorder interface {
	RecordFleetSize(counts map[model.VehicleStatus]int) error
}

// NopSink implements MetricsSink and every optional recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error            { return nil }
func (NopSink) RecordOrderStatus(OrderStatusEvent) error          { return nil }
func (NopSink) RecordDisruption(DisruptionEvent) error            { return nil }
func (NopSink) RecordIncident(IncidentEvent) error                { return nil }
func (NopSink) RecordVehicleState(VehicleStateEvent) error        { return nil }
func (NopSink) RecordNotification(NotificationEvent) error        { return nil }
func (NopSink) RecordDelivery(DeliveryEvent) error                { return nil }
func (NopSink) RecordDispatchLatency([]DispatchLatency) error     { return nil }
func (NopSink) RecordFleetSize(map[model.VehicleStatus]int) error { return nil }
