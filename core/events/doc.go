// Package events defines the dispatch related events emitted on the event bus.
//
// Fleet events, published by the vehicle registry:
//   - CriticalBattery: battery under the critical threshold while EN_ROUTE
//   - VehicleAvailable: a vehicle became IDLE
//   - VehicleStatusChanged: status transition, may carry an orphaned order
//   - VehicleReleased: an assignment was cleared by a release
//   - VehicleTelemetry: position and battery sample accepted
//
// Scheduler events:
//   - OrderSubmitted, OrderAssigned, OrderReassigned, OrderStatusChanged
//   - OrderDelivered: final snapshot used for emission accounting
//   - AssignmentTimedOut: an ASSIGNED order was not picked up in time
//   - DispatchFailedRetryExceeded: an order stayed PENDING for too many passes
//   - PlannerEvent: batch planner strategy selection and fallback
//
// Notification events:
//   - VehicleNotified: an assignment or cancellation command was published
//
// Incident events:
//   - IncidentReported, IncidentResolved
package events
