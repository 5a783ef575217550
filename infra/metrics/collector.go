package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards events to the
// optional recorders implemented by sink. A reliable queue is used so that
// deliveries are never dropped from the emissions ledger. It stops when the
// context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	q := bus.SubscribeQueue()
	go func() {
		defer bus.UnsubscribeQueue(q)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-q.Ready():
				for _, ev := range q.Drain() {
					if err := collect(sink, ev); err != nil && log != nil {
						log.Errorf("metrics collector: %v", err)
					}
				}
				if !ok {
					return
				}
			}
		}
	}()
}

func collect(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.OrderStatusChanged:
		if r, ok := sink.(coremetrics.OrderStatusRecorder); ok {
			return r.RecordOrderStatus(coremetrics.OrderStatusEvent{
				OrderID:   e.OrderID,
				VehicleID: e.VehicleID,
				From:      e.From,
				To:        e.To,
				Reason:    e.Reason,
				Time:      e.Time,
			})
		}
	case events.OrderReassigned:
		if r, ok := sink.(coremetrics.DisruptionRecorder); ok {
			return r.RecordDisruption(coremetrics.DisruptionEvent{
				OrderID:    e.OriginalOrderID,
				NewOrderID: e.NewOrderID,
				VehicleID:  e.VehicleID,
				Reason:     e.Reason,
				Time:       e.Time,
			})
		}
	case events.OrderDelivered:
		if r, ok := sink.(coremetrics.DeliveryRecorder); ok {
			return r.RecordDelivery(deliveryEvent(e))
		}
	case events.IncidentReported:
		if r, ok := sink.(coremetrics.IncidentRecorder); ok {
			return r.RecordIncident(coremetrics.IncidentEvent{Incident: e.Incident, Time: e.Incident.ReportedAt})
		}
	case events.IncidentResolved:
		if r, ok := sink.(coremetrics.IncidentRecorder); ok {
			t := time.Now()
			if e.Incident.ResolvedAt != nil {
				t = *e.Incident.ResolvedAt
			}
			return r.RecordIncident(coremetrics.IncidentEvent{Incident: e.Incident, Time: t})
		}
	case events.VehicleTelemetry:
		if r, ok := sink.(coremetrics.VehicleStateRecorder); ok {
			return r.RecordVehicleState(coremetrics.VehicleStateEvent{Vehicle: e.Vehicle, Component: "telemetry", Time: e.Time})
		}
	case events.VehicleNotified:
		if r, ok := sink.(coremetrics.NotificationRecorder); ok {
			errStr := ""
			if e.Err != nil {
				errStr = e.Err.Error()
			}
			return r.RecordNotification(coremetrics.NotificationEvent{
				VehicleID: e.VehicleID,
				OrderID:   e.OrderID,
				Kind:      e.Kind,
				Delivered: e.Err == nil,
				Error:     errStr,
				Time:      e.Time,
			})
		}
	}
	return nil
}

func deliveryEvent(e events.OrderDelivered) coremetrics.DeliveryEvent {
	ev := coremetrics.DeliveryEvent{
		OrderID:   e.Order.ID,
		VehicleID: e.Order.VehicleID,
		Time:      e.Time,
	}
	if a := e.Order.Assignment; a != nil {
		ev.Mode = a.Route.Mode
		ev.DistanceKm = a.Route.TotalDistanceKm
		ev.EnergyKWh = a.Route.Total.EnergyKWh
		ev.CO2eGrams = a.Route.Total.CO2eGrams
		for _, l := range a.Route.Legs {
			if l.Kind == model.LegApproach {
				ev.VehicleType = vehicleTypeOf(l.Mode)
				break
			}
		}
	}
	return ev
}

func vehicleTypeOf(m model.DeliveryMode) model.VehicleType {
	if vt, ok := m.VehicleType(); ok {
		return vt
	}
	return ""
}

// FleetCounter reports the number of vehicles per status.
type FleetCounter interface {
	CountByStatus() map[model.VehicleStatus]int
}

// StartFleetSampler periodically records the fleet size by status when the
// sink supports it.
func StartFleetSampler(ctx context.Context, fleet FleetCounter, sink coremetrics.MetricsSink, interval time.Duration, log logger.Logger) {
	r, ok := sink.(coremetrics.FleetSizeRecorder)
	if !ok || fleet == nil || interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if err := r.RecordFleetSize(fleet.CountByStatus()); err != nil && log != nil {
				log.Errorf("fleet size metrics: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}
