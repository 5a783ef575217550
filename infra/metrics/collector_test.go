package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/events"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

type recordingSink struct {
	coremetrics.NopSink
	mu         sync.Mutex
	statuses   []coremetrics.OrderStatusEvent
	disrupted  []coremetrics.DisruptionEvent
	incidents  []coremetrics.IncidentEvent
	states     []coremetrics.VehicleStateEvent
	notified   []coremetrics.NotificationEvent
	deliveries []coremetrics.DeliveryEvent
	fleet      []map[model.VehicleStatus]int
}

func (s *recordingSink) RecordOrderStatus(ev coremetrics.OrderStatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, ev)
	return nil
}

func (s *recordingSink) RecordDisruption(ev coremetrics.DisruptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disrupted = append(s.disrupted, ev)
	return nil
}

func (s *recordingSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, ev)
	return nil
}

func (s *recordingSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, ev)
	return nil
}

func (s *recordingSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, ev)
	return nil
}

func (s *recordingSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, ev)
	return nil
}

func (s *recordingSink) RecordFleetSize(c map[model.VehicleStatus]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fleet = append(s.fleet, c)
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses) + len(s.disrupted) + len(s.incidents) + len(s.states) + len(s.notified) + len(s.deliveries)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink, logger.NopLogger{})

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	route := model.Route{Mode: model.ModeHybrid}
	route.Append(model.RouteLeg{Kind: model.LegApproach, Mode: model.ModeDrone, DistanceKm: 1, Cost: model.LegCost{EnergyKWh: 0.1, CO2eGrams: 50}})
	route.Append(model.RouteLeg{Kind: model.LegDelivery, Mode: model.ModeBike, DistanceKm: 2, Cost: model.LegCost{EnergyKWh: 0.2, CO2eGrams: 100}})
	delivered := model.Order{ID: "o1", VehicleID: "drone-1", Status: model.OrderDelivered, Assignment: &model.Assignment{Route: route}}

	bus.Publish(events.OrderStatusChanged{OrderID: "o1", From: model.OrderPending, To: model.OrderAssigned, Time: now})
	bus.Publish(events.OrderReassigned{OriginalOrderID: "o1", NewOrderID: "o2", VehicleID: "bike-1", Reason: "critical_battery", Time: now})
	bus.Publish(events.IncidentReported{Incident: model.Incident{ID: "i1", ReportedAt: now}})
	bus.Publish(events.VehicleTelemetry{Vehicle: model.Vehicle{ID: "bike-1"}, Time: now})
	bus.Publish(events.VehicleNotified{VehicleID: "bike-1", OrderID: "o1", Kind: "assignment", Time: now})
	bus.Publish(events.OrderDelivered{Order: delivered, Time: now})
	bus.Publish(events.PlannerEvent{Action: "lp_attempt"})

	require.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "o2", sink.disrupted[0].NewOrderID)
	assert.Equal(t, now, sink.incidents[0].Time)
	assert.Equal(t, "telemetry", sink.states[0].Component)
	assert.True(t, sink.notified[0].Delivered)
	d := sink.deliveries[0]
	assert.Equal(t, model.VehicleDrone, d.VehicleType)
	assert.Equal(t, model.ModeHybrid, d.Mode)
	assert.InDelta(t, 3, d.DistanceKm, 1e-9)
	assert.InDelta(t, 150, d.CO2eGrams, 1e-9)
}

type staticFleet map[model.VehicleStatus]int

func (f staticFleet) CountByStatus() map[model.VehicleStatus]int { return f }

func TestStartFleetSampler(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartFleetSampler(ctx, staticFleet{model.VehicleIdle: 2}, sink, 10*time.Millisecond, logger.NopLogger{})
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.fleet) >= 2
	}, time.Second, 5*time.Millisecond)
}
