package fleet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

var depot = model.Point{Lat: 1.3521, Lng: 103.8198}

func newTestRegistry(t *testing.T) (*Registry, *eventbus.Queue) {
	t.Helper()
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	q := bus.SubscribeQueue()
	return NewRegistry(Config{}, bus, logger.NopLogger{}), q
}

func bike(id string, battery float64) model.Vehicle {
	return model.Vehicle{
		ID: id, Type: model.VehicleBike, Battery: battery, Position: depot,
		Capacity: model.Capacity{WeightKg: 50, VolumeL: 120},
	}
}

func eventsOf[T any](q *eventbus.Queue) []T {
	var out []T
	for _, e := range q.Drain() {
		if ev, ok := e.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

func TestRegisterDefaultsAndDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))

	v, err := r.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleIdle, v.Status)
	assert.False(t, v.LastSeen.IsZero())

	err = r.Register(bike("b1", 90))
	assert.ErrorIs(t, err, model.ErrDuplicateVehicle)

	busy := bike("b2", 90)
	busy.Status = model.VehicleAssigned
	assert.ErrorIs(t, r.Register(busy), model.ErrValidation)

	bad := bike("b3", 120)
	assert.ErrorIs(t, r.Register(bad), model.ErrValidation)
}

func TestGetUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Get("nope")
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vehicle", nf.Kind)
}

func TestTryAssignAndRelease(t *testing.T) {
	r, q := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	q.Drain()

	require.NoError(t, r.TryAssign("b1", "o1"))
	require.NoError(t, r.TryAssign("b1", "o1"), "same order is idempotent")

	err := r.TryAssign("b1", "o2")
	var aa *model.AlreadyAssignedError
	require.ErrorAs(t, err, &aa)
	assert.Equal(t, "o1", aa.CurrentOrderID)

	v, _ := r.Get("b1")
	assert.Equal(t, model.VehicleAssigned, v.Status)
	assert.Equal(t, "o1", v.CurrentOrderID)

	require.NoError(t, r.Release("b1"))
	v, _ = r.Get("b1")
	assert.Equal(t, model.VehicleIdle, v.Status)
	assert.Empty(t, v.CurrentOrderID)

	avail := eventsOf[events.VehicleAvailable](q)
	require.Len(t, avail, 1)
	assert.Equal(t, "o1", avail[0].PreviousOrderID)
}

func TestReleaseIsIdempotent(t *testing.T) {
	r, q := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	require.NoError(t, r.TryAssign("b1", "o1"))
	q.Drain()

	require.NoError(t, r.Release("b1"))
	first, _ := r.Get("b1")
	n := len(q.Drain())

	require.NoError(t, r.Release("b1"))
	second, _ := r.Get("b1")
	assert.Equal(t, first, second)
	assert.NotZero(t, n)
	assert.Zero(t, q.Len(), "second release must not emit events")

	assert.ErrorIs(t, r.Release("ghost"), model.ErrNotFound)
}

func TestReleaseLowBatteryGoesCharging(t *testing.T) {
	r, q := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 20)))
	require.NoError(t, r.TryAssign("b1", "o1"))
	q.Drain()

	require.NoError(t, r.Release("b1"))
	v, _ := r.Get("b1")
	assert.Equal(t, model.VehicleCharging, v.Status)

	evs := q.Drain()
	rel := 0
	for _, e := range evs {
		switch ev := e.(type) {
		case events.VehicleAvailable:
			t.Fatalf("charging vehicle announced available: %+v", ev)
		case events.VehicleReleased:
			rel++
			assert.Equal(t, "o1", ev.PreviousOrderID)
			assert.Equal(t, model.VehicleCharging, ev.Status)
		}
	}
	assert.Equal(t, 1, rel)

	assert.ErrorIs(t, r.TryAssign("b1", "o2"), model.ErrVehicleUnavailable)
}

func TestReleaseForChecksOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	require.NoError(t, r.TryAssign("b1", "o1"))

	ok, err := r.ReleaseFor("b1", "other")
	require.NoError(t, err)
	assert.False(t, ok)
	v, _ := r.Get("b1")
	assert.Equal(t, "o1", v.CurrentOrderID)

	ok, err = r.ReleaseFor("b1", "o1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkEnRoute(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	assert.ErrorIs(t, r.MarkEnRoute("b1", "o1"), model.ErrAlreadyAssigned)

	require.NoError(t, r.TryAssign("b1", "o1"))
	require.NoError(t, r.MarkEnRoute("b1", "o1"))
	require.NoError(t, r.MarkEnRoute("b1", "o1"))
	v, _ := r.Get("b1")
	assert.Equal(t, model.VehicleEnRoute, v.Status)
}

func TestCriticalBatteryEmittedOncePerOrder(t *testing.T) {
	r, q := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	require.NoError(t, r.TryAssign("b1", "o1"))

	require.NoError(t, r.UpdateTelemetry("b1", depot, 14))
	assert.Empty(t, eventsOf[events.CriticalBattery](q), "ASSIGNED vehicles do not alert")

	require.NoError(t, r.MarkEnRoute("b1", "o1"))
	require.NoError(t, r.UpdateTelemetry("b1", depot, 12))
	require.NoError(t, r.UpdateTelemetry("b1", depot, 10))

	crit := eventsOf[events.CriticalBattery](q)
	require.Len(t, crit, 1)
	assert.Equal(t, "b1", crit[0].VehicleID)
	assert.Equal(t, "o1", crit[0].OrderID)
	assert.InDelta(t, 12, crit[0].Battery, 1e-9)
}

func TestTelemetryMovesVehicleInIndex(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	far := model.Point{Lat: 1.45, Lng: 103.95}

	require.NoError(t, r.UpdateTelemetry("b1", far, 88))
	assert.Empty(t, r.Nearby(depot, 2, nil))
	got := r.Nearby(far, 1, nil)
	require.Len(t, got, 1)
	assert.InDelta(t, 88, got[0].Vehicle.Battery, 1e-9)

	assert.ErrorIs(t, r.UpdateTelemetry("b1", model.Point{Lat: 95}, 50), model.ErrValidation)
	assert.ErrorIs(t, r.UpdateTelemetry("b1", far, 101), model.ErrValidation)
	assert.ErrorIs(t, r.UpdateTelemetry("zz", far, 50), model.ErrNotFound)
}

func TestChargingVehicleBecomesIdleWhenCharged(t *testing.T) {
	r, q := newTestRegistry(t)
	v := bike("b1", 40)
	v.Status = model.VehicleCharging
	require.NoError(t, r.Register(v))

	require.NoError(t, r.UpdateTelemetry("b1", depot, 79))
	got, _ := r.Get("b1")
	assert.Equal(t, model.VehicleCharging, got.Status)

	require.NoError(t, r.UpdateTelemetry("b1", depot, 80))
	got, _ = r.Get("b1")
	assert.Equal(t, model.VehicleIdle, got.Status)
	assert.Len(t, eventsOf[events.VehicleAvailable](q), 1)
}

func TestSetStatusReturnsOrphan(t *testing.T) {
	r, q := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))
	require.NoError(t, r.TryAssign("b1", "o1"))
	q.Drain()

	orphan, err := r.SetStatus("b1", model.VehicleMaintenance)
	require.NoError(t, err)
	assert.Equal(t, "o1", orphan)

	v, _ := r.Get("b1")
	assert.Equal(t, model.VehicleMaintenance, v.Status)
	assert.Empty(t, v.CurrentOrderID)

	changed := eventsOf[events.VehicleStatusChanged](q)
	require.Len(t, changed, 1)
	assert.Equal(t, "o1", changed[0].OrphanedOrderID)

	_, err = r.SetStatus("b1", model.VehicleAssigned)
	assert.ErrorIs(t, err, model.ErrValidation)

	orphan, err = r.SetStatus("b1", model.VehicleIdle)
	require.NoError(t, err)
	assert.Empty(t, orphan)
	assert.Len(t, eventsOf[events.VehicleAvailable](q), 1)
}

func TestListAndNearbyFilters(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, v := range DemoFleet() {
		require.NoError(t, r.Register(v))
	}
	require.Len(t, r.List(Filter{}), 4)
	drones := r.List(Filter{Type: model.VehicleDrone})
	require.Len(t, drones, 2)
	assert.Equal(t, "drone-1", drones[0].ID)

	idle := r.Nearby(depot, 1, Idle)
	ids := make([]string, 0, len(idle))
	for _, c := range idle {
		ids = append(ids, c.Vehicle.ID)
	}
	assert.Equal(t, []string{"bike-1", "bike-2", "drone-1"}, ids)

	counts := r.CountByStatus()
	assert.Equal(t, 3, counts[model.VehicleIdle])
	assert.Equal(t, 1, counts[model.VehicleCharging])
}

func TestTryAssignConcurrentSingleWinner(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(bike("b1", 90)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.TryAssign("b1", fmt.Sprintf("o%d", i))
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, model.ErrAlreadyAssigned) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestConfigValidate(t *testing.T) {
	c := Config{}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	c.CriticalBattery = 50
	assert.Error(t, c.Validate())
}
