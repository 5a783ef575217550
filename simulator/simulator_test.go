package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	infmqtt "github.com/kilianp07/fleetdispatch/infra/mqtt"
	"github.com/kilianp07/fleetdispatch/infra/telemetry"
)

var (
	depot   = model.Point{Lat: 1.3521, Lng: 103.8198}
	pickupA = model.Point{Lat: 1.3048, Lng: 103.8318}
	dropA   = model.Point{Lat: 1.3100, Lng: 103.8400}
)

type world struct {
	reg   *fleet.Registry
	sched *dispatch.Scheduler
	sim   *Simulator
}

func newWorld(t *testing.T, cfg config.SimulatorConfig, vehicles ...model.Vehicle) *world {
	t.Helper()
	dispatch.ResetMetrics(nil)
	reg := fleet.NewRegistry(fleet.Config{}, nil, logger.NopLogger{})
	for _, v := range vehicles {
		require.NoError(t, reg.Register(v))
	}
	cm := cost.New(cost.Config{})
	sched, err := dispatch.NewScheduler(dispatch.Config{}, reg, cm, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	sim, err := New(cfg, reg, sched, DirectReporter{Fleet: reg, Orders: sched}, cm, logger.NopLogger{})
	require.NoError(t, err)
	return &world{reg: reg, sched: sched, sim: sim}
}

func bike(id string, battery float64, status model.VehicleStatus) model.Vehicle {
	return model.Vehicle{
		ID: id, Type: model.VehicleBike, Battery: battery, Position: depot, Status: status,
		Capacity: model.Capacity{WeightKg: 50, VolumeL: 120},
	}
}

func TestSimulatorDeliversOrder(t *testing.T) {
	w := newWorld(t, config.SimulatorConfig{}, bike("bike-1", 90, model.VehicleIdle))
	id, err := w.sched.Submit(model.Order{Pickup: pickupA, Dropoff: dropA, WeightKg: 2})
	require.NoError(t, err)
	o, err := w.sched.Order(id)
	require.NoError(t, err)
	require.Equal(t, model.OrderAssigned, o.Status)

	ctx := context.Background()
	for i := 0; i < 40; i++ {
		w.sim.Step(ctx, time.Minute)
		if o, _ = w.sched.Order(id); o.Status == model.OrderDelivered {
			break
		}
	}
	require.Equal(t, model.OrderDelivered, o.Status)

	st := w.sim.Stats()
	assert.Equal(t, 1, st.PickupsReported)
	assert.Equal(t, 1, st.DeliveriesReported)
	assert.Zero(t, st.ReportErrors)
	assert.Zero(t, st.ReportsDropped)

	v, err := w.reg.Get("bike-1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleIdle, v.Status)
	assert.Equal(t, dropA, v.Position)
	trip := geo.DistanceKm(depot, pickupA) + geo.DistanceKm(pickupA, dropA)
	assert.InDelta(t, 90-trip*5, v.Battery, 0.5)
}

func TestSimulatorWaitsForPickupConfirmation(t *testing.T) {
	w := newWorld(t, config.SimulatorConfig{}, bike("bike-1", 90, model.VehicleIdle))
	id, err := w.sched.Submit(model.Order{Pickup: depot, Dropoff: dropA, WeightKg: 2})
	require.NoError(t, err)

	// a lost confirmation leaves the vehicle waiting at the pickup
	w.sim.rep = NewLossyReporter(DirectReporter{Fleet: w.reg, Orders: w.sched}, 0, 1, 1, logger.NopLogger{})
	for i := 0; i < 5; i++ {
		w.sim.Step(context.Background(), time.Minute)
	}
	o, err := w.sched.Order(id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAssigned, o.Status)
	st := w.sim.Stats()
	assert.Zero(t, st.PickupsReported)
	assert.Equal(t, 1, st.ReportsDropped)
	assert.Zero(t, st.ReportErrors)
}

func TestSimulatorCharges(t *testing.T) {
	w := newWorld(t, config.SimulatorConfig{ChargePctPerMin: 2}, bike("bike-1", 20, model.VehicleCharging))
	w.sim.Step(context.Background(), 10*time.Minute)
	v, err := w.reg.Get("bike-1")
	require.NoError(t, err)
	assert.InDelta(t, 40, v.Battery, 1e-9)
	assert.Equal(t, model.VehicleCharging, v.Status)

	for i := 0; i < 3; i++ {
		w.sim.Step(context.Background(), 10*time.Minute)
	}
	v, err = w.reg.Get("bike-1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleIdle, v.Status)
}

func TestSimulatorSubmitsOrders(t *testing.T) {
	w := newWorld(t, config.SimulatorConfig{OrderIntervalSeconds: 60, Vehicles: 4})
	require.NoError(t, w.sim.Seed())
	require.NoError(t, w.sim.Seed())
	assert.Len(t, w.reg.List(fleet.Filter{}), 4)

	w.sim.Step(context.Background(), 150*time.Second)
	assert.Equal(t, 2, w.sim.Stats().OrdersSubmitted)
	assert.Len(t, w.sched.Orders(dispatch.OrderFilter{}), 2)
	w.sim.Step(context.Background(), 30*time.Second)
	assert.Equal(t, 3, w.sim.Stats().OrdersSubmitted)
}

func TestGenerateFleet(t *testing.T) {
	cfg := config.SimulatorConfig{Vehicles: 20, DronePct: 0.5}
	cfg.SetDefaults()
	vs := GenerateFleet(cfg, rand.New(rand.NewSource(1)))
	require.Len(t, vs, 20)
	types := map[model.VehicleType]int{}
	for _, v := range vs {
		types[v.Type]++
		assert.NoError(t, v.Validate())
		assert.LessOrEqual(t, geo.DistanceKm(cfg.Center, v.Position), cfg.SpreadKm+0.01)
	}
	assert.Equal(t, 20, types[model.VehicleBike]+types[model.VehicleDrone])
	assert.Positive(t, types[model.VehicleDrone])

	cfg.DronePct = 0
	vs = GenerateFleet(cfg, rand.New(rand.NewSource(1)))
	assert.Equal(t, "sim-bike-001", vs[0].ID)
	assert.Equal(t, "sim-bike-020", vs[19].ID)
	assert.Empty(t, GenerateFleet(config.SimulatorConfig{}, rand.New(rand.NewSource(1))))
}

func TestBattery(t *testing.T) {
	b := Battery{Pct: 10, PctPerKm: 5, ChargePctPerMin: 2}
	assert.Equal(t, 0.0, b.Drive(3))
	assert.InDelta(t, 20, b.Charge(10*time.Minute), 1e-9)
	b.Pct = 99
	assert.Equal(t, 100.0, b.Charge(time.Hour))
}

type recordingReporter struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingReporter) Telemetry(context.Context, string, model.Telemetry) error { return nil }

func (r *recordingReporter) Status(_ context.Context, _, orderID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, orderID+"/"+status)
	return nil
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func TestLossyReporterDelays(t *testing.T) {
	next := &recordingReporter{}
	l := NewLossyReporter(next, 20*time.Millisecond, 0, 1, logger.NopLogger{})
	require.NoError(t, l.Status(context.Background(), "bike-1", "o1", telemetry.StatusPickedUp))
	assert.Equal(t, 0, next.count())
	require.Eventually(t, func() bool { return next.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestLossyReporterCanceled(t *testing.T) {
	next := &recordingReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLossyReporter(next, 20*time.Millisecond, 0, 1, logger.NopLogger{})
	require.NoError(t, l.Status(ctx, "bike-1", "o1", telemetry.StatusPickedUp))
	cancel()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, next.count())
}

func TestDirectReporterUnknownStatus(t *testing.T) {
	w := newWorld(t, config.SimulatorConfig{})
	assert.Error(t, DirectReporter{Fleet: w.reg, Orders: w.sched}.Status(context.Background(), "v", "o", "lost"))
}

type stubToken struct{}

func (stubToken) Wait() bool                     { return true }
func (stubToken) WaitTimeout(time.Duration) bool { return true }
func (stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (stubToken) Error() error { return nil }

type stubPublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (s *stubPublisher) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	s.bodies = append(s.bodies, payload.([]byte))
	return stubToken{}
}

func (s *stubPublisher) Disconnect(uint) {}

func TestMQTTReporterTopics(t *testing.T) {
	pub := &stubPublisher{}
	orig := newMQTTClient
	newMQTTClient = func(infmqtt.Config) (publisher, error) { return pub, nil }
	t.Cleanup(func() { newMQTTClient = orig })

	rep, err := NewMQTTReporter(infmqtt.Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	heading := 45.0
	require.NoError(t, rep.Telemetry(context.Background(), "bike-1", model.Telemetry{
		Position: pickupA, Heading: &heading, Battery: 70, Time: time.Unix(1700000000, 0),
	}))
	require.NoError(t, rep.Status(context.Background(), "bike-1", "o1", telemetry.StatusDelivered))
	rep.Close()

	require.Equal(t, []string{"fleet/vehicle/bike-1/telemetry", "fleet/vehicle/bike-1/status"}, pub.topics)
	var tel map[string]any
	require.NoError(t, json.Unmarshal(pub.bodies[0], &tel))
	assert.Equal(t, "bike-1", tel["vehicle_id"])
	assert.Equal(t, 70.0, tel["battery"])
	assert.Equal(t, 45.0, tel["heading"])
	assert.Equal(t, float64(1700000000), tel["ts"])
	var st map[string]any
	require.NoError(t, json.Unmarshal(pub.bodies[1], &st))
	assert.Equal(t, "delivered", st["status"])
}
