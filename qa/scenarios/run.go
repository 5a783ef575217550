package scenarios

import (
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/incident"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

type world struct {
	now      time.Time
	reg      *fleet.Registry
	sched    *dispatch.Scheduler
	inc      *incident.Handler
	q        *eventbus.Queue
	prom     *prometheus.Registry
	timeouts int
}

// pump feeds queued fleet events into the scheduler until the queue settles.
func (w *world) pump() {
	for i := 0; i < 10; i++ {
		evs := w.q.Drain()
		if len(evs) == 0 {
			return
		}
		for _, ev := range evs {
			w.sched.HandleEvent(ev)
		}
	}
}

func newWorld(t *testing.T, sc *Scenario) *world {
	t.Helper()
	dispatch.ResetMetrics(nil)
	incident.ResetMetrics(nil)
	t.Cleanup(func() {
		dispatch.ResetMetrics(nil)
		incident.ResetMetrics(nil)
	})

	w := &world{
		now:  time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		prom: prometheus.NewRegistry(),
	}
	clock := func() time.Time { return w.now }
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, w.prom)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	bus := eventbus.New()
	t.Cleanup(bus.Close)
	w.q = bus.SubscribeQueue()

	w.reg = fleet.NewRegistry(fleet.Config{}, bus, logger.NopLogger{})
	w.reg.SetClock(clock)
	for _, v := range sc.Vehicles {
		if err := w.reg.Register(v.ToModel()); err != nil {
			t.Fatalf("register %s: %v", v.ID, err)
		}
	}

	cfg := dispatch.Config{
		Planner:                  sc.Planner,
		AssignmentTimeoutSeconds: sc.AssignmentTimeoutSecs,
	}
	w.sched, err = dispatch.NewScheduler(cfg, w.reg, cost.New(cost.Config{}), bus, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	w.sched.SetClock(clock)

	w.inc, err = incident.NewHandler(w.reg, w.sched, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("incident handler: %v", err)
	}
	w.inc.SetClock(clock)
	w.q.Drain()
	return w
}

func (w *world) apply(st Step) error {
	switch st.kind() {
	case "submit":
		_, err := w.sched.Submit(st.Submit.ToModel())
		return err
	case "register":
		return w.reg.Register(st.Register.ToModel())
	case "telemetry":
		return w.reg.ApplyTelemetry(st.Telemetry.Vehicle, model.Telemetry{
			Position: model.Point{Lat: st.Telemetry.Lat, Lng: st.Telemetry.Lng},
			Battery:  st.Telemetry.Battery,
			Time:     w.now,
		})
	case "picked_up":
		return w.sched.MarkInTransit(st.PickedUp)
	case "delivered":
		return w.sched.MarkDelivered(st.Delivered)
	case "cancel":
		return w.sched.Cancel(st.Cancel)
	case "incident":
		_, err := w.inc.Report(model.Incident{
			VehicleID: st.Incident.VehicleID,
			OrderID:   st.Incident.OrderID,
			Type:      model.IncidentType(st.Incident.Type),
			Severity:  model.Severity(st.Incident.Severity),
		})
		return err
	case "resolve":
		for _, inc := range w.inc.List(incident.Filter{VehicleID: st.Resolve, OpenOnly: true}) {
			if _, err := w.inc.Resolve(inc.ID, "resolved by scenario"); err != nil {
				return err
			}
		}
		return nil
	case "set_status":
		_, err := w.reg.SetStatus(st.SetStatus.Vehicle, model.VehicleStatus(st.SetStatus.Status))
		return err
	case "advance":
		d, _ := time.ParseDuration(st.Advance)
		w.now = w.now.Add(d)
		w.timeouts += w.sched.CheckTimeouts(w.now)
		w.pump()
		w.sched.RetryPending()
	}
	return nil
}

// RunScenario replays sc step by step and checks its expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	w := newWorld(t, sc)

	for i, st := range sc.Steps {
		err := w.apply(st)
		switch {
		case st.ExpectError && err == nil:
			t.Fatalf("step %d (%s): expected an error", i+1, st.kind())
		case !st.ExpectError && err != nil:
			t.Fatalf("step %d (%s): %v", i+1, st.kind(), err)
		}
		w.pump()
	}

	exp := sc.Expected
	for id, want := range exp.Orders {
		o, err := w.sched.Order(id)
		if err != nil {
			t.Errorf("order %s: %v", id, err)
			continue
		}
		if want.Status != "" && string(o.Status) != want.Status {
			t.Errorf("order %s: status %s, want %s", id, o.Status, want.Status)
		}
		if want.Vehicle != "" && o.VehicleID != want.Vehicle {
			t.Errorf("order %s: vehicle %q, want %q", id, o.VehicleID, want.Vehicle)
		}
		if want.Mode != "" {
			if o.Assignment == nil {
				t.Errorf("order %s: no assignment, want mode %s", id, want.Mode)
			} else if string(o.Assignment.Route.Mode) != want.Mode {
				t.Errorf("order %s: mode %s, want %s", id, o.Assignment.Route.Mode, want.Mode)
			}
		}
	}
	for id, want := range exp.Vehicles {
		v, err := w.reg.Get(id)
		if err != nil {
			t.Errorf("vehicle %s: %v", id, err)
			continue
		}
		if string(v.Status) != want {
			t.Errorf("vehicle %s: status %s, want %s", id, v.Status, want)
		}
	}
	if len(exp.Counts) > 0 {
		got := w.sched.Counts()
		for status, want := range exp.Counts {
			if n := got[model.OrderStatus(status)]; n != want {
				t.Errorf("%s orders: %d, want %d", status, n, want)
			}
		}
	}
	if w.timeouts != exp.Timeouts {
		t.Errorf("timeouts: %d, want %d", w.timeouts, exp.Timeouts)
	}
	if exp.Assignments > 0 {
		if n := counterTotal(t, w.prom, "fleet_assignments_total"); int(n) != exp.Assignments {
			t.Errorf("assignments recorded: %.0f, want %d", n, exp.Assignments)
		}
	}
}

func counterTotal(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	i := sort.Search(len(mfs), func(i int) bool { return mfs[i].GetName() >= name })
	if i == len(mfs) || mfs[i].GetName() != name {
		return 0
	}
	var total float64
	for _, m := range mfs[i].GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}
