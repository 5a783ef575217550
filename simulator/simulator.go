// Package simulator drives a virtual fleet against the dispatch core: it
// moves assigned vehicles to their pickup and dropoff points, drains and
// recharges batteries, confirms pickups and deliveries and submits random
// orders.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/telemetry"
)

// Fleet is the part of the registry read and fed by the simulator.
type Fleet interface {
	Register(v model.Vehicle) error
	List(f fleet.Filter) []model.Vehicle
}

// Orders is the part of the scheduler used by the simulator.
type Orders interface {
	Submit(o model.Order) (string, error)
	Order(id string) (model.Order, error)
}

// Stats counts what the simulator did.
type Stats struct {
	Steps              int
	OrdersSubmitted    int
	TelemetrySent      int
	PickupsReported    int
	DeliveriesReported int
	ReportsDropped     int
	ReportErrors       int
}

// Simulator advances the virtual fleet one step at a time. It is driven by a
// single goroutine.
type Simulator struct {
	cfg    config.SimulatorConfig
	fleet  Fleet
	orders Orders
	rep    Reporter
	cost   *cost.Model
	log    logger.Logger
	rng    *rand.Rand
	now    func() time.Time

	// reported holds the last order/status reported per vehicle so the
	// report is not repeated while the scheduler catches up.
	reported   map[string]string
	sinceOrder time.Duration
	stats      Stats
}

// New creates a simulator reporting through rep.
func New(cfg config.SimulatorConfig, f Fleet, o Orders, rep Reporter, cm *cost.Model, log logger.Logger) (*Simulator, error) {
	if f == nil || o == nil || rep == nil || cm == nil || log == nil {
		return nil, fmt.Errorf("simulator: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:      cfg,
		fleet:    f,
		orders:   o,
		rep:      rep,
		cost:     cm,
		log:      log,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		now:      time.Now,
		reported: make(map[string]string),
	}, nil
}

// SetClock overrides the time source used for telemetry timestamps.
func (s *Simulator) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Stats returns the counters.
func (s *Simulator) Stats() Stats { return s.stats }

// Seed registers the generated vehicles. Ids already known are skipped.
func (s *Simulator) Seed() error {
	for _, v := range GenerateFleet(s.cfg, s.rng) {
		if err := s.fleet.Register(v); err != nil {
			if errors.Is(err, model.ErrDuplicateVehicle) {
				continue
			}
			return err
		}
	}
	return nil
}

// Run steps the simulation every tick until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick())
	defer ticker.Stop()
	s.log.Infof("simulator: running (tick=%s, step=%s, transport=%s)", s.cfg.Tick(), s.cfg.Step(), s.cfg.Transport)
	for {
		select {
		case <-ctx.Done():
			st := s.stats
			s.log.Infof("simulator: stopped after %d steps, %d orders, %d deliveries", st.Steps, st.OrdersSubmitted, st.DeliveriesReported)
			return nil
		case <-ticker.C:
			s.Step(ctx, s.cfg.Step())
		}
	}
}

// Step advances the fleet by dt of simulated time.
func (s *Simulator) Step(ctx context.Context, dt time.Duration) {
	s.stats.Steps++
	vehicles := s.fleet.List(fleet.Filter{})
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })
	for _, v := range vehicles {
		switch v.Status {
		case model.VehicleAssigned, model.VehicleEnRoute:
			s.drive(ctx, v, dt)
		case model.VehicleCharging:
			s.charge(ctx, v, dt)
		default:
			delete(s.reported, v.ID)
		}
	}
	if s.cfg.OrderIntervalSeconds <= 0 {
		return
	}
	interval := time.Duration(s.cfg.OrderIntervalSeconds) * time.Second
	s.sinceOrder += dt
	for s.sinceOrder >= interval {
		s.sinceOrder -= interval
		s.submitRandomOrder()
	}
}

func (s *Simulator) drive(ctx context.Context, v model.Vehicle, dt time.Duration) {
	o, err := s.orders.Order(v.CurrentOrderID)
	if err != nil {
		return
	}
	target, status := o.Pickup, telemetry.StatusPickedUp
	if v.Status == model.VehicleEnRoute {
		target, status = o.Dropoff, telemetry.StatusDelivered
	}
	key := o.ID + "/" + status
	if s.reported[v.ID] == key {
		return
	}

	minPerKm := s.cost.LegCost(v.Type, 1).DurationMin
	stepKm := 0.0
	if minPerKm > 0 {
		stepKm = dt.Minutes() / minPerKm
	}
	next := geo.Toward(v.Position, target, stepKm)
	moved := geo.DistanceKm(v.Position, next)
	heading := v.Heading
	if moved > 0 {
		heading = geo.Bearing(v.Position, target)
	}
	b := Battery{Pct: v.Battery, PctPerKm: s.cost.BatteryPctPerKm(v.Type)}
	s.sendTelemetry(ctx, v.ID, model.Telemetry{Position: next, Heading: &heading, Battery: b.Drive(moved)})

	if next != target {
		return
	}
	s.reported[v.ID] = key
	if err := s.rep.Status(ctx, v.ID, o.ID, status); err != nil {
		if errors.Is(err, ErrReportDropped) {
			s.stats.ReportsDropped++
			return
		}
		s.stats.ReportErrors++
		s.log.Warnf("simulator: %s report for %s by %s: %v", status, o.ID, v.ID, err)
		return
	}
	if status == telemetry.StatusPickedUp {
		s.stats.PickupsReported++
	} else {
		s.stats.DeliveriesReported++
	}
}

func (s *Simulator) charge(ctx context.Context, v model.Vehicle, dt time.Duration) {
	b := Battery{Pct: v.Battery, ChargePctPerMin: s.cfg.ChargePctPerMin}
	s.sendTelemetry(ctx, v.ID, model.Telemetry{Position: v.Position, Battery: b.Charge(dt)})
}

func (s *Simulator) sendTelemetry(ctx context.Context, id string, t model.Telemetry) {
	t.Time = s.now()
	if err := s.rep.Telemetry(ctx, id, t); err != nil {
		s.stats.ReportErrors++
		s.log.Warnf("simulator: telemetry for %s: %v", id, err)
		return
	}
	s.stats.TelemetrySent++
}

var simPriorities = []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent}

func (s *Simulator) submitRandomOrder() {
	pickup := randomPoint(s.cfg.Center, s.cfg.SpreadKm, s.rng)
	o := model.Order{
		Pickup:        pickup,
		Dropoff:       randomPoint(pickup, 1+s.rng.Float64()*7, s.rng),
		WeightKg:      0.5 + float64(s.rng.Intn(8))*0.5,
		CapacityClass: model.CapacitySmall,
		Priority:      simPriorities[s.rng.Intn(len(simPriorities))],
	}
	id, err := s.orders.Submit(o)
	if err != nil {
		s.log.Warnf("simulator: submit order: %v", err)
		return
	}
	s.stats.OrdersSubmitted++
	s.log.Debugf("simulator: submitted order %s (%s, %.1fkg)", id, o.Priority, o.WeightKg)
}
