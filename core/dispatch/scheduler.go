package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Disruption reasons. Callers may append ":detail".
const (
	ReasonCriticalBattery    = "critical_battery"
	ReasonIncident           = "incident"
	ReasonVehicleUnavailable = "vehicle_unavailable"
	ReasonVehicleReleased    = "vehicle_released"
	ReasonAssignmentTimeout  = "assignment_timeout"
)

// Fleet is the part of the vehicle registry the scheduler relies on.
type Fleet interface {
	Get(id string) (model.Vehicle, error)
	Nearby(center model.Point, radiusKm float64, keep func(model.Vehicle) bool) []fleet.Candidate
	TryAssign(vehicleID, orderID string) error
	MarkEnRoute(vehicleID, orderID string) error
	ReleaseFor(vehicleID, orderID string) (bool, error)
}

// OrderFilter narrows Orders results. Empty fields match everything.
type OrderFilter struct {
	Status    model.OrderStatus
	VehicleID string
}

type orderState struct {
	order      model.Order
	enqueuedAt time.Time
	seq        uint64
	// dispatching is set while an assignment pass runs outside the lock.
	dispatching bool
	// rerun asks the running pass to search again when it ends empty-handed.
	rerun      bool
	alerted    bool
	requeuedTo string
}

// Scheduler owns the order state machine. Order state is guarded by mu;
// vehicle state belongs to the Fleet and is only changed through its atomic
// operations. Lock order is scheduler, then registry.
type Scheduler struct {
	mu        sync.Mutex
	orders    map[string]*orderState
	byVehicle map[string]string
	pending   int
	seq       uint64
	store     logging.LogStore

	fleet Fleet
	cost  *cost.Model
	cfg   Config
	bus   eventbus.EventBus
	sink  metrics.MetricsSink
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// NewScheduler creates a scheduler. bus and sink may be nil.
func NewScheduler(cfg Config, f Fleet, cm *cost.Model, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger) (*Scheduler, error) {
	if f == nil || cm == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewScheduler")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Scheduler{
		orders:    make(map[string]*orderState),
		byVehicle: make(map[string]string),
		fleet:     f,
		cost:      cm,
		cfg:       cfg,
		bus:       bus,
		sink:      sink,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// SetLogStore configures the store used to persist the order audit trail.
func (s *Scheduler) SetLogStore(store logging.LogStore) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// SetClock overrides the time source used for timestamps and timeouts. It
// must be called before the scheduler is used.
func (s *Scheduler) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// effects collects side effects produced under the lock and applied after it
// is released.
type effects struct {
	events   []eventbus.Event
	records  []logging.LogRecord
	assigned []metrics.AssignmentEvent
	latency  []metrics.DispatchLatency
	retry    []string
}

func (fx *effects) emit(e eventbus.Event) { fx.events = append(fx.events, e) }

func (fx *effects) audit(r logging.LogRecord) { fx.records = append(fx.records, r) }

func (s *Scheduler) flush(fx *effects) {
	s.mu.Lock()
	store := s.store
	pendingOrders.Set(float64(s.pending))
	s.mu.Unlock()

	if s.bus != nil {
		for _, e := range fx.events {
			s.bus.Publish(e)
		}
	}
	if store != nil {
		for _, r := range fx.records {
			if err := store.Append(context.Background(), r); err != nil {
				s.log.Errorf("dispatch: audit append failed: %v", err)
			}
		}
	}
	for _, a := range fx.assigned {
		if err := s.sink.RecordAssignment(a); err != nil {
			s.log.Errorf("metrics error: %v", err)
		}
	}
	if lr, ok := s.sink.(metrics.LatencyRecorder); ok && len(fx.latency) > 0 {
		if err := lr.RecordDispatchLatency(fx.latency); err != nil {
			s.log.Errorf("latency metrics error: %v", err)
		}
	}
	for _, id := range fx.retry {
		s.dispatch(id)
	}
}

func (s *Scheduler) record(st *orderState, action, reason string, from model.OrderStatus, now time.Time) logging.LogRecord {
	return logging.LogRecord{
		Timestamp: now,
		OrderID:   st.order.ID,
		VehicleID: st.order.VehicleID,
		Action:    action,
		From:      from,
		To:        st.order.Status,
		Priority:  st.order.Priority,
		Attempts:  st.order.Attempts,
		Reason:    reason,
	}
}

// insert stores a new PENDING order. Caller holds mu.
func (s *Scheduler) insert(o model.Order, now time.Time) *orderState {
	s.seq++
	st := &orderState{order: o, enqueuedAt: now, seq: s.seq}
	s.orders[o.ID] = st
	s.pending++
	return st
}

// transition moves an order to a new status. Caller holds mu.
func (s *Scheduler) transition(st *orderState, to model.OrderStatus, action, reason string, now time.Time, fx *effects) {
	from := st.order.Status
	if from == model.OrderPending {
		s.pending--
	}
	if to == model.OrderPending {
		s.pending++
		s.seq++
		st.enqueuedAt = now
		st.seq = s.seq
	}
	st.order.Status = to
	st.order.UpdatedAt = now
	orderTransitions.WithLabelValues(string(to)).Inc()
	fx.emit(events.OrderStatusChanged{
		OrderID:   st.order.ID,
		VehicleID: st.order.VehicleID,
		From:      from,
		To:        to,
		Reason:    reason,
		Time:      now,
	})
	fx.audit(s.record(st, action, reason, from, now))
}

// Submit validates and enqueues an order, then tries to assign it at once.
// The returned id is generated when the order has none.
func (s *Scheduler) Submit(o model.Order) (string, error) {
	now := s.now()
	if o.ID == "" {
		o.ID = s.newID()
	}
	if o.Priority == "" {
		o.Priority = model.PriorityMedium
	}
	if err := o.Validate(); err != nil {
		return "", err
	}
	o.Status = model.OrderPending
	o.VehicleID = ""
	o.Assignment = nil
	o.Attempts = 0
	o.FailureReason = ""
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.Deadline.IsZero() {
		o.Deadline = o.CreatedAt.Add(time.Duration(s.cfg.DeadlineMinutes[o.Priority]) * time.Minute)
	}
	o.UpdatedAt = now

	fx := &effects{}
	s.mu.Lock()
	if _, ok := s.orders[o.ID]; ok {
		s.mu.Unlock()
		return "", &model.ValidationError{Field: "id", Reason: "already exists"}
	}
	st := s.insert(o, now)
	orderTransitions.WithLabelValues(string(model.OrderPending)).Inc()
	fx.emit(events.OrderSubmitted{Order: o.Clone()})
	fx.audit(s.record(st, logging.ActionSubmitted, "", "", now))
	s.mu.Unlock()

	s.log.Infof("dispatch: order %s submitted (%s, %.1fkg)", o.ID, o.Priority, o.WeightKg)
	s.flush(fx)
	s.dispatch(o.ID)
	return o.ID, nil
}

// Order returns a copy of the order.
func (s *Scheduler) Order(id string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[id]
	if !ok {
		return model.Order{}, model.NewNotFound("order", id)
	}
	return st.order.Clone(), nil
}

// Orders returns copies of the matching orders sorted by creation time, then id.
func (s *Scheduler) Orders(f OrderFilter) []model.Order {
	s.mu.Lock()
	out := make([]model.Order, 0, len(s.orders))
	for _, st := range s.orders {
		if f.Status != "" && st.order.Status != f.Status {
			continue
		}
		if f.VehicleID != "" && st.order.VehicleID != f.VehicleID {
			continue
		}
		out = append(out, st.order.Clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns the number of orders per status.
func (s *Scheduler) Counts() map[model.OrderStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.OrderStatus]int)
	for _, st := range s.orders {
		out[st.order.Status]++
	}
	return out
}

func (s *Scheduler) stillPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[id]
	return ok && st.order.Status == model.OrderPending
}

// dispatch runs one assignment pass for a PENDING order. Candidate search and
// TryAssign run without the scheduler lock; a lost race restarts the search,
// bounded by MaxAssignRetries.
func (s *Scheduler) dispatch(id string) bool {
	s.mu.Lock()
	st, ok := s.orders[id]
	if !ok || st.order.Status != model.OrderPending {
		s.mu.Unlock()
		return false
	}
	if st.dispatching {
		st.rerun = true
		s.mu.Unlock()
		return false
	}
	st.dispatching = true
	st.rerun = false
	st.order.Attempts++
	o := st.order.Clone()
	s.mu.Unlock()

	var won *candidate
	for try := 0; try <= s.cfg.MaxAssignRetries; try++ {
		if !s.stillPending(id) {
			break
		}
		cands := s.candidates(o)
		if len(cands) == 0 {
			break
		}
		c := cands[0]
		err := s.fleet.TryAssign(c.vehicle.ID, id)
		if err == nil {
			won = &c
			break
		}
		if errors.Is(err, model.ErrAlreadyAssigned) || errors.Is(err, model.ErrVehicleUnavailable) {
			assignConflicts.Inc()
			s.log.Debugf("dispatch: order %s lost %s (%v), retry %d", id, c.vehicle.ID, err, try+1)
			continue
		}
		s.log.Errorf("dispatch: assign %s to %s: %v", id, c.vehicle.ID, err)
		break
	}
	return s.finishDispatch(id, won)
}

func (s *Scheduler) finishDispatch(id string, won *candidate) bool {
	fx := &effects{}
	s.mu.Lock()
	st := s.orders[id]
	st.dispatching = false
	rerun := st.rerun
	st.rerun = false
	if won != nil {
		v, err := s.fleet.Get(won.vehicle.ID)
		switch {
		case st.order.Status != model.OrderPending:
			s.mu.Unlock()
			s.log.Infof("dispatch: order %s cancelled during assignment, releasing %s", id, won.vehicle.ID)
			if _, err := s.fleet.ReleaseFor(won.vehicle.ID, id); err != nil {
				s.log.Errorf("dispatch: release %s: %v", won.vehicle.ID, err)
			}
			return false
		case err != nil || v.CurrentOrderID != id:
			// released externally between TryAssign and commit
			won = nil
		default:
			won.vehicle = v
		}
	}
	now := s.now()
	if won != nil {
		s.commit(st, *won, now, fx)
	} else if s.cfg.AlertAfterAttempts > 0 && st.order.Attempts >= s.cfg.AlertAfterAttempts && !st.alerted {
		st.alerted = true
		fx.emit(events.DispatchFailedRetryExceeded{OrderID: id, Attempts: st.order.Attempts, Time: now})
		fx.audit(s.record(st, logging.ActionAlert, "no eligible vehicle", "", now))
		s.log.Warnf("dispatch: order %s still pending after %d attempts", id, st.order.Attempts)
	}
	s.mu.Unlock()
	s.flush(fx)
	if won == nil && rerun {
		return s.dispatch(id)
	}
	return won != nil
}

// commit binds the order to the candidate vehicle. Caller holds mu and the
// vehicle already holds the order in the registry.
func (s *Scheduler) commit(st *orderState, c candidate, now time.Time, fx *effects) {
	route := s.cost.AssignmentRoute(st.order, c.vehicle)
	a := model.Assignment{
		OrderID:   st.order.ID,
		VehicleID: c.vehicle.ID,
		Route:     route,
		Score:     c.score,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.AssignmentTimeout()),
		ETA:       now.Add(time.Duration(route.Total.DurationMin * float64(time.Minute))),
	}
	st.order.VehicleID = c.vehicle.ID
	st.order.Assignment = &a
	s.byVehicle[c.vehicle.ID] = st.order.ID
	s.transition(st, model.OrderAssigned, logging.ActionAssigned, "", now, fx)
	last := &fx.records[len(fx.records)-1]
	last.Score = c.score
	r := a.Route
	last.Route = &r

	latency := now.Sub(st.order.CreatedAt)
	assignmentLatency.WithLabelValues(string(st.order.Priority)).Observe(latency.Seconds())
	fx.emit(events.OrderAssigned{Order: st.order.Clone(), Assignment: a.Clone(), Attempts: st.order.Attempts, Latency: latency})
	fx.assigned = append(fx.assigned, metrics.AssignmentEvent{
		OrderID:     st.order.ID,
		VehicleID:   c.vehicle.ID,
		VehicleType: c.vehicle.Type,
		Priority:    st.order.Priority,
		Mode:        route.Mode,
		Score:       c.score,
		DistanceKm:  route.TotalDistanceKm,
		DurationMin: route.Total.DurationMin,
		EnergyKWh:   route.Total.EnergyKWh,
		CO2eGrams:   route.Total.CO2eGrams,
		Attempts:    st.order.Attempts,
		Time:        now,
	})
	fx.latency = append(fx.latency, metrics.DispatchLatency{
		OrderID:  st.order.ID,
		Priority: st.order.Priority,
		Assigned: true,
		Latency:  latency,
	})
	s.log.Infof("dispatch: order %s assigned to %s (score %.2f, %.2fkm, eta %s)",
		st.order.ID, c.vehicle.ID, c.score, route.TotalDistanceKm, a.ETA.Format(time.RFC3339))
}

// Cancel cancels a PENDING or ASSIGNED order. An ASSIGNED vehicle is released.
func (s *Scheduler) Cancel(id string) error {
	fx := &effects{}
	s.mu.Lock()
	st, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return model.NewNotFound("order", id)
	}
	switch st.order.Status {
	case model.OrderPending:
		s.transition(st, model.OrderCancelled, logging.ActionCancelled, "cancel requested", s.now(), fx)
	case model.OrderAssigned:
		vid := st.order.VehicleID
		s.transition(st, model.OrderCancelled, logging.ActionCancelled, "cancel requested", s.now(), fx)
		s.unbind(vid, id)
	case model.OrderInTransit:
		s.mu.Unlock()
		return &model.ValidationError{Field: "status", Reason: "order is in transit and cannot be cancelled"}
	default:
		status := st.order.Status
		s.mu.Unlock()
		return &model.AlreadyTerminalError{OrderID: id, Status: status}
	}
	s.mu.Unlock()
	s.log.Infof("dispatch: order %s cancelled", id)
	s.flush(fx)
	return nil
}

// unbind drops the vehicle binding and releases the vehicle if it still holds
// the order. Caller holds mu.
func (s *Scheduler) unbind(vehicleID, orderID string) {
	if s.byVehicle[vehicleID] == orderID {
		delete(s.byVehicle, vehicleID)
	}
	if _, err := s.fleet.ReleaseFor(vehicleID, orderID); err != nil {
		s.log.Errorf("dispatch: release %s for %s: %v", vehicleID, orderID, err)
	}
}

// MarkInTransit records the pickup of an ASSIGNED order.
func (s *Scheduler) MarkInTransit(id string) error {
	fx := &effects{}
	s.mu.Lock()
	st, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return model.NewNotFound("order", id)
	}
	switch st.order.Status {
	case model.OrderInTransit:
		s.mu.Unlock()
		return nil
	case model.OrderAssigned:
	default:
		s.mu.Unlock()
		return statusError(st.order)
	}
	if err := s.fleet.MarkEnRoute(st.order.VehicleID, id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.transition(st, model.OrderInTransit, logging.ActionInTransit, "", s.now(), fx)
	s.mu.Unlock()
	s.flush(fx)
	return nil
}

// MarkDelivered completes an IN_TRANSIT order and releases its vehicle.
func (s *Scheduler) MarkDelivered(id string) error {
	fx := &effects{}
	s.mu.Lock()
	st, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return model.NewNotFound("order", id)
	}
	if st.order.Status != model.OrderInTransit {
		s.mu.Unlock()
		return statusError(st.order)
	}
	now := s.now()
	vid := st.order.VehicleID
	s.transition(st, model.OrderDelivered, logging.ActionDelivered, "", now, fx)
	if a := st.order.Assignment; a != nil {
		r := a.Route
		fx.records[len(fx.records)-1].Route = &r
	}
	fx.emit(events.OrderDelivered{Order: st.order.Clone(), Time: now})
	s.unbind(vid, id)
	s.mu.Unlock()
	s.log.Infof("dispatch: order %s delivered by %s", id, vid)
	s.flush(fx)
	return nil
}

func statusError(o model.Order) error {
	if o.Status.Terminal() {
		return &model.AlreadyTerminalError{OrderID: o.ID, Status: o.Status}
	}
	return &model.ValidationError{Field: "status", Reason: fmt.Sprintf("order is %s", o.Status)}
}

// HandleDisruption fails an ASSIGNED or IN_TRANSIT order and requeues a
// PENDING clone, which is dispatched at once. It returns the clone id.
// Repeated calls for the same order return the same clone.
func (s *Scheduler) HandleDisruption(orderID, reason string) (string, error) {
	return s.disrupt(orderID, "", reason)
}

// disrupt fails and requeues the order when it is still bound to vehicleID,
// or to any vehicle when vehicleID is empty.
func (s *Scheduler) disrupt(orderID, vehicleID, reason string) (string, error) {
	fx := &effects{}
	s.mu.Lock()
	st, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return "", model.NewNotFound("order", orderID)
	}
	switch {
	case st.order.Status == model.OrderFailed && st.requeuedTo != "":
		clone := st.requeuedTo
		s.mu.Unlock()
		return clone, nil
	case st.order.Status == model.OrderPending:
		s.mu.Unlock()
		return "", nil
	case !st.order.Status.Active():
		status := st.order.Status
		s.mu.Unlock()
		return "", &model.AlreadyTerminalError{OrderID: orderID, Status: status}
	case vehicleID != "" && st.order.VehicleID != vehicleID:
		s.mu.Unlock()
		return "", nil
	}
	clone := s.failAndRequeue(st, reason, s.now(), fx)
	fx.retry = append(fx.retry, clone)
	s.mu.Unlock()
	s.flush(fx)
	return clone, nil
}

// failAndRequeue marks an active order FAILED, releases its vehicle and
// enqueues a PENDING clone. It returns the clone id. Caller holds mu.
func (s *Scheduler) failAndRequeue(st *orderState, reason string, now time.Time, fx *effects) string {
	vid := st.order.VehicleID
	st.order.FailureReason = reason
	s.transition(st, model.OrderFailed, logging.ActionFailed, reason, now, fx)
	s.unbind(vid, st.order.ID)

	clone := st.order.Clone()
	clone.ID = s.newID()
	clone.Status = model.OrderPending
	clone.VehicleID = ""
	clone.Assignment = nil
	clone.Attempts = 0
	clone.FailureReason = ""
	clone.RequeuedFrom = st.order.ID
	clone.UpdatedAt = now
	cst := s.insert(clone, now)
	st.requeuedTo = clone.ID

	label, _, _ := strings.Cut(reason, ":")
	reassignments.WithLabelValues(label).Inc()
	orderTransitions.WithLabelValues(string(model.OrderPending)).Inc()
	fx.emit(events.OrderReassigned{
		OriginalOrderID: st.order.ID,
		NewOrderID:      clone.ID,
		VehicleID:       vid,
		Reason:          reason,
		Time:            now,
	})
	fx.audit(s.record(cst, logging.ActionRequeued, "requeued from "+st.order.ID, "", now))
	s.log.Warnf("dispatch: order %s failed on %s (%s), requeued as %s", st.order.ID, vid, reason, clone.ID)
	return clone.ID
}

// requeue returns an ASSIGNED order to PENDING. Caller holds mu.
func (s *Scheduler) requeue(st *orderState, reason string, now time.Time, fx *effects) {
	vid := st.order.VehicleID
	st.order.VehicleID = ""
	st.order.Assignment = nil
	s.transition(st, model.OrderPending, logging.ActionRequeued, reason, now, fx)
	fx.records[len(fx.records)-1].VehicleID = vid
	s.unbind(vid, st.order.ID)
}

// reconcile handles a vehicle released outside the scheduler while it still
// carried one of our orders. ASSIGNED orders go back to PENDING; IN_TRANSIT
// orders are failed and requeued. Requeued orders wait for the next retry
// pass so older PENDING orders keep their place.
func (s *Scheduler) reconcile(vehicleID, orderID string) {
	if orderID == "" {
		return
	}
	fx := &effects{}
	s.mu.Lock()
	st, ok := s.orders[orderID]
	if !ok || !st.order.Status.Active() || st.order.VehicleID != vehicleID {
		s.mu.Unlock()
		return
	}
	if v, err := s.fleet.Get(vehicleID); err == nil && v.CurrentOrderID == orderID {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if st.order.Status == model.OrderAssigned {
		s.requeue(st, ReasonVehicleReleased, now, fx)
		s.log.Warnf("dispatch: vehicle %s released with order %s, requeued", vehicleID, orderID)
	} else {
		s.failAndRequeue(st, ReasonVehicleReleased, now, fx)
	}
	s.mu.Unlock()
	s.flush(fx)
}

// CheckTimeouts returns ASSIGNED orders whose assignment expired at now to
// PENDING and releases their vehicles. It returns the number of timeouts.
func (s *Scheduler) CheckTimeouts(now time.Time) int {
	fx := &effects{}
	n := 0
	s.mu.Lock()
	for _, st := range s.orders {
		if st.order.Status != model.OrderAssigned || st.order.Assignment == nil {
			continue
		}
		if now.Before(st.order.Assignment.ExpiresAt) {
			continue
		}
		vid := st.order.VehicleID
		s.requeue(st, ReasonAssignmentTimeout, now, fx)
		fx.records[len(fx.records)-1].Action = logging.ActionTimedOut
		fx.emit(events.AssignmentTimedOut{OrderID: st.order.ID, VehicleID: vid, Time: now})
		s.log.Warnf("dispatch: order %s not picked up by %s in time", st.order.ID, vid)
		n++
	}
	s.mu.Unlock()
	s.flush(fx)
	return n
}

// RetryPending runs an assignment pass over every PENDING order, highest
// priority first, then oldest enqueue. It returns the number of new
// assignments.
func (s *Scheduler) RetryPending() int {
	ids := s.pendingIDs()
	if len(ids) == 0 {
		return 0
	}
	assigned := 0
	if s.cfg.Planner == PlannerLP && len(ids) > 1 {
		assigned = s.planBatch(ids)
	}
	for _, id := range ids {
		if s.dispatch(id) {
			assigned++
		}
	}
	if assigned > 0 {
		s.log.Infof("dispatch: retry pass assigned %d of %d pending orders", assigned, len(ids))
	}
	return assigned
}

func (s *Scheduler) pendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*orderState, 0, s.pending)
	for _, st := range s.orders {
		if st.order.Status != model.OrderPending {
			continue
		}
		if st.dispatching {
			st.rerun = true
			continue
		}
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if wa, wb := a.order.Priority.Weight(), b.order.Priority.Weight(); wa != wb {
			return wa > wb
		}
		if !a.enqueuedAt.Equal(b.enqueuedAt) {
			return a.enqueuedAt.Before(b.enqueuedAt)
		}
		return a.seq < b.seq
	})
	ids := make([]string, len(list))
	for i, st := range list {
		ids[i] = st.order.ID
	}
	return ids
}

// HandleEvent reacts to fleet events.
func (s *Scheduler) HandleEvent(ev eventbus.Event) {
	switch e := ev.(type) {
	case events.CriticalBattery:
		if e.OrderID == "" {
			return
		}
		if _, err := s.disrupt(e.OrderID, e.VehicleID, fmt.Sprintf("%s:%s at %.0f%%", ReasonCriticalBattery, e.VehicleID, e.Battery)); err != nil {
			s.log.Warnf("dispatch: critical battery on %s: %v", e.VehicleID, err)
		}
	case events.VehicleReleased:
		s.reconcile(e.VehicleID, e.PreviousOrderID)
	case events.VehicleStatusChanged:
		if e.OrphanedOrderID == "" {
			return
		}
		if _, err := s.disrupt(e.OrphanedOrderID, e.VehicleID, ReasonVehicleUnavailable+":"+string(e.To)); err != nil && !errors.Is(err, model.ErrAlreadyTerminal) {
			s.log.Warnf("dispatch: orphan %s: %v", e.OrphanedOrderID, err)
		}
	case events.VehicleAvailable:
		s.RetryPending()
	}
}

// Run processes fleet events and the periodic retry and timeout passes until
// the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.bus == nil {
		return fmt.Errorf("dispatch: scheduler has no event bus")
	}
	q := s.bus.SubscribeQueue()
	defer s.bus.UnsubscribeQueue(q)

	retry := time.NewTicker(s.cfg.RetryInterval())
	defer retry.Stop()
	timeouts := time.NewTicker(timeoutCheckInterval(s.cfg.AssignmentTimeout()))
	defer timeouts.Stop()

	s.log.Infof("dispatch: scheduler running (planner=%s, retry=%s, timeout=%s)",
		s.cfg.Planner, s.cfg.RetryInterval(), s.cfg.AssignmentTimeout())
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-q.Ready():
			for _, ev := range q.Drain() {
				s.HandleEvent(ev)
			}
			if !ok {
				return nil
			}
		case <-retry.C:
			s.RetryPending()
		case <-timeouts.C:
			s.CheckTimeouts(s.now())
		}
	}
}

func timeoutCheckInterval(timeout time.Duration) time.Duration {
	d := timeout / 10
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// Close releases the audit store.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	store := s.store
	s.store = nil
	s.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}
