package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Type   model.VehicleType
	Status model.VehicleStatus
}

// Candidate is a vehicle returned by Nearby with its distance to the query point.
type Candidate struct {
	Vehicle    model.Vehicle
	DistanceKm float64
}

// Registry is the authoritative store of vehicle state. Every status change
// goes through its methods; TryAssign is the only way a vehicle becomes
// ASSIGNED. Events are published after the internal lock is released.
type Registry struct {
	mu       sync.RWMutex
	vehicles map[string]*model.Vehicle
	// critical remembers the order for which a CriticalBattery alert was sent.
	critical map[string]string
	geo      *geo.Index
	cfg      Config
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewRegistry returns an empty registry. bus may be nil.
func NewRegistry(cfg Config, bus eventbus.EventBus, log logger.Logger) *Registry {
	cfg.SetDefaults()
	return &Registry{
		vehicles: make(map[string]*model.Vehicle),
		critical: make(map[string]string),
		geo:      geo.NewIndex(cfg.GeoCellDegrees),
		cfg:      cfg,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (r *Registry) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Config returns the thresholds in use.
func (r *Registry) Config() Config { return r.cfg }

func (r *Registry) publish(evs []eventbus.Event) {
	if r.bus == nil {
		return
	}
	for _, e := range evs {
		r.bus.Publish(e)
	}
}

// Register adds a new vehicle. An empty status defaults to IDLE; vehicles
// cannot be registered as ASSIGNED or EN_ROUTE.
func (r *Registry) Register(v model.Vehicle) error {
	if v.Status == "" {
		v.Status = model.VehicleIdle
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if v.Status.Busy() {
		return &model.ValidationError{Field: "status", Reason: "cannot register a busy vehicle"}
	}
	v.CurrentOrderID = ""
	if v.LastSeen.IsZero() {
		v.LastSeen = r.now()
	}

	r.mu.Lock()
	if _, ok := r.vehicles[v.ID]; ok {
		r.mu.Unlock()
		return &model.DuplicateVehicleError{ID: v.ID}
	}
	if err := r.geo.Upsert(v.ID, v.Position); err != nil {
		r.mu.Unlock()
		return err
	}
	stored := v
	r.vehicles[v.ID] = &stored
	r.mu.Unlock()

	if r.log != nil {
		r.log.Infof("fleet: registered %s %s at %.4f,%.4f", v.Type, v.ID, v.Position.Lat, v.Position.Lng)
	}
	if v.Status == model.VehicleIdle {
		r.publish([]eventbus.Event{events.VehicleAvailable{VehicleID: v.ID, Time: v.LastSeen}})
	}
	return nil
}

// UpdateTelemetry records a position and battery sample.
func (r *Registry) UpdateTelemetry(id string, pos model.Point, battery float64) error {
	return r.ApplyTelemetry(id, model.Telemetry{Position: pos, Battery: battery})
}

// ApplyTelemetry records a full telemetry sample. A CriticalBattery event is
// emitted once per order when an EN_ROUTE vehicle drops under the critical
// threshold; a CHARGING vehicle that reaches the charged threshold becomes IDLE.
func (r *Registry) ApplyTelemetry(id string, t model.Telemetry) error {
	if err := model.Validate(t); err != nil {
		return err
	}
	if !t.Position.Valid() {
		return &model.ValidationError{Field: "position", Reason: "coordinates out of range"}
	}
	if t.Time.IsZero() {
		t.Time = r.now()
	}

	var evs []eventbus.Event
	r.mu.Lock()
	v, ok := r.vehicles[id]
	if !ok {
		r.mu.Unlock()
		return model.NewNotFound("vehicle", id)
	}
	if err := r.geo.Upsert(id, t.Position); err != nil {
		r.mu.Unlock()
		return err
	}
	v.Position = t.Position
	v.Battery = t.Battery
	if t.Heading != nil {
		v.Heading = *t.Heading
	}
	v.LastSeen = t.Time

	if v.Status == model.VehicleEnRoute && v.Battery < r.cfg.CriticalBattery && r.critical[id] != v.CurrentOrderID {
		r.critical[id] = v.CurrentOrderID
		evs = append(evs, events.CriticalBattery{VehicleID: id, OrderID: v.CurrentOrderID, Battery: v.Battery, Time: t.Time})
	}
	if v.Status == model.VehicleCharging && v.Battery >= r.cfg.ChargedBattery {
		v.Status = model.VehicleIdle
		evs = append(evs,
			events.VehicleStatusChanged{VehicleID: id, From: model.VehicleCharging, To: model.VehicleIdle, Time: t.Time},
			events.VehicleAvailable{VehicleID: id, Time: t.Time},
		)
	}
	evs = append(evs, events.VehicleTelemetry{Vehicle: *v, Time: t.Time})
	r.mu.Unlock()

	r.publish(evs)
	return nil
}

// TryAssign atomically binds an IDLE vehicle to an order.
func (r *Registry) TryAssign(vehicleID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		return model.NewNotFound("vehicle", vehicleID)
	}
	if v.CurrentOrderID != "" {
		if v.CurrentOrderID == orderID {
			return nil
		}
		return &model.AlreadyAssignedError{VehicleID: vehicleID, CurrentOrderID: v.CurrentOrderID}
	}
	if v.Status != model.VehicleIdle {
		return &model.VehicleUnavailableError{VehicleID: vehicleID, Status: v.Status}
	}
	v.Status = model.VehicleAssigned
	v.CurrentOrderID = orderID
	return nil
}

// MarkEnRoute moves an ASSIGNED vehicle holding orderID to EN_ROUTE.
func (r *Registry) MarkEnRoute(vehicleID, orderID string) error {
	r.mu.Lock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		r.mu.Unlock()
		return model.NewNotFound("vehicle", vehicleID)
	}
	if v.CurrentOrderID != orderID {
		r.mu.Unlock()
		return &model.AlreadyAssignedError{VehicleID: vehicleID, CurrentOrderID: v.CurrentOrderID}
	}
	if v.Status == model.VehicleEnRoute {
		r.mu.Unlock()
		return nil
	}
	if v.Status != model.VehicleAssigned {
		r.mu.Unlock()
		return &model.VehicleUnavailableError{VehicleID: vehicleID, Status: v.Status}
	}
	v.Status = model.VehicleEnRoute
	ev := events.VehicleStatusChanged{VehicleID: vehicleID, From: model.VehicleAssigned, To: model.VehicleEnRoute, Time: r.now()}
	r.mu.Unlock()

	r.publish([]eventbus.Event{ev})
	return nil
}

// Release clears the current assignment of a vehicle. The vehicle becomes
// CHARGING when its battery is under the charging threshold and IDLE
// otherwise. Releasing a vehicle without an assignment is a no-op.
func (r *Registry) Release(vehicleID string) error {
	_, err := r.release(vehicleID, "")
	return err
}

// ReleaseFor releases the vehicle only if it still holds orderID. It reports
// whether a release happened.
func (r *Registry) ReleaseFor(vehicleID, orderID string) (bool, error) {
	return r.release(vehicleID, orderID)
}

func (r *Registry) release(vehicleID, orderID string) (bool, error) {
	r.mu.Lock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		r.mu.Unlock()
		return false, model.NewNotFound("vehicle", vehicleID)
	}
	if !v.Status.Busy() && v.CurrentOrderID == "" {
		r.mu.Unlock()
		return false, nil
	}
	if orderID != "" && v.CurrentOrderID != orderID {
		r.mu.Unlock()
		return false, nil
	}
	prev := v.CurrentOrderID
	from := v.Status
	v.CurrentOrderID = ""
	if v.Battery < r.cfg.ChargingBattery {
		v.Status = model.VehicleCharging
	} else {
		v.Status = model.VehicleIdle
	}
	delete(r.critical, vehicleID)
	now := r.now()
	evs := []eventbus.Event{
		events.VehicleStatusChanged{VehicleID: vehicleID, From: from, To: v.Status, Time: now},
		events.VehicleReleased{VehicleID: vehicleID, PreviousOrderID: prev, Status: v.Status, Time: now},
	}
	if v.Status == model.VehicleIdle {
		evs = append(evs, events.VehicleAvailable{VehicleID: vehicleID, PreviousOrderID: prev, Time: now})
	}
	status := v.Status
	r.mu.Unlock()

	if r.log != nil {
		r.log.Infof("fleet: released %s from %s -> %s", vehicleID, prev, status)
	}
	r.publish(evs)
	return true, nil
}

// SetStatus applies an administrative status override. Any assignment is
// cleared and the orphaned order id is returned so the caller can handle it.
func (r *Registry) SetStatus(vehicleID string, status model.VehicleStatus) (string, error) {
	if !status.Valid() || status.Busy() {
		return "", &model.ValidationError{Field: "status", Reason: "must be IDLE, CHARGING, MAINTENANCE or OFFLINE"}
	}

	r.mu.Lock()
	v, ok := r.vehicles[vehicleID]
	if !ok {
		r.mu.Unlock()
		return "", model.NewNotFound("vehicle", vehicleID)
	}
	orphan := v.CurrentOrderID
	from := v.Status
	if from == status && orphan == "" {
		r.mu.Unlock()
		return "", nil
	}
	v.Status = status
	v.CurrentOrderID = ""
	delete(r.critical, vehicleID)
	now := r.now()
	evs := []eventbus.Event{
		events.VehicleStatusChanged{VehicleID: vehicleID, From: from, To: status, OrphanedOrderID: orphan, Time: now},
	}
	if status == model.VehicleIdle {
		evs = append(evs, events.VehicleAvailable{VehicleID: vehicleID, Time: now})
	}
	r.mu.Unlock()

	if r.log != nil {
		if orphan != "" {
			r.log.Warnf("fleet: %s set %s -> %s, order %s orphaned", vehicleID, from, status, orphan)
		} else {
			r.log.Infof("fleet: %s set %s -> %s", vehicleID, from, status)
		}
	}
	r.publish(evs)
	return orphan, nil
}

// Get returns a copy of the vehicle.
func (r *Registry) Get(id string) (model.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return model.Vehicle{}, model.NewNotFound("vehicle", id)
	}
	return *v, nil
}

// List returns copies of the matching vehicles sorted by id.
func (r *Registry) List(f Filter) []model.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		if f.Type != "" && v.Type != f.Type {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		res = append(res, *v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// CountByStatus returns the number of vehicles in each status.
func (r *Registry) CountByStatus() map[model.VehicleStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.VehicleStatus]int)
	for _, v := range r.vehicles {
		out[v.Status]++
	}
	return out
}

// Nearby returns the vehicles within radiusKm of center that satisfy keep,
// ordered by distance then id. A nil keep accepts every vehicle.
func (r *Registry) Nearby(center model.Point, radiusKm float64, keep func(model.Vehicle) bool) []Candidate {
	hits := r.geo.Query(center, radiusKm, nil)
	if len(hits) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		v, ok := r.vehicles[h.ID]
		if !ok {
			continue
		}
		if keep != nil && !keep(*v) {
			continue
		}
		out = append(out, Candidate{Vehicle: *v, DistanceKm: h.DistanceKm})
	}
	return out
}

// Idle is a Nearby predicate selecting IDLE vehicles.
func Idle(v model.Vehicle) bool { return v.Status == model.VehicleIdle }
