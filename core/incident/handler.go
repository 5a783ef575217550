// Package incident ingests incident reports and turns severe ones into
// vehicle downtime and order reassignment.
package incident

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// ReasonPrefix prefixes the disruption reason handed to the scheduler.
const ReasonPrefix = "incident"

// Fleet is the part of the vehicle registry used by the handler.
type Fleet interface {
	Get(id string) (model.Vehicle, error)
	SetStatus(vehicleID string, status model.VehicleStatus) (string, error)
}

// Dispatcher is the part of the scheduler used by the handler.
type Dispatcher interface {
	Order(id string) (model.Order, error)
	HandleDisruption(orderID, reason string) (string, error)
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	VehicleID string
	OrderID   string
	OpenOnly  bool
}

// Handler stores incidents and tracks which open incidents keep a vehicle in
// MAINTENANCE.
type Handler struct {
	mu        sync.Mutex
	incidents map[string]*model.Incident
	// holds maps a vehicle to the open incidents that put it in MAINTENANCE.
	holds map[string]map[string]struct{}
	// manual marks vehicles that were already in MAINTENANCE when the first
	// incident arrived; resolving incidents never returns them to IDLE.
	manual map[string]bool

	fleet Fleet
	sched Dispatcher
	bus   eventbus.EventBus
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// NewHandler creates an incident handler. bus may be nil.
func NewHandler(f Fleet, d Dispatcher, bus eventbus.EventBus, log logger.Logger) (*Handler, error) {
	if f == nil || d == nil || log == nil {
		return nil, fmt.Errorf("incident: nil parameter provided to NewHandler")
	}
	return &Handler{
		incidents: make(map[string]*model.Incident),
		holds:     make(map[string]map[string]struct{}),
		manual:    make(map[string]bool),
		fleet:     f,
		sched:     d,
		bus:       bus,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// SetClock overrides the time source. It must be called before use.
func (h *Handler) SetClock(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

// Report validates and stores an incident. HIGH and CRITICAL incidents put
// the vehicle in MAINTENANCE and requeue the affected orders; lower
// severities are recorded only. The stored incident is returned.
func (h *Handler) Report(inc model.Incident) (model.Incident, error) {
	if inc.ID == "" {
		inc.ID = h.newID()
	}
	if inc.Type == "" {
		inc.Type = model.IncidentOther
	}
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = h.now()
	}
	inc.Resolved = false
	inc.ResolvedAt = nil
	inc.ResolutionNote = ""
	if err := inc.Validate(); err != nil {
		return model.Incident{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.incidents[inc.ID]; ok {
		return model.Incident{}, &model.ValidationError{Field: "id", Reason: "already exists"}
	}

	var vehicle model.Vehicle
	if inc.VehicleID != "" {
		v, err := h.fleet.Get(inc.VehicleID)
		if err != nil {
			return model.Incident{}, err
		}
		vehicle = v
	}
	if inc.OrderID != "" {
		o, err := h.sched.Order(inc.OrderID)
		if err != nil {
			return model.Incident{}, err
		}
		// an incident on an in-flight order affects the vehicle carrying it
		if inc.VehicleID == "" && o.Status.Active() && o.VehicleID != "" {
			v, err := h.fleet.Get(o.VehicleID)
			if err == nil {
				inc.VehicleID = o.VehicleID
				vehicle = v
			}
		}
	}

	stored := inc
	h.incidents[inc.ID] = &stored
	incidentsReported.WithLabelValues(string(inc.Severity)).Inc()
	openIncidents.Inc()

	if !inc.Severity.Disruptive() {
		h.log.Infof("incident: %s %s on vehicle=%q order=%q recorded (%s)", inc.Severity, inc.Type, inc.VehicleID, inc.OrderID, inc.Description)
		h.publish(events.IncidentReported{Incident: stored})
		return stored, nil
	}

	affected := []string{}
	if inc.VehicleID != "" {
		orphan, err := h.hold(vehicle, inc.ID)
		if err != nil {
			h.log.Errorf("incident: %s could not take %s out of service: %v", inc.ID, inc.VehicleID, err)
		}
		if orphan != "" {
			affected = append(affected, orphan)
		}
	}
	if inc.OrderID != "" && (len(affected) == 0 || affected[0] != inc.OrderID) {
		affected = append(affected, inc.OrderID)
	}

	reason := ReasonPrefix + ":" + inc.ID
	for _, id := range affected {
		clone, err := h.sched.HandleDisruption(id, reason)
		switch {
		case errors.Is(err, model.ErrAlreadyTerminal):
			h.log.Infof("incident: order %s already finished, nothing to reassign", id)
		case err != nil:
			h.log.Errorf("incident: reassign order %s: %v", id, err)
		case clone != "":
			h.log.Warnf("incident: order %s reassigned as %s", id, clone)
		}
	}
	h.log.Warnf("incident: %s %s on vehicle=%q order=%q, %d order(s) disrupted", inc.Severity, inc.Type, inc.VehicleID, inc.OrderID, len(affected))
	h.publish(events.IncidentReported{Incident: stored})
	return stored, nil
}

// hold records that incidentID keeps the vehicle in MAINTENANCE and applies
// the status. It returns the order the vehicle was carrying, if any. Caller
// holds mu.
func (h *Handler) hold(v model.Vehicle, incidentID string) (string, error) {
	set, ok := h.holds[v.ID]
	if !ok {
		set = make(map[string]struct{})
		h.holds[v.ID] = set
		if v.Status == model.VehicleMaintenance {
			h.manual[v.ID] = true
		}
	}
	set[incidentID] = struct{}{}
	if v.Status == model.VehicleMaintenance {
		return "", nil
	}
	return h.fleet.SetStatus(v.ID, model.VehicleMaintenance)
}

// Resolve closes an incident. When no other open incident holds the vehicle
// and it is still in MAINTENANCE, it is returned to IDLE. Resolving a closed
// incident returns it unchanged.
func (h *Handler) Resolve(id, note string) (model.Incident, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inc, ok := h.incidents[id]
	if !ok {
		return model.Incident{}, model.NewNotFound("incident", id)
	}
	if inc.Resolved {
		return *inc, nil
	}
	now := h.now()
	inc.Resolved = true
	inc.ResolvedAt = &now
	inc.ResolutionNote = note
	openIncidents.Dec()

	if vid := inc.VehicleID; vid != "" {
		if set, ok := h.holds[vid]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.holds, vid)
				h.restore(vid)
			}
		}
	}
	h.log.Infof("incident: %s resolved (%s)", id, note)
	out := *inc
	h.publish(events.IncidentResolved{Incident: out})
	return out, nil
}

// restore returns a vehicle to IDLE once its last incident is resolved.
// Caller holds mu.
func (h *Handler) restore(vehicleID string) {
	if h.manual[vehicleID] {
		delete(h.manual, vehicleID)
		h.log.Infof("incident: %s stays in maintenance, it was set manually", vehicleID)
		return
	}
	v, err := h.fleet.Get(vehicleID)
	if err != nil {
		h.log.Errorf("incident: restore %s: %v", vehicleID, err)
		return
	}
	if v.Status != model.VehicleMaintenance {
		return
	}
	if _, err := h.fleet.SetStatus(vehicleID, model.VehicleIdle); err != nil {
		h.log.Errorf("incident: restore %s: %v", vehicleID, err)
		return
	}
	h.log.Infof("incident: %s back in service", vehicleID)
}

// Get returns a copy of an incident.
func (h *Handler) Get(id string) (model.Incident, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inc, ok := h.incidents[id]
	if !ok {
		return model.Incident{}, model.NewNotFound("incident", id)
	}
	return *inc, nil
}

// List returns matching incidents, oldest first.
func (h *Handler) List(f Filter) []model.Incident {
	h.mu.Lock()
	out := make([]model.Incident, 0, len(h.incidents))
	for _, inc := range h.incidents {
		if f.VehicleID != "" && inc.VehicleID != f.VehicleID {
			continue
		}
		if f.OrderID != "" && inc.OrderID != f.OrderID {
			continue
		}
		if f.OpenOnly && inc.Resolved {
			continue
		}
		out = append(out, *inc)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.Before(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Holds returns the open incidents keeping the vehicle in MAINTENANCE.
func (h *Handler) Holds(vehicleID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.holds[vehicleID]))
	for id := range h.holds[vehicleID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Handler) publish(e eventbus.Event) {
	if h.bus != nil {
		h.bus.Publish(e)
	}
}
