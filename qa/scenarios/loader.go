// Package scenarios replays YAML dispatch scenarios against the real
// registry, scheduler and incident handler.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetdispatch/core/model"
)

type VehicleDef struct {
	ID       string  `yaml:"id"`
	Type     string  `yaml:"type"`
	Battery  float64 `yaml:"battery"`
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	Status   string  `yaml:"status,omitempty"`
	WeightKg float64 `yaml:"weight_kg,omitempty"`
	VolumeL  float64 `yaml:"volume_l,omitempty"`
}

func (v VehicleDef) ToModel() model.Vehicle {
	vt := model.VehicleType(v.Type)
	capa := model.Capacity{WeightKg: v.WeightKg, VolumeL: v.VolumeL}
	if capa.WeightKg == 0 {
		capa = model.Capacity{WeightKg: 50, VolumeL: 120}
		if vt == model.VehicleDrone {
			capa = model.Capacity{WeightKg: 5, VolumeL: 10}
		}
	}
	return model.Vehicle{
		ID:       v.ID,
		Type:     vt,
		Battery:  v.Battery,
		Position: model.Point{Lat: v.Lat, Lng: v.Lng},
		Status:   model.VehicleStatus(v.Status),
		Capacity: capa,
	}
}

type PointDef struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

func (p PointDef) ToModel() model.Point { return model.Point{Lat: p.Lat, Lng: p.Lng} }

type OrderDef struct {
	ID            string   `yaml:"id"`
	Pickup        PointDef `yaml:"pickup"`
	Dropoff       PointDef `yaml:"dropoff"`
	WeightKg      float64  `yaml:"weight_kg"`
	CapacityClass string   `yaml:"capacity_class,omitempty"`
	Priority      string   `yaml:"priority,omitempty"`
	PreferredMode string   `yaml:"preferred_mode,omitempty"`
}

func (o OrderDef) ToModel() model.Order {
	return model.Order{
		ID:            o.ID,
		Pickup:        o.Pickup.ToModel(),
		Dropoff:       o.Dropoff.ToModel(),
		WeightKg:      o.WeightKg,
		CapacityClass: model.CapacityClass(o.CapacityClass),
		Priority:      model.Priority(o.Priority),
		PreferredMode: model.DeliveryMode(o.PreferredMode),
	}
}

type TelemetryDef struct {
	Vehicle string  `yaml:"vehicle"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	Battery float64 `yaml:"battery"`
}

type IncidentDef struct {
	VehicleID string `yaml:"vehicle_id,omitempty"`
	OrderID   string `yaml:"order_id,omitempty"`
	Type      string `yaml:"type,omitempty"`
	Severity  string `yaml:"severity"`
}

type StatusDef struct {
	Vehicle string `yaml:"vehicle"`
	Status  string `yaml:"status"`
}

// Step is one action of a scenario. Exactly one action field is set.
type Step struct {
	Submit    *OrderDef     `yaml:"submit,omitempty"`
	Register  *VehicleDef   `yaml:"register,omitempty"`
	Telemetry *TelemetryDef `yaml:"telemetry,omitempty"`
	PickedUp  string        `yaml:"picked_up,omitempty"`
	Delivered string        `yaml:"delivered,omitempty"`
	Cancel    string        `yaml:"cancel,omitempty"`
	Incident  *IncidentDef  `yaml:"incident,omitempty"`
	// Resolve closes the open incidents of a vehicle.
	Resolve   string     `yaml:"resolve,omitempty"`
	SetStatus *StatusDef `yaml:"set_status,omitempty"`
	// Advance moves the clock forward, then runs the timeout and retry passes.
	Advance string `yaml:"advance,omitempty"`
	// ExpectError marks a step whose action must fail.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

func (s Step) kind() string {
	switch {
	case s.Submit != nil:
		return "submit"
	case s.Register != nil:
		return "register"
	case s.Telemetry != nil:
		return "telemetry"
	case s.PickedUp != "":
		return "picked_up"
	case s.Delivered != "":
		return "delivered"
	case s.Cancel != "":
		return "cancel"
	case s.Incident != nil:
		return "incident"
	case s.Resolve != "":
		return "resolve"
	case s.SetStatus != nil:
		return "set_status"
	case s.Advance != "":
		return "advance"
	}
	return ""
}

type OrderExpect struct {
	Status  string `yaml:"status,omitempty"`
	Vehicle string `yaml:"vehicle,omitempty"`
	Mode    string `yaml:"mode,omitempty"`
}

type Expected struct {
	Orders   map[string]OrderExpect `yaml:"orders,omitempty"`
	Vehicles map[string]string      `yaml:"vehicles,omitempty"`
	// Counts are order totals per status, requeued clones included.
	Counts   map[string]int `yaml:"counts,omitempty"`
	Timeouts int            `yaml:"timeouts,omitempty"`
	// Assignments is the number of assignments seen by the metrics sink.
	Assignments int `yaml:"assignments,omitempty"`
}

type Scenario struct {
	Name                  string       `yaml:"name"`
	Description           string       `yaml:"description,omitempty"`
	Planner               string       `yaml:"planner,omitempty"`
	AssignmentTimeoutSecs int          `yaml:"assignment_timeout_seconds,omitempty"`
	Vehicles              []VehicleDef `yaml:"vehicles"`
	Steps                 []Step       `yaml:"steps"`
	Expected              Expected     `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	for i, st := range sc.Steps {
		if st.kind() == "" {
			return nil, fmt.Errorf("%s: step %d has no action", path, i+1)
		}
		if st.Advance != "" {
			if _, err := time.ParseDuration(st.Advance); err != nil {
				return nil, fmt.Errorf("%s: step %d: %w", path, i+1, err)
			}
		}
	}
	return &sc, nil
}
