package events

import "github.com/kilianp07/fleetdispatch/core/model"

// IncidentReported is emitted once an incident is stored.
type IncidentReported struct {
	Incident model.Incident
}

// IncidentResolved is emitted when an incident is closed.
type IncidentResolved struct {
	Incident model.Incident
}
