package model

import "time"

// IncidentType classifies what happened.
type IncidentType string

const (
	IncidentMechanical IncidentType = "MECHANICAL"
	IncidentWeather    IncidentType = "WEATHER"
	IncidentTraffic    IncidentType = "TRAFFIC"
	IncidentSafety     IncidentType = "SAFETY"
	IncidentOther      IncidentType = "OTHER"
)

// Severity grades an incident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Disruptive reports whether the severity forces reassignment.
func (s Severity) Disruptive() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Incident is a reported problem affecting a vehicle, an order or both.
type Incident struct {
	ID             string       `json:"id"`
	VehicleID      string       `json:"vehicle_id,omitempty" validate:"required_without=OrderID"`
	OrderID        string       `json:"order_id,omitempty" validate:"required_without=VehicleID"`
	Type           IncidentType `json:"type" validate:"omitempty,oneof=MECHANICAL WEATHER TRAFFIC SAFETY OTHER"`
	Severity       Severity     `json:"severity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	Description    string       `json:"description,omitempty"`
	ReportedAt     time.Time    `json:"reported_at"`
	Resolved       bool         `json:"resolved"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
}

// Validate checks that the incident references something and has a known severity.
func (i Incident) Validate() error {
	return validateStruct(i)
}
