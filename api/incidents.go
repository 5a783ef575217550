package api

import (
	"net/http"
	"strconv"

	"github.com/kilianp07/fleetdispatch/core/incident"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type incidentRequest struct {
	VehicleID   string             `json:"vehicle_id,omitempty"`
	OrderID     string             `json:"order_id,omitempty"`
	Type        model.IncidentType `json:"type,omitempty"`
	Severity    model.Severity     `json:"severity"`
	Description string             `json:"description,omitempty"`
}

type resolveRequest struct {
	Note string `json:"note,omitempty"`
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	inc, err := s.inc.Report(model.Incident{
		VehicleID:   req.VehicleID,
		OrderID:     req.OrderID,
		Type:        req.Type,
		Severity:    req.Severity,
		Description: req.Description,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := incident.Filter{
		VehicleID: q.Get("vehicle_id"),
		OrderID:   q.Get("order_id"),
	}
	if raw := q.Get("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeDomainError(w, &model.ValidationError{Field: "open", Reason: "must be a boolean"})
			return
		}
		f.OpenOnly = open
	}
	s.writeJSON(w, http.StatusOK, s.inc.List(f))
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "incidentID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	inc, err := s.inc.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "incidentID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req resolveRequest
	if r.ContentLength != 0 {
		if err := s.decodeAndValidate(r, &req); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	inc, err := s.inc.Resolve(id, req.Note)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inc)
}
