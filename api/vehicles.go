package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type telemetryRequest struct {
	Lat       float64    `json:"lat" validate:"latitude"`
	Lng       float64    `json:"lng" validate:"longitude"`
	Heading   *float64   `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Battery   float64    `json:"battery" validate:"gte=0,lte=100"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type statusRequest struct {
	Status model.VehicleStatus `json:"status" validate:"oneof=IDLE CHARGING MAINTENANCE OFFLINE"`
}

type statusResponse struct {
	Vehicle         model.Vehicle `json:"vehicle"`
	OrphanedOrderID string        `json:"orphaned_order_id,omitempty"`
}

func (s *Server) handleRegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var v model.Vehicle
	if err := s.decodeAndValidate(r, &v); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.fleet.Register(v); err != nil {
		s.writeDomainError(w, err)
		return
	}
	stored, err := s.fleet.Get(v.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := fleet.Filter{
		Type:   model.VehicleType(strings.ToUpper(q.Get("type"))),
		Status: model.VehicleStatus(strings.ToUpper(q.Get("status"))),
	}
	s.writeJSON(w, http.StatusOK, s.fleet.List(f))
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "vehicleID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	v, err := s.fleet.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "vehicleID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req telemetryRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	t := model.Telemetry{
		Position: model.Point{Lat: req.Lat, Lng: req.Lng},
		Heading:  req.Heading,
		Battery:  req.Battery,
	}
	if req.Timestamp != nil {
		t.Time = *req.Timestamp
	}
	if err := s.fleet.ApplyTelemetry(id, t); err != nil {
		s.writeDomainError(w, err)
		return
	}
	v, err := s.fleet.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetVehicleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "vehicleID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req statusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	orphan, err := s.fleet.SetStatus(id, req.Status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	v, err := s.fleet.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Vehicle: v, OrphanedOrderID: orphan})
}
