package api

import (
	"net/http"
	"strings"

	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type orderRequest struct {
	ID            string              `json:"id,omitempty"`
	Pickup        model.Point         `json:"pickup"`
	Dropoff       model.Point         `json:"dropoff"`
	WeightKg      float64             `json:"weight_kg"`
	CapacityClass model.CapacityClass `json:"capacity_class,omitempty"`
	Priority      model.Priority      `json:"priority,omitempty"`
	PreferredMode model.DeliveryMode  `json:"preferred_mode,omitempty"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	id, err := s.sched.Submit(model.Order{
		ID:            req.ID,
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		WeightKg:      req.WeightKg,
		CapacityClass: req.CapacityClass,
		Priority:      req.Priority,
		PreferredMode: req.PreferredMode,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	o, err := s.sched.Order(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	f := dispatch.OrderFilter{}
	if st := strings.ToUpper(r.URL.Query().Get("status")); st != "" {
		f.Status = model.OrderStatus(st)
	}
	s.writeJSON(w, http.StatusOK, s.sched.Orders(f))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "orderID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	o, err := s.sched.Order(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "orderID")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.sched.Cancel(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	o, err := s.sched.Order(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}
