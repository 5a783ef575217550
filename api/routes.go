package api

import (
	"net/http"

	"github.com/kilianp07/fleetdispatch/core/geo"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type planRequest struct {
	Pickup        model.Point        `json:"pickup"`
	Dropoff       model.Point        `json:"dropoff"`
	PreferredMode model.DeliveryMode `json:"preferred_mode,omitempty" validate:"omitempty,oneof=BIKE DRONE HYBRID"`
}

type planResponse struct {
	DirectDistanceKm float64     `json:"direct_distance_km"`
	Route            model.Route `json:"route"`
}

// handlePlanRoute quotes a delivery without submitting an order.
func (s *Server) handlePlanRoute(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{
		DirectDistanceKm: geo.DistanceKm(req.Pickup, req.Dropoff),
		Route:            s.cost.PlanRoute(req.Pickup, req.Dropoff, req.PreferredMode),
	})
}
