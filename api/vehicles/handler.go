package vehicles

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Lister is the part of the fleet registry read by the status handler.
type Lister interface {
	List(f fleet.Filter) []model.Vehicle
}

// StatusEntry summarises one vehicle for dashboards.
type StatusEntry struct {
	VehicleID      string              `json:"vehicle_id"`
	Type           model.VehicleType   `json:"type"`
	Status         model.VehicleStatus `json:"status"`
	Battery        float64             `json:"battery"`
	Position       model.Point         `json:"position"`
	CurrentOrderID string              `json:"current_order_id,omitempty"`
	LastSeenAgoS   float64             `json:"last_seen_ago_s"`
}

// Summary is the body returned by the status handler.
type Summary struct {
	Counts   map[model.VehicleStatus]int `json:"counts"`
	Vehicles []StatusEntry               `json:"vehicles"`
}

// NewStatusHandler returns an HTTP handler exposing fleet status via
// GET /v1/fleet/status, filtered by the type and status query parameters.
// Vehicles with a battery under min_battery are left out when it is set.
func NewStatusHandler(fl Lister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		f := fleet.Filter{
			Type:   model.VehicleType(strings.ToUpper(q.Get("type"))),
			Status: model.VehicleStatus(strings.ToUpper(q.Get("status"))),
		}
		minBattery, err := parseBattery(q.Get("min_battery"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := Summary{Counts: map[model.VehicleStatus]int{}, Vehicles: []StatusEntry{}}
		for _, v := range fl.List(f) {
			if v.Battery < minBattery {
				continue
			}
			out.Counts[v.Status]++
			out.Vehicles = append(out.Vehicles, StatusEntry{
				VehicleID:      v.ID,
				Type:           v.Type,
				Status:         v.Status,
				Battery:        v.Battery,
				Position:       v.Position,
				CurrentOrderID: v.CurrentOrderID,
				LastSeenAgoS:   sinceSeconds(v),
			})
		}
		sort.Slice(out.Vehicles, func(i, j int) bool { return out.Vehicles[i].VehicleID < out.Vehicles[j].VehicleID })
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseBattery(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("min_battery must be between 0 and 100")
	}
	return v, nil
}

func sinceSeconds(v model.Vehicle) float64 {
	if v.LastSeen.IsZero() {
		return 0
	}
	return time.Since(v.LastSeen).Seconds()
}
