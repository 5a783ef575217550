package vehicles

import (
	"encoding/json"
	"net/http"
	"time"

	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
)

type kpiRow struct {
	VehicleID      string  `json:"vehicle_id"`
	Date           string  `json:"date"`
	Deliveries     int     `json:"deliveries"`
	DistanceKm     float64 `json:"distance_km"`
	EnergyKWh      float64 `json:"energy_kwh"`
	CO2eGrams      float64 `json:"co2e_grams"`
	CO2PerDelivery float64 `json:"co2e_per_delivery"`
	EnergyPerKm    float64 `json:"energy_per_km"`
}

type kpiResponse struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []kpiRow `json:"days"`
	Total kpiRow   `json:"total"`
}

func toRow(r eco.Record) kpiRow {
	row := kpiRow{
		VehicleID:      r.VehicleID,
		Deliveries:     r.Deliveries,
		DistanceKm:     r.DistanceKm,
		EnergyKWh:      r.EnergyKWh,
		CO2eGrams:      r.CO2eGrams,
		CO2PerDelivery: r.CO2PerDelivery(),
		EnergyPerKm:    r.EnergyPerKm(),
	}
	if !r.Date.IsZero() {
		row.Date = r.Date.Format("2006-01-02")
	}
	return row
}

// NewKPIHandler exposes delivery emissions via
// GET /v1/kpi/emissions?vehicle_id=&start=&end=. The range defaults to the
// last seven days.
func NewKPIHandler(store eco.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		end := time.Now().UTC()
		if s := q.Get("end"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid end", http.StatusBadRequest)
				return
			}
			end = t
		}
		start := end.AddDate(0, 0, -7)
		if s := q.Get("start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid start", http.StatusBadRequest)
				return
			}
			start = t
		}
		if end.Before(start) {
			http.Error(w, "end before start", http.StatusBadRequest)
			return
		}
		vid := q.Get("vehicle_id")
		recs, err := store.Query(vid, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := kpiResponse{
			Start: eco.Day(start).Format("2006-01-02"),
			End:   eco.Day(end).Format("2006-01-02"),
			Days:  make([]kpiRow, len(recs)),
			Total: toRow(eco.Total(recs)),
		}
		out.Total.VehicleID = vid
		for i, rec := range recs {
			out.Days[i] = toRow(rec)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
