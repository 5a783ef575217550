// Package export writes dispatch audit records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
)

var csvHeader = []string{
	"timestamp", "order_id", "vehicle_id", "action", "from", "to", "priority",
	"score", "attempts", "reason", "mode", "distance_km", "duration_min", "energy_kwh", "co2e_g",
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []logging.LogRecord) error {
	if recs == nil {
		recs = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes one row per record. Route columns are empty when the
// record carries no route.
func WriteCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.OrderID,
			r.VehicleID,
			r.Action,
			string(r.From),
			string(r.To),
			string(r.Priority),
			formatFloat(r.Score),
			strconv.Itoa(r.Attempts),
			r.Reason,
			"", "", "", "", "",
		}
		if rt := r.Route; rt != nil {
			row[10] = string(rt.Mode)
			row[11] = formatFloat(rt.TotalDistanceKm)
			row[12] = formatFloat(rt.Total.DurationMin)
			row[13] = formatFloat(rt.Total.EnergyKWh)
			row[14] = formatFloat(rt.Total.CO2eGrams)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
