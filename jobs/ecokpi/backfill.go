// Package ecokpi rebuilds the emissions ledger from the dispatch audit log.
package ecokpi

import (
	"context"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
)

// Backfill books every delivered order of the audit log matching q into the
// store and returns the number of deliveries added. Records without a route
// are skipped.
func Backfill(ctx context.Context, logs logging.LogStore, store eco.Store, q logging.LogQuery) (int, error) {
	q.Action = logging.ActionDelivered
	recs, err := logs.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if r.Route == nil || r.VehicleID == "" {
			continue
		}
		if err := store.Add(eco.Record{
			VehicleID:  r.VehicleID,
			Date:       r.Timestamp,
			Deliveries: 1,
			DistanceKm: r.Route.TotalDistanceKm,
			EnergyKWh:  r.Route.Total.EnergyKWh,
			CO2eGrams:  r.Route.Total.CO2eGrams,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
