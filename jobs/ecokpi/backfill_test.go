package ecokpi

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
	"github.com/kilianp07/fleetdispatch/core/model"
)

func TestBackfill(t *testing.T) {
	logs, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "dispatch.log"))
	require.NoError(t, err)
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	route := &model.Route{Mode: model.ModeBike, TotalDistanceKm: 2, Total: model.LegCost{EnergyKWh: 0.2, CO2eGrams: 4}}
	for _, r := range []logging.LogRecord{
		{Timestamp: day, OrderID: "o1", VehicleID: "bike-1", Action: logging.ActionAssigned, Route: route},
		{Timestamp: day.Add(time.Hour), OrderID: "o1", VehicleID: "bike-1", Action: logging.ActionDelivered, Route: route},
		{Timestamp: day.Add(2 * time.Hour), OrderID: "o2", VehicleID: "bike-1", Action: logging.ActionDelivered, Route: route},
		{Timestamp: day.Add(3 * time.Hour), OrderID: "o3", VehicleID: "bike-2", Action: logging.ActionDelivered},
	} {
		require.NoError(t, logs.Append(context.Background(), r))
	}

	store := eco.NewMemoryStore()
	n, err := Backfill(context.Background(), logs, store, logging.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := store.Query("", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "bike-1", recs[0].VehicleID)
	assert.Equal(t, 2, recs[0].Deliveries)
	assert.InDelta(t, 4, recs[0].DistanceKm, 1e-9)
	assert.InDelta(t, 8, recs[0].CO2eGrams, 1e-9)
}
