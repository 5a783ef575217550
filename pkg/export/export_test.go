package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/model"
)

func sample() []logging.LogRecord {
	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	return []logging.LogRecord{
		{Timestamp: ts, OrderID: "o1", Action: logging.ActionSubmitted, To: model.OrderPending, Priority: model.PriorityHigh},
		{
			Timestamp: ts.Add(time.Second), OrderID: "o1", VehicleID: "bike-1", Action: logging.ActionAssigned,
			From: model.OrderPending, To: model.OrderAssigned, Priority: model.PriorityHigh, Score: 12.5, Attempts: 1,
			Route: &model.Route{
				Mode: model.ModeBike, TotalDistanceKm: 6.5,
				Total: model.LegCost{DurationMin: 13, EnergyKWh: 0.65, CO2eGrams: 325},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "2024-05-01T08:30:00Z", rows[1][0])
	assert.Equal(t, "", rows[1][10])
	assert.Equal(t, []string{"bike-1", "assigned", "PENDING", "ASSIGNED"}, rows[2][2:6])
	assert.Equal(t, "12.5", rows[2][7])
	assert.Equal(t, []string{"BIKE", "6.5", "13", "0.65", "325"}, rows[2][10:])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))
	var got []logging.LogRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "bike-1", got[1].VehicleID)
	require.NotNil(t, got[1].Route)
	assert.Equal(t, model.ModeBike, got[1].Route.Mode)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}
