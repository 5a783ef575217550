package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/api/vehicles"
	"github.com/kilianp07/fleetdispatch/core/dispatch/logging"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 1.3048, 103.8318")
	require.NoError(t, err)
	assert.Equal(t, model.Point{Lat: 1.3048, Lng: 103.8318}, p)

	for _, bad := range []string{"", "1.3", "a,b", "95,10", "1,2,3"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestPlanCommand(t *testing.T) {
	out, err := execute(t, "plan", "--pickup", "1.3048,103.8318", "--dropoff", "1.3100,103.8400")
	require.NoError(t, err)
	var got planOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, model.ModeBike, got.Route.Mode)
	assert.Len(t, got.Route.Legs, 1)
	assert.InDelta(t, got.DirectDistanceKm, got.Route.TotalDistanceKm, 1e-9)

	out, err = execute(t, "plan", "--pickup", "1.3048,103.8318", "--dropoff", "1.3100,103.8400", "--mode", "hybrid")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, model.ModeHybrid, got.Route.Mode)
	assert.Len(t, got.Route.Legs, 2)

	_, err = execute(t, "plan", "--pickup", "1.3,103.8", "--dropoff", "1.31,103.84", "--mode", "boat")
	assert.Error(t, err)
	planMode = ""
}

func TestLogsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.log")
	store, err := logging.NewJSONLStore(path)
	require.NoError(t, err)
	now := time.Now().UTC()
	for _, r := range []logging.LogRecord{
		{Timestamp: now.Add(-3 * time.Hour), OrderID: "o1", VehicleID: "bike-1", Action: logging.ActionAssigned},
		{Timestamp: now.Add(-time.Minute), OrderID: "o2", VehicleID: "bike-1", Action: logging.ActionAssigned},
		{Timestamp: now.Add(-time.Minute), OrderID: "o3", VehicleID: "drone-1", Action: logging.ActionAssigned},
	} {
		require.NoError(t, store.Append(context.Background(), r))
	}
	require.NoError(t, store.Close())

	out, err := execute(t, "logs", "--backend", "jsonl", "--path", path, "--vehicle", "bike-1", "--since", "1h", "--format", "csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "o2", rows[1][1])

	_, err = execute(t, "logs", "--backend", "jsonl", "--path", path, "--format", "xml")
	assert.Error(t, err)
	logsOpts.format = "json"
	logsOpts.vehicle = ""
	logsOpts.since = 0
}

func TestFleetLsCommand(t *testing.T) {
	reg := fleet.NewRegistry(fleet.Config{}, nil, logger.NopLogger{})
	for _, v := range fleet.DemoFleet() {
		require.NoError(t, reg.Register(v))
	}
	srv := httptest.NewServer(vehicles.NewStatusHandler(reg))
	defer srv.Close()

	out, err := execute(t, "fleet", "ls", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "bike-1")
	assert.Contains(t, out, "drone-2")
	assert.Contains(t, out, "CHARGING")
	fleetOpts.addr = ""
}
