package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/cost"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/incident"
	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

var (
	depot   = model.Point{Lat: 1.3521, Lng: 103.8198}
	pickupA = model.Point{Lat: 1.3048, Lng: 103.8318}
	dropA   = model.Point{Lat: 1.3100, Lng: 103.8400}
)

type testEnv struct {
	reg   *fleet.Registry
	sched *dispatch.Scheduler
	h     http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ResetMetrics(nil)
	dispatch.ResetMetrics(nil)
	incident.ResetMetrics(nil)

	reg := fleet.NewRegistry(fleet.Config{}, nil, logger.NopLogger{})
	require.NoError(t, reg.Register(model.Vehicle{
		ID: "bike-1", Type: model.VehicleBike, Battery: 90, Position: depot,
		Capacity: model.Capacity{WeightKg: 50, VolumeL: 120},
	}))
	cm := cost.New(cost.Config{})
	sched, err := dispatch.NewScheduler(dispatch.Config{}, reg, cm, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	inc, err := incident.NewHandler(reg, sched, nil, logger.NopLogger{})
	require.NoError(t, err)

	srv, err := NewServer(config.HTTPConfig{}, Deps{
		Scheduler: sched,
		Fleet:     reg,
		Incidents: inc,
		Cost:      cm,
		Emissions: eco.NewMemoryStore(),
	}, logger.NopLogger{})
	require.NoError(t, err)
	return &testEnv{reg: reg, sched: sched, h: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func orderBody() map[string]any {
	return map[string]any{
		"pickup":    map[string]float64{"lat": pickupA.Lat, "lng": pickupA.Lng},
		"dropoff":   map[string]float64{"lat": dropA.Lat, "lng": dropA.Lng},
		"weight_kg": 2.5,
		"priority":  "HIGH",
	}
}

func TestSubmitOrderAssigns(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/orders", orderBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	o := decode[model.Order](t, rr)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, model.OrderAssigned, o.Status)
	assert.Equal(t, "bike-1", o.VehicleID)
	require.NotNil(t, o.Assignment)
	assert.Len(t, o.Assignment.Route.Legs, 2)

	rr = e.do(t, http.MethodGet, "/v1/orders/"+o.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, o.ID, decode[model.Order](t, rr).ID)

	rr = e.do(t, http.MethodGet, "/v1/orders?status=assigned", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Order](t, rr), 1)
}

func TestSubmitOrderValidation(t *testing.T) {
	e := newTestEnv(t)
	body := orderBody()
	body["weight_kg"] = 0
	rr := e.do(t, http.MethodPost, "/v1/orders", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := decode[APIError](t, rr)
	assert.Contains(t, apiErr.Error, "validation")

	body = orderBody()
	body["pickup"] = map[string]float64{"lat": 123, "lng": 0}
	rr = e.do(t, http.MethodPost, "/v1/orders", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/orders", `{"weight_kg": 1, "colour": "red"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/orders", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderNotFound(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/v1/orders/missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[APIError](t, rr).Error, "missing")

	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/v1/orders/{orderID}", "GET", "404")))
}

func TestCancelOrder(t *testing.T) {
	e := newTestEnv(t)
	o := decode[model.Order](t, e.do(t, http.MethodPost, "/v1/orders", orderBody()))

	rr := e.do(t, http.MethodPost, "/v1/orders/"+o.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, model.OrderCancelled, decode[model.Order](t, rr).Status)

	v, err := e.reg.Get("bike-1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleIdle, v.Status)

	rr = e.do(t, http.MethodPost, "/v1/orders/"+o.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancelInTransitRejected(t *testing.T) {
	e := newTestEnv(t)
	o := decode[model.Order](t, e.do(t, http.MethodPost, "/v1/orders", orderBody()))
	require.NoError(t, e.sched.MarkInTransit(o.ID))

	rr := e.do(t, http.MethodPost, "/v1/orders/"+o.ID+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVehicleEndpoints(t *testing.T) {
	e := newTestEnv(t)
	drone := map[string]any{
		"id":       "drone-9",
		"type":     "DRONE",
		"capacity": map[string]float64{"weight_kg": 5, "volume_l": 10},
		"battery":  60,
		"position": map[string]float64{"lat": depot.Lat, "lng": depot.Lng},
	}
	rr := e.do(t, http.MethodPost, "/v1/vehicles", drone)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, model.VehicleIdle, decode[model.Vehicle](t, rr).Status)

	rr = e.do(t, http.MethodPost, "/v1/vehicles", drone)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/vehicles?type=drone", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Vehicle](t, rr), 1)

	rr = e.do(t, http.MethodPost, "/v1/vehicles/drone-9/telemetry", map[string]any{"lat": 1.30, "lng": 103.83, "battery": 55, "heading": 90})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v := decode[model.Vehicle](t, rr)
	assert.Equal(t, 55.0, v.Battery)
	assert.Equal(t, 90.0, v.Heading)

	rr = e.do(t, http.MethodPost, "/v1/vehicles/ghost/telemetry", map[string]any{"lat": 1.30, "lng": 103.83, "battery": 55})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/vehicles/drone-9/telemetry", map[string]any{"lat": 1.30, "lng": 103.83, "battery": 101})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, "/v1/vehicles/drone-9/status", map[string]any{"status": "OFFLINE"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.VehicleOffline, decode[statusResponse](t, rr).Vehicle.Status)

	rr = e.do(t, http.MethodPut, "/v1/vehicles/drone-9/status", map[string]any{"status": "ASSIGNED"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetStatusReportsOrphan(t *testing.T) {
	e := newTestEnv(t)
	o := decode[model.Order](t, e.do(t, http.MethodPost, "/v1/orders", orderBody()))

	rr := e.do(t, http.MethodPut, "/v1/vehicles/bike-1/status", map[string]any{"status": "MAINTENANCE"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, o.ID, decode[statusResponse](t, rr).OrphanedOrderID)
}

func TestIncidentLifecycle(t *testing.T) {
	e := newTestEnv(t)
	o := decode[model.Order](t, e.do(t, http.MethodPost, "/v1/orders", orderBody()))

	rr := e.do(t, http.MethodPost, "/v1/incidents", map[string]any{
		"vehicle_id": "bike-1", "type": "MECHANICAL", "severity": "HIGH", "description": "flat tyre",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	inc := decode[model.Incident](t, rr)
	assert.NotEmpty(t, inc.ID)

	v, err := e.reg.Get("bike-1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleMaintenance, v.Status)

	failed, err := e.sched.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, failed.Status)

	rr = e.do(t, http.MethodGet, "/v1/incidents?open=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Incident](t, rr), 1)

	rr = e.do(t, http.MethodPost, "/v1/incidents/"+inc.ID+"/resolve", map[string]any{"note": "tyre replaced"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resolved := decode[model.Incident](t, rr)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "tyre replaced", resolved.ResolutionNote)

	rr = e.do(t, http.MethodGet, "/v1/incidents/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/incidents?open=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIncidentRequiresTarget(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/incidents", map[string]any{"severity": "LOW"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlanRoute(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/routes/plan", map[string]any{
		"pickup":  map[string]float64{"lat": pickupA.Lat, "lng": pickupA.Lng},
		"dropoff": map[string]float64{"lat": dropA.Lat, "lng": dropA.Lng},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[planResponse](t, rr)
	assert.Equal(t, model.ModeBike, out.Route.Mode)
	assert.Greater(t, out.DirectDistanceKm, 0.0)
	assert.InDelta(t, out.DirectDistanceKm, out.Route.TotalDistanceKm, 1e-9)

	rr = e.do(t, http.MethodPost, "/v1/routes/plan", map[string]any{
		"pickup":         map[string]float64{"lat": pickupA.Lat, "lng": pickupA.Lng},
		"dropoff":        map[string]float64{"lat": dropA.Lat, "lng": dropA.Lng},
		"preferred_mode": "HYBRID",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[planResponse](t, rr).Route.Legs, 2)

	rr = e.do(t, http.MethodPost, "/v1/routes/plan", map[string]any{"preferred_mode": "BOAT"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndSubHandlers(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `"IDLE":1`), rr.Body.String())

	rr = e.do(t, http.MethodGet, "/v1/fleet/status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/kpi/emissions", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// no audit store configured
	rr = e.do(t, http.MethodGet, "/v1/dispatch/logs", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewServerRejectsMissingDeps(t *testing.T) {
	_, err := NewServer(config.HTTPConfig{}, Deps{}, logger.NopLogger{})
	assert.Error(t, err)
}
