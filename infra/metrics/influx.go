package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes the assignment with its planned route totals.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("assignment").
		AddTag("order_id", ev.OrderID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("vehicle_type", string(ev.VehicleType)).
		AddTag("mode", string(ev.Mode)).
		AddTag("priority", string(ev.Priority)).
		AddField("score", round3(ev.Score)).
		AddField("distance_km", round3(ev.DistanceKm)).
		AddField("duration_min", round3(ev.DurationMin)).
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		AddField("co2e_grams", round3(ev.CO2eGrams)).
		AddField("attempts", ev.Attempts).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordOrderStatus writes an order transition.
func (s *InfluxSink) RecordOrderStatus(ev coremetrics.OrderStatusEvent) error {
	p := write.NewPointWithMeasurement("order_status").
		AddTag("order_id", ev.OrderID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To))
	if ev.VehicleID != "" {
		p = p.AddTag("vehicle_id", ev.VehicleID)
	}
	p = p.AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDisruption writes a failed order and its requeued clone.
func (s *InfluxSink) RecordDisruption(ev coremetrics.DisruptionEvent) error {
	p := write.NewPointWithMeasurement("disruption").
		AddTag("order_id", ev.OrderID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("kind", reasonKind(ev.Reason)).
		AddField("new_order_id", ev.NewOrderID).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordIncident writes an incident report or resolution.
func (s *InfluxSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	inc := ev.Incident
	p := write.NewPointWithMeasurement("incident").
		AddTag("incident_id", inc.ID).
		AddTag("type", string(inc.Type)).
		AddTag("severity", string(inc.Severity))
	if inc.VehicleID != "" {
		p = p.AddTag("vehicle_id", inc.VehicleID)
	}
	if inc.OrderID != "" {
		p = p.AddTag("order_id", inc.OrderID)
	}
	p = p.AddField("resolved", inc.Resolved).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordVehicleState writes a snapshot of a vehicle.
func (s *InfluxSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	v := ev.Vehicle
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", v.ID).
		AddTag("vehicle_type", string(v.Type))
	if ev.Component != "" {
		p = p.AddTag("component", ev.Component)
	}
	p = p.AddField("battery", round3(v.Battery)).
		AddField("status", string(v.Status)).
		AddField("lat", v.Position.Lat).
		AddField("lng", v.Position.Lng).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordNotification writes the outcome of a vehicle command.
func (s *InfluxSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	p := write.NewPointWithMeasurement("vehicle_notification").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("order_id", ev.OrderID).
		AddTag("kind", ev.Kind).
		AddField("delivered", ev.Delivered).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDelivery writes the route totals of a delivered order.
func (s *InfluxSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	p := write.NewPointWithMeasurement("delivery").
		AddTag("order_id", ev.OrderID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("vehicle_type", string(ev.VehicleType)).
		AddTag("mode", string(ev.Mode)).
		AddField("distance_km", round3(ev.DistanceKm)).
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		AddField("co2e_grams", round3(ev.CO2eGrams)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDispatchLatency writes one point per latency sample.
func (s *InfluxSink) RecordDispatchLatency(recs []coremetrics.DispatchLatency) error {
	now := time.Now()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("dispatch_latency").
			AddTag("order_id", r.OrderID).
			AddTag("priority", string(r.Priority)).
			AddTag("assigned", strconv.FormatBool(r.Assigned)).
			AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
			SetTime(now)
		if err := s.write(p); err != nil {
			return err
		}
	}
	return nil
}

// RecordFleetSize writes the number of vehicles per status.
func (s *InfluxSink) RecordFleetSize(counts map[model.VehicleStatus]int) error {
	p := write.NewPointWithMeasurement("fleet_size")
	total := 0
	for _, st := range []model.VehicleStatus{
		model.VehicleIdle, model.VehicleAssigned, model.VehicleEnRoute,
		model.VehicleCharging, model.VehicleMaintenance, model.VehicleOffline,
	} {
		p = p.AddField(strings.ToLower(string(st)), counts[st])
		total += counts[st]
	}
	p = p.AddField("total", total).SetTime(time.Now())
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// reasonKind strips the detail from a disruption reason.
func reasonKind(reason string) string {
	kind, _, _ := strings.Cut(reason, ":")
	return kind
}
