package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	assignments   *prometheus.CounterVec
	distance      *prometheus.HistogramVec
	co2           *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	disruptions   *prometheus.CounterVec
	incidents     *prometheus.CounterVec
	battery       *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	fleet         *prometheus.GaugeVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.assignments, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_assignments_total",
		Help: "Total number of committed assignments",
	}, []string{"vehicle_type", "mode", "priority"})); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_assignment_distance_km",
		Help:    "Planned route distance per assignment",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 40},
	}, []string{"vehicle_type"})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_planned_co2e_grams_total",
		Help: "Planned CO2e of committed assignments",
	}, []string{"vehicle_type"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_dispatch_latency_seconds",
		Help:    "Time between order submission and assignment",
		Buckets: prometheus.DefBuckets,
	}, []string{"priority", "assigned"})); err != nil {
		return nil, err
	}
	if s.disruptions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_disruptions_total",
		Help: "Orders failed and requeued by disruption kind",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if s.incidents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_incidents_total",
		Help: "Incidents by type, severity and state",
	}, []string{"type", "severity", "state"})); err != nil {
		return nil, err
	}
	if s.battery, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_vehicle_battery_percent",
		Help: "Last reported battery level",
	}, []string{"vehicle_id", "vehicle_type"})); err != nil {
		return nil, err
	}
	if s.notifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_vehicle_notifications_total",
		Help: "Commands published to vehicles",
	}, []string{"kind", "delivered"})); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_deliveries_total",
		Help: "Completed deliveries",
	}, []string{"vehicle_type"})); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_vehicles",
		Help: "Number of vehicles per status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// RecordAssignment counts the assignment and its planned distance and emissions.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	vt := string(ev.VehicleType)
	s.assignments.WithLabelValues(vt, string(ev.Mode), string(ev.Priority)).Inc()
	s.distance.WithLabelValues(vt).Observe(ev.DistanceKm)
	s.co2.WithLabelValues(vt).Add(ev.CO2eGrams)
	return nil
}

// RecordDispatchLatency records the dispatch latency histogram.
func (s *PromSink) RecordDispatchLatency(recs []coremetrics.DispatchLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(string(r.Priority), strconv.FormatBool(r.Assigned)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordDisruption counts requeues by reason kind.
func (s *PromSink) RecordDisruption(ev coremetrics.DisruptionEvent) error {
	s.disruptions.WithLabelValues(reasonKind(ev.Reason)).Inc()
	return nil
}

// RecordIncident counts incident reports and resolutions.
func (s *PromSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	state := "reported"
	if ev.Incident.Resolved {
		state = "resolved"
	}
	s.incidents.WithLabelValues(string(ev.Incident.Type), string(ev.Incident.Severity), state).Inc()
	return nil
}

// RecordVehicleState updates the battery gauge.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.battery.WithLabelValues(ev.Vehicle.ID, string(ev.Vehicle.Type)).Set(ev.Vehicle.Battery)
	return nil
}

// RecordNotification counts vehicle commands.
func (s *PromSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	s.notifications.WithLabelValues(ev.Kind, strconv.FormatBool(ev.Delivered)).Inc()
	return nil
}

// RecordDelivery counts completed deliveries.
func (s *PromSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.deliveries.WithLabelValues(string(ev.VehicleType)).Inc()
	return nil
}

// RecordFleetSize sets the per status vehicle gauge.
func (s *PromSink) RecordFleetSize(counts map[model.VehicleStatus]int) error {
	for _, st := range []model.VehicleStatus{
		model.VehicleIdle, model.VehicleAssigned, model.VehicleEnRoute,
		model.VehicleCharging, model.VehicleMaintenance, model.VehicleOffline,
	} {
		s.fleet.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	return nil
}
