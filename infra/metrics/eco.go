package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	eco "github.com/kilianp07/fleetdispatch/core/metrics/eco"
)

// EcoSink accumulates delivered routes into the emissions ledger.
type EcoSink struct {
	store      eco.Store
	deliveries *prometheus.GaugeVec
	co2        *prometheus.GaugeVec
	energy     *prometheus.GaugeVec
}

// NewEcoSink creates a sink with Prometheus gauges registered on reg.
func NewEcoSink(store eco.Store, reg prometheus.Registerer) (*EcoSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EcoSink{store: store}
	var err error
	if s.deliveries, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_deliveries",
		Help: "Deliveries completed per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_co2e_grams",
		Help: "CO2e emitted by deliveries per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_daily_energy_kwh",
		Help: "Energy used by deliveries per vehicle and day",
	}, []string{"vehicle_id", "day"})); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the ledger backing the sink.
func (s *EcoSink) Store() eco.Store { return s.store }

// RecordAssignment is a no-op: emissions are booked on delivery.
func (s *EcoSink) RecordAssignment(coremetrics.AssignmentEvent) error { return nil }

// RecordDelivery books the delivered route and refreshes the day gauges.
func (s *EcoSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	rec := eco.Record{
		VehicleID:  ev.VehicleID,
		Date:       ev.Time,
		Deliveries: 1,
		DistanceKm: ev.DistanceKm,
		EnergyKWh:  ev.EnergyKWh,
		CO2eGrams:  ev.CO2eGrams,
	}
	if err := s.store.Add(rec); err != nil {
		return err
	}
	dayStr := eco.Day(rec.Date).Format("2006-01-02")
	records, err := s.store.Query(ev.VehicleID, rec.Date, rec.Date)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		rr := records[0]
		s.deliveries.WithLabelValues(ev.VehicleID, dayStr).Set(float64(rr.Deliveries))
		s.co2.WithLabelValues(ev.VehicleID, dayStr).Set(rr.CO2eGrams)
		s.energy.WithLabelValues(ev.VehicleID, dayStr).Set(rr.EnergyKWh)
	}
	return nil
}
