package metrics

import "github.com/kilianp07/fleetdispatch/core/model"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOrderStatus forwards order transitions.
func (m *MultiSink) RecordOrderStatus(ev OrderStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OrderStatusRecorder); ok {
			if err := rec.RecordOrderStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDisruption forwards disruption events.
func (m *MultiSink) RecordDisruption(ev DisruptionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DisruptionRecorder); ok {
			if err := rec.RecordDisruption(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordIncident forwards incident events.
func (m *MultiSink) RecordIncident(ev IncidentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IncidentRecorder); ok {
			if err := rec.RecordIncident(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordVehicleState forwards vehicle snapshots.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStateRecorder); ok {
			if err := rec.RecordVehicleState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordNotification forwards notification outcomes.
func (m *MultiSink) RecordNotification(ev NotificationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(NotificationRecorder); ok {
			if err := rec.RecordNotification(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDelivery forwards delivered orders.
func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DeliveryRecorder); ok {
			if err := rec.RecordDelivery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDispatchLatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordDispatchLatency(lat []DispatchLatency) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(LatencyRecorder); ok {
			if err := lr.RecordDispatchLatency(lat); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards fleet size metrics when supported by the sink.
func (m *MultiSink) RecordFleetSize(counts map[model.VehicleStatus]int) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(FleetSizeRecorder); ok {
			if err := fr.RecordFleetSize(counts); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
