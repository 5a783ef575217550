package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	assignmentLatency.WithLabelValues("HIGH").Observe(0.1)
	orderTransitions.WithLabelValues("ASSIGNED").Inc()
	reassignments.WithLabelValues("critical_battery").Inc()
	assignConflicts.Inc()
	pendingOrders.Set(3)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"dispatch_assignment_latency_seconds",
		"dispatch_order_transitions_total",
		"dispatch_reassignments_total",
		"dispatch_assign_conflicts_total",
		"dispatch_pending_orders",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
