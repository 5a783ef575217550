package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentLatency *prometheus.HistogramVec
	orderTransitions  *prometheus.CounterVec
	reassignments     *prometheus.CounterVec
	assignConflicts   prometheus.Counter
	pendingOrders     prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_assignment_latency_seconds",
			Help:    "Time from order submission to assignment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"priority"},
	)
	trans := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_order_transitions_total",
			Help: "Number of order status transitions by target status",
		},
		[]string{"status"},
	)
	reasg := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_reassignments_total",
			Help: "Number of orders requeued after a disruption",
		},
		[]string{"reason"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_assign_conflicts_total",
			Help: "Number of lost vehicle assignment races",
		},
	)
	pend := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_pending_orders",
			Help: "Number of orders waiting for a vehicle",
		},
	)
	return lat, trans, reasg, conf, pend
}

func init() {
	assignmentLatency, orderTransitions, reassignments, assignConflicts, pendingOrders = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentLatency, orderTransitions, reassignments, assignConflicts, pendingOrders)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentLatency, orderTransitions, reassignments, assignConflicts, pendingOrders = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
