package incident

import "github.com/prometheus/client_golang/prometheus"

var (
	incidentsReported *prometheus.CounterVec
	openIncidents     prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Gauge) {
	reported := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incident_reports_total",
			Help: "Number of incidents reported by severity",
		},
		[]string{"severity"},
	)
	open := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "incident_open",
			Help: "Number of unresolved incidents",
		},
	)
	return reported, open
}

func init() {
	incidentsReported, openIncidents = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers incident metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(incidentsReported, openIncidents)
}

// ResetMetrics recreates the collectors, registering them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	incidentsReported, openIncidents = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
