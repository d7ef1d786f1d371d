package security

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorshield_security_events_total",
			Help: "Total security events logged",
		},
		[]string{"type", "severity"},
	)
	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorshield_security_events_dropped_total",
			Help: "Total security events that could not be persisted",
		},
		[]string{"type"},
	)
	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorshield_security_alerts_total",
			Help: "Total security alerts emitted",
		},
		[]string{"type", "severity"},
	)
	hookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donorshield_security_hook_failures_total",
			Help: "Total failures of anomaly hooks and alert notifiers",
		},
		[]string{"hook"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(eventsDroppedTotal)
	prometheus.MustRegister(alertsTotal)
	prometheus.MustRegister(hookFailuresTotal)
}
