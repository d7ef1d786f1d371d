package store

import "github.com/prometheus/client_golang/prometheus"

var connectFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "donorshield_store_connect_failures_total",
		Help: "Total failed redis connection attempts",
	},
)

func init() {
	prometheus.MustRegister(connectFailuresTotal)
}
