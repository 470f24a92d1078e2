// Package metrics holds the Prometheus collectors of the addon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncribullet",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncribullet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"})

	AddonRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncribullet",
		Name:      "addon_requests_total",
		Help:      "Requests to external stream addons by host and result.",
	}, []string{"host", "result"})

	AddonRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncribullet",
		Name:      "addon_request_duration_seconds",
		Help:      "External stream addon request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"host"})

	TokenParseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncribullet",
		Name:      "config_token_parse_total",
		Help:      "Config token parse attempts by result.",
	}, []string{"result"})

	OriginRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncribullet",
		Name:      "origin_rejected_total",
		Help:      "Stream requests answered empty because the origin is not allowed.",
	})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AddonRequestsTotal,
		AddonRequestDuration,
		TokenParseTotal,
		OriginRejectedTotal,
	)
}
