package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks gateway traffic.
type Metrics struct {
	// RequestCounter counts HTTP requests.
	// Labels: method, path, status
	RequestCounter *prometheus.CounterVec

	// ChatCounter counts chat turns.
	// Labels: personality, mode (sync|stream), status (ok|error)
	ChatCounter *prometheus.CounterVec

	// RateLimited counts rejected requests.
	// Labels: scope (global|chat)
	RateLimited *prometheus.CounterVec

	// ActiveStreams gauges currently open SSE streams.
	ActiveStreams prometheus.Gauge
}

// NewMetrics creates and registers all gateway metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rickbot_http_requests_total",
				Help: "Total HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		ChatCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rickbot_chat_turns_total",
				Help: "Total chat turns by personality, mode, and status",
			},
			[]string{"personality", "mode", "status"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rickbot_rate_limited_total",
				Help: "Total requests rejected by rate limiting, by scope",
			},
			[]string{"scope"},
		),
		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rickbot_active_streams",
				Help: "Number of SSE chat streams currently open",
			},
		),
	}
}
