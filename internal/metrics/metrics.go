package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK            = "ok"
	ResultInvalidInput  = "invalid_input"
	ResultUpstreamError = "upstream_error"
)

var (
	once sync.Once

	// RelayRequestsTotal counts chat exchanges by outcome.
	RelayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Total number of chat exchanges handled by the relay, labeled by result.",
	}, []string{"result"})

	// UpstreamDurationSeconds is the time spent waiting on the completion API.
	UpstreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "upstream_duration_seconds",
		Help:      "Time spent in a single completion API call.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"result"})

	// UpstreamInFlight is the number of completion calls currently waiting.
	UpstreamInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "upstream_in_flight",
		Help:      "Current number of completion API calls in flight.",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	})

	// WebSocketConnections is the number of open relay sockets.
	WebSocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Current number of open WebSocket relay connections.",
	})
)

// Register registers relay metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RelayRequestsTotal,
			UpstreamDurationSeconds,
			UpstreamInFlight,
			RateLimitedTotal,
			WebSocketConnections,
		)
	})
}
