package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OriginRequestsTotal counts upstream fetches by result and status.
	OriginRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_origin_requests_total",
		Help: "Total number of origin media requests, by result (ok, bad_status, error) and status code.",
	}, []string{"result", "status"})

	// OriginHeaderLatency tracks time until the origin answered with headers.
	OriginHeaderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelgate_origin_header_latency_seconds",
		Help:    "Time from upstream request to origin response headers",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	})

	// RelayBytesTotal counts media bytes relayed to clients.
	RelayBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelgate_relay_bytes_total",
		Help: "Total number of media bytes relayed from origin to clients.",
	})

	// ActiveRelays tracks in-progress byte relays.
	ActiveRelays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelgate_active_relays",
		Help: "Current number of active origin-to-client relays.",
	})

	// RelayAbortsTotal counts relays cut short, by side.
	RelayAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_relay_aborts_total",
		Help: "Total number of relays ended early, by cause (client_gone, origin_error).",
	}, []string{"cause"})
)

// ObserveOrigin records one upstream fetch outcome. status is 0 when no response arrived.
func ObserveOrigin(result string, status int, latency time.Duration) {
	OriginRequestsTotal.WithLabelValues(result, strconv.Itoa(status)).Inc()
	if status != 0 {
		OriginHeaderLatency.Observe(latency.Seconds())
	}
}

// AddRelayBytes records relayed bytes.
func AddRelayBytes(n int64) {
	if n > 0 {
		RelayBytesTotal.Add(float64(n))
	}
}

// IncActiveRelays marks a relay as started.
func IncActiveRelays() { ActiveRelays.Inc() }

// DecActiveRelays marks a relay as finished.
func DecActiveRelays() { ActiveRelays.Dec() }

// IncRelayAbort records an early relay end.
func IncRelayAbort(cause string) {
	RelayAbortsTotal.WithLabelValues(cause).Inc()
}
