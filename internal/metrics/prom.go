package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "packbridge_build_info",
			Help:        "Build information for the packbridge host",
			ConstLabels: prometheus.Labels{"component": "host"},
		},
		[]string{"date", "sha", "version"},
	)

	packsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "packbridge_packs_connected",
			Help: "Number of currently connected packs",
		},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packbridge_cache_requests_total",
			Help: "Cache requests served, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	cacheDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packbridge_cache_request_duration_seconds",
			Help:    "Time spent serving cache requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packbridge_commands_total",
			Help: "Lifecycle commands issued to packs, by command and outcome",
		},
		[]string{"command", "outcome"},
	)
)

// Register registers the host metrics on r.
func Register(r *prometheus.Registry) {
	r.MustRegister(buildInfo, packsConnected, cacheRequests, cacheDuration, commandsTotal)
}

// SetBuildInfo sets the build info metric for the host.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// PackConnected increments the connected packs gauge.
func PackConnected() { packsConnected.Inc() }

// PackDisconnected decrements the connected packs gauge.
func PackDisconnected() { packsConnected.Dec() }

// ObserveCacheRequest records one served cache request.
func ObserveCacheRequest(op string, success bool, dur time.Duration) {
	cacheRequests.WithLabelValues(op, outcome(success)).Inc()
	cacheDuration.WithLabelValues(op).Observe(dur.Seconds())
}

// RecordCommand records one lifecycle command round trip.
func RecordCommand(command string, success bool) {
	commandsTotal.WithLabelValues(command, outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
