// Package metrics holds the Prometheus collectors for reconciliation passes
// and the feed server.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	passes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Reconciliation passes by outcome.",
		},
		[]string{"domain", "result"},
	)
	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"domain"},
	)
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "reconcile",
			Name:      "operations_total",
			Help:      "Artifact operations issued, by kind (add, patch, remove, adopt, prune).",
		},
		[]string{"domain", "op"},
	)
	tracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aura",
			Subsystem: "reconcile",
			Name:      "tracked_artifacts",
			Help:      "Artifacts in the identity map.",
		},
		[]string{"domain"},
	)
	warnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "reconcile",
			Name:      "warnings_total",
			Help:      "Distinct construction warnings surfaced to the user.",
		},
		[]string{"domain"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "Total feed HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "feed",
			Name:      "request_duration_seconds",
			Help:      "Feed HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	feedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aura",
			Subsystem: "feed",
			Name:      "stream_clients",
			Help:      "Connected websocket stream clients.",
		},
	)
)

// RegisterMetrics registers every collector with the default registry. It is
// safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(passes, passDuration, operations, tracked, warnings, httpRequests, httpDuration, feedClients)
	})
}

// Op names an artifact operation.
type Op string

const (
	OpAdd    Op = "add"
	OpPatch  Op = "patch"
	OpRemove Op = "remove"
	OpAdopt  Op = "adopt"
	OpPrune  Op = "prune"
)

// RecordPass records one reconciliation pass.
func RecordPass(domain string, duration time.Duration, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	passes.WithLabelValues(domain, result).Inc()
	passDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordOps adds n operations of one kind.
func RecordOps(domain string, op Op, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	operations.WithLabelValues(domain, string(op)).Add(float64(n))
}

// SetTracked sets the identity map size.
func SetTracked(domain string, n int) {
	RegisterMetrics()
	tracked.WithLabelValues(domain).Set(float64(n))
}

// RecordWarnings adds n surfaced warnings.
func RecordWarnings(domain string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	warnings.WithLabelValues(domain).Add(float64(n))
}

// RecordHTTPRequest records one feed request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// StreamClientConnected and StreamClientDisconnected track live websocket
// clients.
func StreamClientConnected() {
	RegisterMetrics()
	feedClients.Inc()
}

func StreamClientDisconnected() {
	RegisterMetrics()
	feedClients.Dec()
}
