package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pickup_agent"

var (
	// RequestsTotal counts local API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Local API requests by route and status.",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration is local API latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Local API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// BackendRequestsTotal counts calls to the marketplace backend.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Marketplace backend calls by operation and outcome.",
		},
		[]string{"operation", "status"},
	)

	// BackendRequestDuration is marketplace backend latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Marketplace backend call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// LocationFlushes counts tracker flushes per mirror.
	LocationFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_flushes_total",
			Help:      "Driver position flushes by mirror and outcome.",
		},
		[]string{"mirror", "outcome"},
	)

	// GeoReads counts position readings per geolocation backend.
	GeoReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_reads_total",
			Help:      "Position reads by geolocation backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	// ContactTransitions counts lifecycle actions.
	ContactTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_transitions_total",
			Help:      "Contact lifecycle actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Middleware records latency and status for every local API request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// TrackBackend records one backend call. status is the HTTP code or "error" for transport failures.
func TrackBackend(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	BackendRequestsTotal.WithLabelValues(operation, label).Inc()
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
