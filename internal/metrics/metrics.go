package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	eventsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_events_enqueued_total",
			Help: "Domain events accepted at the ingestion edge, by kind",
		},
		[]string{"kind"},
	)

	eventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_events_processed_total",
			Help: "Events consumed from the queue, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_created_total",
			Help: "Notification rows created, by notifiable type",
		},
		[]string{"notifiable_type"},
	)

	notificationsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_duplicate_total",
			Help: "Idempotent no-op creates (recipient already notified)",
		},
		[]string{"notifiable_type"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_deliveries_total",
			Help: "External delivery attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	dispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_dispatch_latency_seconds",
			Help:    "Time from event occurrence to dispatch completion",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_rate_limit_rejections_total",
			Help: "Ingestion requests rejected by the rate limiter",
		},
		[]string{"client"},
	)
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEventEnqueued records an event accepted at the ingestion edge.
func RecordEventEnqueued(kind string) {
	eventsEnqueued.WithLabelValues(kind).Inc()
}

// RecordEventProcessed records the outcome of consuming one event.
func RecordEventProcessed(kind, outcome string) {
	eventsProcessed.WithLabelValues(kind, outcome).Inc()
}

// RecordNotificationCreated records a created notification row.
func RecordNotificationCreated(notifiableType string) {
	notificationsCreated.WithLabelValues(notifiableType).Inc()
}

// RecordNotificationDuplicate records an idempotent no-op create.
func RecordNotificationDuplicate(notifiableType string) {
	notificationsDuplicate.WithLabelValues(notifiableType).Inc()
}

// RecordDelivery records one external delivery attempt.
func RecordDelivery(channel, outcome string) {
	deliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordDispatchLatency records time from event occurrence to dispatch done.
func RecordDispatchLatency(kind string, latency time.Duration) {
	dispatchLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordRateLimitRejection records a rate limit rejection.
func RecordRateLimitRejection(client string) {
	rateLimitRejections.WithLabelValues(client).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
