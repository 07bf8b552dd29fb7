package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zenith"

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// Permission resolver
	permissionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_checks_total",
			Help:      "Total number of permission checks",
		},
		[]string{"result"},
	)

	permissionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_cache_lookups_total",
			Help:      "Role permission cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// Webhook delivery
	webhookEventsQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_queued_total",
			Help:      "Total webhook deliveries queued",
		},
		[]string{"event"},
	)

	webhookDeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_attempts_total",
			Help:      "Total webhook delivery attempts",
		},
		[]string{"status"},
	)

	webhookDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Webhook delivery duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	webhookDeactivations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deactivations_total",
			Help:      "Subscriptions deactivated after reaching the failure threshold",
		},
	)

	activeWebhooks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_webhooks",
			Help:      "Number of active webhook subscriptions",
		},
	)

	registry *prometheus.Registry
)

// Init initializes the metrics registry and returns the handler.
// If goMetrics is true, Go runtime metrics are included.
func Init(goMetrics bool) http.Handler {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		permissionChecksTotal,
		permissionCacheLookups,
		webhookEventsQueued,
		webhookDeliveryAttempts,
		webhookDeliveryDuration,
		webhookDeactivations,
		activeWebhooks,
	)

	if goMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry: registry,
	})
}

// recordHTTPRequest records an HTTP request metric.
func recordHTTPRequest(method, path, statusCode string) {
	httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
}

// recordHTTPDuration records an HTTP request duration metric.
func recordHTTPDuration(method, path, statusCode string, duration float64) {
	httpRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
}

// RecordPermissionCheck records a permission check result.
func RecordPermissionCheck(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	permissionChecksTotal.WithLabelValues(result).Inc()
}

// RecordPermissionCacheLookup records a cache hit or miss.
func RecordPermissionCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	permissionCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordWebhookQueued records a delivery being queued.
func RecordWebhookQueued(event string) {
	webhookEventsQueued.WithLabelValues(event).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool, duration time.Duration) {
	status := "failure"
	if success {
		status = "success"
	}
	webhookDeliveryAttempts.WithLabelValues(status).Inc()
	webhookDeliveryDuration.Observe(duration.Seconds())
}

// RecordWebhookDeactivated records an auto-deactivation.
func RecordWebhookDeactivated() {
	webhookDeactivations.Inc()
}

// SetActiveWebhooks sets the gauge for active subscriptions.
func SetActiveWebhooks(count float64) {
	activeWebhooks.Set(count)
}
