package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamahub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chamahub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	roscaOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamahub_rosca_operations_total",
		Help: "ROSCA engine operations by name and result code",
	}, []string{"operation", "result"})

	roscaOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chamahub_rosca_operation_duration_seconds",
		Help:    "Duration of ROSCA engine operations including their transaction",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamahub_auth_events_total",
		Help: "Authentication events by kind and result",
	}, []string{"event", "result"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamahub_events_published_total",
		Help: "Domain events handed to the event bus",
	}, []string{"type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chamahub_events_dropped_total",
		Help: "Events not delivered because a client buffer was full",
	})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chamahub_ws_clients",
		Help: "Number of connected websocket clients",
	})

	cronRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamahub_cron_runs_total",
		Help: "Scheduled job runs by job and result",
	}, []string{"job", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveRosca records the outcome of a ROSCA operation
func ObserveRosca(operation, result string, duration time.Duration) {
	roscaOperations.WithLabelValues(operation, result).Inc()
	roscaOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveAuth records an authentication event
func ObserveAuth(event, result string) {
	authEvents.WithLabelValues(event, result).Inc()
}

// ObserveEvent counts a published domain event
func ObserveEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// ObserveDroppedEvent counts an event skipped for a slow client
func ObserveDroppedEvent() {
	eventsDropped.Inc()
}

// SetWSClients sets the websocket client gauge
func SetWSClients(count int) {
	if count < 0 {
		count = 0
	}
	wsClients.Set(float64(count))
}

// ObserveCron records a scheduled job run
func ObserveCron(job, result string) {
	cronRuns.WithLabelValues(job, result).Inc()
}
