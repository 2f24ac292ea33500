package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Control API metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Lifecycle metrics
	OffersReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_offers_received_total",
			Help: "Total number of booking offers delivered to the agent",
		},
		[]string{"service"},
	)

	OffersDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_offers_dropped_total",
			Help: "Total number of booking offers dropped without reaching the driver",
		},
		[]string{"service", "reason"},
	)

	ActiveBookingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_booking",
			Help: "Whether the driver currently has an active booking (0 or 1)",
		},
		[]string{"service"},
	)

	DriverOnlineGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driver_online",
			Help: "Whether the driver is currently online (0 or 1)",
		},
		[]string{"service"},
	)

	EventQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_queue_depth",
			Help: "Current number of events waiting in the coordinator queue",
		},
		[]string{"service"},
	)

	LocationFixesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_fixes_total",
			Help: "Total number of location fixes sampled",
		},
		[]string{"service"},
	)

	// Booking gateway metrics
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests issued to the booking backend",
		},
		[]string{"service", "operation", "status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Booking backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	// RabbitMQ metrics
	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)

	RabbitMQMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordGatewayRequest records booking backend request metrics
func RecordGatewayRequest(service, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	GatewayRequestsTotal.WithLabelValues(service, operation, status).Inc()
	GatewayRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesPublished.WithLabelValues(service, queue, status).Inc()
}

// RecordRabbitMQConsume records RabbitMQ consume metrics
func RecordRabbitMQConsume(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesConsumed.WithLabelValues(service, queue, status).Inc()
}
