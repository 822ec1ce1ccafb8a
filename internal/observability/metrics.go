package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's Prometheus collectors. All helper methods
// are safe to call on a nil *Metrics, which lets tests and tools run without
// a registry.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Post Metrics
	PostsAdmittedTotal prometheus.Counter
	PostsRejectedTotal *prometheus.CounterVec

	// Auth Metrics
	AuthAttemptsTotal *prometheus.CounterVec

	// Store Metrics
	StoreErrorsTotal *prometheus.CounterVec

	// Cache (Redis) Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Queue (RabbitMQ) Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec
	QueueMessagesFailed    *prometheus.CounterVec
}

// NewMetrics registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		PostsAdmittedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posts_admitted_total",
				Help: "Total number of posts accepted and stored",
			},
		),

		PostsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posts_rejected_total",
				Help: "Total number of post attempts rejected by the admission policy",
			},
			[]string{"reason"}, // unauthenticated, empty, too_long, cooldown, invalid_image
		),

		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of signup and login attempts",
			},
			[]string{"action", "result"},
		),

		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_errors_total",
				Help: "Total number of storage backend failures",
			},
			[]string{"operation"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),

		QueueMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"queue_name"},
		),

		QueueMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"queue_name"},
		),

		QueueMessagesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_failed_total",
				Help: "Total number of messages dropped after exhausting retries",
			},
			[]string{"queue_name"},
		),
	}
}

func (m *Metrics) PostAdmitted() {
	if m == nil {
		return
	}
	m.PostsAdmittedTotal.Inc()
}

func (m *Metrics) PostRejected(reason string) {
	if m == nil {
		return
	}
	m.PostsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) AuthAttempt(action, result string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(action, result).Inc()
}

func (m *Metrics) StoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) CacheHit(keyType string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) CacheMiss(keyType string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) MessagePublished(queue string) {
	if m == nil {
		return
	}
	m.QueueMessagesPublished.WithLabelValues(queue).Inc()
}

func (m *Metrics) MessageConsumed(queue string) {
	if m == nil {
		return
	}
	m.QueueMessagesConsumed.WithLabelValues(queue).Inc()
}

func (m *Metrics) MessageFailed(queue string) {
	if m == nil {
		return
	}
	m.QueueMessagesFailed.WithLabelValues(queue).Inc()
}

// GlobalMetrics is the process-wide instance registered with the default registry.
var GlobalMetrics *Metrics

var initOnce sync.Once

// InitMetrics registers GlobalMetrics once; later calls are no-ops.
func InitMetrics() *Metrics {
	initOnce.Do(func() {
		GlobalMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return GlobalMetrics
}
