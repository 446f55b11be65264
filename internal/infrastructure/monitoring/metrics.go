package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every instance owns its registry,
// so any number of servers (and tests) can coexist in one process.
//
// All recording methods are safe on a nil *Metrics and do nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Managed object metrics
	ManagedObjects   prometheus.Gauge
	ManagedCallbacks *prometheus.CounterVec

	// Topic metrics
	TopicsActive        prometheus.Gauge
	TopicPublishes      *prometheus.CounterVec
	TopicDrops          *prometheus.CounterVec
	StreamSubscriptions prometheus.Gauge

	// Archive metrics
	ArchiveOps *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec
	WebhookDrops      prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ManagedObjects    int64   `json:"managed_objects"`
	ActiveTopics      int64   `json:"active_topics"`
	ActiveConnections int64   `json:"active_connections"`
	AverageLatency    float64 `json:"average_latency_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "observable_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "observable_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Managed object metrics
		ManagedObjects: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "observable_managed_objects",
				Help: "Number of objects registered in the managed context",
			},
		),
		ManagedCallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_managed_callbacks_total",
				Help: "Total number of registration callbacks invoked",
			},
			[]string{"kind"},
		),

		// Topic metrics
		TopicsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "observable_topics_active",
				Help: "Number of topics known to the hub",
			},
		),
		TopicPublishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_topic_publishes_total",
				Help: "Total number of values published per topic",
			},
			[]string{"topic"},
		),
		TopicDrops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_topic_drops_total",
				Help: "Total number of derived values dropped by evaluation errors",
			},
			[]string{"topic"},
		),
		StreamSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "observable_stream_subscriptions",
				Help: "Number of active topic watches",
			},
		),

		// Archive metrics
		ArchiveOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_archive_operations_total",
				Help: "Total number of archive operations",
			},
			[]string{"op", "status"},
		),

		// Webhook metrics
		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"status"},
		),
		WebhookDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "observable_webhook_drops_total",
				Help: "Total number of messages dropped by full webhook queues",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "observable_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observable_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "observable_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	registry.MustRegister(collectors.NewGoCollector())

	return m
}

// Handler serves this instance's registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	if snap.TotalRequests > 0 {
		snap.AverageLatency = snap.totalDuration / float64(snap.TotalRequests)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetManagedObjects sets the number of registered objects
func (m *Metrics) SetManagedObjects(count int) {
	if m == nil {
		return
	}
	m.ManagedObjects.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ManagedObjects = int64(count)
	m.mu.Unlock()
}

// RecordManagedCallback counts a registration callback of the given kind
func (m *Metrics) RecordManagedCallback(kind string) {
	if m == nil {
		return
	}
	m.ManagedCallbacks.WithLabelValues(kind).Inc()
}

// SetTopicsActive sets the number of topics
func (m *Metrics) SetTopicsActive(count int) {
	if m == nil {
		return
	}
	m.TopicsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveTopics = int64(count)
	m.mu.Unlock()
}

// IncTopicPublishes counts a value published on topic
func (m *Metrics) IncTopicPublishes(topic string) {
	if m == nil {
		return
	}
	m.TopicPublishes.WithLabelValues(topic).Inc()
}

// IncTopicDrops counts a derived value dropped on topic
func (m *Metrics) IncTopicDrops(topic string) {
	if m == nil {
		return
	}
	m.TopicDrops.WithLabelValues(topic).Inc()
}

// IncStreamSubscriptions increments the active watch gauge
func (m *Metrics) IncStreamSubscriptions() {
	if m == nil {
		return
	}
	m.StreamSubscriptions.Inc()
}

// DecStreamSubscriptions decrements the active watch gauge
func (m *Metrics) DecStreamSubscriptions() {
	if m == nil {
		return
	}
	m.StreamSubscriptions.Dec()
}

// RecordArchiveOp counts an archive operation and its outcome
func (m *Metrics) RecordArchiveOp(op string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ArchiveOps.WithLabelValues(op, status).Inc()
}

// RecordWebhookDelivery counts a webhook delivery attempt
func (m *Metrics) RecordWebhookDelivery(status string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.WithLabelValues(status).Inc()
}

// IncWebhookDrops counts a message dropped by a full webhook queue
func (m *Metrics) IncWebhookDrops() {
	if m == nil {
		return
	}
	m.WebhookDrops.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
