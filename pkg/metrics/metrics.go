package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsTotal      *prometheus.CounterVec
	alertTransitions *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
	reactionsTotal   prometheus.Counter

	coordinatorsActive prometheus.Gauge
	transportsDropped  prometheus.Counter
	eventsPublished    prometheus.Counter
	eventsDelivered    prometheus.Counter

	backgroundTasks    *prometheus.CounterVec
	backgroundDuration *prometheus.HistogramVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_started_total",
				Help:      "Alerts started, by type",
			},
			[]string{"type"},
		),
		alertTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_transitions_total",
				Help:      "Alert lifecycle operations, by operation",
			},
			[]string{"operation"},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "email_deliveries_total",
				Help:      "Outbound emails, by purpose and status",
			},
			[]string{"purpose", "status"},
		),
		reactionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Viewer reactions recorded",
		}),

		coordinatorsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinators_active",
			Help:      "Alert coordinators with at least one viewer",
		}),
		transportsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_transports_dropped_total",
			Help:      "Viewer connections dropped after a failed send",
		}),
		eventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to coordinators",
		}),
		eventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Event copies handed to viewer connections",
		}),

		backgroundTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_tasks_total",
				Help:      "Background tasks, by name and outcome",
			},
			[]string{"task", "outcome"},
		),
		backgroundDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "background_task_duration_seconds",
				Help:      "Background task duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),

		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits, by cache",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses, by cache",
			},
			[]string{"cache"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) AlertStarted(alertType string) {
	m.alertsTotal.WithLabelValues(alertType).Inc()
}

func (m *Metrics) AlertTransition(operation string) {
	m.alertTransitions.WithLabelValues(operation).Inc()
}

func (m *Metrics) EmailDelivery(purpose, status string) {
	m.deliveriesTotal.WithLabelValues(purpose, status).Inc()
}

func (m *Metrics) ReactionRecorded() {
	m.reactionsTotal.Inc()
}

func (m *Metrics) CacheHit(cache string) {
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// TaskFinished matches the worker pool's observer signature.
func (m *Metrics) TaskFinished(name string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backgroundTasks.WithLabelValues(name, outcome).Inc()
	m.backgroundDuration.WithLabelValues(name).Observe(took.Seconds())
}

// Coordinator observer hooks.

func (m *Metrics) CoordinatorStarted() {
	m.coordinatorsActive.Inc()
}

func (m *Metrics) CoordinatorRetired() {
	m.coordinatorsActive.Dec()
}

func (m *Metrics) TransportDropped() {
	m.transportsDropped.Inc()
}

func (m *Metrics) EventPublished(delivered int) {
	m.eventsPublished.Inc()
	m.eventsDelivered.Add(float64(delivered))
}
