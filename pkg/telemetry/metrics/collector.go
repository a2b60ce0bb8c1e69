package metrics

import (
	"strconv"
	"time"

	"github.com/naumanni/naumanni-server/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric recorded by the gateway.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	filterDuration   *prometheus.HistogramVec
	filterRemoved    *prometheus.CounterVec
	wsSessions       prometheus.Gauge
	wsMessages       *prometheus.CounterVec
	activeHandlers   prometheus.Gauge
	collectionsTotal *prometheus.CounterVec
	workers          prometheus.Gauge
}

// NewCollector creates a collector registering into registry, or into a
// fresh registry when nil.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "naumanni"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "gateway"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}

	ns, sub := cfg.Namespace, cfg.Subsystem
	c := &Collector{
		config:   cfg,
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "requests_total",
			Help: "Proxied API requests by method and response code",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "request_duration_seconds",
			Help:    "Duration of proxied API requests in seconds",
			Buckets: cfg.RequestDurationBuckets,
		}, []string{"method"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "upstream_errors_total",
			Help: "Upstream failures by kind (tls, transport, http)",
		}, []string{"kind"}),
		filterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "filter_duration_seconds",
			Help:    "Time spent running plugin filters per entity type",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"entity"}),
		filterRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "filter_removed_total",
			Help: "Entities removed by plugin filters",
		}, []string{"entity"}),
		wsSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "websocket_sessions",
			Help: "Open streaming sessions",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "websocket_messages_total",
			Help: "Streaming events relayed to clients by event name",
		}, []string{"event"}),
		activeHandlers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "active_handlers",
			Help: "In-flight request handlers in this worker",
		}),
		collectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "status_collections_total",
			Help: "Status collection rounds by result",
		}, []string{"result"}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "workers",
			Help: "Workers that answered the last status collection",
		}),
	}

	registry.MustRegister(
		c.requestsTotal, c.requestDuration, c.upstreamErrors,
		c.filterDuration, c.filterRemoved,
		c.wsSessions, c.wsMessages, c.activeHandlers,
		c.collectionsTotal, c.workers,
	)
	return c
}

func (c *Collector) on() bool {
	return c != nil && c.config.Enabled
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest records a completed proxied request.
func (c *Collector) RecordRequest(method string, code int, duration time.Duration) {
	if !c.on() {
		return
	}
	c.requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUpstreamError counts an upstream failure of the given kind.
func (c *Collector) RecordUpstreamError(kind string) {
	if !c.on() {
		return
	}
	c.upstreamErrors.WithLabelValues(kind).Inc()
}

// RecordFilter records a filter run over one entity type.
func (c *Collector) RecordFilter(entity string, duration time.Duration, removed int) {
	if !c.on() {
		return
	}
	c.filterDuration.WithLabelValues(entity).Observe(duration.Seconds())
	if removed > 0 {
		c.filterRemoved.WithLabelValues(entity).Add(float64(removed))
	}
}

// SessionOpened increments the streaming session gauge.
func (c *Collector) SessionOpened() {
	if !c.on() {
		return
	}
	c.wsSessions.Inc()
}

// SessionClosed decrements the streaming session gauge.
func (c *Collector) SessionClosed() {
	if !c.on() {
		return
	}
	c.wsSessions.Dec()
}

// RecordStreamEvent counts a relayed streaming event.
func (c *Collector) RecordStreamEvent(event string) {
	if !c.on() {
		return
	}
	if event == "" {
		event = "unknown"
	}
	c.wsMessages.WithLabelValues(event).Inc()
}

// HandlerStarted increments the in-flight handler gauge.
func (c *Collector) HandlerStarted() {
	if !c.on() {
		return
	}
	c.activeHandlers.Inc()
}

// HandlerFinished decrements the in-flight handler gauge.
func (c *Collector) HandlerFinished() {
	if !c.on() {
		return
	}
	c.activeHandlers.Dec()
}

// RecordCollection records the outcome of a status collection round.
func (c *Collector) RecordCollection(workers int, err error) {
	if !c.on() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.collectionsTotal.WithLabelValues(result).Inc()
	c.workers.Set(float64(workers))
}
