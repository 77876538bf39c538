package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the dispatch pipeline and HTTP API.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	messagesSentTotal      *prometheus.CounterVec
	messagesFailedTotal    *prometheus.CounterVec
	messageSendDuration    *prometheus.HistogramVec
	chunksProducedTotal    *prometheus.CounterVec
	fallbackUsedTotal      *prometheus.CounterVec
	queueDepth             *prometheus.GaugeVec
	inFlight               prometheus.Gauge
	rateLimitDeferredTotal *prometheus.CounterVec
	requeuedTotal          *prometheus.CounterVec
	deadLetteredTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "messages_sent_total",
				Help:      "Total number of messages delivered successfully.",
			},
			[]string{"channel"},
		),
		messagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "messages_failed_total",
				Help:      "Total number of chunk delivery attempts that ended in failure.",
			},
			[]string{"channel", "reason"},
		),
		messageSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify",
				Name:      "message_send_duration_seconds",
				Help:      "Adapter send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		chunksProducedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "chunks_produced_total",
				Help:      "Total number of content chunks produced for oversized messages.",
			},
			[]string{"channel"},
		),
		fallbackUsedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "fallback_used_total",
				Help:      "Deliveries that succeeded on a fallback channel instead of the primary.",
			},
			[]string{"primary", "fallback"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notify",
				Name:      "queue_depth",
				Help:      "Current number of buffered messages grouped by priority.",
			},
			[]string{"priority"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notify",
				Name:      "inflight_messages",
				Help:      "Current number of messages handed to dispatch workers.",
			},
		),
		rateLimitDeferredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "rate_limit_deferred_total",
				Help:      "Messages returned to the queue because the channel hit its per-minute limit.",
			},
			[]string{"channel"},
		),
		requeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "requeued_total",
				Help:      "Messages requeued with backoff after a failed delivery pass.",
			},
			[]string{"channel"},
		),
		deadLetteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify",
				Name:      "dead_lettered_total",
				Help:      "Messages dropped after exhausting their attempt ceiling.",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesSentTotal,
		m.messagesFailedTotal,
		m.messageSendDuration,
		m.chunksProducedTotal,
		m.fallbackUsedTotal,
		m.queueDepth,
		m.inFlight,
		m.rateLimitDeferredTotal,
		m.requeuedTotal,
		m.deadLetteredTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncMessageSent(channel string) {
	if m == nil {
		return
	}
	m.messagesSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncMessageFailed(channel string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.messagesFailedTotal.WithLabelValues(normalizeChannel(channel), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.messageSendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) AddChunksProduced(channel string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.chunksProducedTotal.WithLabelValues(normalizeChannel(channel)).Add(float64(count))
}

func (m *Metrics) IncFallbackUsed(primary string, fallback string) {
	if m == nil {
		return
	}
	m.fallbackUsedTotal.WithLabelValues(normalizeChannel(primary), normalizeChannel(fallback)).Inc()
}

func (m *Metrics) SetQueueDepth(priority string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(strings.ToLower(strings.TrimSpace(priority))).Set(float64(depth))
}

func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) IncRateLimitDeferred(channel string) {
	if m == nil {
		return
	}
	m.rateLimitDeferredTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncRequeued(channel string) {
	if m == nil {
		return
	}
	m.requeuedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncDeadLettered(channel string) {
	if m == nil {
		return
	}
	m.deadLetteredTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
