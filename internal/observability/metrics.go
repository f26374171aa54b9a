package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_http_requests_total",
			Help: "Total number of HTTP requests processed by the realtime service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_ws_active_connections",
			Help: "Number of active push connections.",
		},
		[]string{"scope"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_ws_events_total",
			Help: "Total number of push connection events.",
		},
		[]string{"scope", "event"},
	)
	badgeFanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_badge_fanout_duration_seconds",
			Help:    "Wall-clock duration of the badge aggregate fan-out.",
			Buckets: prometheus.DefBuckets,
		},
	)
	badgeSlotFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_badge_slot_failures_total",
			Help: "Badge sub-queries that degraded to their zero value.",
		},
		[]string{"slot"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		badgeFanoutDuration,
		badgeSlotFailuresTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(scope string) {
	wsActiveConnections.WithLabelValues(scope).Inc()
}

func DecWSActive(scope string) {
	wsActiveConnections.WithLabelValues(scope).Dec()
}

func IncWSEvent(scope, event string) {
	wsEventsTotal.WithLabelValues(scope, event).Inc()
}

func ObserveBadgeFanout(d time.Duration) {
	badgeFanoutDuration.Observe(d.Seconds())
}

func IncBadgeSlotFailure(slot string) {
	badgeSlotFailuresTotal.WithLabelValues(slot).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
