package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Domain collectors. They live in the default registry so /metrics exposes them.
var (
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopdrop_rate_limit_decisions_total",
		Help: "Rate limiter decisions by outcome.",
	}, []string{"outcome"})

	FilesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_files_stored_total",
		Help: "Files persisted by the object store.",
	})
	FilesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_files_deleted_total",
		Help: "Files removed by owner request.",
	})
	FilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_files_swept_total",
		Help: "Expired files reclaimed by the sweeper.",
	})
	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_sweep_failures_total",
		Help: "Sweeper runs that returned an error.",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopdrop_channel_subscriptions",
		Help: "Current tenant channel memberships.",
	})
	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_events_delivered_total",
		Help: "Events handed to subscribers.",
	})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdrop_events_dropped_total",
		Help: "Deliveries that failed and evicted the subscriber.",
	})
)

var (
	initOnce        sync.Once
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
)

// InitMetrics registers the HTTP collectors. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shopdrop_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"})
		requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopdrop_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"})
	})
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	InitMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	if path == "" {
		path = "/metrics"
	}
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
