package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_upstream_request_duration_seconds",
			Help:    "Analysis service call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_upstream_requests_total",
			Help: "Analysis service calls by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	PayloadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_payload_failures_total",
			Help: "Analysis payloads that could not be rendered",
		},
		[]string{"report", "kind"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_hits_total",
			Help: "Total relationship cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_misses_total",
			Help: "Total relationship cache misses",
		},
		[]string{"backend"},
	)

	SnapshotTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_relationship_snapshot_timestamp_seconds",
			Help: "Unix time of the relationship snapshot being served",
		},
	)

	RelationshipEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_relationship_edges",
			Help: "Number of edges in the relationship snapshot being served",
		},
	)

	WebSocketSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_websocket_subscribers",
			Help: "Connected relationship update subscribers",
		},
	)

	GraphExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_graph_exports_total",
			Help: "Relationship snapshot exports to the graph database",
		},
		[]string{"status"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(UpstreamDuration)
		prometheus.MustRegister(UpstreamRequests)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(PayloadFailures)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(SnapshotTimestamp)
		prometheus.MustRegister(RelationshipEdges)
		prometheus.MustRegister(WebSocketSubscribers)
		prometheus.MustRegister(GraphExports)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(HTTPRequests)
		prometheus.MustRegister(HTTPDuration)
	})
}

// Middleware records request counts and latency by matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
