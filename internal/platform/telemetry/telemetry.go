// Package telemetry wires Prometheus metrics for the practice management API:
// HTTP server instrumentation, authorization decision counters, and database
// pool gauges, served in text exposition format at /metrics.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	MetricsEnabled *bool  `json:"metrics_enabled"` // nil = use default (true)
}

// metricsOn returns whether metrics are enabled (defaults to true).
func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "clinicore-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

// ---------------------------------------------------------------------------
// TelemetryProvider — the main entry point
// ---------------------------------------------------------------------------

// defaultDurationBuckets are the histogram bucket boundaries (in seconds)
// used for HTTP request duration.
var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// defaultSizeBuckets are the histogram bucket boundaries (in bytes)
// used for HTTP request/response size.
var defaultSizeBuckets = []float64{
	100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
}

// TelemetryProvider manages all metric instruments behind a private registry,
// so multiple providers can coexist in one process (tests in particular).
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestSize     prometheus.Histogram
	responseSize    prometheus.Histogram
	activeRequests  prometheus.Gauge
	accessDecisions *prometheus.CounterVec
	dbPoolActive    prometheus.Gauge
	dbPoolIdle      prometheus.Gauge
	buildInfo       *prometheus.GaugeVec
}

// NewTelemetryProvider creates and initialises the telemetry provider.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()

	tp := &TelemetryProvider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: defaultDurationBuckets,
		}, []string{"method", "route", "status_code"}),

		requestSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_server_request_size_bytes",
			Help:    "Size of HTTP request bodies in bytes.",
			Buckets: defaultSizeBuckets,
		}),

		responseSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_server_response_size_bytes",
			Help:    "Size of HTTP response bodies in bytes.",
			Buckets: defaultSizeBuckets,
		}),

		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests.",
		}),

		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total authorization decisions by resource and outcome.",
		}, []string{"resource", "decision"}),

		dbPoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_active_connections",
			Help: "Number of active database pool connections.",
		}),

		dbPoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_idle_connections",
			Help: "Number of idle database pool connections.",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clinicore_build_info",
			Help: "Build and deployment information.",
		}, []string{"service", "version", "environment"}),
	}

	tp.registry.MustRegister(
		collectors.NewGoCollector(),
		tp.requestDuration,
		tp.requestSize,
		tp.responseSize,
		tp.activeRequests,
		tp.accessDecisions,
		tp.dbPoolActive,
		tp.dbPoolIdle,
		tp.buildInfo,
	)

	tp.buildInfo.WithLabelValues(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment).Set(1)

	return tp
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

// MetricsMiddleware returns an Echo middleware that records HTTP server
// metrics: request duration labeled by method, route pattern and status,
// request/response sizes, and the active request gauge.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.cfg.metricsOn() {
				return next(c)
			}

			tp.activeRequests.Inc()

			start := time.Now()
			req := c.Request()

			err := next(c)

			duration := time.Since(start).Seconds()
			tp.activeRequests.Dec()

			resp := c.Response()

			// Route pattern, not the actual path, to bound cardinality.
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			status := strconv.Itoa(resp.Status)

			tp.requestDuration.WithLabelValues(req.Method, route, status).Observe(duration)

			if req.ContentLength > 0 {
				tp.requestSize.Observe(float64(req.ContentLength))
			}
			if resp.Size > 0 {
				tp.responseSize.Observe(float64(resp.Size))
			}

			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Domain counters and gauges
// ---------------------------------------------------------------------------

// RecordAccessDecision increments the authorization decision counter.
// Decision is "granted" or "denied".
func (tp *TelemetryProvider) RecordAccessDecision(resource, decision string) {
	if !tp.cfg.metricsOn() {
		return
	}
	tp.accessDecisions.WithLabelValues(resource, decision).Inc()
}

// HealthMetricsRecorder provides methods to update health-related gauges.
type HealthMetricsRecorder struct {
	tp *TelemetryProvider
}

// HealthMetrics returns a recorder for health-related metrics.
func (tp *TelemetryProvider) HealthMetrics() *HealthMetricsRecorder {
	return &HealthMetricsRecorder{tp: tp}
}

// SetDBPoolActive sets the db_pool_active_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolActive(n int64) {
	h.tp.dbPoolActive.Set(float64(n))
}

// SetDBPoolIdle sets the db_pool_idle_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolIdle(n int64) {
	h.tp.dbPoolIdle.Set(float64(n))
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler returns an Echo handler that serves the provider's
// registry in Prometheus text exposition format.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(tp.registry, promhttp.HandlerOpts{}))
}
