package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

// rejectionReasons maps the statuses that signal abuse or misconfigured
// clients to the reason label of HTTPMetrics.Rejections.
var rejectionReasons = map[int]string{
	http.StatusUnauthorized:    "unauthorized",
	http.StatusForbidden:       "forbidden",
	http.StatusTooManyRequests: "rate_limited",
}

// HTTPMetrics tracks API traffic. Long-lived and infrastructure routes are
// excluded; see skipHTTPMetrics.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
	Rejections      *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "http", Name: name, Help: help}
	}

	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts(opts("requests_total",
			"API requests by route and status.")), []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts(opts("in_flight_requests",
			"API requests currently being served."))),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts(opts("rejections_total",
			"API requests refused for authentication, authorization or rate limiting.")), []string{"route", "reason"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.Rejections)
	return m
}

// Middleware records latency, status and rejections per matched route.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipHTTPMetrics(c.Path()) {
				return next(c)
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			m.InFlightGauge.Dec()

			m.observe(c.Request().Method, routeLabel(c.Path()), c.Response().Status, time.Since(start))
			return err
		}
	}
}

func (m *HTTPMetrics) observe(method, route string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	if reason, ok := rejectionReasons[status]; ok {
		m.Rejections.WithLabelValues(route, reason).Inc()
	}
}

// routeLabel keeps label cardinality bounded: unmatched paths share a label.
func routeLabel(path string) string {
	if path == "" {
		return unmatchedRoute
	}
	return path
}

func skipHTTPMetrics(path string) bool {
	return path == "/metrics" ||
		strings.HasPrefix(path, "/health/") ||
		strings.HasPrefix(path, "/api/ws")
}
