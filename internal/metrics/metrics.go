package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	LoginsTotal        *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	RefreshReuseTotal  prometheus.Counter
	LogoutsTotal       prometheus.Counter
	RegistrationsTotal *prometheus.CounterVec
	SessionsRevoked    prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector registers the service metrics on reg. A nil reg gets a fresh registry.
func NewCollector(serviceName string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	ns := strings.NewReplacer("-", "_", ".", "_").Replace(serviceName)
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by provider and result.",
		}, []string{"provider", "result"}),

		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),

		RefreshReuseTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "refresh_reuse_total",
			Help:      "Refresh tokens presented after they were rotated. Alert if non-zero.",
		}),

		LogoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Total logout requests.",
		}),

		RegistrationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Accounts created by provider.",
		}, []string{"provider"}),

		SessionsRevoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "auth",
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked through logout-all.",
		}),

		gatherer: reg,
	}
}

func (c *Collector) Login(provider, result string) {
	if c == nil {
		return
	}
	c.LoginsTotal.WithLabelValues(provider, result).Inc()
}

func (c *Collector) Refresh(result string) {
	if c == nil {
		return
	}
	c.RefreshesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RefreshReuse() {
	if c == nil {
		return
	}
	c.RefreshReuseTotal.Inc()
}

func (c *Collector) Logout() {
	if c == nil {
		return
	}
	c.LogoutsTotal.Inc()
}

func (c *Collector) Registration(provider string) {
	if c == nil {
		return
	}
	c.RegistrationsTotal.WithLabelValues(provider).Inc()
}

func (c *Collector) Revoked(n int64) {
	if c == nil {
		return
	}
	c.SessionsRevoked.Add(float64(n))
}

func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			c.InFlightGauge.Inc()
			defer c.InFlightGauge.Dec()

			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			path := ec.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{ec.Request().Method, path, strconv.Itoa(status)}
			c.RequestsTotal.WithLabelValues(labels...).Inc()
			c.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
