// Package metrics exposes Prometheus collectors for checks, alerts, alert
// deliveries and HTTP traffic. Labels are limited to small closed sets
// (check kind, outcome, alert type, threshold, channel, status, route).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts checks by kind and outcome (ok/error)
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_monitor_checks_total",
			Help: "Total number of domain checks run.",
		},
		[]string{"kind", "outcome"},
	)

	CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_monitor_check_duration_seconds",
			Help:    "Duration of domain checks in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"kind"},
	)

	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_monitor_alerts_fired_total",
			Help: "Expiry alerts that passed eligibility and de-duplication.",
		},
		[]string{"type", "threshold"},
	)

	// Dispatches counts delivery attempts by channel and resulting status
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_monitor_dispatch_total",
			Help: "Alert delivery attempts by channel and resulting status.",
		},
		[]string{"channel", "status"},
	)

	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domain_monitor_last_run_timestamp_seconds",
			Help: "Unix time the last full monitoring run finished.",
		},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(ChecksTotal, CheckDuration, AlertsFired, Dispatches, LastRun, httpReqs, httpLat)
}

// ObserveCheck records one finished check
func ObserveCheck(kind string, failed bool, took time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	ChecksTotal.WithLabelValues(kind, outcome).Inc()
	CheckDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func ObserveAlert(alertType string, threshold int) {
	AlertsFired.WithLabelValues(alertType, strconv.Itoa(threshold)).Inc()
}

func ObserveDispatch(channel, status string) {
	Dispatches.WithLabelValues(channel, status).Inc()
}

// Middleware instruments requests by method, route and status. Unmatched
// routes fall back to the raw URL path.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
