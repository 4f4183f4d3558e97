// Package metrics exposes Prometheus collectors for the auditor service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditsTotal                *prometheus.CounterVec
	auditScore                 prometheus.Histogram
	fetchDurationSeconds       *prometheus.HistogramVec
	quotaRejectionsTotal       *prometheus.CounterVec
	usageAlertsTotal           prometheus.Counter
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_audits_total",
				Help: "Total number of audits processed, labeled by status.",
			},
			[]string{"status"},
		)

		auditScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auditor_audit_score",
				Help:    "Composite score distribution of completed audits.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditor_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		quotaRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_quota_rejections_total",
				Help: "Submissions rejected at admission, labeled by reason.",
			},
			[]string{"reason"},
		)

		usageAlertsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auditor_usage_alerts_total",
				Help: "Usage threshold alerts dispatched to users.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auditor_active_workers",
				Help: "Number of workers currently executing an audit.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAudit increments the audit counter for the given terminal status
// and records the score for completed audits.
func ObserveAudit(status string, score int) {
	auditsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		auditScore.Observe(float64(score))
	}
}

// ObserveFetch records one page fetch latency.
func ObserveFetch(site string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveQuotaRejection counts a rejected submission by reason.
func ObserveQuotaRejection(reason string) {
	quotaRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveUsageAlert counts a dispatched usage alert.
func ObserveUsageAlert() {
	usageAlertsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
