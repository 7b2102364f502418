// Package metrics exposes Prometheus collectors for the wxmaps pipelines.
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

// Status label values shared by the counters.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusSkip  = "skipped"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	productsTotal              *prometheus.CounterVec
	pipelineDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	scheduleRunsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wxmaps_fetch_total",
				Help: "Total number of page and file fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wxmaps_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wxmaps_downloads_total",
				Help: "Dataset downloads, labeled by product and status.",
			},
			[]string{"product", "status"},
		)

		productsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wxmaps_products_total",
				Help: "Maps and bulletins written, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		pipelineDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wxmaps_pipeline_duration_seconds",
				Help:    "Histogram of pipeline run durations.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"pipeline"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wxmaps_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		scheduleRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wxmaps_schedule_runs_total",
				Help: "Scheduled job runs, labeled by job and status.",
			},
			[]string{"job", "status"},
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

// SanitizeSite extracts a lowercase hostname from a URL.
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

// ObserveFetch counts one fetch and the bytes it returned.
func ObserveFetch(rawURL string, status string, bytesFetched int64) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveDownload counts a dataset download.
func ObserveDownload(product, status string) {
	Init()
	downloadsTotal.WithLabelValues(product, status).Inc()
}

// ObserveProduct counts a written map or bulletin.
func ObserveProduct(kind, status string) {
	Init()
	productsTotal.WithLabelValues(kind, status).Inc()
}

// ObservePipeline records how long a pipeline ran.
func ObservePipeline(pipeline string, duration time.Duration) {
	Init()
	pipelineDurationSeconds.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// ObserveScheduleRun counts a scheduled job run.
func ObserveScheduleRun(job, status string) {
	Init()
	scheduleRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
