// Package metrics exposes Prometheus collectors for the crawl and search
// service.
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
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerFetchFailuresTotal     *prometheus.CounterVec
	crawlerJobsTotal              *prometheus.CounterVec
	crawlerActiveJobs             prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	searchRequestsTotal           *prometheus.CounterVec
	searchDurationSeconds         prometheus.Histogram
	searchCacheLookupsTotal       *prometheus.CounterVec
	snapshotDurationSeconds       *prometheus.HistogramVec
	indexDocuments                prometheus.Gauge
	indexTerms                    prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call repeatedly; every
// Observe helper calls it first.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages crawled, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerFetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_failures_total",
				Help: "Total number of failed fetches, labeled by failure kind.",
			},
			[]string{"kind"},
		)

		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerActiveJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_jobs",
				Help: "Number of crawl jobs currently running.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_requests_total",
				Help: "Total number of search queries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_duration_seconds",
				Help:    "Histogram of search latencies.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		)

		searchCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_cache_lookups_total",
				Help: "Total number of result cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		snapshotDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_snapshot_duration_seconds",
				Help:    "Histogram of snapshot save and load durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"op", "status"},
		)

		indexDocuments = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the index.",
			},
		)

		indexTerms = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the index.",
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
	Init()
	return promhttp.Handler()
}

// ObservePage counts one crawled page for its site.
func ObservePage(site, status string) {
	Init()
	crawlerPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveFetchFailure counts a failed fetch by kind.
func ObserveFetchFailure(kind string) {
	Init()
	crawlerFetchFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	crawlerJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveJobs increments the running jobs gauge.
func IncActiveJobs() {
	Init()
	crawlerActiveJobs.Inc()
}

// DecActiveJobs decrements the running jobs gauge.
func DecActiveJobs() {
	Init()
	crawlerActiveJobs.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveSearch records one query by outcome and latency.
func ObserveSearch(outcome string, duration time.Duration) {
	Init()
	searchRequestsTotal.WithLabelValues(outcome).Inc()
	searchDurationSeconds.Observe(duration.Seconds())
}

// ObserveCacheLookup counts one result cache lookup as a hit or a miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	searchCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveSnapshot records a snapshot save or load.
func ObserveSnapshot(op string, err error, duration time.Duration) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	snapshotDurationSeconds.WithLabelValues(op, status).Observe(duration.Seconds())
}

// SetIndexSize publishes the current index size.
func SetIndexSize(documents, terms int) {
	Init()
	indexDocuments.Set(float64(documents))
	indexTerms.Set(float64(terms))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
