// Package metrics exposes Prometheus collectors for the crawler.
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
	fetchesTotal               *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchRetriesTotal          *prometheus.CounterVec
	readinessPollsTotal        prometheus.Counter
	listingsTotal              *prometheus.CounterVec
	fieldFailuresTotal         *prometheus.CounterVec
	reviewsTotal               prometheus.Counter
	reviewCountMismatchTotal   prometheus.Counter
	regionsTotal               *prometheus.CounterVec
	checkpointRegionIndex      prometheus.Gauge
	checkpointListingIndex     prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of page fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of successful fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total number of retried fetches, labeled by transport.",
			},
			[]string{"transport"},
		)

		readinessPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_readiness_polls_total",
				Help: "Total number of detail page re-fetches while waiting for the listing API id.",
			},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listings_total",
				Help: "Total number of listings processed, labeled by status.",
			},
			[]string{"status"},
		)

		fieldFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_field_failures_total",
				Help: "Total number of listing fields that resolved to the empty sentinel.",
			},
			[]string{"field"},
		)

		reviewsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_reviews_total",
				Help: "Total number of review records emitted.",
			},
		)

		reviewCountMismatchTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_review_count_mismatch_total",
				Help: "Listings whose reported review total differed from the reviews returned.",
			},
		)

		regionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_regions_total",
				Help: "Total number of regions finished, labeled by status.",
			},
			[]string{"status"},
		)

		checkpointRegionIndex = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_checkpoint_region_index",
				Help: "Number of regions completed according to the checkpoint.",
			},
		)

		checkpointListingIndex = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_checkpoint_listing_index",
				Help: "Number of listings completed in the current region according to the checkpoint.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
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

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL string, outcome string, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, outcome).Inc()
	if outcome == "success" {
		fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	}
}

// ObserveFetchRetry increments the retry counter for a transport.
func ObserveFetchRetry(transport string) {
	Init()
	fetchRetriesTotal.WithLabelValues(transport).Inc()
}

// ObserveReadinessPoll counts one readiness re-fetch.
func ObserveReadinessPoll() {
	Init()
	readinessPollsTotal.Inc()
}

// ObserveListing increments the listing counter for the given status.
func ObserveListing(status string) {
	Init()
	listingsTotal.WithLabelValues(status).Inc()
}

// ObserveFieldFailure counts a field that fell back to the empty sentinel.
func ObserveFieldFailure(field string) {
	Init()
	fieldFailuresTotal.WithLabelValues(field).Inc()
}

// ObserveReviews adds emitted review records.
func ObserveReviews(n int) {
	Init()
	if n > 0 {
		reviewsTotal.Add(float64(n))
	}
}

// ObserveReviewCountMismatch counts a listing whose totals disagree.
func ObserveReviewCountMismatch() {
	Init()
	reviewCountMismatchTotal.Inc()
}

// ObserveRegion increments the region counter for the given status.
func ObserveRegion(status string) {
	Init()
	regionsTotal.WithLabelValues(status).Inc()
}

// SetCheckpoint mirrors the persisted cursor into gauges.
func SetCheckpoint(regionIndex, listingIndex int) {
	Init()
	checkpointRegionIndex.Set(float64(regionIndex))
	checkpointListingIndex.Set(float64(listingIndex))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the status server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
