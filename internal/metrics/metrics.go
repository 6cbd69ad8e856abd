// Package metrics exposes Prometheus collectors for the vacancy pipeline.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Request failure kinds used as the "kind" label.
const (
	FailureTimeout   = "timeout"
	FailureStatus    = "status"
	FailureTransport = "transport"
	FailureDecode    = "decode"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	vacanciesStoredTotal       *prometheus.CounterVec
	vacanciesDuplicateTotal    *prometheus.CounterVec
	vacanciesArchivedTotal     *prometheus.CounterVec
	requestFailuresTotal       *prometheus.CounterVec
	regionRunsTotal            *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	transformRecordsTotal      *prometheus.CounterVec
	datasetRows                prometheus.Gauge
	lastRunTimestampSeconds    prometheus.Gauge
	lastRunDurationSeconds     prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_pages_fetched_total",
				Help: "Vacancy search pages requested, labeled by region and status.",
			},
			[]string{"region", "status"},
		)

		vacanciesStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_vacancies_stored_total",
				Help: "Raw vacancies newly inserted, labeled by source region.",
			},
			[]string{"region"},
		)

		vacanciesDuplicateTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_vacancies_duplicate_total",
				Help: "Raw vacancies skipped because their id was already stored.",
			},
			[]string{"region"},
		)

		vacanciesArchivedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_vacancies_archived_total",
				Help: "Archived vacancies dropped before storage.",
			},
			[]string{"region"},
		)

		requestFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_api_request_failures_total",
				Help: "Failed API requests, labeled by failure kind.",
			},
			[]string{"kind"},
		)

		regionRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_region_runs_total",
				Help: "Completed region tasks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arctic_active_workers",
				Help: "Number of workers currently ingesting a region.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arctic_rate_limit_delay_seconds",
				Help:    "Time spent waiting between consecutive page requests.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
			[]string{"region"},
		)

		transformRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arctic_transform_records_total",
				Help: "Raw documents seen by the transformer, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		datasetRows = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arctic_dataset_rows",
				Help: "Rows in the most recently written dataset.",
			},
		)

		lastRunTimestampSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arctic_last_run_timestamp_seconds",
				Help: "Unix time the last pipeline run finished.",
			},
		)

		lastRunDurationSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arctic_last_run_duration_seconds",
				Help: "Wall time of the last pipeline run.",
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func region(id int) string {
	return strconv.Itoa(id)
}

// ObservePage records one page request for a region.
func ObservePage(regionID int, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	pagesFetchedTotal.WithLabelValues(region(regionID), status).Inc()
}

// ObserveInsert records the outcome of one bulk insert.
func ObserveInsert(regionID, inserted, duplicates int) {
	vacanciesStoredTotal.WithLabelValues(region(regionID)).Add(float64(inserted))
	vacanciesDuplicateTotal.WithLabelValues(region(regionID)).Add(float64(duplicates))
}

// ObserveArchived records archived items dropped from a page.
func ObserveArchived(regionID, n int) {
	if n > 0 {
		vacanciesArchivedTotal.WithLabelValues(region(regionID)).Add(float64(n))
	}
}

// ObserveRequestFailure increments the failure counter for kind.
func ObserveRequestFailure(kind string) {
	requestFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveRegion increments the region outcome counter.
func ObserveRegion(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	regionRunsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveTransform records how many documents were flattened or skipped.
func ObserveTransform(flattened, skipped int) {
	transformRecordsTotal.WithLabelValues("flattened").Add(float64(flattened))
	transformRecordsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveDataset sets the row gauge for the dataset just written.
func ObserveDataset(rows int) {
	datasetRows.Set(float64(rows))
}

// ObserveRun records the completion time and duration of a pipeline run.
func ObserveRun(finished time.Time, duration time.Duration) {
	lastRunTimestampSeconds.Set(float64(finished.Unix()))
	lastRunDurationSeconds.Set(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends every registered collector to a Prometheus Pushgateway. Batch
// runs have no scrape endpoint, so this is how their counters leave the process.
func Push(ctx context.Context, gatewayURL, job, runID string) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
