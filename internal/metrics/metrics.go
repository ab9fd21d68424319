// Package metrics exposes Prometheus collectors for the sweep tool.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sweepPairsTotal            *prometheus.CounterVec
	sweepRoutesTotal           *prometheus.CounterVec
	sweepFetchDurationSeconds  *prometheus.HistogramVec
	sweepParseDurationSeconds  *prometheus.HistogramVec
	sweepParsedRecordsTotal    *prometheus.CounterVec
	sweepActivePipelines       prometheus.Gauge
	sweepRateLimitDelaySeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sweepPairsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_pairs_total",
				Help: "Total number of pair pipelines completed, labeled by dataset, period and status.",
			},
			[]string{"dataset", "period", "status"},
		)

		sweepRoutesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_routes_total",
				Help: "Total number of route requests sent, labeled by dataset and status.",
			},
			[]string{"dataset", "status"},
		)

		sweepFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_fetch_duration_seconds",
				Help:    "Histogram of per-route fetch latencies, labeled by dataset.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"dataset"},
		)

		sweepParseDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_parse_duration_seconds",
				Help:    "Histogram of per-pair parse durations, labeled by dataset.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"dataset"},
		)

		sweepParsedRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_parsed_records_total",
				Help: "Total number of route rows written to combined CSVs, labeled by dataset.",
			},
			[]string{"dataset"},
		)

		sweepActivePipelines = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sweep_active_pipelines",
				Help: "Number of pair pipelines currently running.",
			},
		)

		sweepRateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sweep_rate_limit_delay_seconds",
				Help:    "Histogram of request pacing waits.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePair increments the pair pipeline counter for the given outcome.
func ObservePair(dataset, period, status string) {
	sweepPairsTotal.WithLabelValues(dataset, period, status).Inc()
}

// ObserveRoute increments the per-route request counter.
func ObserveRoute(dataset, status string) {
	sweepRoutesTotal.WithLabelValues(dataset, status).Inc()
}

// ObserveFetch records the latency of one route request.
func ObserveFetch(dataset string, duration time.Duration) {
	sweepFetchDurationSeconds.WithLabelValues(dataset).Observe(duration.Seconds())
}

// ObserveParse records the duration of one pair's parse step.
func ObserveParse(dataset string, duration time.Duration) {
	sweepParseDurationSeconds.WithLabelValues(dataset).Observe(duration.Seconds())
}

// AddParsedRecords adds the number of route rows written for a dataset.
func AddParsedRecords(dataset string, n int) {
	if n > 0 {
		sweepParsedRecordsTotal.WithLabelValues(dataset).Add(float64(n))
	}
}

// IncActivePipelines increments the active pipelines gauge.
func IncActivePipelines() {
	sweepActivePipelines.Inc()
}

// DecActivePipelines decrements the active pipelines gauge.
func DecActivePipelines() {
	sweepActivePipelines.Dec()
}

// ObserveRateLimitDelay records the duration of a request pacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	sweepRateLimitDelaySeconds.Observe(duration.Seconds())
}
