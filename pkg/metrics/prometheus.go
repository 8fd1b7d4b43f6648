package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches       *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	cacheRecords  prometheus.Gauge
	snapshots     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnpull_fetch_total",
				Help: "Page fetches by source and result",
			},
			[]string{"source", "result"},
		),
		parseFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnpull_parse_failures_total",
				Help: "Fetched pages that did not carry the expected markers",
			},
			[]string{"source"},
		),
		cacheRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "earnpull_cache_records",
				Help: "Tickers held by the earnings cache",
			},
		),
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnpull_snapshot_ops_total",
				Help: "Snapshot file loads and saves by result",
			},
			[]string{"op", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "earnpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFetch(source, result string) {
	r.fetches.WithLabelValues(source, result).Inc()
}

func (r *Recorder) RecordParseFailure(source string) {
	r.parseFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordCacheSize(n int) {
	r.cacheRecords.Set(float64(n))
}

func (r *Recorder) RecordSnapshot(op, result string) {
	r.snapshots.WithLabelValues(op, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
