// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Fetch metrics
	ChunkRequests     *prometheus.CounterVec
	LogsReceived      prometheus.Counter
	DecodeErrors      prometheus.Counter
	EventsStored      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	ChunkWidth        prometheus.Gauge
	LastBlockFetched  prometheus.Gauge
	TimestampLookups  *prometheus.CounterVec
	RPCCallLatency    *prometheus.HistogramVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	FeaturesBuilt     prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "dex_exec_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ChunkRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "chunk_requests_total",
			Help:      "Total number of log range requests by outcome",
		}, []string{"outcome"}),
		LogsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "logs_received_total",
			Help:      "Total number of raw logs returned by the chain adapter",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "decode_errors_total",
			Help:      "Total number of logs skipped because they failed to decode",
		}),
		EventsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "swap_events_stored_total",
			Help:      "Total number of swap events newly stored",
		}),
		DuplicatesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of swap events already present in the store",
		}),
		ChunkWidth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "chunk_width_blocks",
			Help:      "Current block range width of log requests",
		}),
		LastBlockFetched: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "last_block_fetched",
			Help:      "Last block fully fetched and stored",
		}),
		TimestampLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "timestamp_lookups_total",
			Help:      "Block timestamp lookups by where they were served from",
		}, []string{"source"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Chain adapter call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		FeaturesBuilt: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "features_built_total",
			Help:      "Total number of feature records written",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordChunk records one log range request.
func (m *Metrics) RecordChunk(ok bool, seconds float64, width uint64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ChunkRequests.WithLabelValues(outcome).Inc()
	m.RPCCallLatency.WithLabelValues("eth_getLogs").Observe(seconds)
	m.ChunkWidth.Set(float64(width))
}

// RecordStored records the outcome of storing one chunk.
func (m *Metrics) RecordStored(logs, decodeErrors, stored, duplicates int, lastBlock uint64) {
	if m == nil {
		return
	}
	m.LogsReceived.Add(float64(logs))
	m.DecodeErrors.Add(float64(decodeErrors))
	m.EventsStored.Add(float64(stored))
	m.DuplicatesSkipped.Add(float64(duplicates))
	m.LastBlockFetched.Set(float64(lastBlock))
}

// RecordTimestampLookup records where a block timestamp came from: "local", "remote" or "rpc".
func (m *Metrics) RecordTimestampLookup(source string) {
	if m == nil {
		return
	}
	m.TimestampLookups.WithLabelValues(source).Inc()
}

// RecordPipelineRun records a pipeline run.
func (m *Metrics) RecordPipelineRun(phase, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	m.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordFeaturesBuilt adds n to the feature record counter.
func (m *Metrics) RecordFeaturesBuilt(n int) {
	if m == nil {
		return
	}
	m.FeaturesBuilt.Add(float64(n))
}
