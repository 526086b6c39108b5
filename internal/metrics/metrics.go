// Package metrics registers the Prometheus counters and gauges exported
// by a pipeline instance, as a single promauto-built struct covering
// every stage of the audio path. Each Metrics is bound to its own
// prometheus.Registry rather than the global default registerer, so
// multiple pipelines (as in tests) never collide on duplicate metric
// names.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the full set of counters and gauges one pipeline exports.
type Metrics struct {
	WindowsEmitted     prometheus.Counter
	SegmentsCommitted  prometheus.Counter
	SegmentsDeduped    prometheus.Counter
	WorkerErrors       *prometheus.CounterVec
	IntakeOverflows    prometheus.Counter
	IntakeDepth        prometheus.Gauge
	ReorderPending     prometheus.Gauge
	RunnerQueueDepth   *prometheus.GaugeVec
	PauseState         prometheus.Gauge
	WindowLatency      prometheus.Histogram

	registry *prometheus.Registry
}

// New builds a Metrics with its own private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		WindowsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "voxpipe_windows_emitted_total",
			Help: "Total number of windows written by the window buffer.",
		}),
		SegmentsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "voxpipe_segments_committed_total",
			Help: "Total number of history segments committed after de-dup.",
		}),
		SegmentsDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "voxpipe_segments_deduped_total",
			Help: "Total number of segments dropped by the history de-dup watermark.",
		}),
		WorkerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxpipe_worker_errors_total",
			Help: "Worker results with no fragments, by kind; the pipeline records every nil result (timeout, worker error or empty transcript) as kind empty_result.",
		}, []string{"kind"}),
		IntakeOverflows: f.NewCounter(prometheus.CounterOpts{
			Name: "voxpipe_intake_overflows_total",
			Help: "Total number of windows dropped by intake queue overflow.",
		}),
		IntakeDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxpipe_intake_depth",
			Help: "Current depth of the bounded intake queue.",
		}),
		ReorderPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxpipe_reorder_pending",
			Help: "Current number of out-of-order results held by the reorder buffer.",
		}),
		RunnerQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxpipe_runner_queue_depth",
			Help: "Current per-runner queue depth.",
		}, []string{"runner"}),
		PauseState: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxpipe_pause_state",
			Help: "Current pause state (0=none, 1=manual, 2=auto_silence).",
		}),
		WindowLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxpipe_window_latency_seconds",
			Help:    "Time from a window's intake enqueue to its transcription result.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves this Metrics' registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
