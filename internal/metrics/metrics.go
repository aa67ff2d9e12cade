// Package metrics exposes the aggregator's operational gauges: per-lane
// reduced-queue depth, the cycle-accumulator level, and the latency of
// the most recent on-chain submission.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the gauges every loop updates, registered against a
// dedicated prometheus.Registry rather than the global default so a
// test can construct its own without colliding with another instance.
type Registry struct {
	reg *prometheus.Registry

	QueueDepthLaneR    prometheus.Gauge
	QueueDepthLaneS    prometheus.Gauge
	CycleAccumulator   prometheus.Gauge
	LastSubmissionSecs prometheus.Gauge
}

// New builds and registers the gauge set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		QueueDepthLaneR: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aggregator",
			Subsystem: "batch",
			Name:      "queue_depth_lane_r",
			Help:      "Number of Reduced proofs currently waiting for lane R aggregation.",
		}),
		QueueDepthLaneS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aggregator",
			Subsystem: "batch",
			Name:      "queue_depth_lane_s",
			Help:      "Number of Reduced proofs currently waiting for lane S aggregation.",
		}),
		CycleAccumulator: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aggregator",
			Subsystem: "reduction",
			Name:      "cycle_accumulator_used",
			Help:      "Current value of the process-wide proving-cycle accumulator.",
		}),
		LastSubmissionSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aggregator",
			Subsystem: "chain",
			Name:      "last_submission_latency_seconds",
			Help:      "Wall-clock duration of the most recent on-chain submission attempt.",
		}),
	}
	reg.MustRegister(m.QueueDepthLaneR, m.QueueDepthLaneS, m.CycleAccumulator, m.LastSubmissionSecs)
	return m
}

// Handler returns the HTTP handler a metrics server mounts at /metrics.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
