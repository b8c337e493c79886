// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package coordmetrics holds the coordinator's Prometheus instrumentation.
package coordmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all per-packet-simulation Prometheus metrics.
type Metrics struct {
	SimulationsTotal    *prometheus.CounterVec
	DevicesTraversed    prometheus.Histogram
	LoopDetections       prometheus.Counter
	ForkMerges          *prometheus.CounterVec
	TopologyFetchErrors *prometheus.CounterVec
	TopologyFetchLatency prometheus.Histogram
}

// NewMetrics creates a new Prometheus metrics collector for the coordinator.
func NewMetrics() *Metrics {
	return &Metrics{
		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "midonet_simulations_total",
			Help: "Total number of packet simulations, by result outcome",
		}, []string{"outcome"}),

		DevicesTraversed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "midonet_simulation_devices_traversed",
			Help:    "Number of devices traversed per simulation",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
		}),

		LoopDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midonet_loop_detections_total",
			Help: "Total number of simulations dropped due to loop detection or traversal budget",
		}),

		ForkMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "midonet_fork_merges_total",
			Help: "Total number of fork merges, by compatibility",
		}, []string{"compatible"}),

		TopologyFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "midonet_topology_fetch_errors_total",
			Help: "Total number of topology cache misses or timeouts, by device kind",
		}, []string{"kind"}),

		TopologyFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "midonet_topology_fetch_latency_seconds",
			Help:    "Latency of topology cache fetches that fell through to the backing store",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.SimulationsTotal.Describe(ch)
	m.DevicesTraversed.Describe(ch)
	m.LoopDetections.Describe(ch)
	m.ForkMerges.Describe(ch)
	m.TopologyFetchErrors.Describe(ch)
	m.TopologyFetchLatency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.SimulationsTotal.Collect(ch)
	m.DevicesTraversed.Collect(ch)
	m.LoopDetections.Collect(ch)
	m.ForkMerges.Collect(ch)
	m.TopologyFetchErrors.Collect(ch)
	m.TopologyFetchLatency.Collect(ch)
}

// Register registers all metrics with Prometheus.
func (m *Metrics) Register() {
	prometheus.MustRegister(m)
}

// ObserveSimulation records the outcome and device count of one simulation.
func (m *Metrics) ObserveSimulation(outcome string, devicesTraversed int) {
	m.SimulationsTotal.WithLabelValues(outcome).Inc()
	m.DevicesTraversed.Observe(float64(devicesTraversed))
}

// ObserveLoopDetection records a simulation dropped by loop detection or the
// devices-traversed budget.
func (m *Metrics) ObserveLoopDetection() {
	m.LoopDetections.Inc()
}

// ObserveForkMerge records whether a fork's branch results merged cleanly.
func (m *Metrics) ObserveForkMerge(compatible bool) {
	label := "true"
	if !compatible {
		label = "false"
	}
	m.ForkMerges.WithLabelValues(label).Inc()
}

// ObserveTopologyFetchError records a cache miss or timeout for a device kind.
func (m *Metrics) ObserveTopologyFetchError(kind string) {
	m.TopologyFetchErrors.WithLabelValues(kind).Inc()
}

// ObserveTopologyFetchLatency records how long a cold topology fetch took.
func (m *Metrics) ObserveTopologyFetchLatency(seconds float64) {
	m.TopologyFetchLatency.Observe(seconds)
}
