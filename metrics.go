package netsplit

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus collectors a Planner updates
type Metrics struct {
	registry *prometheus.Registry

	PlansTotal   *prometheus.CounterVec
	PlanDuration prometheus.Histogram
	Partitions   prometheus.Gauge
	GraphNodes   prometheus.Gauge
	EdgeCut      prometheus.Gauge
	Bridges      prometheus.Gauge
	LoadBalance  prometheus.Gauge
}

// NewMetrics registers the planner metrics with reg, a fresh registry when reg is nil
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{registry: reg}

	m.PlansTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsplit_plans_total",
			Help: "Total number of planning runs",
		},
		[]string{"result"}, // ok, partition_error, partitioner_failure, capacity, internal, invalid
	)

	m.PlanDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netsplit_plan_duration_seconds",
			Help:    "Duration of planning runs in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
		},
	)

	m.Partitions = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsplit_partitions",
			Help: "Number of sub-networks produced by the last plan",
		},
	)

	m.GraphNodes = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsplit_graph_nodes",
			Help: "Switches plus hosts in the last partitioned topology",
		},
	)

	m.EdgeCut = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsplit_edge_cut",
			Help: "Graph edges crossing partitions in the last plan",
		},
	)

	m.Bridges = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsplit_bridges",
			Help: "Bridge pairs synthesized by the last plan",
		},
	)

	m.LoadBalance = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "netsplit_load_balance",
			Help: "Load balance of the last plan (1 = perfect)",
		},
	)
	return m
}

// Registry exposes the underlying registry, e.g. for an HTTP handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes every metric of the registry to w in the Prometheus text format
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlan records a successful planning run
func (m *Metrics) RecordPlan(st PartitionStats, duration time.Duration) {
	m.PlansTotal.WithLabelValues("ok").Inc()
	m.PlanDuration.Observe(duration.Seconds())
	m.Partitions.Set(float64(st.Parts))
	m.GraphNodes.Set(float64(st.Nodes))
	m.EdgeCut.Set(float64(st.TotalCut))
	m.Bridges.Set(float64(st.Bridges))
	m.LoadBalance.Set(st.LoadBalance)
}

// RecordFailure records a planning run that ended in error
func (m *Metrics) RecordFailure(err error, duration time.Duration) {
	m.PlansTotal.WithLabelValues(failureKind(err)).Inc()
	m.PlanDuration.Observe(duration.Seconds())
}
