package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of one preparation process.
type Metrics struct {
	// CellFailures counts indicator cells absorbed as unavailable (labels: node, reason).
	CellFailures *prometheus.CounterVec
	// CacheBatches counts cache batches by outcome (labels: group, result=hit|miss).
	CacheBatches *prometheus.CounterVec
	// RemoteFetches counts provider calls (labels: group).
	RemoteFetches *prometheus.CounterVec
	// NodesEvaluated counts evaluated graph nodes (labels: kind).
	NodesEvaluated *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what tests and library callers without an exporter want.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CellFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataprep_cell_failures_total",
			Help: "Indicator cells that evaluated to unavailable",
		}, []string{"node", "reason"}),
		CacheBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataprep_cache_batches_total",
			Help: "Cache batches checked for completeness",
		}, []string{"group", "result"}),
		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataprep_remote_fetches_total",
			Help: "Calls made to the remote market data provider",
		}, []string{"group"}),
		NodesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataprep_nodes_evaluated_total",
			Help: "Graph nodes evaluated",
		}, []string{"kind"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.CellFailures, m.CacheBatches, m.RemoteFetches, m.NodesEvaluated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewNopMetrics returns unregistered collectors.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(nil)

	return m
}
