// Package metrics exposes per-step simulation counters and gauges to Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nvandessel/dyngraph/internal/simulation"
)

// Recorder is a simulation.Sink that updates its collectors after every step.
// A nil *Recorder ignores every call.
type Recorder struct {
	Nodes       prometheus.Gauge
	Edges       prometheus.Gauge
	ActiveNodes prometheus.Gauge
	Step        prometheus.Gauge

	Arrivals prometheus.Counter
	Wakes    prometheus.Counter
	Closures prometheus.Counter
	Expired  prometheus.Counter

	StepDuration prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		Nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dyngraph_nodes",
			Help: "Number of nodes in the graph, active or not",
		}),
		Edges: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dyngraph_edges",
			Help: "Number of distinct edges in the graph",
		}),
		ActiveNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dyngraph_active_nodes",
			Help: "Number of nodes with lifetime left",
		}),
		Step: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dyngraph_step",
			Help: "Last completed time step",
		}),
		Arrivals: factory.NewCounter(prometheus.CounterOpts{
			Name: "dyngraph_arrivals_total",
			Help: "Nodes admitted by the arrival process",
		}),
		Wakes: factory.NewCounter(prometheus.CounterOpts{
			Name: "dyngraph_wakes_total",
			Help: "Wake events processed",
		}),
		Closures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dyngraph_triangle_closures_total",
			Help: "Edges formed by triangle closing",
		}),
		Expired: factory.NewCounter(prometheus.CounterOpts{
			Name: "dyngraph_expired_total",
			Help: "Nodes whose lifetime ran out",
		}),
		// Steps run from microseconds on small seeds to seconds once
		// arrivals grow exponentially.
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dyngraph_step_duration_seconds",
			Help:    "Wall time of the wake cycle plus admission",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// ObserveStep implements simulation.Sink.
func (r *Recorder) ObserveStep(_ context.Context, res simulation.StepResult) error {
	if r == nil {
		return nil
	}
	g := res.Graph
	r.Nodes.Set(float64(g.Len()))
	r.Edges.Set(float64(g.EdgeCount()))
	r.ActiveNodes.Set(float64(g.ActiveCount()))
	r.Step.Set(float64(res.Step))

	// Step 0 is the seed graph.
	if res.Step == 0 {
		return nil
	}
	r.Arrivals.Add(float64(len(res.NewNodes)))
	r.Wakes.Add(float64(res.Wake.Woke))
	r.Closures.Add(float64(res.Wake.Closed))
	r.Expired.Add(float64(res.Wake.Expired))
	r.StepDuration.Observe(res.Elapsed.Seconds())
	return nil
}
