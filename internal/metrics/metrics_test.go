package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nvandessel/dyngraph/internal/evolution"
	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/sampling"
	"github.com/nvandessel/dyngraph/internal/simulation"
)

func testGraph(t *testing.T) *graph.State {
	t.Helper()
	g := graph.New()
	for _, n := range []graph.Node{
		{ID: 1, Lifetime: 5, Sleep: 1},
		{ID: 2, Lifetime: 0, Sleep: 1},
		{ID: 3, Lifetime: 9, Sleep: 3},
	} {
		if _, err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]int{{1, 2}, {2, 3}} {
		if _, err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestRecorder_ObserveStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	ctx := context.Background()
	g := testGraph(t)

	seed := simulation.StepResult{Step: 0, Graph: g, NewNodes: []int{1, 2, 3}}
	if err := r.ObserveStep(ctx, seed); err != nil {
		t.Fatalf("ObserveStep(0) error = %v", err)
	}
	if got := testutil.ToFloat64(r.Arrivals); got != 0 {
		t.Errorf("seed nodes counted as arrivals: %v", got)
	}

	step := simulation.StepResult{
		Step:     1,
		Graph:    g,
		NewNodes: []int{3},
		Wake:     evolution.WakeStats{Woke: 2, Closed: 1, Expired: 1},
		Elapsed:  2 * time.Millisecond,
	}
	if err := r.ObserveStep(ctx, step); err != nil {
		t.Fatalf("ObserveStep(1) error = %v", err)
	}

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"nodes", r.Nodes, 3},
		{"edges", r.Edges, 2},
		{"active", r.ActiveNodes, 2},
		{"step", r.Step, 1},
		{"arrivals", r.Arrivals, 1},
		{"wakes", r.Wakes, 2},
		{"closures", r.Closures, 1},
		{"expired", r.Expired, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(r.StepDuration); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
	expected := `
# HELP dyngraph_step_duration_seconds Wall time of the wake cycle plus admission
# TYPE dyngraph_step_duration_seconds histogram
dyngraph_step_duration_seconds_bucket{le="0.0001"} 0
dyngraph_step_duration_seconds_bucket{le="0.0005"} 0
dyngraph_step_duration_seconds_bucket{le="0.001"} 0
dyngraph_step_duration_seconds_bucket{le="0.005"} 1
dyngraph_step_duration_seconds_bucket{le="0.01"} 1
dyngraph_step_duration_seconds_bucket{le="0.05"} 1
dyngraph_step_duration_seconds_bucket{le="0.1"} 1
dyngraph_step_duration_seconds_bucket{le="0.5"} 1
dyngraph_step_duration_seconds_bucket{le="1"} 1
dyngraph_step_duration_seconds_bucket{le="5"} 1
dyngraph_step_duration_seconds_bucket{le="+Inf"} 1
dyngraph_step_duration_seconds_sum 0.002
dyngraph_step_duration_seconds_count 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "dyngraph_step_duration_seconds"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	if err := r.ObserveStep(context.Background(), simulation.StepResult{}); err != nil {
		t.Errorf("nil recorder error = %v", err)
	}
}

func TestRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	NewRecorder(reg)
}

func TestRecorder_TracksSimulation(t *testing.T) {
	s, err := sampling.NewSeeded(sampling.Params{Lambda: 0.1, Alpha: 0.5, Beta: 0.01}, 12)
	if err != nil {
		t.Fatal(err)
	}
	g := testGraph(t)
	n, _ := g.Node(2)
	n.Lifetime = 4
	n.Sleep = 2

	r := NewRecorder(nil)
	d, err := simulation.NewDriver(g, s, simulation.Config{Steps: 5, ArrivalRate: 0.25},
		simulation.Options{Sinks: []simulation.Sink{r}})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantArrivals := 0
	for step := 1; step <= 5; step++ {
		wantArrivals += evolution.ArrivalCount(0.25, step)
	}
	if got := testutil.ToFloat64(r.Arrivals); got != float64(wantArrivals) {
		t.Errorf("arrivals = %v, want %d", got, wantArrivals)
	}
	if got := testutil.ToFloat64(r.Nodes); got != float64(g.Len()) {
		t.Errorf("nodes = %v, want %d", got, g.Len())
	}
	if got := testutil.ToFloat64(r.Step); got != 5 {
		t.Errorf("step = %v, want 5", got)
	}
}
