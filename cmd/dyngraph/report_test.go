package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/dyngraph/internal/evolution"
	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/simulation"
)

func TestConsoleReport(t *testing.T) {
	g := graph.New()
	for _, n := range []graph.Node{
		{ID: 1, Lifetime: 5, Degree: 0, Sleep: 2},
		{ID: 2, Lifetime: 3, Degree: 0, Sleep: 1},
	} {
		if _, err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := g.AddEdge(1, 2); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	r := &consoleReport{w: &buf, verbose: true}
	err := r.ObserveStep(context.Background(), simulation.StepResult{
		Step:     4,
		Graph:    g,
		NewNodes: []int{2},
		Wake:     evolution.WakeStats{Woke: 1, Closed: 1},
		Elapsed:  1500 * time.Microsecond,
	})
	if err != nil {
		t.Fatalf("ObserveStep() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Time: 4  2 nodes, 1 edges, 2 active | arrived 1, woke 1, closed 1, expired 0 (1.5ms)",
		"NODE",
		"new",
		"1 - 2 (x2)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleReport_Quiet(t *testing.T) {
	g := graph.New()
	if _, err := g.AddNode(graph.Node{ID: 1, Lifetime: 1, Sleep: 1}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	r := &consoleReport{w: &buf}
	if err := r.ObserveStep(context.Background(), simulation.StepResult{Graph: g, NewNodes: []int{1}}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Time: 0  seed graph: 1 nodes, 0 edges\n" {
		t.Errorf("quiet report = %q", got)
	}
}
