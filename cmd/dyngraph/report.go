package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/simulation"
)

// consoleReport prints a line per step, plus the node table and edge list
// when verbose.
type consoleReport struct {
	w       io.Writer
	verbose bool
}

// ObserveStep implements simulation.Sink.
func (r *consoleReport) ObserveStep(_ context.Context, res simulation.StepResult) error {
	g := res.Graph
	if res.Step == 0 {
		fmt.Fprintf(r.w, "Time: 0  seed graph: %d nodes, %d edges\n", g.Len(), g.EdgeCount())
	} else {
		fmt.Fprintf(r.w, "Time: %d  %d nodes, %d edges, %d active | arrived %d, woke %d, closed %d, expired %d (%s)\n",
			res.Step, g.Len(), g.EdgeCount(), g.ActiveCount(),
			len(res.NewNodes), res.Wake.Woke, res.Wake.Closed, res.Wake.Expired, res.Elapsed.Round(time.Microsecond))
	}
	if !r.verbose {
		return nil
	}

	isNew := res.NewNodeSet()
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NODE\tDEGREE\tLIFETIME\tSLEEP\t")
	g.Each(func(n *graph.Node) bool {
		mark := ""
		if isNew[n.ID] {
			mark = "new"
		}
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%d\t%s\n", n.ID, n.Degree, n.Lifetime, n.Sleep, mark)
		return true
	})
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(r.w, "  edges:")
	for _, e := range g.Edges() {
		if e.Multiplicity > 1 {
			fmt.Fprintf(r.w, "    %d - %d (x%d)\n", e.Source, e.Target, e.Multiplicity)
			continue
		}
		fmt.Fprintf(r.w, "    %d - %d\n", e.Source, e.Target)
	}
	return nil
}
