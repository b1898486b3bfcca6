package visualization

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nvandessel/dyngraph/internal/pathutil"
	"github.com/nvandessel/dyngraph/internal/snapshot"
)

// DGSGraphName is the graph name written to the DGS header.
const DGSGraphName = "NetworkEvolution"

// DGSBuilder accumulates a GraphStream DGS004 event stream from successive
// step snapshots. Every node and edge is added once, the first time it
// appears, and each addition is followed by a step event.
type DGSBuilder struct {
	b      strings.Builder
	nodes  map[int]bool
	edges  map[[2]int]bool
	events int
}

// NewDGSBuilder returns a builder with the DGS header already written.
func NewDGSBuilder() *DGSBuilder {
	d := &DGSBuilder{
		nodes: make(map[int]bool),
		edges: make(map[[2]int]bool),
	}
	d.b.WriteString("DGS004\n")
	fmt.Fprintf(&d.b, "%q 0 0\n", DGSGraphName)
	return d
}

// Add appends the events for nodes and edges not seen in earlier snapshots.
func (d *DGSBuilder) Add(s *snapshot.Snapshot) {
	for _, n := range s.Nodes {
		if d.nodes[n.ID] {
			continue
		}
		d.nodes[n.ID] = true
		fmt.Fprintf(&d.b, "an \"%d\"\n", n.ID)
		d.step()
	}
	for _, e := range s.Edges {
		key := [2]int{min(e.Source, e.Target), max(e.Source, e.Target)}
		if d.edges[key] {
			continue
		}
		d.edges[key] = true
		fmt.Fprintf(&d.b, "ae \"%d-%d\" \"%d\" \"%d\"\n", e.Source, e.Target, e.Source, e.Target)
		d.step()
	}
}

func (d *DGSBuilder) step() {
	d.events++
	fmt.Fprintf(&d.b, "st %d\n", d.events)
}

// Events returns the number of step events written so far.
func (d *DGSBuilder) Events() int { return d.events }

// String returns the DGS document built so far.
func (d *DGSBuilder) String() string { return d.b.String() }

// RenderDGS builds a DGS document from snapshots in step order.
func RenderDGS(snaps []*snapshot.Snapshot) string {
	d := NewDGSBuilder()
	for _, s := range snaps {
		d.Add(s)
	}
	return d.String()
}

// DGSWriter is a snapshot.Writer that collects steps and writes
// <dir>/<prefix>.dgs when the run finishes.
type DGSWriter struct {
	path    string
	builder *DGSBuilder
}

// NewDGSWriter creates dir if needed and resolves the output file.
func NewDGSWriter(dir, prefix string) (*DGSWriter, error) {
	if err := pathutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	path, err := pathutil.OutputFile(dir, prefix+".dgs")
	if err != nil {
		return nil, err
	}
	return &DGSWriter{path: path, builder: NewDGSBuilder()}, nil
}

// Path returns the file the DGS document is written to.
func (w *DGSWriter) Path() string { return w.path }

// WriteSnapshot implements snapshot.Writer.
func (w *DGSWriter) WriteSnapshot(_ context.Context, s *snapshot.Snapshot) error {
	w.builder.Add(s)
	return nil
}

// Finish implements simulation.Finisher.
func (w *DGSWriter) Finish(_ context.Context) error {
	if err := os.WriteFile(w.path, []byte(w.builder.String()), 0644); err != nil {
		return fmt.Errorf("write DGS file: %w", err)
	}
	return nil
}
