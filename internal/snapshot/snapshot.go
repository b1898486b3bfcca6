// Package snapshot captures a step's graph as a self-contained value that
// outlives the live graph, and fans it out to writers.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/nvandessel/dyngraph/internal/simulation"
)

// Group tags used to highlight newcomers in renderings.
const (
	GroupExisting = 1
	GroupNew      = 2
)

// NodeEntry is a node as it stood at the end of a step.
type NodeEntry struct {
	ID       int `json:"id"`
	Group    int `json:"group"`
	Degree   int `json:"degree"`
	Lifetime int `json:"lifetime"`
	Sleep    int `json:"sleep"`
}

// EdgeEntry is a distinct edge. Value is the number of times it was formed.
type EdgeEntry struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

// Stats summarizes what happened during the step.
type Stats struct {
	Arrived   int   `json:"arrived"`
	Woke      int   `json:"woke"`
	Closed    int   `json:"closed"`
	Expired   int   `json:"expired"`
	Active    int   `json:"active"`
	ElapsedNS int64 `json:"elapsed_ns,omitempty"`
}

// Snapshot is the serialized form of one step.
type Snapshot struct {
	RunID     string      `json:"run_id,omitempty"`
	Step      int         `json:"step"`
	Nodes     []NodeEntry `json:"nodes"`
	Edges     []EdgeEntry `json:"edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
	Stats     Stats       `json:"stats"`
}

// Capture copies the graph in res into a Snapshot. Nodes admitted during the
// step are tagged GroupNew.
func Capture(res simulation.StepResult) *Snapshot {
	g := res.Graph
	isNew := res.NewNodeSet()

	nodes := g.Nodes()
	entries := make([]NodeEntry, 0, len(nodes))
	active := 0
	for _, n := range nodes {
		group := GroupExisting
		if isNew[n.ID] {
			group = GroupNew
		}
		if n.Active() {
			active++
		}
		entries = append(entries, NodeEntry{
			ID:       n.ID,
			Group:    group,
			Degree:   n.Degree,
			Lifetime: n.Lifetime,
			Sleep:    n.Sleep,
		})
	}

	edges := g.Edges()
	links := make([]EdgeEntry, 0, len(edges))
	for _, e := range edges {
		links = append(links, EdgeEntry{Source: e.Source, Target: e.Target, Value: e.Multiplicity})
	}

	return &Snapshot{
		RunID:     res.RunID,
		Step:      res.Step,
		Nodes:     entries,
		Edges:     links,
		NodeCount: len(entries),
		EdgeCount: len(links),
		Stats: Stats{
			Arrived:   arrivedCount(res),
			Woke:      res.Wake.Woke,
			Closed:    res.Wake.Closed,
			Expired:   res.Wake.Expired,
			Active:    active,
			ElapsedNS: res.Elapsed.Nanoseconds(),
		},
	}
}

// Seed nodes are not arrivals even though step 0 tags them new.
func arrivedCount(res simulation.StepResult) int {
	if res.Step == 0 {
		return 0
	}
	return len(res.NewNodes)
}

// NewNodeIDs returns the ids tagged GroupNew.
func (s *Snapshot) NewNodeIDs() []int {
	var ids []int
	for _, n := range s.Nodes {
		if n.Group == GroupNew {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Marshal encodes the snapshot as indented JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %d: %w", s.Step, err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// ReadFile loads a snapshot written by JSONWriter.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(data)
}

// FileName returns the artifact name for step, e.g. "network3.json".
func FileName(prefix string, step int) string {
	return prefix + strconv.Itoa(step) + ".json"
}
