package visualization

import (
	"strings"
	"testing"

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

func testSnapshot(step int) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		RunID: "run-1",
		Step:  step,
		Nodes: []snapshot.NodeEntry{
			{ID: 1, Group: snapshot.GroupExisting, Degree: 3, Lifetime: 10, Sleep: 2},
			{ID: 2, Group: snapshot.GroupExisting, Degree: 2, Lifetime: 0, Sleep: 1},
			{ID: 3, Group: snapshot.GroupNew, Degree: 1, Lifetime: 7, Sleep: 4},
		},
		Edges: []snapshot.EdgeEntry{
			{Source: 1, Target: 2, Value: 2},
			{Source: 3, Target: 1, Value: 1},
		},
		NodeCount: 3,
		EdgeCount: 2,
		Stats:     snapshot.Stats{Arrived: 1, Woke: 2, Closed: 1, Expired: 1, Active: 2},
	}
}

func TestRenderDOT(t *testing.T) {
	dot := RenderDOT(testSnapshot(4))

	for _, want := range []string{
		"graph step4 {",
		`label="Time: 4";`,
		`1 [fillcolor="steelblue", style=filled,`,
		`2 [fillcolor="steelblue", style="filled,dashed",`,
		`3 [fillcolor="tomato", style=filled,`,
		"1 -- 2 [penwidth=2];",
		"3 -- 1;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "->") {
		t.Error("DOT output should be undirected")
	}
}

func TestRenderJSON(t *testing.T) {
	data := RenderJSON(testSnapshot(1))

	nodes, ok := data["nodes"].([]map[string]interface{})
	if !ok {
		t.Fatalf("nodes has type %T", data["nodes"])
	}
	if len(nodes) != 3 || data["node_count"] != 3 {
		t.Errorf("nodes = %d, node_count = %v, want 3", len(nodes), data["node_count"])
	}
	if nodes[2]["name"] != "3" || nodes[2]["group"] != snapshot.GroupNew {
		t.Errorf("node 3 = %v", nodes[2])
	}

	links := data["links"].([]map[string]interface{})
	if len(links) != 2 || data["edge_count"] != 2 {
		t.Errorf("links = %d, edge_count = %v, want 2", len(links), data["edge_count"])
	}
	if links[0]["source"] != 1 || links[0]["target"] != 2 || links[0]["value"] != 2 {
		t.Errorf("first link = %v", links[0])
	}
}

func TestFileNav(t *testing.T) {
	tests := []struct {
		name     string
		step     int
		lastStep int
		want     PageNav
	}{
		{"first", 0, 3, PageNav{Next: "network1.json.html"}},
		{"middle", 2, 3, PageNav{Prev: "network1.json.html", Next: "network3.json.html"}},
		{"last", 3, 3, PageNav{Prev: "network2.json.html"}},
		{"single", 0, 0, PageNav{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileNav("network", tt.step, tt.lastStep); got != tt.want {
				t.Errorf("FileNav() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML(testSnapshot(2), "Contacts", PageNav{Prev: "network1.json.html"})
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	html := string(page)

	for _, want := range []string{
		"Time: 2",
		"Contacts",
		`href="network1.json.html"`,
		"arrived 1, woke 2, closed 1, expired 1",
		`"links":[`,
		"d3.forceSimulation",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, ">Next<") {
		t.Error("page without next target should not link Next")
	}
}

func TestRenderHTML_EscapesTitle(t *testing.T) {
	page, err := RenderHTML(testSnapshot(0), "<script>alert(1)</script>", PageNav{})
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if strings.Contains(string(page), "<script>alert(1)</script>") {
		t.Error("title was not escaped")
	}
}
