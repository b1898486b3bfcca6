// Package visualization renders step snapshots in various output formats.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

// Format specifies the output format for step rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// groupColors maps snapshot group tags to DOT colors.
var groupColors = map[int]string{
	snapshot.GroupExisting: "steelblue",
	snapshot.GroupNew:      "tomato",
}

// PageName returns the HTML page written for step, e.g. "network3.json.html".
func PageName(prefix string, step int) string {
	return snapshot.FileName(prefix, step) + ".html"
}

// RenderDOT produces an undirected Graphviz representation of a step.
// Newly admitted nodes are filled red, inactive nodes are dashed and edges
// formed more than once are drawn thicker.
func RenderDOT(s *snapshot.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph step%d {\n", s.Step)
	fmt.Fprintf(&b, "  label=\"Time: %d\";\n", s.Step)
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\"];\n\n")

	for _, n := range s.Nodes {
		color := groupColors[n.Group]
		if color == "" {
			color = "lightgray"
		}
		style := "filled"
		if n.Lifetime <= 0 {
			style = "\"filled,dashed\""
		}
		fmt.Fprintf(&b, "  %d [fillcolor=%q, style=%s, tooltip=\"degree=%d lifetime=%d sleep=%d\"];\n",
			n.ID, color, style, n.Degree, n.Lifetime, n.Sleep)
	}
	b.WriteString("\n")

	for _, e := range s.Edges {
		if e.Value > 1 {
			fmt.Fprintf(&b, "  %d -- %d [penwidth=%d];\n", e.Source, e.Target, e.Value)
			continue
		}
		fmt.Fprintf(&b, "  %d -- %d;\n", e.Source, e.Target)
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces the graph representation consumed by the HTML page:
// a nodes array and a links array keyed by node id.
func RenderJSON(s *snapshot.Snapshot) map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes = append(nodes, map[string]interface{}{
			"id":       n.ID,
			"name":     strconv.Itoa(n.ID),
			"group":    n.Group,
			"degree":   n.Degree,
			"lifetime": n.Lifetime,
			"sleep":    n.Sleep,
		})
	}

	links := make([]map[string]interface{}, 0, len(s.Edges))
	for _, e := range s.Edges {
		links = append(links, map[string]interface{}{
			"source": e.Source,
			"target": e.Target,
			"value":  e.Value,
		})
	}

	return map[string]interface{}{
		"step":       s.Step,
		"nodes":      nodes,
		"links":      links,
		"node_count": len(nodes),
		"edge_count": len(links),
	}
}

// PageNav holds the Prev/Next targets of a step page. Empty hrefs hide the link.
type PageNav struct {
	Prev string
	Next string
}

// FileNav links pages written side by side as <prefix><t>.json.html.
func FileNav(prefix string, step, lastStep int) PageNav {
	var nav PageNav
	if step > 0 {
		nav.Prev = PageName(prefix, step-1)
	}
	if step < lastStep {
		nav.Next = PageName(prefix, step+1)
	}
	return nav
}

// htmlTemplateData holds data passed to the step template.
// GraphJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	Title     string
	Step      int
	NodeCount int
	EdgeCount int
	Stats     snapshot.Stats
	Nav       PageNav
	GraphJSON template.JS
}

// RenderHTML produces a self-contained page with a force-directed rendering
// of the step and Prev/Next navigation.
func RenderHTML(s *snapshot.Snapshot, title string, nav PageNav) ([]byte, error) {
	graphJSON, err := json.Marshal(RenderJSON(s))
	if err != nil {
		return nil, fmt.Errorf("marshal graph data: %w", err)
	}

	tmpl, err := template.ParseFS(templates, "templates/step.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse HTML template: %w", err)
	}

	// json.HTMLEscape converts <, >, & to unicode escapes so the data
	// cannot close the surrounding <script>.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, graphJSON)

	var buf bytes.Buffer
	data := htmlTemplateData{
		Title:     title,
		Step:      s.Step,
		NodeCount: s.NodeCount,
		EdgeCount: s.EdgeCount,
		Stats:     s.Stats,
		Nav:       nav,
		GraphJSON: template.JS(escaped.String()), // #nosec G203
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}
