package graph

import "sort"

// DegreeSnapshot is a prefix-sum over node degrees taken at a fixed point in
// a step. IDs[i] is the node whose degree ends the running total Cumulative[i].
type DegreeSnapshot struct {
	IDs        []int
	Cumulative []int
}

// CumulativeDegrees captures the current degree distribution in ascending id order.
func (s *State) CumulativeDegrees() DegreeSnapshot {
	snap := DegreeSnapshot{
		IDs:        make([]int, 0, s.nodes.Len()),
		Cumulative: make([]int, 0, s.nodes.Len()),
	}
	total := 0
	s.Each(func(n *Node) bool {
		total += n.Degree
		snap.IDs = append(snap.IDs, n.ID)
		snap.Cumulative = append(snap.Cumulative, total)
		return true
	})
	return snap
}

// Empty reports whether the snapshot has no nodes.
func (d DegreeSnapshot) Empty() bool {
	return len(d.Cumulative) == 0
}

// Bounds returns the first and last prefix sums.
func (d DegreeSnapshot) Bounds() (lo, hi int) {
	if d.Empty() {
		return 0, 0
	}
	return d.Cumulative[0], d.Cumulative[len(d.Cumulative)-1]
}

// Locate returns the first node whose prefix sum is at least draw. Draws past
// the last prefix sum resolve to the last node.
func (d DegreeSnapshot) Locate(draw int) (int, error) {
	if d.Empty() {
		return 0, ErrEmptyGraph
	}
	i := sort.SearchInts(d.Cumulative, draw)
	if i >= len(d.IDs) {
		i = len(d.IDs) - 1
	}
	return d.IDs[i], nil
}
