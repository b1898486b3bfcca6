// Package graph holds the undirected social-contact graph that every stage of a
// simulation step mutates in place.
//
// Nodes are kept in ascending id order so that a single pass over the graph is
// reproducible for a given random stream. Edges carry a multiplicity: forming an
// edge that already exists increments both endpoint degrees and the edge's
// multiplicity instead of adding a parallel edge, so a node's Degree always
// equals the summed multiplicity of its incident edges.
package graph

import (
	"errors"
	"fmt"

	"github.com/tidwall/btree"
)

var (
	// ErrEmptyGraph is returned when an operation needs at least one node.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNodeNotFound is returned when an id does not name a node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose id is taken.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrSelfLoop is returned when both endpoints of an edge are the same node.
	ErrSelfLoop = errors.New("self-loop edges are not allowed")

	// ErrInvariant is returned by CheckInvariants when node attributes and
	// edges disagree.
	ErrInvariant = errors.New("graph invariant violated")
)

// Node is a participant in the contact graph.
type Node struct {
	ID int `json:"id"`

	// Lifetime is the number of steps left before the node becomes
	// permanently inactive. Zero means inactive.
	Lifetime int `json:"lifetime"`

	// Degree is the number of incident edge formations.
	Degree int `json:"degree"`

	// Sleep is the number of steps until the node next wakes.
	Sleep int `json:"sleep"`
}

// Active reports whether the node is still processed by the wake cycle.
func (n *Node) Active() bool {
	return n.Lifetime > 0
}

// Edge is an unordered pair of distinct nodes. Source and Target keep the
// orientation of the first formation.
type Edge struct {
	Source       int `json:"source"`
	Target       int `json:"target"`
	Multiplicity int `json:"multiplicity"`
}

type edgeKey struct{ lo, hi int }

func keyOf(u, v int) edgeKey {
	if u > v {
		u, v = v, u
	}
	return edgeKey{lo: u, hi: v}
}

// State is the full node and edge set for the current time step.
// It is not safe for concurrent use; a simulation owns exactly one.
type State struct {
	nodes btree.Map[int, *Node]
	adj   map[int][]int
	edges []*Edge
	index map[edgeKey]*Edge
}

// New creates an empty graph.
func New() *State {
	return &State{
		adj:   make(map[int][]int),
		index: make(map[edgeKey]*Edge),
	}
}

// AddNode inserts a copy of n. The node's Degree is reset to zero because
// degree is derived from edges added through AddEdge.
func (s *State) AddNode(n Node) (*Node, error) {
	if _, exists := s.nodes.Get(n.ID); exists {
		return nil, fmt.Errorf("add node %d: %w", n.ID, ErrDuplicateNode)
	}
	node := n
	node.Degree = 0
	s.nodes.Set(node.ID, &node)
	return &node, nil
}

// Node returns the node with the given id.
func (s *State) Node(id int) (*Node, bool) {
	return s.nodes.Get(id)
}

// Len returns the number of nodes, active or not.
func (s *State) Len() int {
	return s.nodes.Len()
}

// MaxID returns the largest node id. ok is false for an empty graph.
func (s *State) MaxID() (id int, ok bool) {
	id, _, ok = s.nodes.Max()
	return id, ok
}

// Each calls fn for every node in ascending id order until fn returns false.
// fn may mutate node attributes and add edges, but must not add nodes.
func (s *State) Each(fn func(n *Node) bool) {
	s.nodes.Scan(func(_ int, n *Node) bool {
		return fn(n)
	})
}

// Nodes returns a copy of every node in ascending id order.
func (s *State) Nodes() []Node {
	out := make([]Node, 0, s.nodes.Len())
	s.Each(func(n *Node) bool {
		out = append(out, *n)
		return true
	})
	return out
}

// ActiveCount returns how many nodes still have lifetime left.
func (s *State) ActiveCount() int {
	count := 0
	s.Each(func(n *Node) bool {
		if n.Active() {
			count++
		}
		return true
	})
	return count
}

// AddEdge forms an edge between u and v and increments both degrees.
// created is false when the pair was already connected; the multiplicity of
// the existing edge is incremented in that case.
func (s *State) AddEdge(u, v int) (created bool, err error) {
	if u == v {
		return false, fmt.Errorf("add edge %d-%d: %w", u, v, ErrSelfLoop)
	}
	nu, ok := s.nodes.Get(u)
	if !ok {
		return false, fmt.Errorf("add edge %d-%d: node %d: %w", u, v, u, ErrNodeNotFound)
	}
	nv, ok := s.nodes.Get(v)
	if !ok {
		return false, fmt.Errorf("add edge %d-%d: node %d: %w", u, v, v, ErrNodeNotFound)
	}

	nu.Degree++
	nv.Degree++

	key := keyOf(u, v)
	if e, exists := s.index[key]; exists {
		e.Multiplicity++
		return false, nil
	}

	e := &Edge{Source: u, Target: v, Multiplicity: 1}
	s.index[key] = e
	s.edges = append(s.edges, e)
	s.adj[u] = append(s.adj[u], v)
	s.adj[v] = append(s.adj[v], u)
	return true, nil
}

// HasEdge reports whether u and v are connected.
func (s *State) HasEdge(u, v int) bool {
	_, ok := s.index[keyOf(u, v)]
	return ok
}

// Neighbors returns the distinct neighbors of id in the order the edges were
// formed. The returned slice is a copy.
func (s *State) Neighbors(id int) []int {
	nbrs := s.adj[id]
	out := make([]int, len(nbrs))
	copy(out, nbrs)
	return out
}

// Edges returns a copy of every distinct edge in formation order.
func (s *State) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	for i, e := range s.edges {
		out[i] = *e
	}
	return out
}

// EdgeCount returns the number of distinct edges.
func (s *State) EdgeCount() int {
	return len(s.edges)
}

// CheckInvariants verifies that every node's Degree matches its incident
// edge multiplicity and that active nodes carry a sleep countdown within
// their remaining lifetime.
func (s *State) CheckInvariants() error {
	incident := make(map[int]int, s.nodes.Len())
	for _, e := range s.edges {
		incident[e.Source] += e.Multiplicity
		incident[e.Target] += e.Multiplicity
	}

	var err error
	s.Each(func(n *Node) bool {
		if n.Degree != incident[n.ID] {
			err = fmt.Errorf("%w: node %d has degree %d but %d incident edges",
				ErrInvariant, n.ID, n.Degree, incident[n.ID])
			return false
		}
		if n.Lifetime < 0 {
			err = fmt.Errorf("%w: node %d has negative lifetime %d", ErrInvariant, n.ID, n.Lifetime)
			return false
		}
		if n.Active() && (n.Sleep < 1 || n.Sleep > n.Lifetime) {
			err = fmt.Errorf("%w: node %d sleeps %d with lifetime %d",
				ErrInvariant, n.ID, n.Sleep, n.Lifetime)
			return false
		}
		return true
	})
	return err
}
