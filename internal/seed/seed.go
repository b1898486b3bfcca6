// Package seed builds the initial contact graph from a plain-text edge list.
//
// Each non-blank line holds two whitespace-separated integer node ids. Every
// line counts as one edge formation, so a pair listed in both directions
// contributes two to each endpoint's degree. Once the whole list is read,
// every distinct node samples its lifetime and initial sleep exactly once,
// in ascending id order.
package seed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/sampling"
)

var (
	// ErrMalformedSeed is returned for lines that are not two distinct integer ids.
	ErrMalformedSeed = errors.New("malformed seed")

	// ErrEmptySeed is returned when the input holds no edges.
	ErrEmptySeed = errors.New("seed has no edges")
)

// Pair is one line of the edge list.
type Pair struct {
	Source int
	Target int
}

// ReadPairs parses an edge list. Blank lines are skipped and fields past the
// second are ignored.
func ReadPairs(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected two node ids, got %q",
				ErrMalformedSeed, lineNum, scanner.Text())
		}
		src, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: source %q is not an integer", ErrMalformedSeed, lineNum, fields[0])
		}
		dst, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: target %q is not an integer", ErrMalformedSeed, lineNum, fields[1])
		}
		if src == dst {
			return nil, fmt.Errorf("%w: line %d: self-loop on node %d", ErrMalformedSeed, lineNum, src)
		}
		pairs = append(pairs, Pair{Source: src, Target: dst})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	if len(pairs) == 0 {
		return nil, ErrEmptySeed
	}
	return pairs, nil
}

// Build creates a graph from pairs and samples every node's lifetime and
// initial sleep from s using the node's final seed degree.
func Build(pairs []Pair, s *sampling.Sampler) (*graph.State, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptySeed
	}
	if s == nil {
		return nil, errors.New("build seed graph: sampler is required")
	}

	g := graph.New()
	for _, p := range pairs {
		for _, id := range []int{p.Source, p.Target} {
			if _, ok := g.Node(id); ok {
				continue
			}
			if _, err := g.AddNode(graph.Node{ID: id}); err != nil {
				return nil, fmt.Errorf("build seed graph: %w", err)
			}
		}
		if _, err := g.AddEdge(p.Source, p.Target); err != nil {
			return nil, fmt.Errorf("build seed graph: %w", err)
		}
	}

	g.Each(func(n *graph.Node) bool {
		n.Lifetime = s.Lifetime()
		n.Sleep = s.TimeGap(n.Degree, n.Lifetime)
		return true
	})
	return g, nil
}

// Load reads an edge list from r and builds the seed graph.
func Load(r io.Reader, s *sampling.Sampler) (*graph.State, error) {
	pairs, err := ReadPairs(r)
	if err != nil {
		return nil, err
	}
	return Build(pairs, s)
}

// LoadFile opens path and builds the seed graph from its edge list.
func LoadFile(path string, s *sampling.Sampler) (*graph.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	g, err := Load(f, s)
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	return g, nil
}
