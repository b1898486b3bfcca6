// Package evolution implements the per-step rules of the microscopic
// evolution model: node arrival with preferential attachment, and the
// wake cycle that closes triangles.
package evolution

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/logging"
	"github.com/nvandessel/dyngraph/internal/sampling"
)

// DefaultArrivalRate is the exponent of the node arrival function N(t) = round(exp(rate·t)).
const DefaultArrivalRate = 0.25

// ArrivalCount returns how many nodes enter at time step t.
// It is non-decreasing in t for any rate ≥ 0 and equals 1 at t = 0.
func ArrivalCount(rate float64, t int) int {
	return int(math.Round(math.Exp(rate * float64(t))))
}

// Arrivals admits new nodes and attaches each to an existing node with
// probability proportional to that node's degree.
type Arrivals struct {
	sampler *sampling.Sampler
	rate    float64
	logger  *slog.Logger
	events  *logging.EventLogger
}

// NewArrivals creates the arrival process. logger and events may be nil.
func NewArrivals(s *sampling.Sampler, rate float64, logger *slog.Logger, events *logging.EventLogger) *Arrivals {
	return &Arrivals{
		sampler: s,
		rate:    rate,
		logger:  logging.OrDiscard(logger),
		events:  events,
	}
}

// Count returns N(t) for this process's arrival rate.
func (a *Arrivals) Count(t int) int {
	return ArrivalCount(a.rate, t)
}

// Destination picks the first-edge target for a newcomer: a uniform draw in
// [first prefix sum, last prefix sum], resolved to the first node whose
// prefix sum reaches it.
func (a *Arrivals) Destination(snap graph.DegreeSnapshot) (int, error) {
	if snap.Empty() {
		return 0, graph.ErrEmptyGraph
	}
	lo, hi := snap.Bounds()
	return snap.Locate(a.sampler.Between(lo, hi))
}

// Admit adds N(t) nodes to g. Every newcomer gets the next unused id, a
// sampled lifetime, a sleep interval for degree 1, and one edge to a
// destination chosen from snap. snap must be taken after the wake cycle of
// step t and before admission, so newcomers never attach to each other.
// It returns the ids of the admitted nodes in admission order.
func (a *Arrivals) Admit(g *graph.State, t int, snap graph.DegreeSnapshot) ([]int, error) {
	maxID, ok := g.MaxID()
	if !ok || snap.Empty() {
		return nil, fmt.Errorf("admit at step %d: %w", t, graph.ErrEmptyGraph)
	}

	count := a.Count(t)
	admitted := make([]int, 0, count)
	nextID := maxID + 1

	for i := 0; i < count; i++ {
		lifetime := a.sampler.Lifetime()
		sleep := a.sampler.TimeGap(1, lifetime)

		dest, err := a.Destination(snap)
		if err != nil {
			return admitted, fmt.Errorf("admit at step %d: %w", t, err)
		}

		if _, err := g.AddNode(graph.Node{ID: nextID, Lifetime: lifetime, Sleep: sleep}); err != nil {
			return admitted, fmt.Errorf("admit at step %d: %w", t, err)
		}
		if _, err := g.AddEdge(nextID, dest); err != nil {
			return admitted, fmt.Errorf("admit at step %d: %w", t, err)
		}

		a.events.Log("arrival", t, map[string]any{
			"node":     nextID,
			"target":   dest,
			"lifetime": lifetime,
			"sleep":    sleep,
		})
		admitted = append(admitted, nextID)
		nextID++
	}

	a.logger.Debug("nodes admitted", "step", t, "count", len(admitted))
	return admitted, nil
}
