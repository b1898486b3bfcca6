package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/logging"
	"github.com/nvandessel/dyngraph/internal/sampling"
)

// WakeStats counts what happened during one wake pass.
type WakeStats struct {
	// Expired is the number of nodes whose lifetime ran out this step.
	Expired int `json:"expired"`

	// Woke is the number of wake events.
	Woke int `json:"woke"`

	// Closed is the number of wake events that formed a two-hop edge.
	Closed int `json:"closed"`
}

// WakeCycle advances every active node's countdowns and lets waking nodes
// close a triangle via the random-random model.
type WakeCycle struct {
	sampler *sampling.Sampler
	logger  *slog.Logger
	events  *logging.EventLogger
}

// NewWakeCycle creates the wake engine. logger and events may be nil.
func NewWakeCycle(s *sampling.Sampler, logger *slog.Logger, events *logging.EventLogger) *WakeCycle {
	return &WakeCycle{
		sampler: s,
		logger:  logging.OrDiscard(logger),
		events:  events,
	}
}

// Advance runs one pass over g in ascending id order.
//
// Mutations are applied in place during the pass: an edge formed by an
// earlier node changes the degree and neighborhood a later node sees in the
// same pass.
func (w *WakeCycle) Advance(g *graph.State, t int) (WakeStats, error) {
	var stats WakeStats
	var err error

	g.Each(func(n *graph.Node) bool {
		if !n.Active() {
			return true
		}

		n.Lifetime--
		if n.Lifetime <= 0 {
			stats.Expired++
			w.events.Log("expire", t, map[string]any{"node": n.ID})
			return true
		}

		n.Sleep--
		if n.Sleep != 0 {
			return true
		}

		stats.Woke++
		target, ok := w.closeTriangle(g, n.ID)
		if ok {
			if _, err = g.AddEdge(n.ID, target); err != nil {
				err = fmt.Errorf("wake node %d at step %d: %w", n.ID, t, err)
				return false
			}
			stats.Closed++
			w.logger.Log(context.Background(), logging.LevelTrace, "two-hop edge formed", "step", t, "node", n.ID, "target", target)
			w.events.Log("triangle-close", t, map[string]any{"node": n.ID, "target": target})
		} else {
			w.events.Log("wake", t, map[string]any{"node": n.ID})
		}

		n.Sleep = w.sampler.TimeGap(n.Degree, n.Lifetime)
		return true
	})

	if err != nil {
		return stats, err
	}
	w.logger.Debug("wake cycle", "step", t, "woke", stats.Woke, "closed", stats.Closed, "expired", stats.Expired)
	return stats, nil
}

// closeTriangle picks a uniform neighbor of id, then a uniform neighbor of
// that node other than id. ok is false when either hop has no candidate.
func (w *WakeCycle) closeTriangle(g *graph.State, id int) (target int, ok bool) {
	oneHop, ok := w.pickNeighbor(g, id, id)
	if !ok {
		return 0, false
	}
	return w.pickNeighbor(g, oneHop, oneHop, id)
}

// pickNeighbor draws uniformly among the neighbors of id that are not in exclude.
func (w *WakeCycle) pickNeighbor(g *graph.State, id int, exclude ...int) (int, bool) {
	nbrs := g.Neighbors(id)
	candidates := nbrs[:0]
	for _, v := range nbrs {
		if !slices.Contains(exclude, v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[w.sampler.Pick(len(candidates))], true
}
