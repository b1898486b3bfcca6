package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/dyngraph/internal/evolution"
	"github.com/nvandessel/dyngraph/internal/graph"
	"github.com/nvandessel/dyngraph/internal/logging"
	"github.com/nvandessel/dyngraph/internal/sampling"
)

// Config holds the fixed parameters of a run.
type Config struct {
	// Steps is the total number of time steps T. Must be at least 1.
	Steps int

	// ArrivalRate is the exponent of N(t) = round(exp(rate·t)).
	ArrivalRate float64

	// CheckInvariants verifies degree bookkeeping after every step and
	// aborts the run on the first violation.
	CheckInvariants bool
}

// Options wires optional collaborators into a Driver.
type Options struct {
	// RunID identifies the run to sinks. A random UUID is used when empty.
	RunID string

	Logger *slog.Logger
	Events *logging.EventLogger

	// Sinks receive every step's result in registration order.
	Sinks []Sink
}

// Sink consumes the graph produced by a step. The graph is only valid for
// the duration of the call; sinks that keep data must copy it.
type Sink interface {
	ObserveStep(ctx context.Context, res StepResult) error
}

// Finisher is implemented by sinks that write something once the run ends.
type Finisher interface {
	Finish(ctx context.Context) error
}

// StepResult is what a single step hands to the sinks.
type StepResult struct {
	RunID string
	Step  int
	Graph *graph.State

	// NewNodes lists the ids admitted during this step. For step 0 it lists
	// every seed node.
	NewNodes []int

	Wake    evolution.WakeStats
	Elapsed time.Duration
}

// NewNodeSet returns NewNodes as a lookup set.
func (r StepResult) NewNodeSet() map[int]bool {
	set := make(map[int]bool, len(r.NewNodes))
	for _, id := range r.NewNodes {
		set[id] = true
	}
	return set
}

// Driver runs the per-step sequence over one graph with one random stream.
// It is not safe for concurrent use; independent drivers may run in parallel.
type Driver struct {
	cfg      Config
	runID    string
	graph    *graph.State
	arrivals *evolution.Arrivals
	wake     *evolution.WakeCycle
	sinks    []Sink
	logger   *slog.Logger
	events   *logging.EventLogger

	phase Phase
	step  int
}

// NewDriver creates a driver in the Seeded phase. g must contain at least
// one node with valid attributes.
func NewDriver(g *graph.State, s *sampling.Sampler, cfg Config, opts Options) (*Driver, error) {
	if g == nil || g.Len() == 0 {
		return nil, fmt.Errorf("new driver: %w", graph.ErrEmptyGraph)
	}
	if s == nil {
		return nil, errors.New("new driver: sampler is required")
	}
	if cfg.Steps < 1 {
		return nil, fmt.Errorf("new driver: steps must be at least 1, got %d", cfg.Steps)
	}
	if cfg.ArrivalRate < 0 {
		return nil, fmt.Errorf("new driver: arrival rate must be non-negative, got %v", cfg.ArrivalRate)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := logging.OrDiscard(opts.Logger).With("run", runID)

	return &Driver{
		cfg:      cfg,
		runID:    runID,
		graph:    g,
		arrivals: evolution.NewArrivals(s, cfg.ArrivalRate, logger, opts.Events),
		wake:     evolution.NewWakeCycle(s, logger, opts.Events),
		sinks:    opts.Sinks,
		logger:   logger,
		events:   opts.Events,
		phase:    PhaseSeeded,
	}, nil
}

// RunID returns the identifier passed to sinks.
func (d *Driver) RunID() string { return d.runID }

// Phase returns the current lifecycle phase.
func (d *Driver) Phase() Phase { return d.phase }

// Step returns the last completed step, 0 before stepping starts.
func (d *Driver) Step() int { return d.step }

// Graph returns the live graph.
func (d *Driver) Graph() *graph.State { return d.graph }

// Run emits the seed graph as step 0, then advances through every step
// until Done. It returns the context's error if cancelled between steps.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	for d.phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("run cancelled", "step", d.step)
			return err
		}
		if _, err := d.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start validates the seed graph, hands it to the sinks as step 0 and
// moves the driver into the Stepping phase.
func (d *Driver) Start(ctx context.Context) error {
	if err := transition(d.phase, PhaseStepping); err != nil {
		return err
	}
	if d.cfg.CheckInvariants {
		if err := d.graph.CheckInvariants(); err != nil {
			return fmt.Errorf("seed graph: %w", err)
		}
	}

	seedIDs := make([]int, 0, d.graph.Len())
	d.graph.Each(func(n *graph.Node) bool {
		seedIDs = append(seedIDs, n.ID)
		return true
	})

	d.phase = PhaseStepping
	d.logger.Info("simulation started", "nodes", d.graph.Len(), "edges", d.graph.EdgeCount(), "steps", d.cfg.Steps)
	return d.emit(ctx, StepResult{RunID: d.runID, Step: 0, Graph: d.graph, NewNodes: seedIDs})
}

// Advance runs the next step: wake cycle, degree snapshot, admission. The
// final step moves the driver to Done and lets finishing sinks flush.
func (d *Driver) Advance(ctx context.Context) (StepResult, error) {
	if err := requirePhase(d.phase, PhaseStepping, "advance"); err != nil {
		return StepResult{}, err
	}
	t := d.step + 1
	start := time.Now()

	wake, err := d.wake.Advance(d.graph, t)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", t, err)
	}

	snap := d.graph.CumulativeDegrees()
	admitted, err := d.arrivals.Admit(d.graph, t, snap)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", t, err)
	}

	if d.cfg.CheckInvariants {
		if err := d.graph.CheckInvariants(); err != nil {
			return StepResult{}, fmt.Errorf("step %d: %w", t, err)
		}
	}

	d.step = t
	res := StepResult{
		RunID:    d.runID,
		Step:     t,
		Graph:    d.graph,
		NewNodes: admitted,
		Wake:     wake,
		Elapsed:  time.Since(start),
	}

	d.events.Log("step", t, map[string]any{
		"nodes":   d.graph.Len(),
		"edges":   d.graph.EdgeCount(),
		"arrived": len(admitted),
		"woke":    wake.Woke,
		"closed":  wake.Closed,
		"expired": wake.Expired,
	})
	d.logger.Info("step complete",
		"step", t,
		"nodes", d.graph.Len(),
		"edges", d.graph.EdgeCount(),
		"arrived", len(admitted),
		"woke", wake.Woke,
		"closed", wake.Closed,
		"expired", wake.Expired,
	)
	d.traceNodes(ctx, t)

	if err := d.emit(ctx, res); err != nil {
		return res, err
	}

	if t == d.cfg.Steps {
		if err := transition(d.phase, PhaseDone); err != nil {
			return res, err
		}
		d.phase = PhaseDone
		if err := d.finish(ctx); err != nil {
			return res, err
		}
		d.logger.Info("simulation done", "steps", t, "nodes", d.graph.Len(), "edges", d.graph.EdgeCount())
	}
	return res, nil
}

func (d *Driver) emit(ctx context.Context, res StepResult) error {
	for _, s := range d.sinks {
		if err := s.ObserveStep(ctx, res); err != nil {
			return fmt.Errorf("step %d: sink %T: %w", res.Step, s, err)
		}
	}
	return nil
}

func (d *Driver) finish(ctx context.Context) error {
	for _, s := range d.sinks {
		f, ok := s.(Finisher)
		if !ok {
			continue
		}
		if err := f.Finish(ctx); err != nil {
			return fmt.Errorf("finish sink %T: %w", s, err)
		}
	}
	return nil
}

// traceNodes logs every node's countdowns at trace level.
func (d *Driver) traceNodes(ctx context.Context, t int) {
	if !d.logger.Enabled(ctx, logging.LevelTrace) {
		return
	}
	d.graph.Each(func(n *graph.Node) bool {
		d.logger.Log(ctx, logging.LevelTrace, "node",
			"step", t, "id", n.ID, "degree", n.Degree, "lifetime", n.Lifetime, "sleep", n.Sleep)
		return true
	})
}
