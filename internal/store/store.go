// Package store defines the RunStore interface for persisting simulation run
// history: run parameters and every step's node states and edges.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

var (
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")

	// ErrStepNotFound is returned when a run has no snapshot for a step.
	ErrStepNotFound = errors.New("step not found")
)

// Run describes one simulation run.
type Run struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Steps       int       `json:"steps"` // configured T
	Lambda      float64   `json:"lambda"`
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	ArrivalRate float64   `json:"arrival_rate"`
	RandomSeed  uint64    `json:"random_seed"`
	SeedFile    string    `json:"seed_file"`

	// LastStep is the highest stored step, -1 when nothing was stored yet.
	LastStep int `json:"last_step"`
}

// StepSummary is the per-step row without node and edge lists.
type StepSummary struct {
	RunID     string         `json:"run_id"`
	Step      int            `json:"step"`
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	Stats     snapshot.Stats `json:"stats"`
}

// RunStore persists runs and their step snapshots.
type RunStore interface {
	// CreateRun registers a run. The id must be unique.
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]Run, error)

	// SaveStep stores a snapshot under its run id, replacing any previous
	// snapshot for the same step.
	SaveStep(ctx context.Context, snap *snapshot.Snapshot) error
	ListSteps(ctx context.Context, runID string) ([]StepSummary, error)
	LoadStep(ctx context.Context, runID string, step int) (*snapshot.Snapshot, error)

	Close() error
}

// Writer adapts a RunStore to snapshot.Writer so it can sit in a fanout.
func Writer(s RunStore) snapshot.Writer {
	return stepWriter{store: s}
}

type stepWriter struct {
	store RunStore
}

func (w stepWriter) WriteSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	return w.store.SaveStep(ctx, snap)
}
