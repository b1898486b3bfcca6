package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

// InMemoryRunStore implements RunStore for testing and throwaway runs.
type InMemoryRunStore struct {
	mu    sync.RWMutex
	runs  map[string]Run
	steps map[string]map[int]*snapshot.Snapshot
}

// NewInMemoryRunStore creates an empty store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:  make(map[string]Run),
		steps: make(map[string]map[int]*snapshot.Snapshot),
	}
}

// CreateRun registers a run.
func (s *InMemoryRunStore) CreateRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	s.runs[run.ID] = run
	s.steps[run.ID] = make(map[int]*snapshot.Snapshot)
	return nil
}

// GetRun returns the run with the given id.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run.LastStep = s.lastStep(id)
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for id, run := range s.runs {
		run.LastStep = s.lastStep(id)
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

// lastStep must be called with the lock held.
func (s *InMemoryRunStore) lastStep(runID string) int {
	last := -1
	for step := range s.steps[runID] {
		if step > last {
			last = step
		}
	}
	return last
}

// SaveStep stores a deep copy of snap.
func (s *InMemoryRunStore) SaveStep(ctx context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.steps[snap.RunID]
	if !ok {
		return fmt.Errorf("save step %d: %w: %s", snap.Step, ErrRunNotFound, snap.RunID)
	}
	steps[snap.Step] = copySnapshot(snap)
	return nil
}

// ListSteps returns the stored steps of a run in ascending order.
func (s *InMemoryRunStore) ListSteps(ctx context.Context, runID string) ([]StepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.steps[runID]
	out := make([]StepSummary, 0, len(steps))
	for _, snap := range steps {
		out = append(out, StepSummary{
			RunID:     runID,
			Step:      snap.Step,
			NodeCount: snap.NodeCount,
			EdgeCount: snap.EdgeCount,
			Stats:     snap.Stats,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// LoadStep returns a copy of the stored snapshot.
func (s *InMemoryRunStore) LoadStep(ctx context.Context, runID string, step int) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.steps[runID][step]
	if !ok {
		return nil, fmt.Errorf("%w: run %s step %d", ErrStepNotFound, runID, step)
	}
	return copySnapshot(snap), nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error {
	return nil
}

func copySnapshot(snap *snapshot.Snapshot) *snapshot.Snapshot {
	c := *snap
	c.Nodes = slices.Clone(snap.Nodes)
	c.Edges = slices.Clone(snap.Edges)
	return &c
}
