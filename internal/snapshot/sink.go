package snapshot

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nvandessel/dyngraph/internal/pathutil"
	"github.com/nvandessel/dyngraph/internal/simulation"
)

// Writer consumes captured snapshots.
type Writer interface {
	WriteSnapshot(ctx context.Context, s *Snapshot) error
}

// Fanout is a simulation.Sink that captures each step once and hands the
// snapshot to every writer in order. Writers implementing
// simulation.Finisher are finished when the run ends.
type Fanout struct {
	writers []Writer
}

// NewFanout creates a sink over writers. Nil writers are skipped.
func NewFanout(writers ...Writer) *Fanout {
	f := &Fanout{}
	for _, w := range writers {
		if w != nil {
			f.writers = append(f.writers, w)
		}
	}
	return f
}

// Add registers another writer.
func (f *Fanout) Add(w Writer) {
	if w != nil {
		f.writers = append(f.writers, w)
	}
}

// Len returns the number of registered writers.
func (f *Fanout) Len() int { return len(f.writers) }

// ObserveStep implements simulation.Sink.
func (f *Fanout) ObserveStep(ctx context.Context, res simulation.StepResult) error {
	if len(f.writers) == 0 {
		return nil
	}
	snap := Capture(res)
	for _, w := range f.writers {
		if err := w.WriteSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("writer %T: %w", w, err)
		}
	}
	return nil
}

// Finish implements simulation.Finisher.
func (f *Fanout) Finish(ctx context.Context) error {
	for _, w := range f.writers {
		fin, ok := w.(simulation.Finisher)
		if !ok {
			continue
		}
		if err := fin.Finish(ctx); err != nil {
			return fmt.Errorf("finish writer %T: %w", w, err)
		}
	}
	return nil
}

// JSONWriter writes each snapshot to <dir>/<prefix><step>.json.
type JSONWriter struct {
	dir    string
	prefix string
}

// NewJSONWriter creates dir if needed.
func NewJSONWriter(dir, prefix string) (*JSONWriter, error) {
	if err := pathutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &JSONWriter{dir: dir, prefix: prefix}, nil
}

// Path returns the file a step is written to.
func (w *JSONWriter) Path(step int) (string, error) {
	return pathutil.OutputFile(w.dir, FileName(w.prefix, step))
}

// WriteSnapshot implements Writer.
func (w *JSONWriter) WriteSnapshot(_ context.Context, s *Snapshot) error {
	path, err := w.Path(s.Step)
	if err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}

// Collector keeps every snapshot in memory. It is safe for concurrent use.
type Collector struct {
	mu    sync.RWMutex
	snaps []*Snapshot
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// WriteSnapshot implements Writer.
func (c *Collector) WriteSnapshot(_ context.Context, s *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
	return nil
}

// Snapshots returns the collected snapshots in step order.
func (c *Collector) Snapshots() []*Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Snapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

// Step returns the snapshot for step.
func (c *Collector) Step(step int) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.snaps {
		if s.Step == step {
			return s, true
		}
	}
	return nil, false
}
