package visualization

import (
	"context"
	"fmt"
	"os"

	"github.com/nvandessel/dyngraph/internal/pathutil"
	"github.com/nvandessel/dyngraph/internal/snapshot"
)

// DefaultTitle heads every rendered page.
const DefaultTitle = "dyngraph"

// HTMLWriter is a snapshot.Writer that writes one page per step next to the
// JSON snapshots, linked to its neighbours with Prev/Next.
type HTMLWriter struct {
	dir      string
	prefix   string
	lastStep int
	title    string
}

// NewHTMLWriter creates dir if needed. lastStep is the final step of the run
// and decides whether a page gets a Next link.
func NewHTMLWriter(dir, prefix string, lastStep int, title string) (*HTMLWriter, error) {
	if err := pathutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	if title == "" {
		title = DefaultTitle
	}
	return &HTMLWriter{dir: dir, prefix: prefix, lastStep: lastStep, title: title}, nil
}

// Path returns the page a step is written to.
func (w *HTMLWriter) Path(step int) (string, error) {
	return pathutil.OutputFile(w.dir, PageName(w.prefix, step))
}

// WriteSnapshot implements snapshot.Writer.
func (w *HTMLWriter) WriteSnapshot(_ context.Context, s *snapshot.Snapshot) error {
	path, err := w.Path(s.Step)
	if err != nil {
		return err
	}
	page, err := RenderHTML(s, w.title, FileNav(w.prefix, s.Step, w.lastStep))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0644); err != nil {
		return fmt.Errorf("write page %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}
