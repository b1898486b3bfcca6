package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

// DefaultDBName is the history database created inside an output directory.
const DefaultDBName = "history.db"

// SQLiteRunStore implements RunStore on a single SQLite database file.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// CreateRun registers a run.
func (s *SQLiteRunStore) CreateRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, steps, lambda, alpha, beta, arrival_rate, random_seed, seed_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Steps,
		run.Lambda, run.Alpha, run.Beta, run.ArrivalRate,
		strconv.FormatUint(run.RandomSeed, 10), run.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `
	id, created_at, steps, lambda, alpha, beta, arrival_rate, random_seed, seed_file,
	COALESCE((SELECT MAX(step) FROM steps WHERE steps.run_id = runs.id), -1)`

// GetRun returns the run with the given id.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
		seed      string
		seedFile  sql.NullString
	)
	if err := row.Scan(&run.ID, &createdAt, &run.Steps, &run.Lambda, &run.Alpha, &run.Beta,
		&run.ArrivalRate, &seed, &seedFile, &run.LastStep); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, createdAt, err)
	}
	run.CreatedAt = t

	run.RandomSeed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad random_seed %q: %w", run.ID, seed, err)
	}
	run.SeedFile = seedFile.String
	return &run, nil
}

// SaveStep stores snap, replacing an earlier snapshot of the same step.
func (s *SQLiteRunStore) SaveStep(ctx context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, snap.RunID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("save step %d: %w: %s", snap.Step, ErrRunNotFound, snap.RunID)
	}

	for _, table := range []string{"step_edges", "step_nodes", "steps"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE run_id = ? AND step = ?`, snap.RunID, snap.Step); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	st := snap.Stats
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO steps (run_id, step, node_count, edge_count, arrived, woke, closed, expired, active, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.RunID, snap.Step, snap.NodeCount, snap.EdgeCount,
		st.Arrived, st.Woke, st.Closed, st.Expired, st.Active, st.ElapsedNS); err != nil {
		return fmt.Errorf("failed to insert step %d: %w", snap.Step, err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_nodes (run_id, step, node_id, grp, degree, lifetime, sleep)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range snap.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, snap.RunID, snap.Step, n.ID, n.Group, n.Degree, n.Lifetime, n.Sleep); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_edges (run_id, step, ord, source, target, value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for i, e := range snap.Edges {
		if _, err := edgeStmt.ExecContext(ctx, snap.RunID, snap.Step, i, e.Source, e.Target, e.Value); err != nil {
			return fmt.Errorf("failed to insert edge %d-%d: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// ListSteps returns the stored steps of a run in ascending order.
func (s *SQLiteRunStore) ListSteps(ctx context.Context, runID string) ([]StepSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, node_count, edge_count, arrived, woke, closed, expired, active, elapsed_ns
		FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []StepSummary
	for rows.Next() {
		sum := StepSummary{RunID: runID}
		st := &sum.Stats
		if err := rows.Scan(&sum.Step, &sum.NodeCount, &sum.EdgeCount,
			&st.Arrived, &st.Woke, &st.Closed, &st.Expired, &st.Active, &st.ElapsedNS); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, sum)
	}
	return steps, rows.Err()
}

// LoadStep rebuilds the snapshot stored for runID at step.
func (s *SQLiteRunStore) LoadStep(ctx context.Context, runID string, step int) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshot.Snapshot{RunID: runID, Step: step}
	st := &snap.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT node_count, edge_count, arrived, woke, closed, expired, active, elapsed_ns
		FROM steps WHERE run_id = ? AND step = ?`, runID, step).Scan(
		&snap.NodeCount, &snap.EdgeCount, &st.Arrived, &st.Woke, &st.Closed, &st.Expired, &st.Active, &st.ElapsedNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s step %d", ErrStepNotFound, runID, step)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query step: %w", err)
	}

	if snap.Nodes, err = s.loadNodes(ctx, runID, step, snap.NodeCount); err != nil {
		return nil, err
	}
	if snap.Edges, err = s.loadEdges(ctx, runID, step, snap.EdgeCount); err != nil {
		return nil, err
	}
	return snap, nil
}

// Rows are drained and closed before returning; the pool has one connection.
func (s *SQLiteRunStore) loadNodes(ctx context.Context, runID string, step, hint int) ([]snapshot.NodeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, grp, degree, lifetime, sleep
		FROM step_nodes WHERE run_id = ? AND step = ? ORDER BY node_id`, runID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]snapshot.NodeEntry, 0, hint)
	for rows.Next() {
		var n snapshot.NodeEntry
		if err := rows.Scan(&n.ID, &n.Group, &n.Degree, &n.Lifetime, &n.Sleep); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *SQLiteRunStore) loadEdges(ctx context.Context, runID string, step, hint int) ([]snapshot.EdgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, target, value
		FROM step_edges WHERE run_id = ? AND step = ? ORDER BY ord`, runID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make([]snapshot.EdgeEntry, 0, hint)
	for rows.Next() {
		var e snapshot.EdgeEntry
		if err := rows.Scan(&e.Source, &e.Target, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
