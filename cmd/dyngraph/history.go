package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/store"
)

// addHistoryFlags registers the flags shared by commands reading history.db.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", "", "Run history database (default <output.dir>/"+store.DefaultDBName+")")
	cmd.Flags().String("run", "", "Run id (default: most recent run)")
}

// openHistory opens the history database named by --db or the configured
// output directory. It never creates a database.
func openHistory(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(cfg.Output.Dir, store.DefaultDBName)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no run history at %s (run 'dyngraph run' first): %w", dbPath, err)
	}
	return store.NewSQLiteRunStore(dbPath)
}

// resolveRun returns the run named by --run, or the most recent one.
func resolveRun(ctx context.Context, cmd *cobra.Command, rs store.RunStore) (*store.Run, error) {
	id, _ := cmd.Flags().GetString("run")
	if id != "" {
		return rs.GetRun(ctx, id)
	}
	runs, err := rs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New("run history is empty")
	}
	return &runs[0], nil
}
