package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/config"
	"github.com/nvandessel/dyngraph/internal/logging"
	"github.com/nvandessel/dyngraph/internal/metrics"
	"github.com/nvandessel/dyngraph/internal/pathutil"
	"github.com/nvandessel/dyngraph/internal/publish"
	"github.com/nvandessel/dyngraph/internal/sampling"
	"github.com/nvandessel/dyngraph/internal/seed"
	"github.com/nvandessel/dyngraph/internal/simulation"
	"github.com/nvandessel/dyngraph/internal/snapshot"
	"github.com/nvandessel/dyngraph/internal/store"
	"github.com/nvandessel/dyngraph/internal/visualization"
)

// metricsFile holds the final collector values of a run in text format.
const metricsFile = "metrics.prom"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve the seed graph for a number of time steps",
		Long: `Load the seed edge list, then run the simulation for T steps.

Each step (including the seed graph as step 0) is written to the output
directory as <prefix><t>.json and <prefix><t>.json.html. The whole run is
exported as <prefix>.dgs and recorded in history.db for later rendering.

Examples:
  dyngraph run                                  # Use ./dyngraph.yaml or defaults
  dyngraph run --steps 10 --random-seed 42      # Reproducible 10-step run
  dyngraph run --seed-file edges.txt --verbose  # Print node table every step`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			verbose, _ := cmd.Flags().GetBool("verbose")
			open, _ := cmd.Flags().GetBool("open")
			runID, _ := cmd.Flags().GetString("run-id")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			report := io.Discard
			if !jsonOut {
				report = cmd.OutOrStdout()
			}
			summary, err := executeRun(ctx, cfg, runOptions{
				Report:  report,
				Log:     cmd.ErrOrStderr(),
				Verbose: verbose,
				RunID:   runID,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s finished: %d steps, %d nodes (%d active), %d edges\n",
				summary.RunID, summary.Steps, summary.Nodes, summary.Active, summary.Edges)
			fmt.Fprintf(cmd.OutOrStdout(), "Random seed %d. Artifacts in %s\n", summary.RandomSeed, summary.OutputDir)

			if open && summary.FirstPage != "" {
				target, err := visualization.FileURL(summary.FirstPage)
				if err == nil {
					err = visualization.OpenBrowser(target)
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, summary.FirstPage)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("steps", 0, "Number of time steps (overrides config)")
	cmd.Flags().String("seed-file", "", "Seed edge list (overrides config)")
	cmd.Flags().Uint64("random-seed", 0, "Random seed, 0 for time-based (overrides config)")
	cmd.Flags().Float64("lambda", 0, "Lifetime rate (overrides config)")
	cmd.Flags().Float64("alpha", 0, "Sleep-gap alpha, below 1 (overrides config)")
	cmd.Flags().Float64("beta", 0, "Sleep-gap beta (overrides config)")
	cmd.Flags().Float64("arrival-rate", 0, "Exponent of the arrival function (overrides config)")
	cmd.Flags().StringP("output", "o", "", "Output directory (overrides config)")
	cmd.Flags().String("redis", "", "Publish steps to this Redis address (overrides config)")
	cmd.Flags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")
	cmd.Flags().Bool("check-invariants", false, "Verify degree bookkeeping after every step")
	cmd.Flags().Bool("no-history", false, "Do not record the run in history.db")
	cmd.Flags().String("run-id", "", "Run id (default: random UUID)")
	cmd.Flags().BoolP("verbose", "v", false, "Print the node table and edge list every step")
	cmd.Flags().Bool("open", false, "Open the step 0 page in a browser when done")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.SimConfig) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("steps") {
		cfg.Steps, err = flags.GetInt("steps")
	}
	if err == nil && flags.Changed("seed-file") {
		cfg.SeedFile, err = flags.GetString("seed-file")
	}
	if err == nil && flags.Changed("random-seed") {
		cfg.RandomSeed, err = flags.GetUint64("random-seed")
	}
	if err == nil && flags.Changed("lambda") {
		cfg.Lambda, err = flags.GetFloat64("lambda")
	}
	if err == nil && flags.Changed("alpha") {
		cfg.Alpha, err = flags.GetFloat64("alpha")
	}
	if err == nil && flags.Changed("beta") {
		cfg.Beta, err = flags.GetFloat64("beta")
	}
	if err == nil && flags.Changed("arrival-rate") {
		cfg.ArrivalRate, err = flags.GetFloat64("arrival-rate")
	}
	if err == nil && flags.Changed("output") {
		cfg.Output.Dir, err = flags.GetString("output")
	}
	if err == nil && flags.Changed("redis") {
		cfg.Redis.Addr, err = flags.GetString("redis")
	}
	if err == nil && flags.Changed("log-level") {
		cfg.Logging.Level, err = flags.GetString("log-level")
	}
	if err == nil && flags.Changed("check-invariants") {
		cfg.DebugInvariants, err = flags.GetBool("check-invariants")
	}
	if err == nil && flags.Changed("no-history") {
		var noHistory bool
		noHistory, err = flags.GetBool("no-history")
		cfg.Output.SQLite = !noHistory
	}
	return err
}

// runOptions carries the writers of a run.
type runOptions struct {
	// Report receives the per-step console report.
	Report io.Writer

	// Log receives the structured log.
	Log io.Writer

	Verbose bool

	// RunID overrides the generated run id.
	RunID string
}

// runSummary is printed when a run finishes.
type runSummary struct {
	RunID      string   `json:"run_id"`
	Steps      int      `json:"steps"`
	RandomSeed uint64   `json:"random_seed"`
	Nodes      int      `json:"nodes"`
	Edges      int      `json:"edges"`
	Active     int      `json:"active"`
	OutputDir  string   `json:"output_dir"`
	FirstPage  string   `json:"first_page,omitempty"`
	Artifacts  []string `json:"artifacts"`
}

// executeRun loads the seed graph, wires every configured sink and runs the
// simulation to completion.
func executeRun(ctx context.Context, cfg *config.SimConfig, opts runOptions) (*runSummary, error) {
	logger := logging.NewLogger(cfg.Logging.Level, opts.Log)

	randomSeed := cfg.RandomSeed
	if randomSeed == 0 {
		randomSeed = uint64(time.Now().UnixNano())
	}
	sampler, err := sampling.NewSeeded(cfg.Sampling(), randomSeed)
	if err != nil {
		return nil, err
	}

	g, err := seed.LoadFile(cfg.SeedFile, sampler)
	if err != nil {
		return nil, fmt.Errorf("load seed graph: %w", err)
	}

	dir := cfg.Output.Dir
	if err := pathutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := &runSummary{
		RunID:      runID,
		Steps:      cfg.Steps,
		RandomSeed: randomSeed,
		OutputDir:  dir,
	}

	events := logging.NewEventLogger(dir, cfg.Logging.Level)
	defer events.Close()
	if events != nil {
		summary.Artifacts = append(summary.Artifacts, filepath.Join(dir, "events.jsonl"))
	}

	fanout := snapshot.NewFanout()
	if cfg.Output.JSON {
		w, err := snapshot.NewJSONWriter(dir, cfg.Output.Prefix)
		if err != nil {
			return nil, err
		}
		fanout.Add(w)
		summary.Artifacts = append(summary.Artifacts, filepath.Join(dir, snapshot.FileName(cfg.Output.Prefix, 0)))
	}
	if cfg.Output.HTML {
		w, err := visualization.NewHTMLWriter(dir, cfg.Output.Prefix, cfg.Steps, "")
		if err != nil {
			return nil, err
		}
		fanout.Add(w)
		if summary.FirstPage, err = w.Path(0); err != nil {
			return nil, err
		}
		summary.Artifacts = append(summary.Artifacts, summary.FirstPage)
	}
	if cfg.Output.DGS {
		w, err := visualization.NewDGSWriter(dir, cfg.Output.Prefix)
		if err != nil {
			return nil, err
		}
		fanout.Add(w)
		summary.Artifacts = append(summary.Artifacts, w.Path())
	}
	if cfg.Output.SQLite {
		rs, err := store.NewSQLiteRunStore(filepath.Join(dir, store.DefaultDBName))
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		defer rs.Close()

		if err := rs.CreateRun(ctx, store.Run{
			ID:          runID,
			CreatedAt:   time.Now(),
			Steps:       cfg.Steps,
			Lambda:      cfg.Lambda,
			Alpha:       cfg.Alpha,
			Beta:        cfg.Beta,
			ArrivalRate: cfg.ArrivalRate,
			RandomSeed:  randomSeed,
			SeedFile:    cfg.SeedFile,
		}); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		fanout.Add(store.Writer(rs))
		summary.Artifacts = append(summary.Artifacts, rs.Path())
	}
	if cfg.Redis.Addr != "" {
		client, err := publish.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		fanout.Add(publish.NewPublisher(client, cfg.Redis.TTL))
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	driver, err := simulation.NewDriver(g, sampler, simulation.Config{
		Steps:           cfg.Steps,
		ArrivalRate:     cfg.ArrivalRate,
		CheckInvariants: cfg.DebugInvariants,
	}, simulation.Options{
		RunID:  runID,
		Logger: logger,
		Events: events,
		Sinks: []simulation.Sink{
			recorder,
			fanout,
			&consoleReport{w: opts.Report, verbose: opts.Verbose},
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run starting", "run", runID, "steps", cfg.Steps, "seed_nodes", g.Len(),
		"random_seed", randomSeed, "sinks", fanout.Len())

	if err := driver.Run(ctx); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	promPath, err := pathutil.OutputFile(dir, metricsFile)
	if err != nil {
		return nil, err
	}
	if err := prometheus.WriteToTextfile(promPath, reg); err != nil {
		return nil, fmt.Errorf("write metrics: %w", err)
	}
	summary.Artifacts = append(summary.Artifacts, promPath)

	final := driver.Graph()
	summary.Nodes = final.Len()
	summary.Edges = final.EdgeCount()
	summary.Active = final.ActiveCount()
	return summary, nil
}
