package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the steps of one run",
		Long: `Show the runs recorded in history.db.

With a run id, list that run's steps with node, edge and event counts.

Examples:
  dyngraph history                 # All runs, newest first
  dyngraph history 3f2c...         # Steps of one run
  dyngraph history --json          # Machine-readable`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			rs, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := rs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				steps, err := rs.ListSteps(ctx, run.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"run":   run,
						"steps": steps,
					})
				}
				printRun(cmd, run)
				printSteps(cmd, steps)
				return nil
			}

			runs, err := rs.ListRuns(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{"runs": runs})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSTEPS\tLAST\tLAMBDA\tALPHA\tBETA\tSEED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%g\t%g\t%g\t%d\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Steps, r.LastStep,
					r.Lambda, r.Alpha, r.Beta, r.RandomSeed)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("db", "", "Run history database (default <output.dir>/"+store.DefaultDBName+")")

	return cmd
}

func printRun(cmd *cobra.Command, run *store.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  seed file: %s, random seed: %d\n", run.SeedFile, run.RandomSeed)
	fmt.Fprintf(out, "  T=%d lambda=%g alpha=%g beta=%g arrival_rate=%g\n\n",
		run.Steps, run.Lambda, run.Alpha, run.Beta, run.ArrivalRate)
}

func printSteps(cmd *cobra.Command, steps []store.StepSummary) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tNODES\tEDGES\tACTIVE\tARRIVED\tWOKE\tCLOSED\tEXPIRED")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Step, s.NodeCount, s.EdgeCount, s.Stats.Active,
			s.Stats.Arrived, s.Stats.Woke, s.Stats.Closed, s.Stats.Expired)
	}
	tw.Flush()
}
