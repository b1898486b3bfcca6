package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/publish"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Follow a run published to Redis",
		Long: `Print the steps a running 'dyngraph run --redis' publishes, as they happen.

Steps already published are listed first. The command exits when the run
announces that it is done, or on Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			addr, _ := cmd.Flags().GetString("redis")
			runID := args[0]

			if addr == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				addr = cfg.Redis.Addr
			}
			if addr == "" {
				return errors.New("no Redis address (set --redis or redis.addr)")
			}

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			client, err := publish.Dial(ctx, addr)
			if err != nil {
				return err
			}
			defer client.Close()
			pub := publish.NewPublisher(client, 0)

			// Subscribe before listing so no step falls in between.
			sub, err := pub.Subscribe(ctx, runID)
			if err != nil {
				return err
			}
			defer sub.Close()

			// A run that finished before we subscribed never sends its done
			// event again. Checked before listing so the list is complete.
			last, finished, err := pub.Done(ctx, runID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			seen := make(map[int]bool)
			published, err := pub.Steps(ctx, runID)
			if err != nil {
				return err
			}
			for _, step := range published {
				snap, err := pub.LoadStep(ctx, runID, step)
				if errors.Is(err, publish.ErrStepNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				seen[step] = true
				printEvent(out, jsonOut, publish.StepEvent{
					RunID: runID, Step: step, NodeCount: snap.NodeCount,
					EdgeCount: snap.EdgeCount, Stats: snap.Stats,
				})
			}

			if finished {
				printDone(out, jsonOut, publish.StepEvent{RunID: runID, Step: last, Done: true})
				return nil
			}

			for {
				ev, err := sub.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if ev.Done {
					printDone(out, jsonOut, ev)
					return nil
				}
				if seen[ev.Step] {
					continue
				}
				seen[ev.Step] = true
				printEvent(out, jsonOut, ev)
			}
		},
	}

	cmd.Flags().String("redis", "", "Redis address (default redis.addr from config)")

	return cmd
}

func printDone(w io.Writer, jsonOut bool, ev publish.StepEvent) {
	if jsonOut {
		printEvent(w, true, ev)
		return
	}
	fmt.Fprintf(w, "Run %s done after step %d\n", ev.RunID, ev.Step)
}

func printEvent(w io.Writer, jsonOut bool, ev publish.StepEvent) {
	if jsonOut {
		json.NewEncoder(w).Encode(ev)
		return
	}
	fmt.Fprintf(w, "Time: %d  %d nodes, %d edges, %d active | arrived %d, closed %d, expired %d\n",
		ev.Step, ev.NodeCount, ev.EdgeCount, ev.Stats.Active, ev.Stats.Arrived, ev.Stats.Closed, ev.Stats.Expired)
}
