package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/visualization"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse a recorded run in a local web viewer",
		Long: `Start a local HTTP server over the run history.

Routes:
  /               step index of the run
  /step/{t}       force-directed page of step t
  /api/run        run parameters (JSON)
  /api/steps      step summaries (JSON)
  /api/step/{t}   full snapshot of step t (JSON)
  /metrics        Prometheus metrics of the viewer process`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			noOpen, _ := cmd.Flags().GetBool("no-open")

			rs, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			run, err := resolveRun(ctx, cmd, rs)
			if err != nil {
				return err
			}

			srv := visualization.NewServer(rs, run.ID, prometheus.DefaultGatherer)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

			// Wait for server to start
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) && srv.Addr() == "" {
				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("server error: %w", err)
					}
					return nil
				case <-time.After(10 * time.Millisecond):
				}
			}

			listen := srv.Addr()
			if listen == "" {
				return fmt.Errorf("server failed to start")
			}

			url := "http://" + listen
			fmt.Fprintf(cmd.OutOrStdout(), "Viewer for run %s running at %s\n", run.ID, url)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

			if !noOpen {
				if err := visualization.OpenBrowser(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
				}
			}

			// Block until server exits
			if err := <-errCh; err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	addHistoryFlags(cmd)
	cmd.Flags().String("addr", "", "Listen address (default: a free localhost port)")
	cmd.Flags().Bool("no-open", false, "Don't open browser after starting")

	return cmd
}
