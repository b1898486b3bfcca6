package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/visualization"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a recorded step",
		Long: `Render one step of a recorded run in DOT (Graphviz), JSON, or HTML format.

Examples:
  dyngraph render --step 5                       # DOT of step 5 of the latest run
  dyngraph render --step 5 --format json         # Graph JSON
  dyngraph render --run 3f2c... --format html    # Page for step 0, opened in a browser`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			step, _ := cmd.Flags().GetInt("step")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")

			rs, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := context.Background()
			run, err := resolveRun(ctx, cmd, rs)
			if err != nil {
				return err
			}
			snap, err := rs.LoadStep(ctx, run.ID, step)
			if err != nil {
				return err
			}

			switch visualization.Format(format) {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(snap))

			case visualization.FormatJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(visualization.RenderJSON(snap)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}

			case visualization.FormatHTML:
				page, err := visualization.RenderHTML(snap, visualization.DefaultTitle, visualization.PageNav{})
				if err != nil {
					return fmt.Errorf("render HTML: %w", err)
				}

				outPath := output
				if outPath == "" {
					outPath = filepath.Join(os.TempDir(), fmt.Sprintf("dyngraph-%s-%d.html", run.ID, step))
				}
				if err := os.WriteFile(outPath, page, 0644); err != nil {
					return fmt.Errorf("write HTML file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Step %d written to %s\n", step, outPath)

				if !noOpen {
					target, err := visualization.FileURL(outPath)
					if err == nil {
						err = visualization.OpenBrowser(target)
					}
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
					}
				}

			default:
				return fmt.Errorf("unsupported format %q (use 'dot', 'json', or 'html')", format)
			}

			return nil
		},
	}

	addHistoryFlags(cmd)
	cmd.Flags().Int("step", 0, "Time step to render")
	cmd.Flags().String("format", "dot", "Output format: dot, json, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (html format only)")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")

	return cmd
}
