package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/dyngraph/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dyngraph",
		Short: "Dyngraph - microscopic evolution of social contact graphs",
		Long: `dyngraph grows a social contact graph from a seed edge list.

Every time step, awake nodes close triangles with friends of friends,
nodes whose lifetime ran out stop taking part, and new nodes arrive
attached to existing ones in proportion to their degree. Each step is
written out as JSON, an HTML page, a DGS event stream and a history row.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultConfigFile+" if present)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRenderCmd(),
		newHistoryCmd(),
		newServeCmd(),
		newWatchCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// loadConfig loads the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.SimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
