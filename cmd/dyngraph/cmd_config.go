package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/dyngraph/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dyngraph configuration",
		Long: `View and modify dyngraph configuration settings.

Configuration is read from ./dyngraph.yaml (or --config), then .env and
DYNGRAPH_* environment variables. 'set' only ever writes the YAML file.

Examples:
  dyngraph config list                      # Show effective settings
  dyngraph config get steps                 # Get a specific setting
  dyngraph config set steps 50              # Set a setting
  dyngraph config set redis.addr localhost:6379`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-18s %v\n", key+":", value)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultConfigFile
			}

			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return err
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := saveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, path)
			return nil
		},
	}
}

// configKeys lists every key understood by get and set, in display order.
var configKeys = []string{
	"steps", "lambda", "alpha", "beta", "arrival_rate",
	"seed_file", "random_seed", "debug_invariants",
	"output.dir", "output.prefix", "output.json", "output.html", "output.dgs", "output.sqlite",
	"redis.addr", "redis.ttl", "logging.level",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.SimConfig, key string) (interface{}, bool) {
	switch key {
	case "steps":
		return cfg.Steps, true
	case "lambda":
		return cfg.Lambda, true
	case "alpha":
		return cfg.Alpha, true
	case "beta":
		return cfg.Beta, true
	case "arrival_rate":
		return cfg.ArrivalRate, true
	case "seed_file":
		return cfg.SeedFile, true
	case "random_seed":
		return cfg.RandomSeed, true
	case "debug_invariants":
		return cfg.DebugInvariants, true
	case "output.dir":
		return cfg.Output.Dir, true
	case "output.prefix":
		return cfg.Output.Prefix, true
	case "output.json":
		return cfg.Output.JSON, true
	case "output.html":
		return cfg.Output.HTML, true
	case "output.dgs":
		return cfg.Output.DGS, true
	case "output.sqlite":
		return cfg.Output.SQLite, true
	case "redis.addr":
		return valueOrDefault(cfg.Redis.Addr, "(disabled)"), true
	case "redis.ttl":
		return cfg.Redis.TTL.String(), true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.SimConfig, key, value string) error {
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return f, nil
	}
	parseBool := func() bool { return value == "true" || value == "1" }

	var err error
	switch key {
	case "steps":
		n, convErr := strconv.Atoi(value)
		if convErr != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		cfg.Steps = n
	case "lambda":
		cfg.Lambda, err = parseFloat()
	case "alpha":
		cfg.Alpha, err = parseFloat()
	case "beta":
		cfg.Beta, err = parseFloat()
	case "arrival_rate":
		cfg.ArrivalRate, err = parseFloat()
	case "seed_file":
		cfg.SeedFile = value
	case "random_seed":
		n, convErr := strconv.ParseUint(value, 10, 64)
		if convErr != nil {
			return fmt.Errorf("invalid seed for %s: %s", key, value)
		}
		cfg.RandomSeed = n
	case "debug_invariants":
		cfg.DebugInvariants = parseBool()
	case "output.dir":
		cfg.Output.Dir = value
	case "output.prefix":
		cfg.Output.Prefix = value
	case "output.json":
		cfg.Output.JSON = parseBool()
	case "output.html":
		cfg.Output.HTML = parseBool()
	case "output.dgs":
		cfg.Output.DGS = parseBool()
	case "output.sqlite":
		cfg.Output.SQLite = parseBool()
	case "redis.addr":
		cfg.Redis.Addr = value
	case "redis.ttl":
		d, convErr := time.ParseDuration(value)
		if convErr != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Redis.TTL = d
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

// saveConfig writes the configuration as YAML to path.
func saveConfig(cfg *config.SimConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
