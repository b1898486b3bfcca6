// Package config provides unified configuration loading for dyngraph.
// It supports loading from YAML files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/dyngraph/internal/evolution"
	"github.com/nvandessel/dyngraph/internal/sampling"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "dyngraph.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DYNGRAPH_"

// SimConfig contains all dyngraph configuration settings.
type SimConfig struct {
	// Steps is the number of time steps T.
	Steps int `json:"steps" yaml:"steps"`

	// Lambda is the rate of the exponential lifetime distribution.
	Lambda float64 `json:"lambda" yaml:"lambda"`

	// Alpha and Beta shape the sleep-gap distribution. Alpha must stay below 1.
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`

	// ArrivalRate is the exponent of N(t) = round(exp(rate·t)).
	ArrivalRate float64 `json:"arrival_rate" yaml:"arrival_rate"`

	// SeedFile is the edge list the initial graph is built from.
	SeedFile string `json:"seed_file" yaml:"seed_file"`

	// RandomSeed seeds the run's random stream. 0 picks a time-based seed.
	RandomSeed uint64 `json:"random_seed" yaml:"random_seed"`

	// DebugInvariants checks graph invariants after every step.
	DebugInvariants bool `json:"debug_invariants" yaml:"debug_invariants"`

	Output  OutputConfig  `json:"output" yaml:"output"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// OutputConfig selects the artifacts written per step.
type OutputConfig struct {
	// Dir holds every artifact of a run.
	Dir string `json:"dir" yaml:"dir"`

	// Prefix names step files: <prefix><t>.json, <prefix><t>.json.html, <prefix>.dgs.
	Prefix string `json:"prefix" yaml:"prefix"`

	JSON bool `json:"json" yaml:"json"`
	HTML bool `json:"html" yaml:"html"`
	DGS  bool `json:"dgs" yaml:"dgs"`

	// SQLite records the run in <dir>/history.db.
	SQLite bool `json:"sqlite" yaml:"sqlite"`
}

// RedisConfig configures the step publisher. An empty Addr disables it.
type RedisConfig struct {
	Addr string        `json:"addr,omitempty" yaml:"addr,omitempty"`
	TTL  time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// LoggingConfig configures dyngraph's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the event log in <output.dir>/events.jsonl.
	// "trace" additionally logs every node visited by the wake cycle.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SimConfig with the parameters of the reference runs.
func Default() *SimConfig {
	return &SimConfig{
		Steps:       30,
		Lambda:      0.0092,
		Alpha:       0.84,
		Beta:        0.0020,
		ArrivalRate: evolution.DefaultArrivalRate,
		SeedFile:    "SeedGraph/network.dat",
		Output: OutputConfig{
			Dir:    "networkEvolution",
			Prefix: "network",
			JSON:   true,
			HTML:   true,
			DGS:    true,
			SQLite: true,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path and the environment.
// Order: defaults -> path (or ./dyngraph.yaml if present) -> .env -> DYNGRAPH_* variables.
func Load(path string) (*SimConfig, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the file
// leaves out keep their defaults.
func LoadFromFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.SeedFile = expandEnvVars(config.SeedFile)
	config.Output.Dir = expandEnvVars(config.Output.Dir)
	config.Redis.Addr = expandEnvVars(config.Redis.Addr)

	return config, nil
}

// Sampling returns the distribution parameters.
func (c *SimConfig) Sampling() sampling.Params {
	return sampling.Params{Lambda: c.Lambda, Alpha: c.Alpha, Beta: c.Beta}
}

// Validate checks that the configuration is valid.
func (c *SimConfig) Validate() error {
	if c.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", c.Steps)
	}
	if err := c.Sampling().Validate(); err != nil {
		return err
	}
	if c.ArrivalRate < 0 {
		return fmt.Errorf("arrival_rate must be non-negative, got %v", c.ArrivalRate)
	}
	if c.SeedFile == "" {
		return fmt.Errorf("seed_file is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.Prefix == "" || strings.ContainsAny(c.Output.Prefix, `/\`) {
		return fmt.Errorf("invalid output.prefix: %q", c.Output.Prefix)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl must be non-negative, got %v", c.Redis.TTL)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are reported rather than ignored.
func applyEnvOverrides(config *SimConfig) error {
	var errs []error
	intVar := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolVar := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	stringVar := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	intVar("STEPS", &config.Steps)
	floatVar("LAMBDA", &config.Lambda)
	floatVar("ALPHA", &config.Alpha)
	floatVar("BETA", &config.Beta)
	floatVar("ARRIVAL_RATE", &config.ArrivalRate)
	stringVar("SEED_FILE", &config.SeedFile)
	if v := os.Getenv(EnvPrefix + "RANDOM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRANDOM_SEED: %w", EnvPrefix, err))
		} else {
			config.RandomSeed = n
		}
	}
	boolVar("DEBUG_INVARIANTS", &config.DebugInvariants)

	stringVar("OUTPUT_DIR", &config.Output.Dir)
	stringVar("OUTPUT_PREFIX", &config.Output.Prefix)
	boolVar("OUTPUT_JSON", &config.Output.JSON)
	boolVar("OUTPUT_HTML", &config.Output.HTML)
	boolVar("OUTPUT_DGS", &config.Output.DGS)
	boolVar("OUTPUT_SQLITE", &config.Output.SQLite)

	stringVar("REDIS_ADDR", &config.Redis.Addr)
	if v := os.Getenv(EnvPrefix + "REDIS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREDIS_TTL: %w", EnvPrefix, err))
		} else {
			config.Redis.TTL = d
		}
	}

	stringVar("LOG_LEVEL", &config.Logging.Level)

	return errors.Join(errs...)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
