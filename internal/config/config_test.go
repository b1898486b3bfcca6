package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Steps != 30 {
		t.Errorf("expected Steps 30, got %d", config.Steps)
	}
	if config.Lambda != 0.0092 || config.Alpha != 0.84 || config.Beta != 0.0020 {
		t.Errorf("unexpected distribution defaults: lambda=%v alpha=%v beta=%v",
			config.Lambda, config.Alpha, config.Beta)
	}
	if config.ArrivalRate != 0.25 {
		t.Errorf("expected ArrivalRate 0.25, got %v", config.ArrivalRate)
	}
	if config.RandomSeed != 0 {
		t.Errorf("expected time-based RandomSeed 0, got %d", config.RandomSeed)
	}
	if config.Output.Dir != "networkEvolution" || config.Output.Prefix != "network" {
		t.Errorf("unexpected output defaults: %+v", config.Output)
	}
	if !config.Output.JSON || !config.Output.HTML || !config.Output.DGS || !config.Output.SQLite {
		t.Errorf("expected every artifact enabled by default: %+v", config.Output)
	}
	if config.Redis.Addr != "" {
		t.Errorf("expected Redis disabled by default, got %q", config.Redis.Addr)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dyngraph.yaml")

	configContent := `
steps: 12
alpha: 0.5
random_seed: 42
output:
  dir: out
  html: false
redis:
  addr: localhost:6379
  ttl: 1h
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Steps != 12 {
		t.Errorf("expected Steps 12, got %d", config.Steps)
	}
	if config.Alpha != 0.5 {
		t.Errorf("expected Alpha 0.5, got %v", config.Alpha)
	}
	if config.Lambda != 0.0092 {
		t.Errorf("expected Lambda to keep its default, got %v", config.Lambda)
	}
	if config.RandomSeed != 42 {
		t.Errorf("expected RandomSeed 42, got %d", config.RandomSeed)
	}
	if config.Output.Dir != "out" || config.Output.HTML {
		t.Errorf("unexpected output: %+v", config.Output)
	}
	if !config.Output.JSON {
		t.Error("expected Output.JSON to keep its default")
	}
	if config.Redis.Addr != "localhost:6379" || config.Redis.TTL != time.Hour {
		t.Errorf("unexpected redis: %+v", config.Redis)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("steps: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dyngraph.yaml")
	if err := os.WriteFile(configPath, []byte("seed_file: ${TEST_SEED_DIR}/network.dat\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("TEST_SEED_DIR", "/data/seeds")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.SeedFile != "/data/seeds/network.dat" {
		t.Errorf("expected expanded SeedFile, got '%s'", config.SeedFile)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DYNGRAPH_STEPS", "7")
	t.Setenv("DYNGRAPH_LAMBDA", "0.05")
	t.Setenv("DYNGRAPH_RANDOM_SEED", "99")
	t.Setenv("DYNGRAPH_OUTPUT_DGS", "false")
	t.Setenv("DYNGRAPH_REDIS_ADDR", "redis:6379")
	t.Setenv("DYNGRAPH_REDIS_TTL", "30m")
	t.Setenv("DYNGRAPH_LOG_LEVEL", "trace")

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides failed: %v", err)
	}

	if config.Steps != 7 {
		t.Errorf("expected Steps 7, got %d", config.Steps)
	}
	if config.Lambda != 0.05 {
		t.Errorf("expected Lambda 0.05, got %v", config.Lambda)
	}
	if config.RandomSeed != 99 {
		t.Errorf("expected RandomSeed 99, got %d", config.RandomSeed)
	}
	if config.Output.DGS {
		t.Error("expected Output.DGS to be false")
	}
	if config.Redis.Addr != "redis:6379" || config.Redis.TTL != 30*time.Minute {
		t.Errorf("unexpected redis: %+v", config.Redis)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_Malformed(t *testing.T) {
	t.Setenv("DYNGRAPH_STEPS", "many")
	t.Setenv("DYNGRAPH_REDIS_TTL", "soon")

	config := Default()
	if err := applyEnvOverrides(config); err == nil {
		t.Error("expected error for malformed overrides")
	}
	if config.Steps != 30 {
		t.Errorf("malformed override should leave Steps at 30, got %d", config.Steps)
	}
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(DefaultConfigFile, []byte("steps: 5\nbeta: 0.01\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env", []byte("DYNGRAPH_ALPHA=0.3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets variables directly; make sure this one does not leak.
	os.Unsetenv("DYNGRAPH_ALPHA")
	t.Cleanup(func() { os.Unsetenv("DYNGRAPH_ALPHA") })
	t.Setenv("DYNGRAPH_STEPS", "8")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Steps != 8 {
		t.Errorf("expected environment to override file Steps, got %d", config.Steps)
	}
	if config.Beta != 0.01 {
		t.Errorf("expected Beta from ./dyngraph.yaml, got %v", config.Beta)
	}
	if config.Alpha != 0.3 {
		t.Errorf("expected Alpha from .env, got %v", config.Alpha)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{"zero steps", func(c *SimConfig) { c.Steps = 0 }},
		{"zero lambda", func(c *SimConfig) { c.Lambda = 0 }},
		{"alpha one", func(c *SimConfig) { c.Alpha = 1 }},
		{"negative beta", func(c *SimConfig) { c.Beta = -0.1 }},
		{"negative arrival rate", func(c *SimConfig) { c.ArrivalRate = -1 }},
		{"no seed file", func(c *SimConfig) { c.SeedFile = "" }},
		{"no output dir", func(c *SimConfig) { c.Output.Dir = "" }},
		{"prefix with separator", func(c *SimConfig) { c.Output.Prefix = "../network" }},
		{"negative ttl", func(c *SimConfig) { c.Redis.TTL = -time.Second }},
		{"unknown log level", func(c *SimConfig) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ZeroArrivalRate(t *testing.T) {
	config := Default()
	config.ArrivalRate = 0
	if err := config.Validate(); err != nil {
		t.Errorf("arrival_rate 0 admits one node per step and should be valid: %v", err)
	}
}
