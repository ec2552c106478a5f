package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all fssim configuration.
type Config struct {
	// Run parameters
	Seed           int64    `yaml:"seed"`
	OpCount        int      `yaml:"op_count"`
	MeanFileLength int      `yaml:"mean_file_length"`
	MaxFileLength  int      `yaml:"max_file_length"`
	Users          []string `yaml:"users"`

	// Relative action weights keyed by action name (e.g. write-own-file).
	Weights map[string]float64 `yaml:"weights"`

	// Reference backend
	Reference ReferenceConfig `yaml:"reference"`

	// System under test
	Test TestConfig `yaml:"test"`

	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// ReferenceConfig configures the local-disk reference model.
type ReferenceConfig struct {
	Root  string `yaml:"root"`   // directory holding user trees; empty = temp dir
	ACL   string `yaml:"acl"`    // memory, sqlite
	ACLDB string `yaml:"acl_db"` // sqlite database file; empty = in memory
	Keep  bool   `yaml:"keep"`   // keep the temp root after the run
}

// TestConfig configures the in-memory system under test.
type TestConfig struct {
	// Deliberate misbehaviour, for demonstrating divergence detection.
	DropRevoke     bool `yaml:"drop_revoke"`
	TruncateWrites bool `yaml:"truncate_writes"`
	IgnoreGrants   bool `yaml:"ignore_grants"`
}

// OutputConfig configures reporting.
type OutputConfig struct {
	Format string `yaml:"format"`  // console, json
	RunDir string `yaml:"run_dir"` // per-run log directories; empty = none
}

// DefaultWeights is the action mix used when a config names none.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"read-own-file":    0.0,
		"write-own-file":   0.4,
		"rm":               0.0,
		"mkdir":            0.1,
		"rmdir":            0.0,
		"grant-read-file":  0.2,
		"grant-write-file": 0.1,
		"grant-read-dir":   0.05,
		"grant-write-dir":  0.05,
		"revoke-read":      0.05,
		"revoke-write":     0.05,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Seed:           1,
		OpCount:        100,
		MeanFileLength: 256,
		MaxFileLength:  16 << 20,
		Users:          []string{"left", "right"},
		Weights:        DefaultWeights(),

		Reference: ReferenceConfig{
			ACL: "memory",
		},

		Output: OutputConfig{
			Format: "console",
			RunDir: ".fssim/runs",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Weights replace the defaults wholesale rather than merging key by key.
	var probe struct {
		Weights map[string]float64 `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if probe.Weights != nil {
		cfg.Weights = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FSSIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if v := os.Getenv("FSSIM_OPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OpCount = n
		}
	}
	if v := os.Getenv("FSSIM_USERS"); v != "" {
		c.Users = splitList(v)
	}
	if v := os.Getenv("FSSIM_REFERENCE_ROOT"); v != "" {
		c.Reference.Root = v
	}
	if v := os.Getenv("FSSIM_ACL_DB"); v != "" {
		c.Reference.ACL = "sqlite"
		c.Reference.ACLDB = v
	}
	if v := os.Getenv("FSSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first problem that would make a run impossible.
func (c *Config) Validate() error {
	if c.OpCount < 0 {
		return fmt.Errorf("op_count must not be negative, got %d", c.OpCount)
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("at least one user is required")
	}
	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u == "" || strings.ContainsAny(u, "/\\") {
			return fmt.Errorf("invalid user name %q", u)
		}
		if seen[u] {
			return fmt.Errorf("duplicate user %q", u)
		}
		seen[u] = true
	}
	positive := false
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight for %s must not be negative", name)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("weights must contain at least one positive entry")
	}
	switch c.Reference.ACL {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown reference acl %q (want memory or sqlite)", c.Reference.ACL)
	}
	switch c.Output.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown output format %q (want console or json)", c.Output.Format)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
