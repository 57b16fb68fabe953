// config.go — engine configuration
//
// One YAML file drives the whole engine; every field has a default that
// yields a working single-host setup, and a handful of environment
// variables override the file for containerized deploys.  Validation runs
// once at load so downstream packages never re-check bounds.

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"main/constants"
	"main/matcher"
)

// Config is the full engine configuration.
type Config struct {
	// TickBudget is the hard dispatch ceiling in ticks.
	TickBudget uint64 `yaml:"tick_budget"`
	// Lanes is the number of pinned processing lanes.
	Lanes int `yaml:"lanes"`
	// Kernel overrides matcher kernel selection ("auto", "scalar",
	// "wide2", "wide4").
	Kernel string `yaml:"kernel"`
	// CrossCheck re-runs every screen through the scalar kernel and
	// demotes on disagreement.  Debug builds only; it doubles match cost.
	CrossCheck bool `yaml:"cross_check"`
	// DedupeWindow suppresses exact ingress repeats within this many
	// submissions.  0 (the default) disables the filter.
	DedupeWindow uint64 `yaml:"dedupe_window"`

	Pool    PoolConfig    `yaml:"pool"`
	Receipt ReceiptConfig `yaml:"receipt"`
	Warm    WarmConfig    `yaml:"warm"`

	// HooksFile is an optional JSON file of hooks loaded at boot.
	HooksFile string `yaml:"hooks_file"`
	// LockchainPath is the receipt chain database ("" disables it).
	LockchainPath string `yaml:"lockchain_path"`
	// OtelMetrics publishes the counter registry on the global
	// OpenTelemetry meter provider.
	OtelMetrics bool `yaml:"otel_metrics"`
}

// PoolConfig shapes the shared buffer pool.
type PoolConfig struct {
	Slots int `yaml:"slots"`
	// Policy is "reject" or "spin".
	Policy  string `yaml:"policy"`
	SpinCap int    `yaml:"spin_cap"`
}

// ReceiptConfig shapes the async receipt emitter.
type ReceiptConfig struct {
	Buffer int `yaml:"buffer"`
	// Policy is "reject_new" or "drop_oldest".
	Policy string `yaml:"policy"`
}

// WarmConfig shapes the warm-path resolver.
type WarmConfig struct {
	Buffer  int `yaml:"buffer"`
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TickBudget: constants.DefaultTickBudget,
		Lanes:      defaultLanes(),
		Kernel:     "auto",
		Pool: PoolConfig{
			Slots:   constants.SharedPoolSlots,
			Policy:  "reject",
			SpinCap: constants.DefaultSpinCap,
		},
		Receipt: ReceiptConfig{
			Buffer: 4096,
			Policy: "reject_new",
		},
		Warm: WarmConfig{
			Buffer:  1024,
			Workers: 2,
		},
	}
}

func defaultLanes() int {
	n := runtime.NumCPU() - 2 // leave room for ingress + warm path
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads a YAML file over the defaults, applies environment overrides,
// and validates.  An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Environment overrides, highest precedence.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HOOKMATCH_TICK_BUDGET"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.TickBudget = n
		}
	}
	if v := os.Getenv("HOOKMATCH_LANES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lanes = n
		}
	}
	if v := os.Getenv("HOOKMATCH_KERNEL"); v != "" {
		cfg.Kernel = v
	}
	if v := os.Getenv("HOOKMATCH_LOCKCHAIN"); v != "" {
		cfg.LockchainPath = v
	}
	if v := os.Getenv("HOOKMATCH_OTEL_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OtelMetrics = b
		}
	}
}

// Validate bounds every field.
func (c *Config) Validate() error {
	if c.TickBudget == 0 {
		return fmt.Errorf("config: tick_budget must be positive")
	}
	if c.Lanes < 1 || c.Lanes > 256 {
		return fmt.Errorf("config: lanes %d out of range [1,256]", c.Lanes)
	}
	switch c.Kernel {
	case "auto", "scalar", "wide2", "wide4":
	default:
		return fmt.Errorf("config: kernel %q (want auto|scalar|wide2|wide4)", c.Kernel)
	}
	if c.Pool.Slots < 2 || c.Pool.Slots&(c.Pool.Slots-1) != 0 {
		return fmt.Errorf("config: pool.slots %d must be a power of two ≥ 2", c.Pool.Slots)
	}
	switch c.Pool.Policy {
	case "reject", "spin":
	default:
		return fmt.Errorf("config: pool.policy %q (want reject|spin)", c.Pool.Policy)
	}
	if c.Pool.Policy == "spin" && c.Pool.SpinCap < 1 {
		return fmt.Errorf("config: pool.spin_cap must be positive under spin policy")
	}
	if c.Receipt.Buffer < 1 {
		return fmt.Errorf("config: receipt.buffer must be positive")
	}
	switch c.Receipt.Policy {
	case "reject_new", "drop_oldest":
	default:
		return fmt.Errorf("config: receipt.policy %q (want reject_new|drop_oldest)", c.Receipt.Policy)
	}
	if c.Warm.Buffer < 1 || c.Warm.Workers < 1 {
		return fmt.Errorf("config: warm.buffer and warm.workers must be positive")
	}
	return nil
}

// MatcherKernel resolves the configured kernel name.
func (c *Config) MatcherKernel() matcher.Kernel {
	return matcher.ParseKernel(c.Kernel)
}
