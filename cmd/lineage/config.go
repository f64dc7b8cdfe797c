package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lineage/codec"
	"github.com/hupe1980/lineage/persistence"
)

// Config is the configuration of the run command. Values come from the YAML
// file named by --config and are overridden by explicitly set flags.
type Config struct {
	Filter     FilterConfig     `yaml:"filter"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`

	// MemoryLimit bounds slot storage in bytes. Zero is unlimited.
	MemoryLimit int64 `yaml:"memory_limit"`
}

// FilterConfig configures the reference particle filter.
type FilterConfig struct {
	Particles    int     `yaml:"particles"`
	Steps        int     `yaml:"steps"`
	Width        int     `yaml:"width"`
	Sigma        float64 `yaml:"sigma"`
	ObsSigma     float64 `yaml:"obs_sigma"`
	Drift        float64 `yaml:"drift"`
	ESSThreshold float64 `yaml:"ess_threshold"`
	Seed         uint64  `yaml:"seed"`
	Resampler    string  `yaml:"resampler"`
}

// CheckpointConfig configures checkpointing to a local directory.
type CheckpointConfig struct {
	Dir         string `yaml:"dir"`
	Every       int    `yaml:"every"`
	Retain      int    `yaml:"retain"`
	Resume      bool   `yaml:"resume"`
	Compression string `yaml:"compression"`
}

// OutputConfig configures trajectory export.
type OutputConfig struct {
	File        string `yaml:"file"`
	Codec       string `yaml:"codec"`
	Workers     int    `yaml:"workers"`
	MetricsFile string `yaml:"metrics_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Filter: FilterConfig{
			Particles:    256,
			Steps:        100,
			Width:        1,
			Sigma:        1,
			ObsSigma:     0.5,
			Drift:        0.1,
			ESSThreshold: 0.5,
			Seed:         1,
			Resampler:    "systematic",
		},
		Checkpoint: CheckpointConfig{
			Retain:      3,
			Compression: "lz4",
		},
		Output: OutputConfig{
			Codec:   codec.Default.Name(),
			Workers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs []error

	if c.Filter.Particles <= 0 {
		errs = append(errs, fmt.Errorf("filter.particles must be positive, got %d", c.Filter.Particles))
	}
	if c.Filter.Steps < 0 {
		errs = append(errs, fmt.Errorf("filter.steps must not be negative, got %d", c.Filter.Steps))
	}
	if c.Filter.Width <= 0 {
		errs = append(errs, fmt.Errorf("filter.width must be positive, got %d", c.Filter.Width))
	}
	if c.Filter.ESSThreshold < 0 || c.Filter.ESSThreshold > 1 {
		errs = append(errs, fmt.Errorf("filter.ess_threshold must be in [0, 1], got %g", c.Filter.ESSThreshold))
	}
	if c.Filter.Resampler != "systematic" && c.Filter.Resampler != "multinomial" {
		errs = append(errs, fmt.Errorf("filter.resampler must be systematic or multinomial, got %q", c.Filter.Resampler))
	}
	if c.Checkpoint.Every < 0 || c.Checkpoint.Retain < 0 {
		errs = append(errs, errors.New("checkpoint.every and checkpoint.retain must not be negative"))
	}
	if c.Checkpoint.Resume && c.Checkpoint.Dir == "" {
		errs = append(errs, errors.New("checkpoint.resume requires checkpoint.dir"))
	}
	if _, err := persistence.ParseCompression(c.Checkpoint.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, ok := codec.ByName(c.Output.Codec); !ok {
		errs = append(errs, fmt.Errorf("output.codec must be one of %v, got %q", codec.Names(), c.Output.Codec))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// bindFlags registers the run flags. Flags left unset keep the config value.
func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVarP(&cfg.Filter.Particles, "particles", "n", cfg.Filter.Particles, "Number of particles")
	fs.IntVarP(&cfg.Filter.Steps, "steps", "T", cfg.Filter.Steps, "Number of time steps")
	fs.IntVar(&cfg.Filter.Width, "width", cfg.Filter.Width, "State dimension")
	fs.Float64Var(&cfg.Filter.Sigma, "sigma", cfg.Filter.Sigma, "Transition standard deviation")
	fs.Float64Var(&cfg.Filter.ObsSigma, "obs-sigma", cfg.Filter.ObsSigma, "Observation standard deviation")
	fs.Float64Var(&cfg.Filter.Drift, "drift", cfg.Filter.Drift, "Target drift per step")
	fs.Float64Var(&cfg.Filter.ESSThreshold, "ess", cfg.Filter.ESSThreshold, "Resample when ESS falls below this fraction of particles")
	fs.Uint64Var(&cfg.Filter.Seed, "seed", cfg.Filter.Seed, "Random seed")
	fs.StringVar(&cfg.Filter.Resampler, "resampler", cfg.Filter.Resampler, "Resampler (systematic, multinomial)")

	fs.StringVar(&cfg.Checkpoint.Dir, "checkpoint-dir", cfg.Checkpoint.Dir, "Directory for checkpoints")
	fs.IntVar(&cfg.Checkpoint.Every, "checkpoint-every", cfg.Checkpoint.Every, "Checkpoint every N steps (0: only at the end)")
	fs.IntVar(&cfg.Checkpoint.Retain, "retain", cfg.Checkpoint.Retain, "Checkpoints to keep (0: all)")
	fs.BoolVar(&cfg.Checkpoint.Resume, "resume", cfg.Checkpoint.Resume, "Continue from the latest checkpoint")
	fs.StringVar(&cfg.Checkpoint.Compression, "compression", cfg.Checkpoint.Compression, "Snapshot compression (none, lz4, zstd)")

	fs.StringVarP(&cfg.Output.File, "out", "o", cfg.Output.File, "Write trajectories as JSON lines to this file")
	fs.StringVar(&cfg.Output.Codec, "codec", cfg.Output.Codec, "Trajectory codec (json, go-json)")
	fs.IntVar(&cfg.Output.Workers, "workers", cfg.Output.Workers, "Export workers")
	fs.StringVar(&cfg.Output.MetricsFile, "metrics-file", cfg.Output.MetricsFile, "Write Prometheus metrics to this file")

	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format (text, json)")
	fs.Int64Var(&cfg.MemoryLimit, "memory-limit", cfg.MemoryLimit, "Slot storage limit in bytes (0: unlimited)")
}
