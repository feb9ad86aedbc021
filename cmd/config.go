package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssa-sim/ssa-sim/sim/landuse"
	"github.com/ssa-sim/ssa-sim/sim/sir"
	"github.com/ssa-sim/ssa-sim/sim/trace"
)

// Model names accepted by --model and the model key.
const (
	ModelLanduse = "landuse"
	ModelSIR     = "sir"
)

// RunConfig is the full run configuration file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Model string `yaml:"model"`
	// Seed 0 derives the seed from the wall clock.
	Seed int64 `yaml:"seed"`
	// Horizon is the simulated time to run for; 0 runs until no event can fire.
	Horizon float64        `yaml:"horizon"`
	Output  OutputConfig   `yaml:"output"`
	Landuse landuse.Params `yaml:"landuse"`
	SIR     sir.Params     `yaml:"sir"`
}

// OutputConfig selects the run's loggers.
type OutputConfig struct {
	Dir          string  `yaml:"dir"`           // CSV output directory; empty disables CSV files
	Interval     float64 `yaml:"interval"`      // census interval in simulated time
	Census       bool    `yaml:"census"`        // census.csv
	StateChanges bool    `yaml:"state_changes"` // state_changes.csv, spatial models only
	Compress     bool    `yaml:"compress"`      // zstd-compress CSV files
	SQLite       string  `yaml:"sqlite"`        // SQLite database path
	Metrics      string  `yaml:"metrics"`       // Prometheus textfile path
	Trace        string  `yaml:"trace"`         // trace level: none or events
	TraceMax     int     `yaml:"trace_max"`     // max trace records; 0 = unlimited
}

// DefaultRunConfig returns the land-use model with reference parameters,
// logging the census every time unit.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Model:   ModelLanduse,
		Horizon: 100,
		Output: OutputConfig{
			Interval: 1,
			Census:   true,
			Trace:    string(trace.TraceLevelNone),
		},
		Landuse: landuse.DefaultParams(),
		SIR:     sir.DefaultParams(),
	}
}

// LoadRunConfig reads path over the defaults. Unknown keys are rejected.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvedConfigFile is written to the output directory of every run.
const ResolvedConfigFile = "config_out.yaml"

// WriteResolvedConfig writes cfg, with the seed actually used, into
// cfg.Output.Dir. Loading the file reproduces the run.
func WriteResolvedConfig(cfg RunConfig, seed int64) error {
	cfg.Seed = seed
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(cfg.Output.Dir, ResolvedConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write resolved config: %w", err)
	}
	return nil
}

// Validate checks the run settings and the selected model's parameters.
func (c RunConfig) Validate() error {
	var errs []error
	switch c.Model {
	case ModelLanduse:
		if err := c.Landuse.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("landuse: %w", err))
		}
	case ModelSIR:
		if err := c.SIR.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sir: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model %q (want %s or %s)", c.Model, ModelLanduse, ModelSIR))
	}
	if c.Horizon < 0 || math.IsNaN(c.Horizon) {
		errs = append(errs, fmt.Errorf("horizon must be >= 0, got %v", c.Horizon))
	}
	if !(c.Output.Interval > 0) || math.IsInf(c.Output.Interval, 0) {
		errs = append(errs, fmt.Errorf("output.interval must be positive and finite, got %v", c.Output.Interval))
	}
	if !trace.IsValidTraceLevel(c.Output.Trace) {
		errs = append(errs, fmt.Errorf("unknown trace level %q", c.Output.Trace))
	}
	if c.Output.TraceMax < 0 {
		errs = append(errs, fmt.Errorf("output.trace_max must be >= 0, got %d", c.Output.TraceMax))
	}
	return errors.Join(errs...)
}

// StopTime is the horizon as a simulation time.
func (c RunConfig) StopTime() float64 {
	if c.Horizon == 0 {
		return math.Inf(1)
	}
	return c.Horizon
}
