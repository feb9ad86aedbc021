package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// CLI flags for the run command
	modelName   string  // Model to simulate
	configPath  string  // YAML run configuration
	seed        int64   // Seed for the simulation RNG; 0 = wall clock
	horizon     float64 // Simulated time to run for; 0 = until absorbing
	logLevel    string  // Log verbosity level
	outDir      string  // CSV output directory
	sqlitePath  string  // SQLite output database
	metricsPath string  // Prometheus textfile output
	compress    bool    // zstd-compress CSV outputs
	changes     bool    // Write state_changes.csv
	interval    float64 // Census interval
	traceLevel  string  // Event trace level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ssa-sim",
	Short: "Stochastic simulation of lattice and well-mixed models with the Gillespie algorithm",
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveRunConfig loads the config file, if any, and applies explicitly
// set flags on top of it.
func resolveRunConfig(cmd *cobra.Command) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if configPath != "" {
		loaded, err := LoadRunConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("out") {
		cfg.Output.Dir = outDir
	}
	if flags.Changed("sqlite") {
		cfg.Output.SQLite = sqlitePath
	}
	if flags.Changed("metrics") {
		cfg.Output.Metrics = metricsPath
	}
	if flags.Changed("state-changes") {
		cfg.Output.StateChanges = changes
	}
	if flags.Changed("compress") {
		cfg.Output.Compress = compress
	}
	if flags.Changed("interval") {
		cfg.Output.Interval = interval
	}
	if flags.Changed("trace") {
		cfg.Output.Trace = traceLevel
	}
	return cfg, nil
}

// runCmd executes a simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := resolveRunConfig(cmd)
		if err != nil {
			logrus.Fatalf("Failed to load run config: %v", err)
		}
		res, err := executeRun(cfg)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		cmd.Printf("seed=%d events=%d time=%.6g %s\n", res.Seed, res.Steps, res.Time, formatCounts(res.StateNames, res.Counts))
		logrus.Info("Simulation complete.")
	},
}

// validateCmd checks a run configuration without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a run configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		if configPath == "" {
			logrus.Fatalf("--config is required")
		}
		cfg, err := LoadRunConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load run config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid run config %s:\n%v", configPath, err)
		}
		cmd.Printf("%s: ok (model=%s)\n", configPath, cfg.Model)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&modelName, "model", ModelLanduse, "Model to simulate (landuse, sir)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration file")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the simulation RNG (0 derives one from the wall clock)")
	runCmd.Flags().Float64Var(&horizon, "horizon", 100, "Simulated time to run for (0 runs until no event can fire)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Outputs
	runCmd.Flags().StringVar(&outDir, "out", "", "Directory for census.csv and state_changes.csv")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Write state changes and census to this SQLite database")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this textfile at the end of the run")
	runCmd.Flags().BoolVar(&changes, "state-changes", false, "Also write state_changes.csv (lattice models only)")
	runCmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress CSV outputs (.zst)")
	runCmd.Flags().Float64Var(&interval, "interval", 1, "Census interval in simulated time")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Event trace level (none, events)")

	validateCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration file")
	validateCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
