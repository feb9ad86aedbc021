package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/landuse"
	"github.com/ssa-sim/ssa-sim/sim/logging"
	"github.com/ssa-sim/ssa-sim/sim/sir"
	"github.com/ssa-sim/ssa-sim/sim/trace"
)

// RunResult summarizes a finished run.
type RunResult struct {
	Seed       int64
	Steps      int64
	Time       float64
	StateNames []string
	Counts     []int
	Trace      *trace.SimulationTrace // nil unless tracing was enabled
}

// resolveSeed returns seed, or a wall-clock seed when it is 0.
func resolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	seed = time.Now().UnixNano()
	logrus.Infof("No seed given; using wall-clock seed %d", seed)
	return seed
}

// buildModel constructs the configured model. rng feeds model set-up only.
func buildModel(cfg RunConfig, rngs *sim.PartitionedRNG) (sim.Model, logging.Columns, error) {
	switch cfg.Model {
	case ModelLanduse:
		m, err := landuse.Build(cfg.Landuse)
		return m, logging.BetaColumns{}, err
	case ModelSIR:
		m, err := sir.New(cfg.SIR, rngs.ForSubsystem(sim.SubsystemModel))
		return m, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: unknown model %q", sim.ErrConfiguration, cfg.Model)
	}
}

func outputPath(cfg OutputConfig, name string) string {
	path := filepath.Join(cfg.Dir, name)
	if cfg.Compress {
		path += logging.CompressedSuffix
	}
	return path
}

func isSpatial(cfg RunConfig) bool {
	switch cfg.Model {
	case ModelLanduse:
		return cfg.Landuse.Spatial
	case ModelSIR:
		return cfg.SIR.Lattice != nil
	}
	return false
}

// outputs holds what attachLoggers opened. Loggers close their files in
// LogEnd; Close is for runs that never get that far.
type outputs struct {
	closers []io.Closer
	trace   *logging.TraceLogger
}

// Close closes every opened output, last opened first.
func (o *outputs) Close() error {
	var errs []error
	for _, c := range slices.Backward(o.closers) {
		errs = append(errs, c.Close())
	}
	o.closers = nil
	return errors.Join(errs...)
}

func (o *outputs) open(name string, out OutputConfig) (io.WriteCloser, error) {
	w, err := logging.OpenOutput(outputPath(out, name))
	if err != nil {
		return nil, err
	}
	o.closers = append(o.closers, w)
	return w, nil
}

// attachLoggers registers every logger the output config asks for. On
// failure it closes whatever it had already opened.
func attachLoggers(s *sim.Simulator, cfg RunConfig, seed int64, extra logging.Columns) (_ *outputs, err error) {
	o := &outputs{}
	defer func() {
		if err != nil {
			err = errors.Join(err, o.Close())
		}
	}()

	out := cfg.Output
	if out.Dir != "" && out.Census {
		w, err := o.open("census.csv", out)
		if err != nil {
			return nil, err
		}
		l, err := logging.NewCensusLogger(w, out.Interval, extra)
		if err != nil {
			return nil, err
		}
		if err := s.AddPeriodicLogger(l); err != nil {
			return nil, err
		}
	}
	if out.Dir != "" && out.StateChanges {
		if !isSpatial(cfg) {
			logrus.Warnf("state_changes requested for a well-mixed %s model; skipped", cfg.Model)
		} else {
			w, err := o.open("state_changes.csv", out)
			if err != nil {
				return nil, err
			}
			if err := s.AddEventLogger(logging.NewStateChangeLogger(w)); err != nil {
				return nil, err
			}
		}
	}
	if out.SQLite != "" {
		l, err := logging.OpenSQLite(out.SQLite, out.Interval, map[string]string{
			"model":   cfg.Model,
			"seed":    strconv.FormatInt(seed, 10),
			"horizon": strconv.FormatFloat(cfg.Horizon, 'g', -1, 64),
		})
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, l)
		if err := errors.Join(s.AddEventLogger(l), s.AddPeriodicLogger(l)); err != nil {
			return nil, err
		}
	}
	if out.Metrics != "" {
		l, err := logging.NewMetricsLogger(out.Metrics, out.Interval, s.TotalRate)
		if err != nil {
			return nil, err
		}
		if err := errors.Join(s.AddEventLogger(l), s.AddPeriodicLogger(l)); err != nil {
			return nil, err
		}
	}
	if trace.TraceLevel(out.Trace) == trace.TraceLevelEvents {
		l := logging.NewTraceLogger(trace.TraceConfig{Level: trace.TraceLevelEvents, MaxRecords: out.TraceMax})
		if err := s.AddEventLogger(l); err != nil {
			return nil, err
		}
		o.trace = l
	}
	return o, nil
}

// executeRun validates cfg, runs the model to its horizon and finishes the
// simulator, closing every output.
func executeRun(cfg RunConfig) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sim.ErrConfiguration, err)
	}
	seed := resolveSeed(cfg.Seed)
	rngs := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))

	m, extra, err := buildModel(cfg, rngs)
	if err != nil {
		return nil, err
	}
	if cfg.Output.Dir != "" {
		if err := WriteResolvedConfig(cfg, seed); err != nil {
			return nil, err
		}
	}
	s := sim.NewSimulator(m, rngs.ForSubsystem(sim.SubsystemSimulation))
	outs, err := attachLoggers(s, cfg, seed, extra)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Starting %s run: seed=%d, horizon=%v", cfg.Model, seed, cfg.StopTime())
	start := time.Now()
	runErr := s.RunUntil(cfg.StopTime())
	if s.State() == sim.StateUninitialized {
		// no logger was started, so none will close its output
		return nil, errors.Join(runErr, outs.Close())
	}
	if err := errors.Join(runErr, s.Finish()); err != nil {
		return nil, err
	}
	logrus.Infof("Run complete: %d events, t=%.6g, wall time %v", s.Steps(), s.Time(), time.Since(start))

	res := &RunResult{Seed: seed, Steps: s.Steps(), Time: s.Time()}
	if src, ok := m.(logging.CensusSource); ok {
		res.StateNames = src.StateNames()
		res.Counts = src.Census().Counts()
	}
	if outs.trace != nil {
		res.Trace = outs.trace.Trace
	}
	return res, nil
}

// formatCounts renders state counts as "S=995 I=5 R=0".
func formatCounts(names []string, counts []int) string {
	var b []byte
	for i, n := range counts {
		if i > 0 {
			b = append(b, ' ')
		}
		name := strconv.Itoa(i)
		if i < len(names) {
			name = names[i]
		}
		b = fmt.Appendf(b, "%s=%d", name, n)
	}
	return string(b)
}
