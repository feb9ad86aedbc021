package logging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/landuse"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// CensusSource is a model that keeps a state census.
type CensusSource interface {
	Census() *model.Census
	StateNames() []string
}

var (
	_ CensusSource = (*landuse.Model)(nil)
	_ CensusSource = (*landuse.WellMixedModel)(nil)
	_ BetaSource   = (*landuse.Model)(nil)
	_ BetaSource   = (*landuse.WellMixedModel)(nil)
	_ CensusSource = (*model.DiscreteStateModel)(nil)
	_ GridSource   = (*landuse.Model)(nil)
	_ GridSource   = (*model.DiscreteStateModel)(nil)
)

// Columns adds model-specific columns to each census row.
type Columns interface {
	Header() []string
	Values(m sim.Model) []string
}

// CensusLogger writes one CSV row every interval of simulated time: the
// time, then each state's count and average lifetime, then any extra
// columns. Lifetimes that are undefined are left empty.
type CensusLogger struct {
	out      io.WriteCloser
	w        *csv.Writer
	interval float64
	extra    Columns
	ticks    int
	next     float64
}

var _ sim.PeriodicLogger = (*CensusLogger)(nil)

// NewCensusLogger writes to out. extra may be nil.
func NewCensusLogger(out io.WriteCloser, interval float64, extra Columns) (*CensusLogger, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	return &CensusLogger{out: out, w: csv.NewWriter(out), interval: interval, extra: extra}, nil
}

func checkInterval(interval float64) error {
	if !(interval > 0) || math.IsInf(interval, 0) {
		return fmt.Errorf("%w: log interval must be positive and finite, got %v", sim.ErrConfiguration, interval)
	}
	return nil
}

func censusOf(m sim.Model) (CensusSource, error) {
	src, ok := m.(CensusSource)
	if !ok {
		return nil, fmt.Errorf("%w: model %T has no census", sim.ErrConfiguration, m)
	}
	return src, nil
}

func (l *CensusLogger) LogStart(m sim.Model) error {
	src, err := censusOf(m)
	if err != nil {
		return err
	}
	header := []string{"time"}
	for _, name := range src.StateNames() {
		header = append(header, name, name+"_lifetime")
	}
	if l.extra != nil {
		header = append(header, l.extra.Header()...)
	}
	return l.w.Write(header)
}

func (l *CensusLogger) NextLogTime(sim.Model) float64 { return l.next }

func (l *CensusLogger) LogPeriodic(m sim.Model, t float64) error {
	src, err := censusOf(m)
	if err != nil {
		return err
	}
	c := src.Census()
	row := []string{formatFloat(t)}
	for s := 0; s < c.NumStates(); s++ {
		row = append(row,
			strconv.Itoa(c.Count(model.State(s))),
			formatFloat(c.AvgLifetime(model.State(s), t)))
	}
	if l.extra != nil {
		row = append(row, l.extra.Values(m)...)
	}
	l.ticks++
	l.next = float64(l.ticks) * l.interval
	return l.w.Write(row)
}

func (l *CensusLogger) LogEnd(sim.Model) error {
	l.w.Flush()
	return errors.Join(l.w.Error(), l.out.Close())
}

// BetaSource is a model that tracks a distribution of betas.
type BetaSource interface {
	BetaStats() (landuse.BetaStats, bool)
}

// BetaColumns reports the land-use beta distribution: mean, standard
// deviation, extremes and quantiles. Cells are empty while nothing is
// populated.
type BetaColumns struct{}

func (BetaColumns) Header() []string {
	h := []string{"beta_mean", "beta_sd", "beta_min", "beta_max"}
	for _, p := range landuse.BetaQuantiles {
		h = append(h, "beta_q"+strconv.FormatFloat(p*100, 'g', -1, 64))
	}
	return h
}

func (c BetaColumns) Values(m sim.Model) []string {
	out := make([]string, len(c.Header()))
	src, ok := m.(BetaSource)
	if !ok {
		return out
	}
	s, ok := src.BetaStats()
	if !ok {
		return out
	}
	out[0] = formatFloat(s.Mean)
	out[1] = formatFloat(s.StdDev)
	out[2] = formatFloat(s.Min)
	out[3] = formatFloat(s.Max)
	for i, q := range s.Quantiles {
		out[4+i] = formatFloat(q)
	}
	return out
}
