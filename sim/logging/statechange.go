package logging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// GridSource is a model laid out on a lattice of sites.
type GridSource interface {
	Grid() *model.Grid
	StateNames() []string
}

func gridOf(m sim.Model) (*model.Grid, []string, error) {
	src, ok := m.(GridSource)
	if !ok || src.Grid() == nil {
		return nil, nil, fmt.Errorf("%w: model %T is not spatial", sim.ErrConfiguration, m)
	}
	return src.Grid(), src.StateNames(), nil
}

// StateChangeLogger writes a CSV of site states: every site at time 0, then
// one row per event that changed a site, with the site's state and
// auxiliary value after the event.
type StateChangeLogger struct {
	out   io.WriteCloser
	w     *csv.Writer
	names []string
}

var _ sim.EventLogger = (*StateChangeLogger)(nil)

func NewStateChangeLogger(out io.WriteCloser) *StateChangeLogger {
	return &StateChangeLogger{out: out, w: csv.NewWriter(out)}
}

func (l *StateChangeLogger) LogStart(m sim.Model) error {
	g, names, err := gridOf(m)
	if err != nil {
		return err
	}
	l.names = names
	if err := l.w.Write([]string{"time", "row", "col", "state", "aux"}); err != nil {
		return err
	}
	for _, site := range g.Sites() {
		if err := l.write(0, site); err != nil {
			return err
		}
	}
	return nil
}

func (l *StateChangeLogger) LogEvent(_ sim.Model, t float64, e sim.Event) error {
	o, ok := e.(model.Owned)
	if !ok {
		return nil
	}
	return l.write(t, o.Owner())
}

func (l *StateChangeLogger) write(t float64, site *model.Site) error {
	return l.w.Write([]string{
		formatFloat(t),
		strconv.Itoa(site.Row),
		strconv.Itoa(site.Col),
		l.names[site.State],
		formatFloat(site.Aux),
	})
}

func (l *StateChangeLogger) LogEnd(sim.Model) error {
	l.w.Flush()
	return errors.Join(l.w.Error(), l.out.Close())
}
