package logging

import (
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
	"github.com/ssa-sim/ssa-sim/sim/trace"
)

// TraceLogger records every applied event into an in-memory trace and logs
// a summary at the end of the run.
type TraceLogger struct {
	Trace *trace.SimulationTrace
}

var _ sim.EventLogger = (*TraceLogger)(nil)

func NewTraceLogger(config trace.TraceConfig) *TraceLogger {
	return &TraceLogger{Trace: trace.NewSimulationTrace(config)}
}

func (l *TraceLogger) LogStart(sim.Model) error { return nil }

func (l *TraceLogger) LogEvent(_ sim.Model, t float64, e sim.Event) error {
	rec := trace.EventRecord{Time: t, Kind: sim.EventLabel(e), Row: -1, Col: -1}
	if o, ok := e.(model.Owned); ok {
		rec.Row, rec.Col = o.Owner().Row, o.Owner().Col
	}
	l.Trace.RecordEvent(rec)
	return nil
}

func (l *TraceLogger) LogEnd(sim.Model) error {
	if !l.Trace.Enabled() {
		return nil
	}
	s := trace.Summarize(l.Trace)
	logrus.Infof("Trace: %d events (%d dropped), %d kinds, mean inter-event time %.6g (sd %.6g)",
		s.TotalEvents, s.DroppedEvents, s.UniqueKinds, s.MeanInterEvent, s.StdDevInterEvent)
	for _, kind := range slices.Sorted(maps.Keys(s.KindDistribution)) {
		logrus.Debugf("Trace: %s x%d", kind, s.KindDistribution[kind])
	}
	return nil
}
