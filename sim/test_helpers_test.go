package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// unit is an entity that is alive until its single decay event fires.
type unit struct {
	id    int
	alive bool
	decay *decayEvent
}

type decayEvent struct {
	owner *unit
	rate  float64
}

func (e *decayEvent) Rate() float64 {
	if !e.owner.alive {
		return 0
	}
	return e.rate
}

func (e *decayEvent) Apply(_ float64, _ *rand.Rand, ch *Changes) error {
	if !e.owner.alive {
		return fmt.Errorf("%w: unit %d already dead", ErrInvariantViolation, e.owner.id)
	}
	e.owner.alive = false
	ch.Remove.Add(e)
	return nil
}

// decayModel holds n independent units decaying at rate k each.
type decayModel struct {
	n     int
	k     float64
	units []*unit
	inits int
}

func newDecayModel(n int, k float64) *decayModel {
	return &decayModel{n: n, k: k}
}

func (m *decayModel) Initialize() error {
	m.inits++
	m.units = make([]*unit, m.n)
	for i := range m.units {
		u := &unit{id: i, alive: true}
		u.decay = &decayEvent{owner: u, rate: m.k}
		m.units[i] = u
	}
	return nil
}

func (m *decayModel) AllEvents() []Event {
	events := make([]Event, len(m.units))
	for i, u := range m.units {
		events[i] = u.decay
	}
	return events
}

func (m *decayModel) alive() int {
	n := 0
	for _, u := range m.units {
		if u.alive {
			n++
		}
	}
	return n
}

func (m *decayModel) indexOf(e Event) int {
	for i, u := range m.units {
		if Event(u.decay) == e {
			return i
		}
	}
	return -1
}

// staticEvent never changes state; Apply reports whatever it is told to.
type staticEvent struct {
	rate    float64
	applied int
	remove  []Event
	update  []Event
	err     error
	onApply func()
}

func (e *staticEvent) Rate() float64 { return e.rate }

func (e *staticEvent) Apply(_ float64, _ *rand.Rand, ch *Changes) error {
	e.applied++
	if e.onApply != nil {
		e.onApply()
	}
	if e.err != nil {
		return e.err
	}
	ch.Remove.AddAll(e.remove...)
	ch.Update.AddAll(e.update...)
	return nil
}

type staticModel struct {
	events  []Event
	initErr error
}

func (m *staticModel) Initialize() error  { return m.initErr }
func (m *staticModel) AllEvents() []Event { return m.events }

// recordingLogger records every callback. It implements both logger
// interfaces; interval > 0 makes it tick periodically from time 0.
type recordingLogger struct {
	interval float64
	next     float64

	starts, ends int
	ticks        []float64
	eventTimes   []float64
	events       []Event

	failOn string
}

var errLoggerFailed = errors.New("logger failed")

func (l *recordingLogger) LogStart(Model) error {
	l.starts++
	if l.failOn == "start" {
		return errLoggerFailed
	}
	return nil
}

func (l *recordingLogger) LogEnd(Model) error {
	l.ends++
	if l.failOn == "end" {
		return errLoggerFailed
	}
	return nil
}

func (l *recordingLogger) NextLogTime(Model) float64 { return l.next }

func (l *recordingLogger) LogPeriodic(_ Model, t float64) error {
	l.ticks = append(l.ticks, t)
	l.next += l.interval
	if l.failOn == "periodic" {
		return errLoggerFailed
	}
	return nil
}

func (l *recordingLogger) LogEvent(_ Model, t float64, e Event) error {
	l.eventTimes = append(l.eventTimes, t)
	l.events = append(l.events, e)
	if l.failOn == "event" {
		return errLoggerFailed
	}
	return nil
}

func newRNG(seed int64) *rand.Rand {
	return NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemSimulation)
}
