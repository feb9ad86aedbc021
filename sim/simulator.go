// sim/simulator.go
package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ssa-sim/ssa-sim/sim/sampler"
)

// State is the lifecycle state of a Simulator.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSamplerOptions passes options through to the event sampler.
func WithSamplerOptions(opts ...sampler.Option) Option {
	return func(s *Simulator) {
		s.samplerOpts = append(s.samplerOpts, opts...)
	}
}

// Simulator runs a Model with the Gillespie Direct Method: the waiting time to
// the next event is exponential in the total rate of all live events, and the
// event that fires is drawn with probability proportional to its rate.
//
// Thread-safety: NOT thread-safe.
type Simulator struct {
	model Model
	rng   *rand.Rand

	events      *sampler.Tree[Event]
	samplerOpts []sampler.Option
	changes     Changes

	periodicLoggers []PeriodicLogger
	eventLoggers    []EventLogger

	time  float64
	steps int64
	state State
}

// NewSimulator creates a Simulator for model. rng is the only source of
// randomness consumed while stepping, in the order: waiting time, event
// selection, then whatever the event draws in Apply.
func NewSimulator(model Model, rng *rand.Rand, opts ...Option) *Simulator {
	s := &Simulator{
		model: model,
		rng:   rng,
		state: StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPeriodicLogger registers l. It fails once the simulator is initialized.
func (s *Simulator) AddPeriodicLogger(l PeriodicLogger) error {
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: cannot add periodic logger in state %s", ErrConfiguration, s.state)
	}
	s.periodicLoggers = append(s.periodicLoggers, l)
	return nil
}

// AddEventLogger registers l. It fails once the simulator is initialized.
func (s *Simulator) AddEventLogger(l EventLogger) error {
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: cannot add event logger in state %s", ErrConfiguration, s.state)
	}
	s.eventLoggers = append(s.eventLoggers, l)
	return nil
}

// Time returns the current simulation time.
func (s *Simulator) Time() float64 { return s.time }

// State returns the lifecycle state.
func (s *Simulator) State() State { return s.state }

// Steps returns the number of events applied so far.
func (s *Simulator) Steps() int64 { return s.steps }

// Model returns the simulated model.
func (s *Simulator) Model() Model { return s.model }

// TotalRate returns the sum of the rates of all live events. It is zero before
// initialization.
func (s *Simulator) TotalRate() float64 {
	if s.events == nil {
		return 0
	}
	return s.events.TotalWeight()
}

// LiveEvents returns the number of events with a positive rate.
func (s *Simulator) LiveEvents() int {
	if s.events == nil {
		return 0
	}
	return s.events.Len()
}

// Rate returns the rate the sampler currently holds for e, or 0 if e is not live.
func (s *Simulator) Rate(e Event) float64 {
	if s.events == nil {
		return 0
	}
	return s.events.Weight(e)
}

// Initialize builds the model, loads its events and starts every logger.
// It is idempotent and is called implicitly by the stepping operations.
func (s *Simulator) Initialize() error {
	if s.state != StateUninitialized {
		return nil
	}
	if err := s.model.Initialize(); err != nil {
		return fmt.Errorf("initialize model: %w", err)
	}

	var all EventSet
	all.AddAll(s.model.AllEvents()...)
	keys := all.Items()
	rates := make([]float64, len(keys))
	for i, e := range keys {
		r, err := checkRate(e)
		if err != nil {
			return err
		}
		rates[i] = r
	}
	events, err := sampler.NewFromWeights(keys, rates, s.samplerOpts...)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	s.events = events
	s.state = StateInitialized

	logrus.Infof("[t=%.6f] Simulation initialized: %d live events of %d, total rate %.6g",
		s.time, events.Len(), len(keys), events.TotalWeight())

	for _, l := range s.eventLoggers {
		if err := l.LogStart(s.model); err != nil {
			return &LoggingError{Phase: "start", Err: err}
		}
	}
	for _, l := range s.periodicLoggers {
		if err := l.LogStart(s.model); err != nil {
			return &LoggingError{Phase: "start", Err: err}
		}
	}
	return nil
}

// PerformNextEvent advances the clock by one exponential waiting time, fires
// any periodic log ticks that fall before the new time, and applies one event
// drawn in proportion to its rate. When no event has a positive rate the time
// becomes +Inf and nothing is applied. It returns the new time.
func (s *Simulator) PerformNextEvent() (float64, error) {
	if s.state == StateFinished {
		return s.time, ErrFinished
	}
	if err := s.Initialize(); err != nil {
		return s.time, err
	}
	s.state = StateRunning

	total := s.events.TotalWeight()
	if total > 0 {
		tau := distuv.Exponential{Rate: total, Src: s.rng}.Rand()
		s.time += tau
	} else {
		if !math.IsInf(s.time, 1) {
			logrus.Infof("[t=%.6f] Absorbing state reached after %d events", s.time, s.steps)
		}
		s.time = math.Inf(1)
	}

	if err := s.catchUp(); err != nil {
		return s.time, err
	}
	if math.IsInf(s.time, 1) {
		return s.time, nil
	}

	e, ok := s.events.Sample(s.rng)
	if !ok {
		return s.time, fmt.Errorf("%w: no event to sample with total rate %v", ErrInvariantViolation, total)
	}
	if err := s.apply(e); err != nil {
		return s.time, err
	}
	s.steps++

	for _, l := range s.eventLoggers {
		if err := l.LogEvent(s.model, s.time, e); err != nil {
			return s.time, &LoggingError{Phase: "event", Err: err}
		}
	}
	return s.time, nil
}

// apply fires e and mirrors its reported changes into the sampler. Events
// reported for removal are never re-inserted, even if also reported for update.
func (s *Simulator) apply(e Event) error {
	s.changes.Reset()
	if err := e.Apply(s.time, s.rng, &s.changes); err != nil {
		return fmt.Errorf("apply %T at t=%v: %w", e, s.time, err)
	}
	for _, r := range s.changes.Remove.Items() {
		s.events.Remove(r)
	}
	for _, u := range s.changes.Update.Items() {
		if s.changes.Remove.Contains(u) {
			continue
		}
		rate, err := checkRate(u)
		if err != nil {
			return err
		}
		if err := s.events.Update(u, rate); err != nil {
			return fmt.Errorf("update %T: %w", u, err)
		}
	}
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("[step %07d] t=%.6f %T removed=%d updated=%d total=%.6g",
			s.steps, s.time, e, s.changes.Remove.Len(), s.changes.Update.Len(), s.events.TotalWeight())
	}
	return nil
}

// catchUp fires every periodic tick at or before the current time, in order.
// At time +Inf each logger gets at most its next pending tick.
func (s *Simulator) catchUp() error {
	for _, l := range s.periodicLoggers {
		for {
			next := l.NextLogTime(s.model)
			if math.IsNaN(next) || math.IsInf(next, 0) || next > s.time {
				break
			}
			if err := l.LogPeriodic(s.model, next); err != nil {
				return &LoggingError{Phase: "periodic", Err: err}
			}
			if math.IsInf(s.time, 1) {
				break
			}
			if after := l.NextLogTime(s.model); after <= next {
				return fmt.Errorf("%w: periodic logger %T did not advance past t=%v", ErrConfiguration, l, next)
			}
		}
	}
	return nil
}

// RunUntil steps while the time is below t. It stops early once the model
// reaches an absorbing state.
func (s *Simulator) RunUntil(t float64) error {
	if s.state == StateFinished {
		return ErrFinished
	}
	if err := s.Initialize(); err != nil {
		return err
	}
	for s.time < t {
		now, err := s.PerformNextEvent()
		if err != nil {
			return err
		}
		if math.IsInf(now, 1) {
			break
		}
	}
	logrus.Debugf("[t=%.6f] RunUntil(%v) done after %d events", s.time, t, s.steps)
	return nil
}

// RunFor runs for d units of simulated time past the current time.
func (s *Simulator) RunFor(d float64) error {
	return s.RunUntil(s.time + d)
}

// Finish ends the run and calls LogEnd on every logger. It initializes the
// simulator first if needed; later calls are no-ops.
func (s *Simulator) Finish() error {
	if s.state == StateFinished {
		return nil
	}
	if err := s.Initialize(); err != nil {
		return err
	}
	s.state = StateFinished
	logrus.Infof("[t=%.6f] Simulation finished after %d events", s.time, s.steps)

	for _, l := range s.eventLoggers {
		if err := l.LogEnd(s.model); err != nil {
			return &LoggingError{Phase: "end", Err: err}
		}
	}
	for _, l := range s.periodicLoggers {
		if err := l.LogEnd(s.model); err != nil {
			return &LoggingError{Phase: "end", Err: err}
		}
	}
	return nil
}

func checkRate(e Event) (float64, error) {
	r := e.Rate()
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0, fmt.Errorf("%w: event %T has rate %v", ErrInvariantViolation, e, r)
	}
	return r, nil
}
