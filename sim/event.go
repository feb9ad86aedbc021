package sim

import (
	"fmt"
	"math/rand/v2"
)

// Event is a transition that a model entity can undergo.
//
// Events are compared by identity: implementations are pointer types, and the
// simulator uses the Event value itself as its sampler key. An event must
// report a non-negative finite rate for as long as it is live.
type Event interface {
	// Rate returns the current instantaneous rate of the event. It is
	// recomputed on demand whenever the event appears in an update set.
	Rate() float64

	// Apply mutates the owning entity's state at simulation time t and records
	// in ch which events stopped being valid and which may have a new rate.
	// All randomness must be drawn from rng.
	Apply(t float64, rng *rand.Rand, ch *Changes) error
}

// Labeled is implemented by events that name their kind with a short label,
// such as "FA" or "S->I". Labels are shared by every event of the same kind.
type Labeled interface {
	Label() string
}

// EventLabel returns e's label, or its dynamic type if it has none.
func EventLabel(e Event) string {
	if l, ok := e.(Labeled); ok {
		return l.Label()
	}
	return fmt.Sprintf("%T", e)
}

// EventSet is an insertion-ordered set of events. Iteration order is the
// order of first insertion, so processing a set is deterministic.
type EventSet struct {
	items []Event
	seen  map[Event]struct{}
}

// Add inserts e if it is not already present.
func (s *EventSet) Add(e Event) {
	if s.seen == nil {
		s.seen = make(map[Event]struct{})
	}
	if _, ok := s.seen[e]; ok {
		return
	}
	s.seen[e] = struct{}{}
	s.items = append(s.items, e)
}

// AddAll inserts every event in es.
func (s *EventSet) AddAll(es ...Event) {
	for _, e := range es {
		s.Add(e)
	}
}

// Contains reports whether e is in the set.
func (s *EventSet) Contains(e Event) bool {
	_, ok := s.seen[e]
	return ok
}

// Items returns the events in insertion order. The slice is reused after
// Clear; callers must not retain it.
func (s *EventSet) Items() []Event {
	return s.items
}

// Len returns the number of events in the set.
func (s *EventSet) Len() int {
	return len(s.items)
}

// Clear empties the set, keeping allocated storage.
func (s *EventSet) Clear() {
	clear(s.seen)
	clear(s.items)
	s.items = s.items[:0]
}

// Changes is filled in by Event.Apply.
type Changes struct {
	// Remove holds events whose validity ended: their owner left the state
	// that made them possible.
	Remove EventSet
	// Update holds events whose rate may have changed. Events also present in
	// Remove are ignored.
	Update EventSet
}

// Reset clears both sets.
func (c *Changes) Reset() {
	c.Remove.Clear()
	c.Update.Clear()
}
