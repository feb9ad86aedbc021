package model

import "math"

// Census counts sites per state and accumulates, lazily, the total age of the
// current occupants of each state. Ages are brought up to date only on
// transitions and queries.
type Census struct {
	counts    []int
	lifetimes []float64
	last      float64
	total     int
	anonymous bool
}

// NewCensus returns an empty census over numStates states.
func NewCensus(numStates int) *Census {
	return &Census{
		counts:    make([]int, numStates),
		lifetimes: make([]float64, numStates),
	}
}

// NewAnonymousCensus returns a census for entities without identity, such as
// well-mixed populations. It counts but does not track lifetimes.
func NewAnonymousCensus(numStates int) *Census {
	c := NewCensus(numStates)
	c.anonymous = true
	return c
}

// Add records a new entity in state s, born at the census' current time.
func (c *Census) Add(s State, n int) {
	c.counts[s] += n
	c.total += n
}

// Advance accumulates lifetimes up to time t.
func (c *Census) Advance(t float64) {
	if t <= c.last || math.IsInf(t, 0) {
		return
	}
	dt := t - c.last
	for s, n := range c.counts {
		c.lifetimes[s] += float64(n) * dt
	}
	c.last = t
}

// Transition moves one entity born at birth from state from to state to at
// time t.
func (c *Census) Transition(from, to State, birth, t float64) {
	c.Advance(t)
	c.counts[from]--
	c.counts[to]++
	if !c.anonymous {
		c.lifetimes[from] -= t - birth
	}
}

// Count returns the number of entities in state s.
func (c *Census) Count(s State) int { return c.counts[s] }

// Total returns the number of entities.
func (c *Census) Total() int { return c.total }

// NumStates returns the number of states tracked.
func (c *Census) NumStates() int { return len(c.counts) }

// Counts returns a copy of the per-state counts.
func (c *Census) Counts() []int {
	out := make([]int, len(c.counts))
	copy(out, c.counts)
	return out
}

// AvgLifetime returns the mean age at time t of the entities currently in
// state s. It is NaN when the state is empty or lifetimes are not tracked.
func (c *Census) AvgLifetime(s State, t float64) float64 {
	if c.anonymous || c.counts[s] == 0 {
		return math.NaN()
	}
	c.Advance(t)
	return c.lifetimes[s] / float64(c.counts[s])
}
