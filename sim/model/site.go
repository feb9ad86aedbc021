// Package model provides the building blocks of lattice and well-mixed
// discrete-state models: sites with per-state active-event tables, a census
// of state populations and lifetimes, table-driven dependency propagation,
// and a generic DiscreteStateModel assembled from transitions and rate
// functions.
package model

import (
	"fmt"

	"github.com/ssa-sim/ssa-sim/sim"
)

// State is a discrete state. Models number their states 0..n-1.
type State int

// AnyState matches every state in a Rule's Via chain.
const AnyState State = -1

// Matches reports whether s satisfies the pattern p.
func (s State) Matches(p State) bool {
	return p == AnyState || s == p
}

// Owned is implemented by events that belong to a single site.
type Owned interface {
	Owner() *Site
}

// Site is one lattice cell.
type Site struct {
	Row, Col int
	State    State
	// Aux is a model-specific continuous attribute (e.g. a conversion rate).
	Aux float64
	// Birth is the time the site entered its current state.
	Birth float64
	// Neighbors is the fixed-order neighbor list. Entries are nil for
	// positions outside a bounded lattice.
	Neighbors []*Site

	// active holds the live event for each destination state.
	active []sim.Event
}

// NewSite returns a site in state with room for numStates destinations.
func NewSite(row, col int, state State, numStates int) *Site {
	return &Site{
		Row:    row,
		Col:    col,
		State:  state,
		active: make([]sim.Event, numStates),
	}
}

func (s *Site) String() string {
	return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
}

// Active returns the live event leading to state to, or nil.
func (s *Site) Active(to State) sim.Event {
	if to < 0 || int(to) >= len(s.active) {
		return nil
	}
	return s.active[to]
}

// SetActive installs e as the event leading to state to.
func (s *Site) SetActive(to State, e sim.Event) {
	s.active[to] = e
}

// ActiveEvents returns the live events in destination-state order.
func (s *Site) ActiveEvents() []sim.Event {
	out := make([]sim.Event, 0, len(s.active))
	for _, e := range s.active {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// clearActive reports every live event for removal and empties the table.
func (s *Site) clearActive(ch *sim.Changes) {
	for i, e := range s.active {
		if e != nil {
			ch.Remove.Add(e)
			s.active[i] = nil
		}
	}
}

// CountNeighbors returns how many neighbors are in state st.
func (s *Site) CountNeighbors(st State) int {
	n := 0
	for _, nb := range s.Neighbors {
		if nb != nil && nb.State == st {
			n++
		}
	}
	return n
}

// NumNeighbors returns how many neighbor positions are occupied.
func (s *Site) NumNeighbors() int {
	n := 0
	for _, nb := range s.Neighbors {
		if nb != nil {
			n++
		}
	}
	return n
}
