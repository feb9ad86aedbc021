package model

import (
	"fmt"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/lattice"
)

// Populator installs on site the events legal for its current state. It is
// called on an empty active table.
type Populator func(site *Site)

// Grid holds one Site per cell of a state lattice and keeps the lattice, the
// census and every site's active-event table consistent across transitions.
type Grid struct {
	states    *lattice.Lattice[State]
	sites     *lattice.Lattice[*Site]
	order     []*Site
	census    *Census
	deps      *DependencyTable
	populate  Populator
	numStates int
}

// NewGrid builds sites from the states stored in space, caches each site's
// neighbors and populates the initial events. space is updated in place on
// every transition.
func NewGrid(space *lattice.Lattice[State], numStates int, deps *DependencyTable, populate Populator) (*Grid, error) {
	sites, err := lattice.New[*Site](space.Rows(), space.Cols(), space.Boundary(), space.Neighborhood())
	if err != nil {
		return nil, err
	}
	g := &Grid{
		states:    space,
		sites:     sites,
		census:    NewCensus(numStates),
		deps:      deps,
		populate:  populate,
		numStates: numStates,
	}

	var bad error
	space.Each(func(row, col int, st State) {
		if bad != nil {
			return
		}
		if st < 0 || int(st) >= numStates {
			bad = fmt.Errorf("%w: cell (%d,%d) has state %d outside [0,%d)", sim.ErrConfiguration, row, col, st, numStates)
			return
		}
		site := NewSite(row, col, st, numStates)
		sites.Put(row, col, site)
		g.order = append(g.order, site)
		g.census.Add(st, 1)
	})
	if bad != nil {
		return nil, bad
	}
	for _, site := range g.order {
		site.Neighbors = sites.Neighbors(site.Row, site.Col)
	}
	for _, site := range g.order {
		populate(site)
	}
	return g, nil
}

// Site returns the site at (row, col), wrapping on periodic lattices. It is
// nil outside a bounded lattice.
func (g *Grid) Site(row, col int) *Site {
	s, _ := g.sites.Get(row, col)
	return s
}

// Sites returns every site in row-major order.
func (g *Grid) Sites() []*Site { return g.order }

func (g *Grid) Rows() int       { return g.sites.Rows() }
func (g *Grid) Cols() int       { return g.sites.Cols() }
func (g *Grid) Census() *Census { return g.census }

// Space returns the state lattice, kept in step with the sites.
func (g *Grid) Space() *lattice.Lattice[State] {
	return g.states
}

// AllEvents returns every active event, site by site in row-major order.
func (g *Grid) AllEvents() []sim.Event {
	var events []sim.Event
	for _, s := range g.order {
		events = append(events, s.ActiveEvents()...)
	}
	return events
}

// Transition moves site from state from to state to at time t. The site's
// old events are reported for removal, its new events and every dependent
// event for update.
func (g *Grid) Transition(site *Site, from, to State, t float64, ch *sim.Changes) error {
	if site.State != from {
		return fmt.Errorf("%w: site %v is in state %d, expected %d", sim.ErrInvariantViolation, site, site.State, from)
	}
	g.census.Transition(from, to, site.Birth, t)
	site.State = to
	site.Birth = t
	g.states.Put(site.Row, site.Col, to)

	site.clearActive(ch)
	g.populate(site)
	ch.Update.AddAll(site.ActiveEvents()...)

	g.deps.Collect(site, from, to, ch)
	return nil
}

// CheckConsistency verifies that the census matches the sites and that every
// site's active table covers exactly the destinations legal in its state.
func (g *Grid) CheckConsistency() error {
	counts := make([]int, g.numStates)
	for _, s := range g.order {
		counts[s.State]++
		if st, _ := g.states.Get(s.Row, s.Col); st != s.State {
			return fmt.Errorf("%w: lattice holds %d at %v, site is in %d", sim.ErrInvariantViolation, st, s, s.State)
		}
		want := NewSite(s.Row, s.Col, s.State, g.numStates)
		want.Neighbors = s.Neighbors
		want.Aux = s.Aux
		g.populate(want)
		for to := 0; to < g.numStates; to++ {
			if (want.active[to] == nil) != (s.active[to] == nil) {
				return fmt.Errorf("%w: site %v in state %d has wrong event table entry for destination %d",
					sim.ErrInvariantViolation, s, s.State, to)
			}
		}
	}
	for st, n := range counts {
		if g.census.Count(State(st)) != n {
			return fmt.Errorf("%w: census counts %d sites in state %d, lattice has %d",
				sim.ErrInvariantViolation, g.census.Count(State(st)), st, n)
		}
	}
	return nil
}
