package model

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/lattice"
)

// DiscreteStateModel is a generic model of entities moving between named
// states. Each transition from -> to has a rate function of the populations
// of its reactant states.
//
// Without a space the model is well mixed: each transition is one persistent
// event whose rate is f(total, reactant counts) times the population of its
// source state. With a space every lattice site owns one event per transition
// out of its current state, and populations are counted over the site's
// neighborhood at the rate function's radius.
//
// Setup methods fail with sim.ErrConfiguration once the model is initialized.
type DiscreteStateModel struct {
	names       []string
	transitions []*Transition
	byFrom      [][]*Transition

	space   *lattice.Lattice[State]
	initial []int

	census *Census
	grid   *Grid
	deps   [][]sim.Event // well-mixed: transitions to update when a state's count changes

	initialized bool
}

var _ sim.Model = (*DiscreteStateModel)(nil)

// NewDiscreteStateModel creates a model whose states are numbered in the
// order of names.
func NewDiscreteStateModel(names ...string) *DiscreteStateModel {
	return &DiscreteStateModel{
		names:   names,
		byFrom:  make([][]*Transition, len(names)),
		initial: make([]int, len(names)),
	}
}

// NumStates returns the number of states.
func (m *DiscreteStateModel) NumStates() int { return len(m.names) }

// StateName returns the name of s.
func (m *DiscreteStateModel) StateName(s State) string {
	if !m.valid(s) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return m.names[s]
}

// StateNames returns the state names in state order.
func (m *DiscreteStateModel) StateNames() []string { return m.names }

// StateByName looks a state up by name.
func (m *DiscreteStateModel) StateByName(name string) (State, bool) {
	for i, n := range m.names {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// AddTransition registers a transition from -> to whose per-entity rate is
// f evaluated on the populations of reactants, in order.
func (m *DiscreteStateModel) AddTransition(from, to State, reactants []State, f RateFunction) error {
	if m.initialized {
		return fmt.Errorf("%w: AddTransition after initialization", sim.ErrConfiguration)
	}
	if !m.valid(from) || !m.valid(to) {
		return fmt.Errorf("%w: transition %d -> %d references an unknown state", sim.ErrConfiguration, from, to)
	}
	if from == to {
		return fmt.Errorf("%w: transition %s -> %s does not change state", sim.ErrConfiguration, m.names[from], m.names[to])
	}
	if f == nil {
		return fmt.Errorf("%w: transition %s -> %s has no rate function", sim.ErrConfiguration, m.names[from], m.names[to])
	}
	if f.Radius() < 1 {
		return fmt.Errorf("%w: rate function radius %d < 1", sim.ErrConfiguration, f.Radius())
	}
	for _, tr := range m.byFrom[from] {
		if tr.To == to {
			return fmt.Errorf("%w: duplicate transition %s", sim.ErrConfiguration, tr)
		}
	}
	seen := make(map[State]bool, len(reactants))
	for _, r := range reactants {
		if !m.valid(r) {
			return fmt.Errorf("%w: unknown reactant state %d", sim.ErrConfiguration, r)
		}
		if seen[r] {
			return fmt.Errorf("%w: reactant %s listed twice", sim.ErrConfiguration, m.names[r])
		}
		seen[r] = true
	}

	tr := &Transition{
		From:      from,
		To:        to,
		Reactants: append([]State(nil), reactants...),
		Func:      f,
		m:         m,
	}
	m.transitions = append(m.transitions, tr)
	m.byFrom[from] = append(m.byFrom[from], tr)
	return nil
}

// SetSpace makes the model spatial. The lattice holds each cell's initial
// state and is updated in place as the model runs.
func (m *DiscreteStateModel) SetSpace(space *lattice.Lattice[State]) error {
	if m.initialized {
		return fmt.Errorf("%w: SetSpace after initialization", sim.ErrConfiguration)
	}
	m.space = space
	return nil
}

// SetInitialCounts sets the initial population of each state of a
// well-mixed model. Spatial models count their lattice instead.
func (m *DiscreteStateModel) SetInitialCounts(counts map[State]int) error {
	if m.initialized {
		return fmt.Errorf("%w: SetInitialCounts after initialization", sim.ErrConfiguration)
	}
	initial := make([]int, len(m.names))
	for s, n := range counts {
		if !m.valid(s) {
			return fmt.Errorf("%w: unknown state %d", sim.ErrConfiguration, s)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count %d for %s", sim.ErrConfiguration, n, m.names[s])
		}
		initial[s] = n
	}
	m.initial = initial
	return nil
}

// Initialize builds the census and, for spatial models, the sites and their
// events. It is idempotent.
func (m *DiscreteStateModel) Initialize() error {
	if m.initialized {
		return nil
	}
	if len(m.names) == 0 {
		return fmt.Errorf("%w: model has no states", sim.ErrConfiguration)
	}

	if m.space == nil {
		m.initWellMixed()
	} else {
		if err := m.initSpatial(); err != nil {
			return err
		}
	}
	m.initialized = true
	logrus.Debugf("Discrete-state model initialized: %d states, %d transitions, spatial=%v, population %d",
		len(m.names), len(m.transitions), m.space != nil, m.census.Total())
	return nil
}

func (m *DiscreteStateModel) initWellMixed() {
	m.census = NewAnonymousCensus(len(m.names))
	for s, n := range m.initial {
		m.census.Add(State(s), n)
	}
	m.deps = make([][]sim.Event, len(m.names))
	for _, tr := range m.transitions {
		m.addDep(tr.From, tr)
		for _, r := range tr.Reactants {
			m.addDep(r, tr)
		}
	}
}

func (m *DiscreteStateModel) addDep(s State, tr *Transition) {
	for _, e := range m.deps[s] {
		if e == sim.Event(tr) {
			return
		}
	}
	m.deps[s] = append(m.deps[s], tr)
}

func (m *DiscreteStateModel) initSpatial() error {
	for s, n := range m.initial {
		if n != 0 {
			logrus.Warnf("Initial count %d for %s ignored: spatial models count their lattice", n, m.names[s])
		}
	}
	deps := NewDependencyTable(len(m.names))
	for _, tr := range m.transitions {
		// One wildcard rule per distance; on a von Neumann lattice a 2-hop
		// walk never reaches the sites at distance 1.
		for hops := 1; hops <= tr.Func.Radius(); hops++ {
			via := make([]State, hops-1)
			for i := range via {
				via[i] = AnyState
			}
			for _, r := range tr.Reactants {
				deps.Add(r, Rule{Via: via, Owner: tr.From, Event: tr.To})
			}
		}
	}
	grid, err := NewGrid(m.space, len(m.names), deps, m.populate)
	if err != nil {
		return err
	}
	m.grid = grid
	m.census = grid.Census()
	return nil
}

func (m *DiscreteStateModel) populate(site *Site) {
	for _, tr := range m.byFrom[site.State] {
		site.SetActive(tr.To, &SiteEvent{Site: site, Transition: tr})
	}
}

// AllEvents returns the transitions of a well-mixed model, or every site's
// active events of a spatial one.
func (m *DiscreteStateModel) AllEvents() []sim.Event {
	if m.grid != nil {
		return m.grid.AllEvents()
	}
	events := make([]sim.Event, len(m.transitions))
	for i, tr := range m.transitions {
		events[i] = tr
	}
	return events
}

// Census returns the population census. It is nil before Initialize.
func (m *DiscreteStateModel) Census() *Census { return m.census }

// Grid returns the site grid of a spatial model, or nil.
func (m *DiscreteStateModel) Grid() *Grid { return m.grid }

// Space returns the state lattice, or nil for a well-mixed model.
func (m *DiscreteStateModel) Space() *lattice.Lattice[State] { return m.space }

// Transitions returns the registered transitions.
func (m *DiscreteStateModel) Transitions() []*Transition { return m.transitions }

func (m *DiscreteStateModel) valid(s State) bool {
	return s >= 0 && int(s) < len(m.names)
}

// Transition is a from -> to rule of a DiscreteStateModel. In a well-mixed
// model it is also the event that moves one entity.
type Transition struct {
	From, To  State
	Reactants []State
	Func      RateFunction

	m *DiscreteStateModel
}

func (tr *Transition) String() string {
	var b strings.Builder
	b.WriteString(tr.m.StateName(tr.From))
	b.WriteString("->")
	b.WriteString(tr.m.StateName(tr.To))
	return b.String()
}

// Label returns the transition name, e.g. "S->I".
func (tr *Transition) Label() string { return tr.String() }

// Rate is the well-mixed rate: f(total, reactant counts) times the source
// population.
func (tr *Transition) Rate() float64 {
	c := tr.m.census
	n := c.Count(tr.From)
	if n == 0 {
		return 0
	}
	pops := make([]int, len(tr.Reactants))
	for i, r := range tr.Reactants {
		pops[i] = c.Count(r)
	}
	return tr.Func.Rate(c.Total(), pops) * float64(n)
}

// Apply moves one entity from From to To.
func (tr *Transition) Apply(t float64, _ *rand.Rand, ch *sim.Changes) error {
	if tr.m.grid != nil {
		return fmt.Errorf("%w: well-mixed transition %s applied to a spatial model", sim.ErrInvariantViolation, tr)
	}
	if tr.m.census.Count(tr.From) == 0 {
		return fmt.Errorf("%w: transition %s with empty source state", sim.ErrInvariantViolation, tr)
	}
	tr.m.census.Transition(tr.From, tr.To, t, t)
	ch.Update.AddAll(tr.m.deps[tr.From]...)
	ch.Update.AddAll(tr.m.deps[tr.To]...)
	return nil
}

// SiteEvent is a transition of one lattice site.
type SiteEvent struct {
	Site       *Site
	Transition *Transition
}

// Owner returns the transitioning site.
func (e *SiteEvent) Owner() *Site { return e.Site }

// Label returns the transition name.
func (e *SiteEvent) Label() string { return e.Transition.String() }

func (e *SiteEvent) String() string {
	return fmt.Sprintf("%v %s", e.Site, e.Transition)
}

// Rate evaluates the transition's rate function on the populations of the
// site's neighborhood.
func (e *SiteEvent) Rate() float64 {
	tr := e.Transition
	ball := Neighborhood(e.Site, tr.Func.Radius())
	pops := make([]int, len(tr.Reactants))
	for _, nb := range ball {
		for i, r := range tr.Reactants {
			if nb.State == r {
				pops[i]++
			}
		}
	}
	return tr.Func.Rate(len(ball), pops)
}

// Apply changes the site's state.
func (e *SiteEvent) Apply(t float64, _ *rand.Rand, ch *sim.Changes) error {
	tr := e.Transition
	return tr.m.grid.Transition(e.Site, tr.From, tr.To, t, ch)
}

// Neighborhood returns the sites within radius hops of site, excluding site
// itself. Radius 1 is the neighbor list as is; on tiny periodic lattices it
// may repeat a site. Larger radii return distinct sites.
func Neighborhood(site *Site, radius int) []*Site {
	if radius <= 1 {
		out := make([]*Site, 0, len(site.Neighbors))
		for _, nb := range site.Neighbors {
			if nb != nil {
				out = append(out, nb)
			}
		}
		return out
	}
	seen := map[*Site]struct{}{site: {}}
	var out []*Site
	frontier := []*Site{site}
	for hop := 0; hop < radius; hop++ {
		var next []*Site
		for _, s := range frontier {
			for _, nb := range s.Neighbors {
				if nb == nil {
					continue
				}
				if _, ok := seen[nb]; ok {
					continue
				}
				seen[nb] = struct{}{}
				out = append(out, nb)
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return out
}
