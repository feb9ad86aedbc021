// Package landuse implements a four-state lattice model of human land use.
//
// Populated sites (P) convert neighboring forest (F) to agriculture (A) at a
// heritable rate beta, agricultural and populated land is abandoned to a
// degraded state (D), degraded land recovers to forest, and populated sites
// colonize forest (and optionally degraded land) in proportion to the
// agricultural productivity around them. Beta mutates at rate Mu.
//
// Model runs on a lattice; WellMixedModel is its mean-field counterpart.
package landuse

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/lattice"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// Site states.
const (
	Populated model.State = iota
	Agricultural
	Forest
	Degraded
	numStates
)

// StateNames are the short state labels used in output columns.
var StateNames = []string{"P", "A", "F", "D"}

// Model is the land-use model on an L x L periodic Moore lattice. The
// initial configuration is a single populated site at the center of a
// forest.
type Model struct {
	params Params

	grid    *model.Grid
	betaSum float64
}

var _ sim.Model = (*Model)(nil)

// New validates p and returns an uninitialized model.
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sim.ErrConfiguration, err)
	}
	if !p.Spatial {
		return nil, fmt.Errorf("%w: lattice land-use model needs spatial: true", sim.ErrConfiguration)
	}
	return &Model{params: p}, nil
}

// Params returns the model parameters.
func (m *Model) Params() Params { return m.params }

// Initialize builds the lattice. It is idempotent.
func (m *Model) Initialize() error {
	if m.grid != nil {
		return nil
	}
	size := m.params.L
	space, err := lattice.New[model.State](size, size, lattice.Periodic, lattice.Moore)
	if err != nil {
		return err
	}
	center := size / 2
	space.Each(func(row, col int, _ model.State) {
		space.Put(row, col, Forest)
	})
	space.Put(center, center, Populated)

	grid, err := model.NewGrid(space, int(numStates), m.dependencies(), m.populate)
	if err != nil {
		return err
	}
	seed := grid.Site(center, center)
	seed.Aux = m.params.Beta0
	m.betaSum = m.params.Beta0
	m.grid = grid

	logrus.Infof("Land-use model initialized: %dx%d lattice, beta0=%.3f, productivity=%s, useDP=%v",
		size, size, m.params.Beta0, m.params.Productivity, m.params.UseDP)
	return nil
}

// AllEvents returns every site's active events.
func (m *Model) AllEvents() []sim.Event {
	return m.grid.AllEvents()
}

// Grid returns the site grid. It is nil before Initialize.
func (m *Model) Grid() *model.Grid { return m.grid }

// Census returns the state census.
func (m *Model) Census() *model.Census { return m.grid.Census() }

// StateNames returns the state labels in state order.
func (m *Model) StateNames() []string { return StateNames }

// BetaMean returns the mean beta over populated sites, or 0 if there are none.
func (m *Model) BetaMean() float64 {
	n := m.grid.Census().Count(Populated)
	if n == 0 {
		return 0
	}
	return m.betaSum / float64(n)
}

// Betas returns the betas of all populated sites in ascending order.
func (m *Model) Betas() []float64 {
	betas := make([]float64, 0, m.grid.Census().Count(Populated))
	for _, s := range m.grid.Sites() {
		if s.State == Populated {
			betas = append(betas, s.Aux)
		}
	}
	slices.Sort(betas)
	return betas
}

// populate installs the events legal in the site's state, keyed by
// destination. The beta mutation is keyed by Populated itself.
func (m *Model) populate(site *model.Site) {
	add := func(to model.State, kind Kind) {
		site.SetActive(to, &Event{Kind: kind, Site: site, m: m})
	}
	switch site.State {
	case Populated:
		add(Degraded, KindPD)
		add(Populated, KindBetaChange)
	case Agricultural:
		add(Degraded, KindAD)
	case Forest:
		add(Agricultural, KindFA)
		add(Populated, KindDFP)
	case Degraded:
		add(Forest, KindDF)
		if m.params.UseDP {
			add(Populated, KindDFP)
		}
	}
}

// dependencies lists, for each state, the events whose rate reads whether a
// nearby site is in that state.
func (m *Model) dependencies() *model.DependencyTable {
	p := m.params
	deps := model.NewDependencyTable(int(numStates))
	viaP := []model.State{Populated}
	viaAP := []model.State{Agricultural, Populated}

	// Populated neighbors drive abandonment of agriculture, forest
	// conversion and colonization.
	if p.DeltaF {
		deps.Add(Populated, model.Rule{Owner: Agricultural, Event: Degraded})
	}
	deps.Add(Populated, model.Rule{Owner: Forest, Event: Agricultural})
	deps.Add(Populated, model.Rule{Owner: Forest, Event: Populated})
	if p.UseDP {
		deps.Add(Populated, model.Rule{Owner: Degraded, Event: Populated})
	}

	// Agriculture sets the abandonment rate of populated neighbors and the
	// productivity, hence colonization pressure, of every populated neighbor.
	deps.Add(Agricultural, model.Rule{Owner: Populated, Event: Degraded})
	deps.Add(Agricultural, model.Rule{Via: viaP, Owner: Forest, Event: Populated})
	if p.UseDP {
		deps.Add(Agricultural, model.Rule{Via: viaP, Owner: Degraded, Event: Populated})
	}

	if p.DeltaF {
		deps.Add(Forest, model.Rule{Owner: Agricultural, Event: Degraded})
	}
	if p.Productivity == ProductivityAF {
		deps.Add(Forest, model.Rule{Via: viaAP, Owner: Forest, Event: Populated})
		if p.UseDP {
			deps.Add(Forest, model.Rule{Via: viaAP, Owner: Degraded, Event: Populated})
		}
	}
	if p.EpsF {
		deps.Add(Forest, model.Rule{Owner: Degraded, Event: Forest})
	}
	return deps
}
