package landuse

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// WellMixedModel is the mean-field version of Model: N = L*L sites with no
// geometry. Every neighborhood count of the lattice model is replaced by its
// expectation, 8 times the global fraction of the state. It keeps one
// persistent event per kind and the multiset of populated-site betas.
type WellMixedModel struct {
	params Params
	n      int

	census  *model.Census
	events  []*mixedEvent
	deps    [numStates][]sim.Event
	betas   []float64
	betaSum float64
}

var _ sim.Model = (*WellMixedModel)(nil)

// Build returns the lattice model, or the well-mixed one when p.Spatial is
// false.
func Build(p Params) (sim.Model, error) {
	if p.Spatial {
		return New(p)
	}
	return NewWellMixed(p)
}

// NewWellMixed validates p and returns an uninitialized well-mixed model.
// p.Spatial must be false.
func NewWellMixed(p Params) (*WellMixedModel, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sim.ErrConfiguration, err)
	}
	if p.Spatial {
		return nil, fmt.Errorf("%w: well-mixed land-use model needs spatial: false", sim.ErrConfiguration)
	}
	return &WellMixedModel{params: p, n: p.L * p.L}, nil
}

// Params returns the model parameters.
func (m *WellMixedModel) Params() Params { return m.params }

// Initialize starts from one populated site and N-1 forest sites. It is
// idempotent.
func (m *WellMixedModel) Initialize() error {
	if m.census != nil {
		return nil
	}
	m.census = model.NewAnonymousCensus(int(numStates))
	m.census.Add(Populated, 1)
	m.census.Add(Forest, m.n-1)
	m.betas = []float64{m.params.Beta0}
	m.betaSum = m.params.Beta0

	m.events = make([]*mixedEvent, numKinds)
	for _, k := range Kinds() {
		m.events[k] = &mixedEvent{Kind: k, m: m}
	}
	m.buildDependencies()

	logrus.Infof("Well-mixed land-use model initialized: N=%d, beta0=%.3f, productivity=%s",
		m.n, m.params.Beta0, m.params.Productivity)
	return nil
}

// buildDependencies lists, for each state, the events whose rate reads that
// state's count.
func (m *WellMixedModel) buildDependencies() {
	p := m.params
	on := func(s model.State, kinds ...Kind) {
		for _, k := range kinds {
			m.deps[s] = append(m.deps[s], m.events[k])
		}
	}
	on(Populated, KindPD)
	if p.DeltaF {
		on(Populated, KindAD)
	}
	on(Populated, KindFA, KindDFP, KindBetaChange)

	on(Agricultural, KindPD, KindAD, KindDFP)

	if p.DeltaF {
		on(Forest, KindAD)
	}
	on(Forest, KindFA, KindDFP)
	if p.EpsF {
		on(Forest, KindDF)
	}

	on(Degraded, KindDF)
}

// AllEvents returns the six persistent events.
func (m *WellMixedModel) AllEvents() []sim.Event {
	out := make([]sim.Event, len(m.events))
	for i, e := range m.events {
		out[i] = e
	}
	return out
}

// Census returns the state census. Lifetimes are not tracked.
func (m *WellMixedModel) Census() *model.Census { return m.census }

// StateNames returns the state labels in state order.
func (m *WellMixedModel) StateNames() []string { return StateNames }

// BetaMean returns the mean beta over populated sites, or 0 if there are none.
func (m *WellMixedModel) BetaMean() float64 {
	if len(m.betas) == 0 {
		return 0
	}
	return m.betaSum / float64(len(m.betas))
}

// Betas returns the betas of all populated sites in ascending order.
func (m *WellMixedModel) Betas() []float64 {
	out := slices.Clone(m.betas)
	slices.Sort(out)
	return out
}

// BetaStats returns statistics of the current betas. ok is false when no
// site is populated.
func (m *WellMixedModel) BetaStats() (BetaStats, bool) {
	return summarizeBetas(m.Betas(), m.BetaMean())
}

// fraction returns 8 times the global fraction of sites in state s, the
// expected number of neighbors in s.
func (m *WellMixedModel) fraction(s model.State) float64 {
	return neighbors * float64(m.census.Count(s)) / float64(m.n)
}

// move transitions one site and reports the events depending on either state.
func (m *WellMixedModel) move(from, to model.State, t float64, ch *sim.Changes) error {
	if m.census.Count(from) == 0 {
		return fmt.Errorf("%w: no %s site to move to %s", sim.ErrInvariantViolation, StateNames[from], StateNames[to])
	}
	m.census.Transition(from, to, t, t)
	ch.Update.AddAll(m.deps[from]...)
	ch.Update.AddAll(m.deps[to]...)
	return nil
}

// mixedEvent is the single event of one kind in a well-mixed model.
type mixedEvent struct {
	Kind Kind
	m    *WellMixedModel
}

// Label returns the event kind name.
func (e *mixedEvent) Label() string { return e.Kind.String() }

func (e *mixedEvent) String() string { return e.Kind.String() }

func (e *mixedEvent) Rate() float64 {
	m := e.m
	p := m.params
	c := m.census
	switch e.Kind {
	case KindPD:
		nA := m.fraction(Agricultural)
		return float64(c.Count(Populated)) * (1 - nA/(nA+p.C))
	case KindAD:
		factor := p.Delta
		if p.DeltaF {
			factor = 1
			if c.Count(Populated) > 0 {
				nF := math.Pow(m.fraction(Forest), p.Q)
				factor = 1 - nF/(nF+p.M)
			}
		}
		return factor * float64(c.Count(Agricultural))
	case KindFA:
		return float64(c.Count(Forest)) * neighbors * m.betaSum / float64(m.n)
	case KindDFP:
		prod := m.fraction(Agricultural)
		if p.Productivity == ProductivityAF {
			prod *= m.fraction(Forest) / otherNeighbors
		}
		return float64(c.Count(Forest)) * m.fraction(Populated) * prod / (prod + p.R)
	case KindDF:
		if p.EpsF {
			return p.Eps * float64(c.Count(Degraded)*c.Count(Forest)) / float64(m.n)
		}
		return p.Eps * float64(c.Count(Degraded))
	case KindBetaChange:
		return p.Mu * float64(c.Count(Populated))
	}
	return 0
}

func (e *mixedEvent) Apply(t float64, rng *rand.Rand, ch *sim.Changes) error {
	m := e.m
	switch e.Kind {
	case KindPD:
		if err := m.move(Populated, Degraded, t, ch); err != nil {
			return err
		}
		m.removeBeta(rng.IntN(len(m.betas)))
		return nil
	case KindAD:
		return m.move(Agricultural, Degraded, t, ch)
	case KindFA:
		return m.move(Forest, Agricultural, t, ch)
	case KindDFP:
		if len(m.betas) == 0 {
			return fmt.Errorf("%w: colonization with no populated site", sim.ErrInvariantViolation)
		}
		beta := m.betas[m.pickParent(rng)]
		if err := m.move(Forest, Populated, t, ch); err != nil {
			return err
		}
		m.betas = append(m.betas, beta)
		m.betaSum += beta
		return nil
	case KindDF:
		return m.move(Degraded, Forest, t, ch)
	case KindBetaChange:
		return m.mutateBeta(rng, ch)
	}
	return fmt.Errorf("%w: unknown event kind %v", sim.ErrInvariantViolation, e.Kind)
}

// removeBeta drops the beta at i, swapping the last one into its place.
func (m *WellMixedModel) removeBeta(i int) {
	last := len(m.betas) - 1
	m.betaSum -= m.betas[i]
	m.betas[i] = m.betas[last]
	m.betas = m.betas[:last]
	if last == 0 {
		m.betaSum = 0
	}
}

// pickParent draws a populated site with probability proportional to its
// beta, or uniformly when every beta is 0.
func (m *WellMixedModel) pickParent(rng *rand.Rand) int {
	if m.betaSum <= 0 {
		return rng.IntN(len(m.betas))
	}
	x := rng.Float64() * m.betaSum
	for i, b := range m.betas {
		if x < b {
			return i
		}
		x -= b
	}
	return len(m.betas) - 1
}

func (m *WellMixedModel) mutateBeta(rng *rand.Rand, ch *sim.Changes) error {
	if len(m.betas) == 0 {
		return fmt.Errorf("%w: beta change with no populated site", sim.ErrInvariantViolation)
	}
	i := rng.IntN(len(m.betas))
	old := m.betas[i]
	beta := old + distuv.Normal{Mu: 0, Sigma: m.params.Sigma, Src: rng}.Rand()
	if beta < betaLowerBound || beta > betaUpperBound {
		logrus.Tracef("beta %.4f clamped to [0, 1]", beta)
		beta = math.Min(math.Max(beta, betaLowerBound), betaUpperBound)
	}
	m.betas[i] = beta
	m.betaSum += beta - old
	ch.Update.Add(m.events[KindFA])
	return nil
}
