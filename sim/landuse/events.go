package landuse

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// Kind identifies a land-use event.
type Kind uint8

const (
	// KindPD is abandonment of a populated site (P -> D).
	KindPD Kind = iota
	// KindAD is abandonment of agricultural land (A -> D).
	KindAD
	// KindFA is conversion of forest to agriculture (F -> A).
	KindFA
	// KindDFP is colonization of forest or degraded land (F|D -> P).
	KindDFP
	// KindDF is recovery of degraded land (D -> F).
	KindDF
	// KindBetaChange is a mutation of a populated site's beta.
	KindBetaChange
	numKinds
)

var kindNames = [numKinds]string{"PD", "AD", "FA", "DFP", "DF", "BetaChange"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds returns every event kind in order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Event is one site's pending transition. Rate and Apply dispatch on Kind.
type Event struct {
	Kind Kind
	Site *model.Site
	m    *Model
}

// Owner returns the site the event belongs to.
func (e *Event) Owner() *model.Site { return e.Site }

// Label returns the kind name.
func (e *Event) Label() string { return e.Kind.String() }

func (e *Event) String() string {
	return fmt.Sprintf("%s%v", e.Kind, e.Site)
}

func (e *Event) Rate() float64 {
	return rates[e.Kind](e.m, e.Site)
}

func (e *Event) Apply(t float64, rng *rand.Rand, ch *sim.Changes) error {
	return applies[e.Kind](e.m, e.Site, t, rng, ch)
}

type (
	rateFunc  func(m *Model, s *model.Site) float64
	applyFunc func(m *Model, s *model.Site, t float64, rng *rand.Rand, ch *sim.Changes) error
)

var (
	rates = [numKinds]rateFunc{
		KindPD:         (*Model).ratePD,
		KindAD:         (*Model).rateAD,
		KindFA:         (*Model).rateFA,
		KindDFP:        (*Model).rateDFP,
		KindDF:         (*Model).rateDF,
		KindBetaChange: (*Model).rateBetaChange,
	}
	applies = [numKinds]applyFunc{
		KindPD:         (*Model).applyPD,
		KindAD:         (*Model).applyAD,
		KindFA:         (*Model).applyFA,
		KindDFP:        (*Model).applyDFP,
		KindDF:         (*Model).applyDF,
		KindBetaChange: (*Model).applyBetaChange,
	}
)

// Moore neighborhood sizes used to normalize neighbor counts.
const (
	neighbors      = 8.0
	otherNeighbors = 7.0
)

const (
	betaLowerBound = 0.0
	betaUpperBound = 1.0
)

// === Rates ===

func (m *Model) ratePD(s *model.Site) float64 {
	nA := float64(s.CountNeighbors(Agricultural))
	return 1 - nA/(nA+m.params.C)
}

func (m *Model) rateAD(s *model.Site) float64 {
	if !m.params.DeltaF {
		return m.params.Delta
	}
	if s.CountNeighbors(Populated) == 0 {
		return 1
	}
	nFq := math.Pow(float64(s.CountNeighbors(Forest)), m.params.Q)
	return 1 - nFq/(nFq+m.params.M)
}

func (m *Model) rateFA(s *model.Site) float64 {
	total := 0.0
	for _, nb := range s.Neighbors {
		if nb != nil && nb.State == Populated {
			total += nb.Aux
		}
	}
	return total
}

func (m *Model) rateDFP(s *model.Site) float64 {
	total := 0.0
	for _, nb := range s.Neighbors {
		if nb != nil && nb.State == Populated {
			total += m.alpha(nb)
		}
	}
	return total
}

func (m *Model) rateDF(s *model.Site) float64 {
	if m.params.EpsF {
		return m.params.Eps * float64(s.CountNeighbors(Forest)) / neighbors
	}
	return m.params.Eps
}

func (m *Model) rateBetaChange(*model.Site) float64 {
	return m.params.Mu
}

// alpha is the colonization pressure exerted by populated site p.
func (m *Model) alpha(p *model.Site) float64 {
	prod := m.productivity(p)
	return prod / (prod + m.params.R)
}

// productivity is the agricultural output around populated site p.
func (m *Model) productivity(p *model.Site) float64 {
	prod := 0.0
	for _, a := range p.Neighbors {
		if a == nil || a.State != Agricultural {
			continue
		}
		switch m.params.Productivity {
		case ProductivityAF:
			prod += float64(a.CountNeighbors(Forest)) / otherNeighbors
		default:
			prod++
		}
	}
	return prod
}

// === Applies ===

func (m *Model) applyPD(s *model.Site, t float64, _ *rand.Rand, ch *sim.Changes) error {
	beta := s.Aux
	if err := m.grid.Transition(s, Populated, Degraded, t, ch); err != nil {
		return err
	}
	m.betaSum -= beta
	s.Aux = 0
	if m.grid.Census().Count(Populated) == 0 {
		m.betaSum = 0
	}
	return nil
}

func (m *Model) applyAD(s *model.Site, t float64, _ *rand.Rand, ch *sim.Changes) error {
	return m.grid.Transition(s, Agricultural, Degraded, t, ch)
}

func (m *Model) applyFA(s *model.Site, t float64, _ *rand.Rand, ch *sim.Changes) error {
	return m.grid.Transition(s, Forest, Agricultural, t, ch)
}

// applyDFP colonizes s. The new population inherits the beta of a populated
// neighbor drawn in proportion to its alpha, computed before s changes.
func (m *Model) applyDFP(s *model.Site, t float64, rng *rand.Rand, ch *sim.Changes) error {
	from := s.State
	if from != Forest && from != Degraded {
		return fmt.Errorf("%w: colonization of site %v in state %s", sim.ErrInvariantViolation, s, StateNames[from])
	}

	var (
		sources []*model.Site
		weights []float64
		total   float64
	)
	for _, nb := range s.Neighbors {
		if nb != nil && nb.State == Populated {
			w := m.alpha(nb)
			sources = append(sources, nb)
			weights = append(weights, w)
			total += w
		}
	}
	if total <= 0 {
		return fmt.Errorf("%w: colonization of site %v with no productive populated neighbor", sim.ErrInvariantViolation, s)
	}
	x := rng.Float64() * total
	parent := sources[len(sources)-1]
	for i, w := range weights {
		if x < w {
			parent = sources[i]
			break
		}
		x -= w
	}

	if err := m.grid.Transition(s, from, Populated, t, ch); err != nil {
		return err
	}
	s.Aux = parent.Aux
	m.betaSum += s.Aux
	return nil
}

func (m *Model) applyDF(s *model.Site, t float64, _ *rand.Rand, ch *sim.Changes) error {
	return m.grid.Transition(s, Degraded, Forest, t, ch)
}

// applyBetaChange perturbs beta by a normal step, clamped to [0, 1], and
// marks the forest neighbors' conversion events dirty.
func (m *Model) applyBetaChange(s *model.Site, _ float64, rng *rand.Rand, ch *sim.Changes) error {
	if s.State != Populated {
		return fmt.Errorf("%w: beta change at site %v in state %s", sim.ErrInvariantViolation, s, StateNames[s.State])
	}
	old := s.Aux
	beta := old + distuv.Normal{Mu: 0, Sigma: m.params.Sigma, Src: rng}.Rand()
	if beta < betaLowerBound || beta > betaUpperBound {
		logrus.Tracef("beta %.4f at site %v clamped to [0, 1]", beta, s)
		beta = math.Min(math.Max(beta, betaLowerBound), betaUpperBound)
	}
	s.Aux = beta
	m.betaSum += beta - old

	for _, nb := range s.Neighbors {
		if nb != nil && nb.State == Forest {
			if e := nb.Active(Agricultural); e != nil {
				ch.Update.Add(e)
			}
		}
	}
	return nil
}
