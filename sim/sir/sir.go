// Package sir builds the susceptible-infected-recovered epidemic on top of
// model.DiscreteStateModel, either well mixed or on a lattice.
package sir

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/lattice"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// Compartments, in state order.
const (
	Susceptible model.State = iota
	Infected
	Recovered
)

// StateNames are the compartment labels.
var StateNames = []string{"S", "I", "R"}

// LatticeParams place the population on a lattice, one individual per site.
type LatticeParams struct {
	Rows         int    `yaml:"rows"`
	Cols         int    `yaml:"cols"`
	Boundary     string `yaml:"boundary"`
	Neighborhood string `yaml:"neighborhood"`
	// Radius is how many hops away infected sites still count. Default 1.
	Radius int `yaml:"radius"`
}

// Params configure the epidemic. Infection runs at Beta times the infected
// density seen by a susceptible, recovery at Nu.
type Params struct {
	Beta            float64 `yaml:"beta"`
	Nu              float64 `yaml:"nu"`
	Population      int     `yaml:"population"`
	InitialInfected int     `yaml:"initial_infected"`
	// Density is "fractional" (beta*I/N) or "absolute" (beta*I).
	Density string         `yaml:"density"`
	Lattice *LatticeParams `yaml:"lattice,omitempty"`
}

// DefaultParams returns a well-mixed outbreak with R0 = 3.
func DefaultParams() Params {
	return Params{
		Beta:            0.3,
		Nu:              0.1,
		Population:      1000,
		InitialInfected: 5,
		Density:         "fractional",
	}
}

// Size is the number of individuals: the lattice area, or Population.
func (p Params) Size() int {
	if p.Lattice != nil {
		return p.Lattice.Rows * p.Lattice.Cols
	}
	return p.Population
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	var errs []error
	if p.Beta < 0 {
		errs = append(errs, fmt.Errorf("beta must be >= 0, got %v", p.Beta))
	}
	if p.Nu < 0 {
		errs = append(errs, fmt.Errorf("nu must be >= 0, got %v", p.Nu))
	}
	if _, err := model.ParseDensity(p.Density); err != nil {
		errs = append(errs, err)
	}
	if l := p.Lattice; l != nil {
		if l.Rows < 1 || l.Cols < 1 {
			errs = append(errs, fmt.Errorf("lattice must be at least 1x1, got %dx%d", l.Rows, l.Cols))
		}
		if _, err := lattice.ParseBoundary(l.Boundary); err != nil {
			errs = append(errs, err)
		}
		if _, err := lattice.ParseNeighborhood(l.Neighborhood); err != nil {
			errs = append(errs, err)
		}
		if l.Radius < 0 {
			errs = append(errs, fmt.Errorf("lattice radius must be >= 0, got %d", l.Radius))
		}
	} else if p.Population < 1 {
		errs = append(errs, fmt.Errorf("population must be >= 1, got %d", p.Population))
	}
	if p.InitialInfected < 0 || p.InitialInfected > p.Size() {
		errs = append(errs, fmt.Errorf("initial_infected must be in [0, %d], got %d", p.Size(), p.InitialInfected))
	}
	return errors.Join(errs...)
}

// New returns an uninitialized SIR model. On a lattice the initial infected
// sites are drawn from rng; a well-mixed model does not use it.
func New(p Params, rng *rand.Rand) (*model.DiscreteStateModel, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sim.ErrConfiguration, err)
	}
	density, _ := model.ParseDensity(p.Density)

	m := model.NewDiscreteStateModel(StateNames...)
	var infect model.RateFunction = model.MassAction{K: p.Beta, Density: density}
	if p.Lattice != nil && p.Lattice.Radius > 1 {
		infect = model.AtRadius(infect, p.Lattice.Radius)
	}
	if err := m.AddTransition(Susceptible, Infected, []model.State{Infected}, infect); err != nil {
		return nil, err
	}
	if err := m.AddTransition(Infected, Recovered, nil, model.MassAction{K: p.Nu}); err != nil {
		return nil, err
	}

	if p.Lattice == nil {
		if err := m.SetInitialCounts(map[model.State]int{
			Susceptible: p.Population - p.InitialInfected,
			Infected:    p.InitialInfected,
		}); err != nil {
			return nil, err
		}
		logrus.Debugf("SIR model: well mixed, N=%d, I0=%d, beta=%v, nu=%v", p.Population, p.InitialInfected, p.Beta, p.Nu)
		return m, nil
	}

	space, err := newSpace(*p.Lattice, p.InitialInfected, rng)
	if err != nil {
		return nil, err
	}
	if err := m.SetSpace(space); err != nil {
		return nil, err
	}
	logrus.Debugf("SIR model: %dx%d lattice, I0=%d, beta=%v, nu=%v",
		p.Lattice.Rows, p.Lattice.Cols, p.InitialInfected, p.Beta, p.Nu)
	return m, nil
}

func newSpace(l LatticeParams, infected int, rng *rand.Rand) (*lattice.Lattice[model.State], error) {
	boundary, err := lattice.ParseBoundary(l.Boundary)
	if err != nil {
		return nil, err
	}
	neighborhood, err := lattice.ParseNeighborhood(l.Neighborhood)
	if err != nil {
		return nil, err
	}
	space, err := lattice.New[model.State](l.Rows, l.Cols, boundary, neighborhood)
	if err != nil {
		return nil, err
	}
	// Susceptible is the zero state, so the fresh lattice needs only the
	// infected cells set.
	for _, cell := range rng.Perm(l.Rows * l.Cols)[:infected] {
		space.Put(cell/l.Cols, cell%l.Cols, Infected)
	}
	return space, nil
}
