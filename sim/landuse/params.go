package landuse

import (
	"errors"
	"fmt"
)

// Productivity selects how agricultural productivity around a populated site
// is measured.
type Productivity string

const (
	// ProductivityA counts agricultural neighbors.
	ProductivityA Productivity = "A"
	// ProductivityAF weights each agricultural neighbor by its own forest
	// neighbors, out of 7.
	ProductivityAF Productivity = "AF"
)

// Params are the land-use model parameters. Field names follow the model's
// published notation.
type Params struct {
	// Mu is the rate of beta mutation per populated site.
	Mu float64 `yaml:"mu"`
	// Sigma is the standard deviation of one beta mutation.
	Sigma float64 `yaml:"sigma"`
	// C controls the P->D rate: 1 - nA/(nA+C).
	C float64 `yaml:"c"`
	// DeltaF makes the A->D rate depend on forested neighbors.
	DeltaF bool `yaml:"delta_f"`
	// Delta is the constant A->D rate when DeltaF is false.
	Delta float64 `yaml:"delta"`
	// M and Q shape the variable A->D rate: 1 - nF^Q/(nF^Q+M).
	M float64 `yaml:"m"`
	Q float64 `yaml:"q"`
	// Eps is the D->F recovery rate.
	Eps float64 `yaml:"eps"`
	// EpsF scales the D->F rate by the fraction of forested neighbors.
	EpsF bool `yaml:"eps_f"`
	// Beta0 is the F->A conversion rate of the initial populated site.
	Beta0 float64 `yaml:"beta0"`
	// R controls colonization: alpha = prod/(prod+R).
	R float64 `yaml:"r"`
	// UseDP lets populated sites colonize degraded land.
	UseDP        bool         `yaml:"use_dp"`
	Productivity Productivity `yaml:"productivity"`
	// L is the side of the square lattice. A well-mixed model has L*L sites.
	L int `yaml:"l"`
	// Spatial selects the lattice model; false gives the well-mixed one.
	Spatial bool `yaml:"spatial"`
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		Mu:           0.2,
		Sigma:        0.01,
		C:            0.01,
		DeltaF:       true,
		Delta:        0.5,
		M:            0.3,
		Q:            1,
		Eps:          0.3,
		EpsF:         false,
		Beta0:        1.0,
		R:            12,
		UseDP:        true,
		Productivity: ProductivityA,
		L:            100,
		Spatial:      true,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	var errs []error
	nonNegative := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %v", name, v))
		}
	}
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, v))
		}
	}

	nonNegative("mu", p.Mu)
	nonNegative("sigma", p.Sigma)
	positive("c", p.C)
	nonNegative("delta", p.Delta)
	if p.DeltaF {
		positive("m", p.M)
		positive("q", p.Q)
	}
	nonNegative("eps", p.Eps)
	positive("r", p.R)
	if p.Beta0 < 0 || p.Beta0 > 1 {
		errs = append(errs, fmt.Errorf("beta0 must be in [0, 1], got %v", p.Beta0))
	}
	if p.Productivity != ProductivityA && p.Productivity != ProductivityAF {
		errs = append(errs, fmt.Errorf("productivity must be %q or %q, got %q", ProductivityA, ProductivityAF, p.Productivity))
	}
	if !p.Spatial && p.UseDP {
		errs = append(errs, errors.New("use_dp requires spatial: true"))
	}
	if p.L < 1 {
		errs = append(errs, fmt.Errorf("l must be >= 1, got %d", p.L))
	}
	return errors.Join(errs...)
}
