package model

import "fmt"

// RateFunction computes the per-entity rate of a transition from the
// populations of its reactant states.
//
// In a well-mixed model total is the whole population and populations are
// global counts. On a lattice they are counted over the sites within
// Radius() hops of the transitioning site, total being the number of such
// sites.
type RateFunction interface {
	Rate(total int, populations []int) float64
	// Radius is the farthest distance, in neighbor hops, at which the
	// function reads other sites' states.
	Radius() int
}

// Density selects how MassAction normalizes reactant populations.
type Density int

const (
	// Absolute uses raw counts.
	Absolute Density = iota
	// Fractional divides each count by the total.
	Fractional
)

func (d Density) String() string {
	switch d {
	case Absolute:
		return "absolute"
	case Fractional:
		return "fractional"
	default:
		return fmt.Sprintf("Density(%d)", int(d))
	}
}

// ParseDensity converts "absolute" or "fractional" to a Density.
func ParseDensity(s string) (Density, error) {
	switch s {
	case "absolute", "":
		return Absolute, nil
	case "fractional":
		return Fractional, nil
	default:
		return 0, fmt.Errorf("unknown density %q (want absolute or fractional)", s)
	}
}

// MassAction is the law of mass action: K times the product of the reactant
// populations, each optionally divided by the total.
type MassAction struct {
	K       float64
	Density Density
}

func (f MassAction) Rate(total int, populations []int) float64 {
	rate := f.K
	for _, p := range populations {
		rate *= float64(p)
		if f.Density == Fractional {
			if total == 0 {
				return 0
			}
			rate /= float64(total)
		}
	}
	return rate
}

func (MassAction) Radius() int { return 1 }

// AtRadius widens f to read populations up to r hops away.
func AtRadius(f RateFunction, r int) RateFunction {
	return radiusFunc{RateFunction: f, r: r}
}

type radiusFunc struct {
	RateFunction
	r int
}

func (f radiusFunc) Radius() int { return f.r }
