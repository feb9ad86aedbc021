package logging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/landuse"
	"github.com/ssa-sim/ssa-sim/sim/model"
	"github.com/ssa-sim/ssa-sim/sim/sir"
)

func newRNG(seed int64) *sim.PartitionedRNG {
	return sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
}

func newLanduse(t *testing.T, l int) (*landuse.Model, *sim.Simulator) {
	t.Helper()
	p := landuse.DefaultParams()
	p.L = l
	p.R = 0.5
	m, err := landuse.New(p)
	require.NoError(t, err)
	return m, sim.NewSimulator(m, newRNG(7).ForSubsystem(sim.SubsystemSimulation))
}

func newWellMixedSIR(t *testing.T, beta float64) (*model.DiscreteStateModel, *sim.Simulator) {
	t.Helper()
	p := sir.DefaultParams()
	p.Beta = beta
	m, err := sir.New(p, nil)
	require.NoError(t, err)
	return m, sim.NewSimulator(m, newRNG(7).ForSubsystem(sim.SubsystemSimulation))
}

// bareModel has neither a census nor a grid.
type bareModel struct{}

func (bareModel) Initialize() error      { return nil }
func (bareModel) AllEvents() []sim.Event { return nil }
