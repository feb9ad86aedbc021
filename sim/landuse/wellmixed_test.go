package landuse

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssa-sim/ssa-sim/sim"
)

func wellMixedParams(l int) Params {
	p := smallParams(l)
	p.Spatial = false
	p.UseDP = false
	return p
}

func newWellMixed(t *testing.T, p Params) *WellMixedModel {
	t.Helper()
	m, err := NewWellMixed(p)
	require.NoError(t, err)
	require.NoError(t, m.Initialize())
	return m
}

func TestNewWellMixed_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr string
	}{
		{"degraded colonization needs a lattice", func(p *Params) { p.UseDP = true }, "use_dp requires spatial"},
		{"spatial params", func(p *Params) { p.Spatial = true }, "needs spatial: false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := wellMixedParams(5)
			tt.mutate(&p)
			_, err := NewWellMixed(p)
			require.ErrorIs(t, err, sim.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_RejectsWellMixedParams(t *testing.T) {
	_, err := New(wellMixedParams(5))
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestBuild_SelectsModelBySpatialFlag(t *testing.T) {
	m, err := Build(smallParams(5))
	require.NoError(t, err)
	assert.IsType(t, &Model{}, m)

	m, err = Build(wellMixedParams(5))
	require.NoError(t, err)
	assert.IsType(t, &WellMixedModel{}, m)
}

func TestWellMixed_InitialRates(t *testing.T) {
	// GIVEN one populated site with beta 1 among 25
	m, err := NewWellMixed(wellMixedParams(5))
	require.NoError(t, err)
	s := sim.NewSimulator(m, rand.New(rand.NewPCG(1, 0)))

	// WHEN initialized
	require.NoError(t, s.Initialize())

	// THEN abandonment, forest conversion and mutation are the only live events
	assert.Equal(t, []int{1, 0, 24, 0}, m.Census().Counts())
	assert.InDelta(t, 1.0, m.events[KindPD].Rate(), 1e-12)
	assert.InDelta(t, 24*8*1.0/25, m.events[KindFA].Rate(), 1e-12)
	assert.InDelta(t, 0.2, m.events[KindBetaChange].Rate(), 1e-12)
	assert.Equal(t, 3, s.LiveEvents())
	assert.InDelta(t, 1+7.68+0.2, s.TotalRate(), 1e-12)
	assert.Equal(t, 1.0, m.BetaMean())
}

func TestWellMixed_RateFormulas(t *testing.T) {
	// GIVEN 100 sites: 10 P, 20 A, 50 F, 20 D, betas summing to 5
	p := wellMixedParams(10)
	p.EpsF = true
	m := newWellMixed(t, p)
	for i := 0; i < 9; i++ {
		m.census.Transition(Forest, Populated, 0, 0)
	}
	for i := 0; i < 20; i++ {
		m.census.Transition(Forest, Agricultural, 0, 0)
	}
	for i := 0; i < 20; i++ {
		m.census.Transition(Forest, Degraded, 0, 0)
	}
	require.Equal(t, []int{10, 20, 50, 20}, m.Census().Counts())
	m.betas = []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	m.betaSum = 5

	nA, nF, nP := 1.6, 4.0, 0.8
	prodA := nA
	tests := []struct {
		kind Kind
		want float64
	}{
		{KindPD, 10 * (1 - nA/(nA+p.C))},
		{KindAD, 20 * (1 - nF/(nF+p.M))},
		{KindFA, 50 * 8 * 5.0 / 100},
		{KindDFP, 50 * nP * prodA / (prodA + p.R)},
		{KindDF, p.Eps * 20 * 50 / 100},
		{KindBetaChange, p.Mu * 10},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, m.events[tt.kind].Rate(), 1e-12)
		})
	}

	// AND the AF productivity weights agriculture by forest cover
	m.params.Productivity = ProductivityAF
	prodAF := nA * nF / 7
	assert.InDelta(t, 50*nP*prodAF/(prodAF+p.R), m.events[KindDFP].Rate(), 1e-12)
}

func TestWellMixed_Colonization_PicksParentByBeta(t *testing.T) {
	// GIVEN two populated sites, one with beta 0
	m := newWellMixed(t, wellMixedParams(5))
	m.census.Transition(Forest, Populated, 0, 0)
	m.betas = []float64{0, 0.5}
	m.betaSum = 0.5
	rng := rand.New(rand.NewPCG(3, 0))

	// WHEN ten colonizations happen
	for i := 0; i < 10; i++ {
		var ch sim.Changes
		require.NoError(t, m.events[KindDFP].Apply(1, rng, &ch))
	}

	// THEN every colonist inherited 0.5
	require.Len(t, m.betas, 12)
	assert.Equal(t, 12, m.Census().Count(Populated))
	for _, b := range m.betas[2:] {
		assert.Equal(t, 0.5, b)
	}
	assert.InDelta(t, 5.5, m.betaSum, 1e-12)
}

func TestWellMixed_LastAbandonment_ResetsBetaSum(t *testing.T) {
	m := newWellMixed(t, wellMixedParams(5))
	rng := rand.New(rand.NewPCG(1, 0))

	var ch sim.Changes
	require.NoError(t, m.events[KindPD].Apply(1, rng, &ch))

	assert.Empty(t, m.betas)
	assert.Equal(t, 0.0, m.betaSum)
	assert.Equal(t, 0.0, m.BetaMean())
	assert.True(t, ch.Update.Contains(m.events[KindFA]))
	_, ok := m.BetaStats()
	assert.False(t, ok)

	// AND abandoning again is an invariant violation
	err := m.events[KindPD].Apply(2, rng, &ch)
	assert.ErrorIs(t, err, sim.ErrInvariantViolation)
}

func TestWellMixed_LongRunInvariants(t *testing.T) {
	tests := []struct {
		name   string
		params func(p *Params)
	}{
		{"defaults", nil},
		{"productivity AF", func(p *Params) { p.Productivity = ProductivityAF }},
		{"constant delta with forest-scaled recovery", func(p *Params) { p.DeltaF = false; p.EpsF = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN an aggressive parameter set over 81 sites
			p := wellMixedParams(9)
			p.R = 0.5
			p.Mu = 1
			p.Sigma = 0.2
			if tt.params != nil {
				tt.params(&p)
			}
			m, err := NewWellMixed(p)
			require.NoError(t, err)
			s := sim.NewSimulator(m, sim.NewPartitionedRNG(sim.NewSimulationKey(17)).ForSubsystem(sim.SubsystemSimulation))
			require.NoError(t, s.Initialize())

			// WHEN 3000 events are applied
			for i := 0; i < 3000; i++ {
				now, err := s.PerformNextEvent()
				require.NoError(t, err)
				if math.IsInf(now, 1) {
					break
				}

				// THEN every rate the sampler holds is current
				for _, e := range m.AllEvents() {
					require.InDelta(t, e.Rate(), s.Rate(e), 1e-9, "stale rate for %v at step %d", e, i)
				}
				require.Len(t, m.betas, m.Census().Count(Populated))
			}

			// AND the running beta sum matches the betas
			sum := 0.0
			for _, b := range m.betas {
				assert.GreaterOrEqual(t, b, 0.0)
				assert.LessOrEqual(t, b, 1.0)
				sum += b
			}
			assert.InDelta(t, sum, m.betaSum, 1e-9)
			assert.Equal(t, 81, m.Census().Total())
		})
	}
}

func TestWellMixed_SameSeed_SameTrajectory(t *testing.T) {
	run := func() ([]int, []float64) {
		p := wellMixedParams(8)
		p.R = 0.5
		m, err := NewWellMixed(p)
		require.NoError(t, err)
		s := sim.NewSimulator(m, sim.NewPartitionedRNG(sim.NewSimulationKey(99)).ForSubsystem(sim.SubsystemSimulation))
		require.NoError(t, s.RunUntil(5))
		return m.Census().Counts(), m.Betas()
	}

	countsA, betasA := run()
	countsB, betasB := run()

	assert.Equal(t, countsA, countsB)
	assert.Equal(t, betasA, betasB)
}

func TestBetaQuantiles_Levels(t *testing.T) {
	assert.Equal(t, []float64{0.025, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.975}, BetaQuantiles)
}
