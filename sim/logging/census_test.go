package logging

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/internal/testutil"
	"github.com/ssa-sim/ssa-sim/sim/landuse"
)

func nan() float64 { return math.NaN() }

// nopCloser collects output in memory.
type nopCloser struct{ bytes.Buffer }

func (*nopCloser) Close() error { return nil }

func TestCensusLogger_WellMixed_RowEveryInterval(t *testing.T) {
	// GIVEN a well-mixed SIR run logged every 1.0
	_, s := newWellMixedSIR(t, 0.3)
	var buf nopCloser
	l, err := NewCensusLogger(&buf, 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.AddPeriodicLogger(l))

	// WHEN run to t=3
	require.NoError(t, s.RunUntil(3))
	require.NoError(t, s.Finish())

	// THEN rows start at 0, step by 1 and conserve the population
	records := testutil.ReadCSV(t, &buf)
	assert.Equal(t, []string{"time", "S", "S_lifetime", "I", "I_lifetime", "R", "R_lifetime"}, records[0])
	require.GreaterOrEqual(t, len(records), 5)
	assert.Equal(t, []string{"0", "995", "", "5", "", "0", ""}, records[1])
	for i, row := range records[1:] {
		assert.Equal(t, float64(i), testutil.ParseFloat(t, row[0]))
		total := testutil.ParseFloat(t, row[1]) + testutil.ParseFloat(t, row[3]) + testutil.ParseFloat(t, row[5])
		assert.Equal(t, 1000.0, total)
	}
}

func TestCensusLogger_Landuse_BetaColumns(t *testing.T) {
	// GIVEN a land-use run logged every 0.5 with beta columns, compressed
	_, s := newLanduse(t, 6)
	path := filepath.Join(t.TempDir(), "census.csv.zst")
	out, err := OpenOutput(path)
	require.NoError(t, err)
	l, err := NewCensusLogger(out, 0.5, BetaColumns{})
	require.NoError(t, err)
	require.NoError(t, s.AddPeriodicLogger(l))

	// WHEN run to t=2
	require.NoError(t, s.RunUntil(2))
	require.NoError(t, s.Finish())

	// THEN the header carries the beta columns and the first row the seed site
	in, err := OpenInput(path)
	require.NoError(t, err)
	defer in.Close()
	records := testutil.ReadCSV(t, in)
	header := records[0]
	assert.Equal(t, "time", header[0])
	assert.Equal(t, []string{"P", "P_lifetime", "A", "A_lifetime", "F", "F_lifetime", "D", "D_lifetime"}, header[1:9])
	assert.Equal(t, []string{"beta_mean", "beta_sd", "beta_min", "beta_max",
		"beta_q2.5", "beta_q5", "beta_q10", "beta_q25", "beta_q50",
		"beta_q75", "beta_q90", "beta_q95", "beta_q97.5"}, header[9:])

	first := records[1]
	require.Len(t, first, len(header))
	assert.Equal(t, []string{"0", "1", "0", "0", "", "35", "0", "0", ""}, first[:9])
	assert.Equal(t, "1", first[9])
	assert.Equal(t, "0", first[10])
	for _, row := range records[1:] {
		require.Len(t, row, len(header))
	}
}

func TestCensusLogger_ModelWithoutCensus(t *testing.T) {
	s := sim.NewSimulator(bareModel{}, newRNG(1).ForSubsystem(sim.SubsystemSimulation))
	l, err := NewCensusLogger(&nopCloser{}, 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.AddPeriodicLogger(l))

	err = s.Initialize()

	var logErr *sim.LoggingError
	require.ErrorAs(t, err, &logErr)
	assert.Equal(t, "start", logErr.Phase)
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestNewCensusLogger_InvalidInterval(t *testing.T) {
	for _, interval := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := NewCensusLogger(&nopCloser{}, interval, nil)
		assert.ErrorIs(t, err, sim.ErrConfiguration, "interval %v", interval)
	}
}

func TestBetaColumns_NonLanduseModel_EmptyCells(t *testing.T) {
	m, _ := newWellMixedSIR(t, 0.3)
	values := BetaColumns{}.Values(m)
	assert.Len(t, values, 13)
	for _, v := range values {
		assert.Empty(t, v)
	}
}

func TestBetaColumns_WellMixedLanduse(t *testing.T) {
	// GIVEN an initialized well-mixed land-use model
	p := landuse.DefaultParams()
	p.L = 5
	p.Spatial = false
	p.UseDP = false
	m, err := landuse.NewWellMixed(p)
	require.NoError(t, err)
	require.NoError(t, m.Initialize())

	// WHEN its beta columns are rendered
	values := BetaColumns{}.Values(m)

	// THEN the single seed beta fills every statistic
	require.Len(t, values, 13)
	assert.Equal(t, "1", values[0])
	assert.Equal(t, "0", values[1])
	for _, v := range values[2:] {
		assert.Equal(t, "1", v)
	}
}
