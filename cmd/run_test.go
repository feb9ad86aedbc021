package cmd

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/internal/testutil"
	"github.com/ssa-sim/ssa-sim/sim/logging"
)

func smallLanduseConfig(seed int64) RunConfig {
	cfg := DefaultRunConfig()
	cfg.Seed = seed
	cfg.Horizon = 3
	cfg.Landuse.L = 6
	cfg.Landuse.R = 0.5
	return cfg
}

func TestExecuteRun_WellMixedSIR_RecoveryOnly(t *testing.T) {
	// GIVEN an SIR run without infection until nothing can happen
	cfg := DefaultRunConfig()
	cfg.Model = ModelSIR
	cfg.Seed = 3
	cfg.Horizon = 0
	cfg.SIR.Beta = 0

	// WHEN executed
	res, err := executeRun(cfg)

	// THEN the 5 index cases recovered and nothing else happened
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Seed)
	assert.Equal(t, int64(5), res.Steps)
	assert.Equal(t, []int{995, 0, 5}, res.Counts)
	assert.Equal(t, "S=995 I=0 R=5", formatCounts(res.StateNames, res.Counts))
	assert.Nil(t, res.Trace)
}

func TestExecuteRun_SameSeed_SameResult(t *testing.T) {
	a, err := executeRun(smallLanduseConfig(11))
	require.NoError(t, err)
	b, err := executeRun(smallLanduseConfig(11))
	require.NoError(t, err)

	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.Time, b.Time)
	assert.Equal(t, a.Counts, b.Counts)
}

func TestExecuteRun_Landuse_AllOutputs(t *testing.T) {
	// GIVEN a land-use run writing every output, CSVs compressed
	dir := t.TempDir()
	cfg := smallLanduseConfig(5)
	cfg.Output = OutputConfig{
		Dir:          filepath.Join(dir, "out"),
		Interval:     0.5,
		Census:       true,
		StateChanges: true,
		Compress:     true,
		SQLite:       filepath.Join(dir, "run.db"),
		Metrics:      filepath.Join(dir, "metrics.prom"),
		Trace:        "events",
	}

	// WHEN executed
	res, err := executeRun(cfg)
	require.NoError(t, err)

	// THEN the census starts at time 0 and ticks every 0.5
	in, err := logging.OpenInput(filepath.Join(dir, "out", "census.csv.zst"))
	require.NoError(t, err)
	census := testutil.ReadCSV(t, in)
	require.NoError(t, in.Close())
	require.GreaterOrEqual(t, len(census), 2)
	assert.Equal(t, "time", census[0][0])
	for i, row := range census[1:] {
		testutil.AssertFloat64Equal(t, "tick", 0.5*float64(i), testutil.ParseFloat(t, row[0]), 1e-12)
	}

	// AND the state changes hold the initial lattice plus every event
	in, err = logging.OpenInput(filepath.Join(dir, "out", "state_changes.csv.zst"))
	require.NoError(t, err)
	changes := testutil.ReadCSV(t, in)
	require.NoError(t, in.Close())
	assert.Len(t, changes, 1+36+int(res.Steps))

	// AND the trace saw every event
	require.NotNil(t, res.Trace)
	assert.Len(t, res.Trace.Events, int(res.Steps))

	// AND the database and metrics file were written
	db, err := sql.Open("sqlite", cfg.Output.SQLite)
	require.NoError(t, err)
	defer db.Close()
	var model string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'model'`).Scan(&model))
	assert.Equal(t, ModelLanduse, model)

	_, err = os.Stat(cfg.Output.Metrics)
	assert.NoError(t, err)

	// AND the resolved config reloads to the same run
	resolved, err := LoadRunConfig(filepath.Join(cfg.Output.Dir, ResolvedConfigFile))
	require.NoError(t, err)
	assert.Equal(t, cfg, resolved)
}

func TestExecuteRun_ResolvedConfig_RecordsWallClockSeed(t *testing.T) {
	// GIVEN a run without a seed
	cfg := DefaultRunConfig()
	cfg.Model = ModelSIR
	cfg.Horizon = 1
	cfg.Output.Dir = t.TempDir()

	// WHEN executed
	res, err := executeRun(cfg)
	require.NoError(t, err)

	// THEN the written config carries the seed that was used
	resolved, err := LoadRunConfig(filepath.Join(cfg.Output.Dir, ResolvedConfigFile))
	require.NoError(t, err)
	assert.Equal(t, res.Seed, resolved.Seed)
	assert.NotZero(t, resolved.Seed)
}

func TestExecuteRun_WellMixedLanduse(t *testing.T) {
	// GIVEN the well-mixed land-use model asked for every CSV
	cfg := smallLanduseConfig(8)
	cfg.Landuse.Spatial = false
	cfg.Landuse.UseDP = false
	cfg.Output.Dir = t.TempDir()
	cfg.Output.StateChanges = true

	// WHEN executed
	res, err := executeRun(cfg)
	require.NoError(t, err)

	// THEN all 36 sites are accounted for and the census has beta columns
	total := 0
	for _, n := range res.Counts {
		total += n
	}
	assert.Equal(t, 36, total)
	in, err := logging.OpenInput(filepath.Join(cfg.Output.Dir, "census.csv"))
	require.NoError(t, err)
	census := testutil.ReadCSV(t, in)
	require.NoError(t, in.Close())
	assert.Equal(t, "beta_mean", census[0][9])
	assert.Equal(t, "1", census[1][9])

	// AND no state changes were written for the site-less model
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "state_changes.csv"))
	assert.True(t, os.IsNotExist(err))
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	return len(entries)
}

func TestExecuteRun_FailedSetup_ClosesOpenedOutputs(t *testing.T) {
	// GIVEN CSV outputs that open fine and a database path that cannot be created
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg := smallLanduseConfig(4)
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.StateChanges = true
	cfg.Output.SQLite = filepath.Join(blocker, "run.db")
	before := openFDs(t)

	// WHEN executed
	_, err := executeRun(cfg)

	// THEN the run fails and the CSV files it had opened are closed again
	require.Error(t, err)
	assert.Equal(t, before, openFDs(t))
	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "census.csv"))
	assert.NoError(t, statErr)
}

func TestExecuteRun_InvalidConfig(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Model = "sis"

	_, err := executeRun(cfg)

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestExecuteRun_StateChangesForWellMixedSkipped(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Model = ModelSIR
	cfg.Seed = 1
	cfg.Horizon = 1
	cfg.Output.Dir = t.TempDir()
	cfg.Output.StateChanges = true

	_, err := executeRun(cfg)

	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "state_changes.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "census.csv"))
	assert.NoError(t, err)
}

func TestResolveSeed(t *testing.T) {
	assert.Equal(t, int64(9), resolveSeed(9))
	assert.NotZero(t, resolveSeed(0))
}
