package sim

import (
	"math"
	"math/rand/v2"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 3; i++ {
		a := rng1.ForSubsystem(SubsystemModel).Float64()
		b := rng2.ForSubsystem(SubsystemModel).Float64()
		if a != b {
			t.Errorf("Value %d: got %v and %v, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from the model stream doesn't shift the simulation stream
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemModel).Float64()
	}

	a := rngA.ForSubsystem(SubsystemSimulation).Float64()
	b := rngB.ForSubsystem(SubsystemSimulation).Float64()
	if a != b {
		t.Errorf("simulation stream perturbed by model draws: %v != %v", a, b)
	}
}

func TestPartitionedRNG_SimulationUsesMasterSeed(t *testing.T) {
	seed := int64(42)
	sim := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemSimulation)
	direct := rand.New(rand.NewPCG(uint64(seed), 0))

	for i := 0; i < 10; i++ {
		if got, want := sim.Float64(), direct.Float64(); got != want {
			t.Errorf("Value %d: simulation RNG = %v, direct RNG = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if rng.ForSubsystem(SubsystemSimulation) != rng.ForSubsystem(SubsystemSimulation) {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(12345))

	if rng.Key() != SimulationKey(12345) {
		t.Errorf("Key() = %v, want 12345", rng.Key())
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}

	rng.ForSubsystem(SubsystemModel)

	if len(rng.subsystems) != 1 {
		t.Errorf("After one ForSubsystem call, have %d subsystems, want 1", len(rng.subsystems))
	}
}

func TestFnv1a64_NoCollisionsOnSubsystemNames(t *testing.T) {
	names := []string{
		SubsystemSimulation,
		SubsystemModel,
		"landuse",
		"sir",
		"",
	}

	hashes := make(map[uint64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("Hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}
