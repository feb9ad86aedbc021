// Package sim provides the core stochastic simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - event.go: the Event contract and the Changes an event reports when applied
//   - logger.go: the Model and logger interfaces the Simulator drives
//   - simulator.go: the Gillespie Direct Method loop
//
// # Architecture
//
// The sim package defines the engine and its extension points; everything
// else lives in sub-packages:
//   - sim/sampler/: dynamic weighted sampler (binary tree of partial sums)
//   - sim/lattice/: 2-D lattice with bounded or periodic boundaries
//   - sim/model/: sites, census, dependency rules and a generic discrete-state model
//   - sim/landuse/: four-state land-use model
//   - sim/sir/: SIR epidemic preset
//   - sim/logging/: CSV, SQLite and Prometheus loggers
//   - sim/trace/: in-memory event trace and summary statistics
//
// # Determinism
//
// A run is a pure function of the model, its parameters and the seed. The
// stepping loop draws from exactly one *rand.Rand, in a fixed order: waiting
// time, event selection, then any draws inside Event.Apply. Model set-up uses
// a separate stream from PartitionedRNG.
package sim
