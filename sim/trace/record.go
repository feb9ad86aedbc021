// Package trace records the events of a run for post-hoc analysis.
// It does not import sim; records are plain data filled in by a logger.
package trace

// EventRecord captures a single applied event.
type EventRecord struct {
	Time float64
	Kind string // event label, e.g. "FA" or "S->I"
	Row  int    // -1 for events not owned by a lattice site
	Col  int
}
