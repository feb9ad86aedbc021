package trace

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every applied event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level      TraceLevel
	MaxRecords int // records kept before further events are only counted; 0 = unlimited
}

// SimulationTrace collects event records during a run.
type SimulationTrace struct {
	Config  TraceConfig
	Events  []EventRecord
	Dropped int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config: config,
		Events: make([]EventRecord, 0),
	}
}

// Enabled reports whether records are kept at all.
func (st *SimulationTrace) Enabled() bool {
	return st.Config.Level == TraceLevelEvents
}

// RecordEvent appends an event record, or counts it as dropped once the
// trace is full.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if !st.Enabled() {
		return
	}
	if st.Config.MaxRecords > 0 && len(st.Events) >= st.Config.MaxRecords {
		st.Dropped++
		return
	}
	st.Events = append(st.Events, record)
}
