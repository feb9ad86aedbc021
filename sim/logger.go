package sim

// Model supplies the events a Simulator draws from.
type Model interface {
	// Initialize builds the model's initial state. It is called exactly once,
	// before AllEvents.
	Initialize() error
	// AllEvents returns every event that may be live at the initial state.
	// Events with rate 0 may be included; they are simply not sampled.
	AllEvents() []Event
}

// PeriodicLogger observes the model at regular points in simulated time.
type PeriodicLogger interface {
	LogStart(m Model) error
	LogEnd(m Model) error
	// NextLogTime returns the time of the next pending tick. It must increase
	// after each LogPeriodic call.
	NextLogTime(m Model) float64
	LogPeriodic(m Model, t float64) error
}

// EventLogger observes every applied event.
type EventLogger interface {
	LogStart(m Model) error
	LogEnd(m Model) error
	LogEvent(m Model, t float64, e Event) error
}
