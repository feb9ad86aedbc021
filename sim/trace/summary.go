package trace

import "gonum.org/v1/gonum/stat"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents      int
	DroppedEvents    int
	UniqueKinds      int
	KindDistribution map[string]int // event kind → count
	FirstTime        float64
	LastTime         float64
	MeanInterEvent   float64
	StdDevInterEvent float64 // sample standard deviation; 0 with fewer than two gaps
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	summary.DroppedEvents = st.Dropped
	for _, e := range st.Events {
		summary.KindDistribution[e.Kind]++
	}
	summary.UniqueKinds = len(summary.KindDistribution)

	if len(st.Events) == 0 {
		return summary
	}
	summary.FirstTime = st.Events[0].Time
	summary.LastTime = st.Events[len(st.Events)-1].Time

	if len(st.Events) > 1 {
		gaps := make([]float64, len(st.Events)-1)
		for i := 1; i < len(st.Events); i++ {
			gaps[i-1] = st.Events[i].Time - st.Events[i-1].Time
		}
		if len(gaps) > 1 {
			summary.MeanInterEvent, summary.StdDevInterEvent = stat.MeanStdDev(gaps, nil)
		} else {
			summary.MeanInterEvent = gaps[0]
		}
	}
	return summary
}
