package landuse

import "gonum.org/v1/gonum/stat"

// BetaQuantiles are the quantile levels reported by BetaStats.
var BetaQuantiles = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.975}

// BetaStats summarizes the betas of the populated sites.
type BetaStats struct {
	Mean      float64
	StdDev    float64 // population standard deviation
	Min       float64
	Max       float64
	Quantiles []float64 // at BetaQuantiles, linearly interpolated
}

// BetaStats returns statistics of the current betas. ok is false when no
// site is populated.
func (m *Model) BetaStats() (BetaStats, bool) {
	return summarizeBetas(m.Betas(), m.BetaMean())
}

// summarizeBetas describes sorted, using mean as the tracked running mean.
func summarizeBetas(sorted []float64, mean float64) (s BetaStats, ok bool) {
	if len(sorted) == 0 {
		return BetaStats{}, false
	}
	_, s.StdDev = stat.PopMeanStdDev(sorted, nil)
	s.Mean = mean
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Quantiles = make([]float64, len(BetaQuantiles))
	for i, p := range BetaQuantiles {
		s.Quantiles[i] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	return s, true
}
