package decompose

import (
	"github.com/ecosense/invascope/internal/utils/math"
)

// minAutoCorrelation is the autocorrelation a candidate period must reach to
// count as a dominant cycle.
const minAutoCorrelation = 0.3

// DetectPeriod infers the seasonal period of a series from its
// autocorrelation function. It returns the smallest period >= 2 whose
// autocorrelation is a local peak above the detection threshold, or fallback
// when no dominant cycle is found. The search is capped at half the series
// length; shorter candidates cannot complete two full cycles.
func DetectPeriod(values []float64, fallback int) int {
	n := len(values)
	maxPeriod := n / 2
	if maxPeriod < 2 {
		return clampPeriod(fallback, n)
	}

	acf := make([]float64, maxPeriod+1)
	for lag := 1; lag <= maxPeriod; lag++ {
		acf[lag] = math.AutoCorrelation(values, lag)
	}

	for lag := 2; lag <= maxPeriod; lag++ {
		if acf[lag] < minAutoCorrelation {
			continue
		}
		prev := acf[lag-1]
		next := 0.0
		if lag+1 <= maxPeriod {
			next = acf[lag+1]
		}
		if acf[lag] >= prev && acf[lag] >= next {
			return lag
		}
	}

	return clampPeriod(fallback, n)
}

// clampPeriod keeps a period inside what the series length supports: at least
// 2, at most half the series.
func clampPeriod(period, n int) int {
	if period < 2 {
		period = 2
	}
	if n >= 4 && period > n/2 {
		period = n / 2
	}
	return period
}
