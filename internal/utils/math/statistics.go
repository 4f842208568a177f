package math

import (
	"math"
	"sort"
)

// madToSigma converts a median absolute deviation to an equivalent standard
// deviation under a normal distribution.
const madToSigma = 1.4826

// Mean calculates the arithmetic mean of a slice of float64 values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median calculates the median of a slice of float64 values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Variance calculates the sample variance of a slice of float64 values.
func Variance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	mean := Mean(values)
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values)-1)
}

// StandardDeviation calculates the sample standard deviation.
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// MAD calculates the median absolute deviation, a robust scale estimator:
// median(|x_i - median(x)|).
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	median := Median(values)
	absDevs := make([]float64, len(values))
	for i, v := range values {
		absDevs[i] = math.Abs(v - median)
	}
	return Median(absDevs)
}

// RobustScale converts the MAD of values to an equivalent standard deviation.
// Falls back to the sample standard deviation when the MAD collapses to zero,
// which happens when more than half the values are identical.
func RobustScale(values []float64) float64 {
	scale := MAD(values) * madToSigma
	if scale > 0 {
		return scale
	}
	return StandardDeviation(values)
}

// Correlation calculates the Pearson correlation coefficient of two variables.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	numerator := 0.0
	sumXSq := 0.0
	sumYSq := 0.0
	for i := 0; i < len(x); i++ {
		diffX := x[i] - meanX
		diffY := y[i] - meanY
		numerator += diffX * diffY
		sumXSq += diffX * diffX
		sumYSq += diffY * diffY
	}

	denominator := math.Sqrt(sumXSq * sumYSq)
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// AutoCorrelation calculates the autocorrelation of values at the given lag.
func AutoCorrelation(values []float64, lag int) float64 {
	if lag < 0 || lag >= len(values) {
		return 0
	}

	n := len(values) - lag
	if n <= 1 {
		return 0
	}
	return Correlation(values[:n], values[lag:lag+n])
}

// MovingMedian computes a centered moving median over the given window span.
// Windows shrink asymmetrically at the series boundaries so every position
// has a defined value. The window is widened to the next odd span so it stays
// centered.
func MovingMedian(values []float64, window int) []float64 {
	n := len(values)
	if n == 0 || window <= 0 {
		return nil
	}
	if window%2 == 0 {
		window++
	}

	half := window / 2
	result := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > n {
			end = n
		}
		result[i] = Median(values[start:end])
	}
	return result
}

// HasNaN reports whether any value is NaN or infinite.
func HasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
