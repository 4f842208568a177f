package anomaly

import (
	"fmt"
	stdmath "math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ecosense/invascope/internal/utils/math"
	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/errors"
)

// Config controls the generalized ESD test.
type Config struct {
	// Alpha is the significance level of the test.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// MaxAnoms caps the fraction of points that may be flagged, e.g. 0.5
	// allows at most half the series.
	MaxAnoms float64 `json:"max_anoms" yaml:"max_anoms"`
}

// DefaultConfig returns the default flagger configuration. The permissive
// defaults mirror the upstream study; neither value is assumed to generalize.
func DefaultConfig() *Config {
	return &Config{Alpha: constants.DefaultAlpha, MaxAnoms: constants.DefaultMaxAnoms}
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return errors.NewConfigurationError(fmt.Sprintf("alpha must be in (0, 1), got %g", c.Alpha))
	}
	if c.MaxAnoms <= 0 || c.MaxAnoms > 1 {
		return errors.NewConfigurationError(fmt.Sprintf("max_anoms must be in (0, 1], got %g", c.MaxAnoms))
	}
	return nil
}

// Flagger applies a robust generalized extreme studentized deviate (GESD)
// test to remainder series. Deviations are measured from the median and
// normalized by the MAD so the anomalies under test do not inflate the scale
// estimate. The test assumes the remainder is approximately normal after
// trend and seasonal removal; this is not re-validated per series.
type Flagger struct {
	config *Config
	logger *logrus.Logger
}

// FlagResult holds the per-point outcome of the test. Center and Width
// describe the remainder band used to classify each point: point i is
// anomalous exactly when |remainder[i] - Center[i]| > Width[i]. The band is
// point-specific because the critical value depends on the position within
// the iterative removal sequence.
type FlagResult struct {
	IsAnomaly []bool
	Center    []float64
	Width     []float64
	Flagged   int
}

// NewFlagger creates a new GESD flagger.
func NewFlagger(config *Config, logger *logrus.Logger) *Flagger {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Flagger{config: config, logger: logger}
}

// iteration records the state of one GESD removal step.
type iteration struct {
	index  int     // original index of the removed point
	dev    float64 // absolute deviation from the step's median
	center float64 // median of the working sample
	scale  float64 // robust scale of the working sample
	stat   float64 // test statistic R = dev / scale
	lambda float64 // critical value for this step
}

// Flag runs the test on one remainder series. The number of flagged points
// never exceeds floor(MaxAnoms * len(remainder)). Ties in extremity are
// broken by the earliest timestamp.
func (f *Flagger) Flag(remainder []float64) (*FlagResult, error) {
	if err := f.config.Validate(); err != nil {
		return nil, err
	}
	n := len(remainder)
	if n < 3 {
		return nil, errors.NewInsufficientDataError(errors.CodeInsufficientData,
			fmt.Sprintf("%d remainder points, need at least 3", n))
	}
	if math.HasNaN(remainder) {
		return nil, errors.NewDecompositionError(errors.CodeNumericalFailure,
			"remainder contains non-finite values")
	}

	maxOutliers := int(stdmath.Floor(f.config.MaxAnoms * float64(n)))

	working := make([]float64, n)
	copy(working, remainder)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	var steps []iteration
	for k := 1; k <= maxOutliers && len(working) > 2; k++ {
		center := math.Median(working)
		scale := math.RobustScale(working)
		if scale <= 0 {
			break
		}

		// Most extreme remaining point; strict comparison keeps the first
		// (earliest) on ties. Removals preserve relative order, so the
		// smallest working index is also the earliest timestamp.
		maxIdx := 0
		maxDev := -1.0
		for i, v := range working {
			dev := stdmath.Abs(v - center)
			if dev > maxDev {
				maxDev = dev
				maxIdx = i
			}
		}

		steps = append(steps, iteration{
			index:  indices[maxIdx],
			dev:    maxDev,
			center: center,
			scale:  scale,
			stat:   maxDev / scale,
			lambda: criticalValue(f.config.Alpha, n, k),
		})

		working = append(working[:maxIdx], working[maxIdx+1:]...)
		indices = append(indices[:maxIdx], indices[maxIdx+1:]...)
	}

	// Rosner: the outlier count is the largest k whose statistic exceeds its
	// critical value; earlier steps are outliers even when their own
	// statistic fell short.
	significant := 0
	for k, step := range steps {
		if step.stat > step.lambda {
			significant = k + 1
		}
	}

	result := &FlagResult{
		IsAnomaly: make([]bool, n),
		Center:    make([]float64, n),
		Width:     make([]float64, n),
		Flagged:   significant,
	}

	for k := 0; k < significant; k++ {
		step := steps[k]
		width := step.lambda * step.scale
		if step.dev <= width && step.dev > 0 {
			// Retrospectively flagged point: its own step was not
			// significant. Tighten the band so the bound classification
			// stays consistent with the flag.
			width = step.dev * (1 - 1e-12)
		}
		result.IsAnomaly[step.index] = true
		result.Center[step.index] = step.center
		result.Width[step.index] = width
	}

	center, width := f.baselineBand(working, steps, significant, n)
	for i := 0; i < n; i++ {
		if !result.IsAnomaly[i] {
			result.Center[i] = center
			result.Width[i] = width
		}
	}

	f.logger.WithFields(logrus.Fields{
		"points":  n,
		"flagged": significant,
		"alpha":   f.config.Alpha,
	}).Debug("GESD test complete")

	return result, nil
}

// baselineBand derives the remainder band applied to unflagged points. It
// uses the first non-significant step when one exists; every unflagged point
// was still in that step's working sample, so its deviation is bounded by the
// step's (non-exceeded) critical threshold. When the cap stopped the test
// first, the band is widened to the surviving sample's own extremes.
func (f *Flagger) baselineBand(working []float64, steps []iteration, significant, n int) (float64, float64) {
	if significant < len(steps) {
		step := steps[significant]
		return step.center, step.lambda * step.scale
	}

	center := math.Median(working)
	scale := math.RobustScale(working)
	width := criticalValue(f.config.Alpha, n, significant+1) * scale
	for _, v := range working {
		if dev := stdmath.Abs(v - center); dev > width {
			width = dev
		}
	}
	return center, width
}

// criticalValue computes Rosner's critical value for the k-th removal
// (1-based) from a Student-t quantile with a Bonferroni-style correction.
func criticalValue(alpha float64, n, k int) float64 {
	m := n - k + 1 // sample size at this step
	df := float64(m - 2)
	if df < 1 {
		return stdmath.Inf(1)
	}

	p := 1 - alpha/(2*float64(m))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)

	return float64(m-1) * t / stdmath.Sqrt((df+t*t)*float64(m))
}
