package decompose

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/utils/math"
	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

// Config controls the seasonal-trend decomposition.
type Config struct {
	// Period pins the seasonal period. Zero selects it automatically from
	// the autocorrelation function, defaulting to 12 for monthly series.
	Period int `json:"period" yaml:"period"`

	// TrendWindow is the centered moving-median span for the trend. Zero
	// derives it from the period: one full seasonal cycle, so the smoother
	// removes the cycle while preserving longer-term drift.
	TrendWindow int `json:"trend_window" yaml:"trend_window"`
}

// DefaultConfig returns the default decomposition configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Decomposer splits aligned monthly series into additive trend, seasonal and
// remainder components. The trend uses a moving median rather than a moving
// mean so the very anomalies being searched for do not drag the baseline.
type Decomposer struct {
	config *Config
	logger *logrus.Logger
}

// NewDecomposer creates a new decomposer.
func NewDecomposer(config *Config, logger *logrus.Logger) *Decomposer {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Decomposer{config: config, logger: logger}
}

// Decompose produces the additive decomposition of one admitted series.
// It fails with DecompositionFailed when the series is too short or when the
// smoothing produces non-finite values.
func (d *Decomposer) Decompose(s *models.ObservationSeries) (*models.DecomposedSeries, error) {
	n := s.Len()
	if n < constants.MinDecompositionPoints {
		return nil, errors.NewDecompositionError(errors.CodeDecompositionFailed,
			fmt.Sprintf("%d points, need at least %d", n, constants.MinDecompositionPoints)).
			WithContext("key", s.Key.String())
	}

	observed := s.Values()
	months := s.Months()

	period := d.config.Period
	if period <= 0 {
		period = DetectPeriod(observed, constants.DefaultPeriod)
	}
	period = clampPeriod(period, n)

	window := d.config.TrendWindow
	if window <= 0 {
		window = period
	}
	if window < 2 || window > n {
		return nil, errors.NewDecompositionError(errors.CodeDegenerateWindow,
			fmt.Sprintf("trend window %d is degenerate for series of length %d", window, n)).
			WithContext("key", s.Key.String())
	}

	trend := math.MovingMedian(observed, window)

	detrended := make([]float64, n)
	for i := range observed {
		detrended[i] = observed[i] - trend[i]
	}

	seasonal := seasonalProfile(detrended, months, period)

	remainder := make([]float64, n)
	for i := range observed {
		remainder[i] = observed[i] - trend[i] - seasonal[i]
	}

	if math.HasNaN(trend) || math.HasNaN(seasonal) || math.HasNaN(remainder) {
		return nil, errors.NewDecompositionError(errors.CodeNumericalFailure,
			"decomposition produced non-finite values").
			WithContext("key", s.Key.String())
	}

	d.logger.WithFields(logrus.Fields{
		"key":    s.Key.String(),
		"points": n,
		"period": period,
		"window": window,
	}).Debug("Decomposed series")

	return &models.DecomposedSeries{
		Key:       s.Key,
		Months:    months,
		Observed:  observed,
		Trend:     trend,
		Seasonal:  seasonal,
		Remainder: remainder,
		Period:    period,
	}, nil
}

// seasonalProfile averages the detrended values by seasonal position and
// repeats the centered profile across all cycles. For the monthly period of
// 12 the position is the calendar month, so series starting mid-year share
// one profile per month-of-year.
func seasonalProfile(detrended []float64, months []time.Time, period int) []float64 {
	n := len(detrended)
	sums := make([]float64, period)
	counts := make([]int, period)

	position := func(i int) int {
		if period == 12 {
			return int(months[i].Month()) - 1
		}
		return i % period
	}

	for i := 0; i < n; i++ {
		pos := position(i)
		sums[pos] += detrended[i]
		counts[pos]++
	}

	profile := make([]float64, period)
	for pos := range profile {
		if counts[pos] > 0 {
			profile[pos] = sums[pos] / float64(counts[pos])
		}
	}

	// Center the profile so the seasonal component carries no level shift.
	mean := 0.0
	filled := 0
	for pos := range profile {
		if counts[pos] > 0 {
			mean += profile[pos]
			filled++
		}
	}
	if filled > 0 {
		mean /= float64(filled)
	}
	for pos := range profile {
		if counts[pos] > 0 {
			profile[pos] -= mean
		}
	}

	seasonal := make([]float64, n)
	for i := 0; i < n; i++ {
		seasonal[i] = profile[position(i)]
	}
	return seasonal
}
