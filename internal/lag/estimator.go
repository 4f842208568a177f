package lag

import (
	stdmath "math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/models"
)

// Config controls the lag search.
type Config struct {
	// WindowDays is the symmetric search window around the invasion
	// reference date.
	WindowDays int `json:"window_days" yaml:"window_days"`
}

// DefaultConfig returns the default lag-estimation configuration.
func DefaultConfig() *Config {
	return &Config{WindowDays: constants.LagWindowDays}
}

// Estimator measures the signed day offset between the invasion reference
// date (January 1 of the recorded invasion year) and the nearest
// anomalously-high activity point. Downward anomalies never qualify: a drop
// in activity is not evidence of an invasion-driven uptick.
type Estimator struct {
	config *Config
	logger *logrus.Logger
}

// NewEstimator creates a new lag estimator.
func NewEstimator(config *Config, logger *logrus.Logger) *Estimator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.WindowDays <= 0 {
		config.WindowDays = constants.LagWindowDays
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Estimator{config: config, logger: logger}
}

// Estimate selects the anomalously-high point with minimum absolute
// day-distance to the reference date, ties broken by the earlier date.
// When no qualifying point falls inside the window, the result carries a nil
// lag; that is an expected, common outcome rather than an error.
func (e *Estimator) Estimate(series *models.AnomalyLabeledSeries, record models.InvasionRecord) models.LagResult {
	reference := record.ReferenceDate()
	result := models.LagResult{Key: series.Key, Reference: reference}

	var (
		best     time.Time
		bestLag  int
		bestDist int
		found    bool
	)
	for _, month := range series.HighAnomalyMonths() {
		lag := daysBetween(reference, month)
		dist := int(stdmath.Abs(float64(lag)))
		if dist > e.config.WindowDays {
			continue
		}
		// Strict comparison on distance plus the Before check keeps the
		// earlier date on ties, and the scan is in timestamp order.
		if !found || dist < bestDist || (dist == bestDist && month.Before(best)) {
			best = month
			bestLag = lag
			bestDist = dist
			found = true
		}
	}

	if found {
		anomalyDate := best
		lagDays := bestLag
		result.AnomalyDate = &anomalyDate
		result.LagDays = &lagDays

		e.logger.WithFields(logrus.Fields{
			"key":      series.Key.String(),
			"lag_days": lagDays,
		}).Debug("Lag estimated")
	}

	return result
}

// daysBetween returns the whole-day offset from a to b (positive when b is
// after a). Both dates are UTC midnights, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
