package aligner

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/utils/math"
	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

// Config controls series alignment.
type Config struct {
	// Start and End bound the output span when set. When nil the span is the
	// earliest to latest month observed across all keys being harmonized, so
	// every output series covers the same grid.
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`

	// MinDistinctMonths is the admission threshold; series with fewer
	// distinct raw-data months are rejected as InsufficientData.
	MinDistinctMonths int `json:"min_distinct_months" yaml:"min_distinct_months"`
}

// DefaultConfig returns the default alignment configuration.
func DefaultConfig() *Config {
	return &Config{MinDistinctMonths: constants.MinDistinctMonths}
}

// Aligner turns ragged per-platform observation streams into complete,
// regularly spaced monthly series, one per (platform, species, country) key.
type Aligner struct {
	config *Config
	logger *logrus.Logger
}

// Rejection reports a key excluded by the admission filter.
type Rejection struct {
	Key models.SeriesKey
	Err error
}

// NewAligner creates a new aligner.
func NewAligner(config *Config, logger *logrus.Logger) *Aligner {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MinDistinctMonths <= 0 {
		config.MinDistinctMonths = constants.MinDistinctMonths
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Aligner{config: config, logger: logger}
}

// Align buckets raw records into calendar months, sums same-month
// observations, zero-fills months without data and returns one gap-free
// series per key. Keys failing the admission filter come back as rejections
// rather than series; an empty input yields empty output.
func (a *Aligner) Align(records []models.RawRecord) ([]*models.ObservationSeries, []Rejection) {
	if len(records) == 0 {
		return nil, nil
	}

	type bucket struct {
		totals map[time.Time]float64
	}
	buckets := make(map[models.SeriesKey]*bucket)

	var spanStart, spanEnd time.Time
	for _, rec := range records {
		month := MonthFloor(rec.Date)
		b, ok := buckets[rec.Key()]
		if !ok {
			b = &bucket{totals: make(map[time.Time]float64)}
			buckets[rec.Key()] = b
		}
		b.totals[month] += rec.Value

		if spanStart.IsZero() || month.Before(spanStart) {
			spanStart = month
		}
		if spanEnd.IsZero() || month.After(spanEnd) {
			spanEnd = month
		}
	}

	if a.config.Start != nil {
		spanStart = MonthFloor(*a.config.Start)
	}
	if a.config.End != nil {
		spanEnd = MonthFloor(*a.config.End)
	}

	keys := make([]models.SeriesKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Platform != keys[j].Platform {
			return keys[i].Platform < keys[j].Platform
		}
		if keys[i].Species != keys[j].Species {
			return keys[i].Species < keys[j].Species
		}
		return keys[i].Country < keys[j].Country
	})

	var (
		series     []*models.ObservationSeries
		rejections []Rejection
	)
	for _, key := range keys {
		b := buckets[key]

		// Only months landing on the output grid count toward admission;
		// records clipped away by configured bounds cannot carry a series.
		// Inverted bounds leave every key with zero admissible months.
		distinct := 0
		for month := range b.totals {
			if !month.Before(spanStart) && !month.After(spanEnd) {
				distinct++
			}
		}
		if distinct < a.config.MinDistinctMonths {
			err := errors.NewInsufficientDataError(errors.CodeInsufficientData,
				fmt.Sprintf("only %d distinct months of data (minimum %d)", distinct, a.config.MinDistinctMonths)).
				WithContext("key", key.String())
			rejections = append(rejections, Rejection{Key: key, Err: err})
			continue
		}

		s := a.buildSeries(key, b.totals, spanStart, spanEnd)

		if err := checkVariance(s); err != nil {
			rejections = append(rejections, Rejection{Key: key, Err: err})
			continue
		}
		series = append(series, s)
	}

	a.logger.WithFields(logrus.Fields{
		"records":  len(records),
		"admitted": len(series),
		"rejected": len(rejections),
	}).Debug("Aligned raw records to monthly series")

	return series, rejections
}

// buildSeries lays the monthly totals onto the shared [start, end] grid,
// filling months without data with zero. No recorded activity is zero
// activity, not unknown.
func (a *Aligner) buildSeries(key models.SeriesKey, totals map[time.Time]float64, start, end time.Time) *models.ObservationSeries {
	var points []models.MonthPoint
	for month := start; !month.After(end); month = month.AddDate(0, 1, 0) {
		points = append(points, models.MonthPoint{Month: month, Value: totals[month]})
	}
	return &models.ObservationSeries{Key: key, Points: points}
}

// checkVariance rejects series whose values are all identical; they cannot be
// decomposed or meaningfully tested for anomalies.
func checkVariance(s *models.ObservationSeries) error {
	values := s.Values()
	first := values[0]
	for _, v := range values[1:] {
		if v != first {
			return nil
		}
	}
	return errors.NewInsufficientDataError(errors.CodeZeroVariance, "series has zero variance").
		WithContext("key", s.Key.String())
}

// Admit re-runs the admission filter against an already aligned series. The
// pipeline uses it for series handed in directly, bypassing Align.
func Admit(s *models.ObservationSeries, minDistinctMonths int) error {
	if minDistinctMonths <= 0 {
		minDistinctMonths = constants.MinDistinctMonths
	}
	if s == nil || s.Len() < minDistinctMonths {
		n := 0
		if s != nil {
			n = s.Len()
		}
		return errors.NewInsufficientDataError(errors.CodeInsufficientData,
			fmt.Sprintf("only %d months of data (minimum %d)", n, minDistinctMonths))
	}
	if math.Variance(s.Values()) == 0 {
		return errors.NewInsufficientDataError(errors.CodeZeroVariance, "series has zero variance").
			WithContext("key", s.Key.String())
	}
	return nil
}

// MonthFloor normalizes a date to the first of its calendar month, UTC.
func MonthFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
