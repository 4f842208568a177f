package models

import (
	"fmt"
	"time"
)

// Platform identifies a digital activity data source.
type Platform string

const (
	PlatformWikipedia    Platform = "wikipedia"
	PlatformGoogleHealth Platform = "googlehealth"
	PlatformFlickr       Platform = "flickr"
	PlatformINaturalist  Platform = "inaturalist"
	PlatformYouTube      Platform = "youtube"
	PlatformGBIF         Platform = "gbif"
)

// Platforms lists every supported activity source.
func Platforms() []Platform {
	return []Platform{
		PlatformWikipedia,
		PlatformGoogleHealth,
		PlatformFlickr,
		PlatformINaturalist,
		PlatformYouTube,
		PlatformGBIF,
	}
}

// SeriesKey identifies one analysis unit: the activity of one species in one
// country as seen by one platform.
type SeriesKey struct {
	Platform Platform `json:"platform"`
	Species  string   `json:"species"`
	Country  string   `json:"country"`
}

// String returns a stable human-readable form, used in logs and cache keys.
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Platform, k.Species, k.Country)
}

// RawRecord is one normalized observation as produced by the ingestion layer.
// Species names are expected to be pre-resolved to canonical scientific names
// and countries to ISO-3166-1 alpha-2 codes.
type RawRecord struct {
	Platform Platform  `json:"platform"`
	Species  string    `json:"species"`
	Country  string    `json:"country"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
}

// Key returns the series key the record belongs to.
func (r RawRecord) Key() SeriesKey {
	return SeriesKey{Platform: r.Platform, Species: r.Species, Country: r.Country}
}

// MonthPoint is one aligned observation: total activity in one calendar month.
// Month is normalized to the first of the month, UTC.
type MonthPoint struct {
	Month time.Time `json:"month"`
	Value float64   `json:"value"`
}

// ObservationSeries is a gap-free monthly series for one key. Timestamps are
// strictly increasing, unique and month-aligned. The series is built once by
// the aligner and never mutated; decomposition produces derived structures.
type ObservationSeries struct {
	Key    SeriesKey    `json:"key"`
	Points []MonthPoint `json:"points"`
}

// Len returns the number of monthly points.
func (s *ObservationSeries) Len() int { return len(s.Points) }

// Values returns the observation values in timestamp order.
func (s *ObservationSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Months returns the month timestamps in order.
func (s *ObservationSeries) Months() []time.Time {
	months := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		months[i] = p.Month
	}
	return months
}

// DecomposedSeries holds the additive decomposition of an observation series.
// All component slices are aligned with Months and satisfy
// observed = trend + seasonal + remainder up to floating-point tolerance.
type DecomposedSeries struct {
	Key       SeriesKey   `json:"key"`
	Months    []time.Time `json:"months"`
	Observed  []float64   `json:"observed"`
	Trend     []float64   `json:"trend"`
	Seasonal  []float64   `json:"seasonal"`
	Remainder []float64   `json:"remainder"`
	Period    int         `json:"period"`
}

// Len returns the number of points in the decomposition.
func (d *DecomposedSeries) Len() int { return len(d.Observed) }

// AnomalyDirection classifies a flagged point relative to its expected band.
type AnomalyDirection string

const (
	DirectionNone AnomalyDirection = "none"
	DirectionHigh AnomalyDirection = "high"
	DirectionLow  AnomalyDirection = "low"
)

// AnomalyLabeledSeries is the terminal artifact of the detection pipeline:
// a decomposed series plus per-point anomaly flags and recomposed bounds.
// For every i, IsAnomaly[i] holds exactly when Observed[i] falls outside
// [Lower[i], Upper[i]]. Read-only once produced.
type AnomalyLabeledSeries struct {
	DecomposedSeries
	IsAnomaly []bool             `json:"is_anomaly"`
	Direction []AnomalyDirection `json:"direction"`
	Lower     []float64          `json:"lower"`
	Upper     []float64          `json:"upper"`
}

// HighAnomalyMonths returns the months flagged anomalously high, in order.
// Only these participate in lag estimation; a drop in activity is not
// evidence of an invasion-driven uptick.
func (s *AnomalyLabeledSeries) HighAnomalyMonths() []time.Time {
	var months []time.Time
	for i, flagged := range s.IsAnomaly {
		if flagged && s.Direction[i] == DirectionHigh {
			months = append(months, s.Months[i])
		}
	}
	return months
}
