package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosense/invascope/pkg/models"
)

func decomposedFixture(observed, trend, seasonal []float64) *models.DecomposedSeries {
	n := len(observed)
	months := make([]time.Time, n)
	remainder := make([]float64, n)
	for i := range observed {
		months[i] = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		remainder[i] = observed[i] - trend[i] - seasonal[i]
	}
	return &models.DecomposedSeries{
		Key:       models.SeriesKey{Platform: models.PlatformFlickr, Species: "Procyon lotor", Country: "DE"},
		Months:    months,
		Observed:  observed,
		Trend:     trend,
		Seasonal:  seasonal,
		Remainder: remainder,
		Period:    12,
	}
}

func TestRecomposeBoundsAndDirections(t *testing.T) {
	dec := decomposedFixture(
		[]float64{10, 30, 10, -10},
		[]float64{10, 10, 10, 10},
		[]float64{0, 0, 0, 0},
	)
	// Remainder is {0, 20, 0, -20}; flag the second point high and the fourth
	// low with a hand-built band.
	flags := &FlagResult{
		IsAnomaly: []bool{false, true, false, true},
		Center:    []float64{0, 0, 0, 0},
		Width:     []float64{5, 5, 5, 5},
		Flagged:   2,
	}

	labeled, err := Recompose(dec, flags)
	require.NoError(t, err)

	assert.Equal(t, []models.AnomalyDirection{
		models.DirectionNone,
		models.DirectionHigh,
		models.DirectionNone,
		models.DirectionLow,
	}, labeled.Direction)

	assert.Equal(t, 5.0, labeled.Lower[0])
	assert.Equal(t, 15.0, labeled.Upper[0])

	// Flag and bounds agree point by point.
	for i := range labeled.Observed {
		outside := labeled.Observed[i] < labeled.Lower[i] || labeled.Observed[i] > labeled.Upper[i]
		assert.Equal(t, labeled.IsAnomaly[i], outside, "index %d", i)
	}
}

func TestRecomposeAfterFlagging(t *testing.T) {
	observed := []float64{5.2, 4.7, 5.1, 5.4, 4.8, 5.3, 4.6, 5.1, 4.9, 5.2, 4.8, 90}
	trend := make([]float64, len(observed))
	seasonal := make([]float64, len(observed))
	for i := range trend {
		trend[i] = 5
	}
	dec := decomposedFixture(observed, trend, seasonal)

	f := NewFlagger(&Config{Alpha: 0.15, MaxAnoms: 0.25}, testLogger())
	flags, err := f.Flag(dec.Remainder)
	require.NoError(t, err)

	labeled, err := Recompose(dec, flags)
	require.NoError(t, err)

	assert.True(t, labeled.IsAnomaly[11])
	assert.Equal(t, models.DirectionHigh, labeled.Direction[11])

	for i := range labeled.Observed {
		outside := labeled.Observed[i] < labeled.Lower[i] || labeled.Observed[i] > labeled.Upper[i]
		assert.Equal(t, labeled.IsAnomaly[i], outside, "index %d", i)
	}

	months := labeled.HighAnomalyMonths()
	require.Len(t, months, 1)
	assert.Equal(t, dec.Months[11], months[0])
}

func TestRecomposeLengthMismatch(t *testing.T) {
	dec := decomposedFixture([]float64{1, 2, 3}, []float64{0, 0, 0}, []float64{0, 0, 0})
	flags := &FlagResult{
		IsAnomaly: []bool{false},
		Center:    []float64{0},
		Width:     []float64{1},
	}
	_, err := Recompose(dec, flags)
	assert.Error(t, err)
}
