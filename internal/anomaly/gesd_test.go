package anomaly

import (
	stdmath "math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosense/invascope/pkg/errors"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// assertBandConsistent checks the contract between flags and the remainder
// band: a point is anomalous exactly when it falls outside its own band.
func assertBandConsistent(t *testing.T, remainder []float64, result *FlagResult) {
	t.Helper()
	for i := range remainder {
		outside := stdmath.Abs(remainder[i]-result.Center[i]) > result.Width[i]
		assert.Equal(t, result.IsAnomaly[i], outside, "index %d", i)
	}
}

func TestFlagDetectsSpike(t *testing.T) {
	remainder := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 100}

	f := NewFlagger(nil, testLogger())
	result, err := f.Flag(remainder)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Flagged)
	assert.True(t, result.IsAnomaly[11])
	for i := 0; i < 11; i++ {
		assert.False(t, result.IsAnomaly[i], "index %d", i)
	}
	assertBandConsistent(t, remainder, result)
}

func TestFlagNoAnomaliesInSmoothSeries(t *testing.T) {
	remainder := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	f := NewFlagger(nil, testLogger())
	result, err := f.Flag(remainder)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Flagged)
	for i := range remainder {
		assert.False(t, result.IsAnomaly[i])
	}
	assertBandConsistent(t, remainder, result)
}

func TestFlagRespectsMaxAnomsCap(t *testing.T) {
	// Three extreme points but the cap admits floor(0.2 * 10) = 2.
	remainder := []float64{0, 0, 1, 0, 0, 1, 0, 100, 200, 300}

	f := NewFlagger(&Config{Alpha: 0.15, MaxAnoms: 0.2}, testLogger())
	result, err := f.Flag(remainder)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Flagged)
	assert.True(t, result.IsAnomaly[9])
	assert.True(t, result.IsAnomaly[8])
	assert.False(t, result.IsAnomaly[7])
	assertBandConsistent(t, remainder, result)
}

func TestFlagBreaksTiesTowardEarliestIndex(t *testing.T) {
	remainder := make([]float64, 20)
	remainder[4] = 50
	remainder[12] = 50

	f := NewFlagger(&Config{Alpha: 0.15, MaxAnoms: 0.05}, testLogger())
	result, err := f.Flag(remainder)
	require.NoError(t, err)

	require.Equal(t, 1, result.Flagged)
	assert.True(t, result.IsAnomaly[4])
	assert.False(t, result.IsAnomaly[12])
	assertBandConsistent(t, remainder, result)
}

func TestFlagConstantRemainder(t *testing.T) {
	remainder := []float64{3, 3, 3, 3, 3, 3}

	f := NewFlagger(nil, testLogger())
	result, err := f.Flag(remainder)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Flagged)
	assertBandConsistent(t, remainder, result)
}

func TestFlagTooFewPoints(t *testing.T) {
	f := NewFlagger(nil, testLogger())
	_, err := f.Flag([]float64{1, 2})
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientData(err))
}

func TestFlagRejectsNonFinite(t *testing.T) {
	f := NewFlagger(nil, testLogger())
	_, err := f.Flag([]float64{1, 2, stdmath.NaN(), 4})
	assert.Error(t, err)

	_, err = f.Flag([]float64{1, 2, stdmath.Inf(1), 4})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{Alpha: 0, MaxAnoms: 0.5}).Validate())
	assert.Error(t, (&Config{Alpha: 1, MaxAnoms: 0.5}).Validate())
	assert.Error(t, (&Config{Alpha: 0.15, MaxAnoms: 0}).Validate())
	assert.Error(t, (&Config{Alpha: 0.15, MaxAnoms: 1.5}).Validate())
}

func BenchmarkFlag(b *testing.B) {
	remainder := make([]float64, 240)
	for i := range remainder {
		remainder[i] = stdmath.Sin(float64(i) * 0.7)
	}
	remainder[120] = 50

	f := NewFlagger(nil, testLogger())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.Flag(remainder); err != nil {
			b.Fatal(err)
		}
	}
}

func TestCriticalValueShape(t *testing.T) {
	// Critical values grow with stricter alpha and stay positive.
	loose := criticalValue(0.15, 24, 1)
	strict := criticalValue(0.01, 24, 1)
	assert.Greater(t, strict, loose)
	assert.Greater(t, loose, 0.0)

	// Degenerate sample sizes yield an unreachable threshold.
	assert.True(t, stdmath.IsInf(criticalValue(0.15, 4, 3), 1))
}
