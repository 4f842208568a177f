package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewInsufficientDataError(CodeInsufficientData, "only 2 distinct months of data")
	assert.Contains(t, err.Error(), CodeInsufficientData)
	assert.Contains(t, err.Error(), "2 distinct months")

	wrapped := NewStorageError("writing header", errors.New("disk full"))
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsInsufficientData(NewInsufficientDataError(CodeZeroVariance, "flat")))
	assert.False(t, IsInsufficientData(NewDecompositionError(CodeDecompositionFailed, "short")))

	assert.True(t, IsDecompositionFailed(NewDecompositionError(CodeNumericalFailure, "NaN")))
	assert.False(t, IsDecompositionFailed(NewConfigurationError("bad alpha")))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NewInsufficientDataError(CodeInsufficientData, "short")
	outer := fmt.Errorf("processing key: %w", inner)
	assert.True(t, IsInsufficientData(outer))

	piped := NewPipelineError("key failed", inner)
	assert.True(t, IsInsufficientData(piped))
}

func TestAppErrorIs(t *testing.T) {
	a := NewInsufficientDataError(CodeZeroVariance, "flat series")
	b := NewInsufficientDataError(CodeZeroVariance, "different message")
	c := NewInsufficientDataError(CodeInsufficientData, "short")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestWithContext(t *testing.T) {
	err := NewInsufficientDataError(CodeInsufficientData, "short").
		WithContext("key", "wikipedia/Vespa velutina/FR")
	assert.Equal(t, "wikipedia/Vespa velutina/FR", err.Context["key"])
}
