package storage

import (
	"context"

	"github.com/ecosense/invascope/pkg/models"
)

// ResultSink persists the outcome table of one detection run. Sinks receive
// the full outcome set in one call; each run is a pure batch transform with
// no incremental update semantics.
type ResultSink interface {
	// Write persists the outcomes. Failed keys are written with their
	// status so "no anomaly found" stays distinguishable from "series
	// unusable".
	Write(ctx context.Context, runID string, outcomes []models.KeyOutcome) error

	// Close releases any held connections.
	Close() error
}

// OutcomeStatus reports the status string stored alongside each key.
func OutcomeStatus(o models.KeyOutcome) string {
	switch {
	case o.Err != nil:
		return "failed"
	case o.Result != nil && o.Result.Found():
		return "ok"
	default:
		return "no_anomaly"
	}
}
