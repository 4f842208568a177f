// Package file writes detection outcomes to a CSV file, the format consumed
// by the downstream correlation and plotting notebooks.
package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/storage"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

// Sink writes one CSV row per key outcome.
type Sink struct {
	path   string
	logger *logrus.Logger
}

// NewSink creates a CSV file sink.
func NewSink(path string, logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sink{path: path, logger: logger}
}

// Write persists the outcome table. The file is truncated; every run owns its
// output completely.
func (s *Sink) Write(ctx context.Context, runID string, outcomes []models.KeyOutcome) error {
	f, err := os.Create(s.path)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("creating %s", s.path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"run_id", "platform", "species", "country", "status", "reference_date", "anomaly_date", "lag_days", "error"}
	if err := w.Write(header); err != nil {
		return errors.NewStorageError("writing header", err)
	}

	for _, o := range outcomes {
		if err := ctx.Err(); err != nil {
			return errors.NewStorageError("write cancelled", err)
		}

		row := []string{runID, string(o.Key.Platform), o.Key.Species, o.Key.Country, storage.OutcomeStatus(o), "", "", "", ""}
		if o.Result != nil {
			row[5] = o.Result.Reference.Format("2006-01-02")
			if o.Result.Found() {
				row[6] = o.Result.AnomalyDate.Format("2006-01-02")
				row[7] = strconv.Itoa(*o.Result.LagDays)
			}
		}
		if o.Err != nil {
			row[8] = o.Err.Error()
		}
		if err := w.Write(row); err != nil {
			return errors.NewStorageError("writing row", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewStorageError("flushing output", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path": s.path,
		"rows": len(outcomes),
		"time": time.Now().UTC().Format(time.RFC3339),
	}).Info("Wrote result file")

	return nil
}

// Close implements ResultSink; file handles are per-write.
func (s *Sink) Close() error { return nil }
