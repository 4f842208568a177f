package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/pkg/models"
)

// Loader drives a source adapter over a CSV export and canonicalizes the
// resulting records. Rows with unknown countries or unparseable content are
// counted and skipped rather than failing the load; per-source exports are
// messy and one bad row must not discard a platform.
type Loader struct {
	canon  *Canonicalizer
	logger *logrus.Logger
}

// NewLoader creates a loader. A nil canonicalizer passes names through
// unchanged (useful when the caller pre-canonicalized upstream).
func NewLoader(canon *Canonicalizer, logger *logrus.Logger) *Loader {
	if canon == nil {
		canon = NewCanonicalizer(nil, nil)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{canon: canon, logger: logger}
}

// Load reads one platform export and returns normalized raw records: species
// resolved through the synonym table, countries mapped to ISO-3166-1 alpha-2.
func (l *Loader) Load(r io.Reader, adapter SourceAdapter) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", adapter.Platform(), err)
	}
	if err := adapter.Bind(header); err != nil {
		return nil, err
	}

	var (
		records []models.RawRecord
		skipped int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s rows: %w", adapter.Platform(), err)
		}

		rec, ok, err := adapter.Record(row)
		if err != nil {
			skipped++
			l.logger.WithFields(logrus.Fields{
				"platform": adapter.Platform(),
				"error":    err.Error(),
			}).Debug("Skipping malformed row")
			continue
		}
		if !ok {
			continue
		}

		rec.Species = l.canon.Species(rec.Species)
		country, ok := l.canon.Country(rec.Country)
		if !ok {
			skipped++
			continue
		}
		rec.Country = country

		records = append(records, rec)
	}

	l.logger.WithFields(logrus.Fields{
		"platform": adapter.Platform(),
		"records":  len(records),
		"skipped":  skipped,
	}).Info("Loaded platform export")

	return records, nil
}
