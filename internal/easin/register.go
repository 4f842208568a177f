// Package easin loads EASIN-style invasion registers: one row per species,
// country and year of first recorded introduction.
package easin

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/ingest"
	"github.com/ecosense/invascope/pkg/models"
)

// LoadRegister reads an invasion register CSV with species, country and year
// columns. Records before minYear are dropped (too old to overlap the digital
// activity record); duplicate (species, country) rows keep the earliest year,
// matching the earliest-possible-invasion convention.
func LoadRegister(r io.Reader, canon *ingest.Canonicalizer, minYear int, logger *logrus.Logger) ([]models.InvasionRecord, error) {
	if canon == nil {
		canon = ingest.NewCanonicalizer(nil, nil)
	}
	if logger == nil {
		logger = logrus.New()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading register header: %w", err)
	}
	speciesIdx, countryIdx, yearIdx := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "species":
			speciesIdx = i
		case "country":
			countryIdx = i
		case "year":
			yearIdx = i
		}
	}
	if speciesIdx < 0 || countryIdx < 0 || yearIdx < 0 {
		return nil, fmt.Errorf("register is missing species, country or year column")
	}

	type key struct{ species, country string }
	earliest := make(map[key]models.InvasionRecord)
	skipped := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading register rows: %w", err)
		}
		if len(row) <= speciesIdx || len(row) <= countryIdx || len(row) <= yearIdx {
			skipped++
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[yearIdx]))
		if err != nil || year < minYear {
			skipped++
			continue
		}

		country, ok := canon.Country(row[countryIdx])
		if !ok {
			skipped++
			continue
		}

		rec := models.InvasionRecord{
			Species: canon.Species(row[speciesIdx]),
			Country: country,
			Year:    year,
		}
		k := key{species: rec.Species, country: rec.Country}
		if existing, ok := earliest[k]; !ok || rec.Year < existing.Year {
			earliest[k] = rec
		}
	}

	records := make([]models.InvasionRecord, 0, len(earliest))
	for _, rec := range earliest {
		records = append(records, rec)
	}

	logger.WithFields(logrus.Fields{
		"records":  len(records),
		"skipped":  skipped,
		"min_year": minYear,
	}).Info("Loaded invasion register")

	return records, nil
}
