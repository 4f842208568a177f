package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ecosense/invascope/pkg/models"
)

// SourceAdapter converts rows of one platform's export format into normalized
// raw records. Each platform ships a near-identical reshape with different
// column names and date conventions; the adapter isolates that variability so
// every source converges on the same aligner input contract.
type SourceAdapter interface {
	// Platform identifies the source.
	Platform() models.Platform

	// Bind resolves the adapter's column indices from a CSV header.
	Bind(header []string) error

	// Record parses one data row. The boolean is false for rows that carry
	// no usable observation (empty value cells); malformed rows error.
	Record(row []string) (models.RawRecord, bool, error)
}

// sourceSpec describes one platform's export format.
type sourceSpec struct {
	platform   models.Platform
	speciesCol string
	countryCol string
	dateCol    string
	valueCol   string
	// dateLayouts are tried in order; sources report anything from full
	// dates to bare months or years.
	dateLayouts []string
}

// specs is the single table of per-source variability. Everything else about
// ingestion is shared.
var specs = []sourceSpec{
	{
		platform:    models.PlatformWikipedia,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "date",
		valueCol:    "views",
		dateLayouts: []string{"2006-01-02", "2006-01"},
	},
	{
		platform:    models.PlatformGoogleHealth,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "month",
		valueCol:    "index",
		dateLayouts: []string{"2006-01", "2006-01-02"},
	},
	{
		platform:    models.PlatformFlickr,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "date_taken",
		valueCol:    "photos",
		dateLayouts: []string{"2006-01-02", "2006-01-02 15:04:05"},
	},
	{
		platform:    models.PlatformINaturalist,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "observed_on",
		valueCol:    "observations",
		dateLayouts: []string{"2006-01-02"},
	},
	{
		platform:    models.PlatformYouTube,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "published_at",
		valueCol:    "videos",
		dateLayouts: []string{time.RFC3339, "2006-01-02"},
	},
	{
		platform:    models.PlatformGBIF,
		speciesCol:  "species",
		countryCol:  "country",
		dateCol:     "event_date",
		valueCol:    "occurrences",
		dateLayouts: []string{"2006-01-02", "2006-01", "2006"},
	},
}

// adapter is the shared implementation behind every source.
type adapter struct {
	spec    sourceSpec
	species int
	country int
	date    int
	value   int
}

// ForPlatform returns the adapter for one platform.
func ForPlatform(p models.Platform) (SourceAdapter, error) {
	for _, spec := range specs {
		if spec.platform == p {
			return &adapter{spec: spec}, nil
		}
	}
	return nil, fmt.Errorf("no ingestion adapter for platform %q", p)
}

// Adapters returns one adapter per supported platform.
func Adapters() []SourceAdapter {
	out := make([]SourceAdapter, 0, len(specs))
	for _, spec := range specs {
		out = append(out, &adapter{spec: spec})
	}
	return out
}

func (a *adapter) Platform() models.Platform { return a.spec.platform }

func (a *adapter) Bind(header []string) error {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%s export missing column %q", a.spec.platform, name)
		}
		return i, nil
	}

	var err error
	if a.species, err = lookup(a.spec.speciesCol); err != nil {
		return err
	}
	if a.country, err = lookup(a.spec.countryCol); err != nil {
		return err
	}
	if a.date, err = lookup(a.spec.dateCol); err != nil {
		return err
	}
	if a.value, err = lookup(a.spec.valueCol); err != nil {
		return err
	}
	return nil
}

func (a *adapter) Record(row []string) (models.RawRecord, bool, error) {
	max := a.species
	for _, i := range []int{a.country, a.date, a.value} {
		if i > max {
			max = i
		}
	}
	if len(row) <= max {
		return models.RawRecord{}, false, fmt.Errorf("%s row has %d fields, need %d", a.spec.platform, len(row), max+1)
	}

	rawValue := strings.TrimSpace(row[a.value])
	if rawValue == "" {
		return models.RawRecord{}, false, nil
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return models.RawRecord{}, false, fmt.Errorf("%s value %q: %w", a.spec.platform, rawValue, err)
	}
	if value < 0 {
		return models.RawRecord{}, false, fmt.Errorf("%s value %g is negative", a.spec.platform, value)
	}

	date, err := a.parseDate(strings.TrimSpace(row[a.date]))
	if err != nil {
		return models.RawRecord{}, false, err
	}

	return models.RawRecord{
		Platform: a.spec.platform,
		Species:  strings.TrimSpace(row[a.species]),
		Country:  strings.TrimSpace(row[a.country]),
		Date:     date,
		Value:    value,
	}, true, nil
}

func (a *adapter) parseDate(raw string) (time.Time, error) {
	for _, layout := range a.spec.dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s date %q matches no known layout", a.spec.platform, raw)
}
