package models

import "time"

// InvasionRecord is one entry of an EASIN-style invasion register: the year a
// species was first recorded as introduced in a country. The register reports
// years only, so the reference date is by convention January 1 of that year
// (earliest possible invasion, not a point estimate).
type InvasionRecord struct {
	Species string `json:"species"`
	Country string `json:"country"`
	Year    int    `json:"year"`
}

// ReferenceDate returns January 1 of the invasion year, UTC.
func (r InvasionRecord) ReferenceDate() time.Time {
	return time.Date(r.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// LagResult reports the temporal offset between the nearest anomalously-high
// activity point and the invasion reference date for one series. AnomalyDate
// and LagDays are nil when no qualifying anomaly exists inside the search
// window; that is an expected outcome, not an error.
type LagResult struct {
	Key         SeriesKey  `json:"key"`
	Reference   time.Time  `json:"reference"`
	AnomalyDate *time.Time `json:"anomaly_date,omitempty"`
	LagDays     *int       `json:"lag_days,omitempty"`
}

// Found reports whether an anomaly was located inside the search window.
func (r LagResult) Found() bool { return r.LagDays != nil }

// KeyOutcome is the per-key unit collected by the pipeline driver: either a
// lag result or a typed failure. Failures are local to the key and never
// abort sibling keys.
type KeyOutcome struct {
	Key    SeriesKey  `json:"key"`
	Result *LagResult `json:"result,omitempty"`
	Err    error      `json:"-"`
}
