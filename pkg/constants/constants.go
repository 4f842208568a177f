package constants

import "time"

// Application metadata.
const (
	AppName    = "invascope"
	AppVersion = "0.3.0"
)

// Detection defaults. Alpha and MaxAnoms follow the upstream study's
// permissive settings; both are configuration, not structural requirements.
const (
	DefaultAlpha    = 0.15
	DefaultMaxAnoms = 0.5

	// DefaultPeriod is the seasonal period for monthly-aggregated series.
	DefaultPeriod = 12

	// MinDistinctMonths is the admission threshold below which a series
	// cannot be decomposed or meaningfully tested.
	MinDistinctMonths = 3

	// MinDecompositionPoints is the minimum series length required before a
	// decomposition is attempted; shorter series fail rather than producing
	// degenerate output.
	MinDecompositionPoints = 2 * MinDistinctMonths

	// LagWindowDays is the symmetric search window around the invasion
	// reference date. 366 covers a full calendar year on each side, robust
	// to leap years.
	LagWindowDays = 366
)

// Pipeline defaults.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024

	// DefaultYearCutoff filters the invasion register to years recent enough
	// to overlap the digital activity record.
	DefaultYearCutoff = 2010
)

// Environment / configuration.
const (
	EnvPrefix         = "INVASCOPE"
	DefaultConfigName = ".invascope"
	DefaultConfigType = "yaml"
)

// Server defaults.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)
