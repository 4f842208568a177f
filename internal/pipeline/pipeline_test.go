package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestPipeline(config *Config) *Pipeline {
	return New(config, testLogger(), prometheus.NewRegistry())
}

// spikeRecords builds three years of monthly observations for one key, flat
// except for a single burst of activity.
func spikeRecords(species, country string, spike time.Time, value float64) []models.RawRecord {
	var records []models.RawRecord
	for m := 0; m < 36; m++ {
		month := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, m, 0)
		v := 0.0
		if month.Equal(spike) {
			v = value
		}
		records = append(records, models.RawRecord{
			Platform: models.PlatformWikipedia,
			Species:  species,
			Country:  country,
			Date:     month,
			Value:    v,
		})
	}
	return records
}

func TestRunSpikeAtInvasionDate(t *testing.T) {
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)
	register := []models.InvasionRecord{{Species: "Vespa velutina", Country: "FR", Year: 2017}}

	p := newTestPipeline(nil)
	outcomes, err := p.Run(context.Background(), records, register)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	outcome := outcomes[0]
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	require.True(t, outcome.Result.Found())
	assert.Equal(t, 0, *outcome.Result.LagDays)
	assert.Equal(t, spike, *outcome.Result.AnomalyDate)
}

func TestRunPartialConfig(t *testing.T) {
	// Setting only the worker count is a supported configuration; the nil
	// sub-configs fall back to stage defaults.
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)
	register := []models.InvasionRecord{{Species: "Vespa velutina", Country: "FR", Year: 2017}}

	p := newTestPipeline(&Config{Workers: 2})
	outcomes, err := p.Run(context.Background(), records, register)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	require.True(t, outcomes[0].Result.Found())
	assert.Equal(t, 0, *outcomes[0].Result.LagDays)
}

func TestRunFailuresAreIsolated(t *testing.T) {
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)

	// Sibling key with too little data to be admitted.
	records = append(records,
		models.RawRecord{Platform: models.PlatformGBIF, Species: "Procyon lotor", Country: "DE",
			Date: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), Value: 3},
		models.RawRecord{Platform: models.PlatformGBIF, Species: "Procyon lotor", Country: "DE",
			Date: time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC), Value: 4},
	)

	register := []models.InvasionRecord{
		{Species: "Vespa velutina", Country: "FR", Year: 2017},
		{Species: "Procyon lotor", Country: "DE", Year: 2016},
	}

	p := newTestPipeline(nil)
	outcomes, err := p.Run(context.Background(), records, register)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// Sorted by key: gbif before wikipedia.
	rejected, succeeded := outcomes[0], outcomes[1]
	assert.Equal(t, models.PlatformGBIF, rejected.Key.Platform)
	require.Error(t, rejected.Err)
	assert.True(t, errors.IsInsufficientData(rejected.Err))

	require.NoError(t, succeeded.Err)
	assert.True(t, succeeded.Result.Found())
}

func TestRunMissingInvasionRecord(t *testing.T) {
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)

	p := newTestPipeline(nil)
	outcomes, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
	assert.Nil(t, outcomes[0].Result)
}

func TestRunEmptyInput(t *testing.T) {
	p := newTestPipeline(nil)
	outcomes, err := p.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunCancelled(t *testing.T) {
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)
	register := []models.InvasionRecord{{Species: "Vespa velutina", Country: "FR", Year: 2017}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(nil)
	_, err := p.Run(ctx, records, register)
	assert.Error(t, err)
}

func TestRunDeterministic(t *testing.T) {
	var records []models.RawRecord
	species := []string{"Vespa velutina", "Procyon lotor", "Nyctereutes procyonoides"}
	var register []models.InvasionRecord
	for _, sp := range species {
		records = append(records, spikeRecords(sp, "FR", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 100)...)
		register = append(register, models.InvasionRecord{Species: sp, Country: "FR", Year: 2017})
	}

	first, err := newTestPipeline(nil).Run(context.Background(), records, register)
	require.NoError(t, err)
	second, err := newTestPipeline(nil).Run(context.Background(), records, register)
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		require.NotNil(t, first[i].Result)
		require.NotNil(t, second[i].Result)
		assert.Equal(t, *first[i].Result.LagDays, *second[i].Result.LagDays)
	}

	// Key order is sorted, not arrival order.
	assert.Equal(t, "Nyctereutes procyonoides", first[0].Key.Species)
	assert.Equal(t, "Procyon lotor", first[1].Key.Species)
	assert.Equal(t, "Vespa velutina", first[2].Key.Species)
}

func TestDetectLabelsSpike(t *testing.T) {
	spike := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	records := spikeRecords("Vespa velutina", "FR", spike, 100)

	p := newTestPipeline(nil)
	series, rejections := p.aligner.Align(records)
	require.Empty(t, rejections)
	require.Len(t, series, 1)

	labeled, err := p.Detect(series[0])
	require.NoError(t, err)

	// The burst month is flagged high; bounds agree with flags everywhere.
	highs := labeled.HighAnomalyMonths()
	require.Len(t, highs, 1)
	assert.Equal(t, spike, highs[0])

	for i := range labeled.Observed {
		outside := labeled.Observed[i] < labeled.Lower[i] || labeled.Observed[i] > labeled.Upper[i]
		assert.Equal(t, labeled.IsAnomaly[i], outside, "index %d", i)
	}
}

func TestIndexRegisterKeepsEarliestYear(t *testing.T) {
	index := indexRegister([]models.InvasionRecord{
		{Species: "a", Country: "FR", Year: 2018},
		{Species: "a", Country: "FR", Year: 2015},
		{Species: "a", Country: "FR", Year: 2019},
	})
	assert.Equal(t, 2015, index[invasionKey{species: "a", country: "FR"}].Year)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(nil, testLogger(), reg)

	_, err := p.Run(context.Background(), spikeRecords("Vespa velutina", "FR",
		time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 100),
		[]models.InvasionRecord{{Species: "Vespa velutina", Country: "FR", Year: 2017}})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["invascope_pipeline_keys_processed_total"])
	assert.True(t, names["invascope_pipeline_anomalies_flagged_total"])
}
