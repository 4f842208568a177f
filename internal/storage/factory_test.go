package storage

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

type nopSink struct{}

func (nopSink) Write(context.Context, string, []models.KeyOutcome) error { return nil }
func (nopSink) Close() error                                             { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSchemeOf(t *testing.T) {
	assert.Equal(t, "file", schemeOf("file:./results.csv"))
	assert.Equal(t, "postgres", schemeOf("postgres://user@host/db"))
	assert.Equal(t, "influx", schemeOf("influx://localhost:8086/org/bucket"))
	// Bare paths default to the CSV file sink.
	assert.Equal(t, "file", schemeOf("./results.csv"))
	assert.Equal(t, "file", schemeOf("results.csv"))
}

func TestFactoryCreate(t *testing.T) {
	var gotURI string
	factory := NewFactory(testLogger(), map[string]SinkCreateFunc{
		"file": func(_ context.Context, config SinkConfig, _ *logrus.Logger) (ResultSink, error) {
			gotURI = config.URI
			return nopSink{}, nil
		},
	})

	sink, err := factory.Create(context.Background(), SinkConfig{URI: "file:./out.csv"})
	require.NoError(t, err)
	require.NotNil(t, sink)
	assert.Equal(t, "file:./out.csv", gotURI)

	_, err = factory.Create(context.Background(), SinkConfig{URI: "kafka://broker/topic"})
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"file"}, factory.SupportedSchemes())
}

func TestOutcomeStatus(t *testing.T) {
	key := models.SeriesKey{Platform: models.PlatformWikipedia, Species: "x", Country: "FR"}
	lag := 10

	assert.Equal(t, "failed", OutcomeStatus(models.KeyOutcome{
		Key: key,
		Err: errors.NewInsufficientDataError(errors.CodeInsufficientData, "short"),
	}))
	assert.Equal(t, "ok", OutcomeStatus(models.KeyOutcome{
		Key:    key,
		Result: &models.LagResult{Key: key, LagDays: &lag},
	}))
	assert.Equal(t, "no_anomaly", OutcomeStatus(models.KeyOutcome{
		Key:    key,
		Result: &models.LagResult{Key: key},
	}))
}
