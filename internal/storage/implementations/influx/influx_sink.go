// Package influx writes detection outcomes as InfluxDB points, one
// measurement per run, for dashboarding lag distributions over time.
package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/storage"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

const measurement = "invasion_lag"

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org"`
	Bucket string `json:"bucket" yaml:"bucket"`
}

// Sink writes one point per outcome.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *logrus.Logger
}

// NewSink creates an InfluxDB sink.
func NewSink(config Config, logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logrus.New()
	}
	client := influxdb2.NewClient(config.URL, config.Token)
	return &Sink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
		logger:   logger,
	}
}

// Write sends all outcomes as points tagged by run, platform, species and
// country. Anomaly-bearing outcomes carry the lag in days; the point
// timestamp is the anomaly date so dashboards line up with the activity
// record. Outcomes without an anomaly are stamped with the reference date.
func (s *Sink) Write(ctx context.Context, runID string, outcomes []models.KeyOutcome) error {
	for _, o := range outcomes {
		fields := map[string]interface{}{"status": storage.OutcomeStatus(o)}
		ts := time.Now().UTC()
		if o.Result != nil {
			ts = o.Result.Reference
			if o.Result.Found() {
				fields["lag_days"] = *o.Result.LagDays
				ts = *o.Result.AnomalyDate
			}
		}
		if o.Err != nil {
			fields["error"] = o.Err.Error()
		}

		point := influxdb2.NewPoint(measurement,
			map[string]string{
				"run_id":   runID,
				"platform": string(o.Key.Platform),
				"species":  o.Key.Species,
				"country":  o.Key.Country,
			},
			fields, ts)

		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			return errors.NewStorageError("writing influx point", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"points": len(outcomes),
	}).Info("Wrote results to influxdb")

	return nil
}

// Close shuts the underlying client down.
func (s *Sink) Close() error {
	s.client.Close()
	return nil
}
