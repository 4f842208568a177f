// Package postgres persists detection outcomes to a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/storage"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS lag_results (
	run_id         TEXT        NOT NULL,
	platform       TEXT        NOT NULL,
	species        TEXT        NOT NULL,
	country        TEXT        NOT NULL,
	status         TEXT        NOT NULL,
	reference_date DATE,
	anomaly_date   DATE,
	lag_days       INTEGER,
	error          TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, platform, species, country)
)`

const insertSQL = `
INSERT INTO lag_results
	(run_id, platform, species, country, status, reference_date, anomaly_date, lag_days, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Sink writes outcomes into the lag_results table.
type Sink struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSink opens a connection pool and ensures the results table exists.
func NewSink(ctx context.Context, dsn string, logger *logrus.Logger) (*Sink, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStorageError("opening postgres connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorageError("pinging postgres", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, errors.NewStorageError("creating lag_results table", err)
	}

	return &Sink{db: db, logger: logger}, nil
}

// Write inserts all outcomes in one transaction so a failed run leaves no
// partial table state.
func (s *Sink) Write(ctx context.Context, runID string, outcomes []models.KeyOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("beginning transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return errors.NewStorageError("preparing insert", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var (
			reference, anomalyDate interface{}
			lagDays                interface{}
			errText                interface{}
		)
		if o.Result != nil {
			reference = o.Result.Reference
			if o.Result.Found() {
				anomalyDate = *o.Result.AnomalyDate
				lagDays = *o.Result.LagDays
			}
		}
		if o.Err != nil {
			errText = o.Err.Error()
		}

		if _, err := stmt.ExecContext(ctx, runID,
			string(o.Key.Platform), o.Key.Species, o.Key.Country,
			storage.OutcomeStatus(o), reference, anomalyDate, lagDays, errText); err != nil {
			return errors.NewStorageError(fmt.Sprintf("inserting outcome for %s", o.Key.String()), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("committing transaction", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"rows":   len(outcomes),
	}).Info("Wrote results to postgres")

	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() error { return s.db.Close() }
