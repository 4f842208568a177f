package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/internal/aligner"
	"github.com/ecosense/invascope/internal/anomaly"
	"github.com/ecosense/invascope/internal/decompose"
	"github.com/ecosense/invascope/internal/lag"
	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

// Config contains the full pipeline configuration.
type Config struct {
	Workers   int               `json:"workers" yaml:"workers"`
	Aligner   *aligner.Config   `json:"aligner" yaml:"aligner"`
	Decompose *decompose.Config `json:"decompose" yaml:"decompose"`
	Anomaly   *anomaly.Config   `json:"anomaly" yaml:"anomaly"`
	Lag       *lag.Config       `json:"lag" yaml:"lag"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:   constants.DefaultWorkers,
		Aligner:   aligner.DefaultConfig(),
		Decompose: decompose.DefaultConfig(),
		Anomaly:   anomaly.DefaultConfig(),
		Lag:       lag.DefaultConfig(),
	}
}

// Pipeline runs the full detection chain per series key: alignment,
// decomposition, GESD flagging, recomposition and lag estimation. Keys are
// independent, so the driver fans them out over a worker pool; within one key
// the stages are strictly sequential. Per-key failures are collected as typed
// outcomes and never abort sibling keys.
type Pipeline struct {
	config     *Config
	logger     *logrus.Logger
	metrics    *Metrics
	aligner    *aligner.Aligner
	decomposer *decompose.Decomposer
	flagger    *anomaly.Flagger
	estimator  *lag.Estimator
}

// New creates a pipeline. A nil registerer sends metrics to the default
// Prometheus registry.
func New(config *Config, logger *logrus.Logger, reg prometheus.Registerer) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = constants.DefaultWorkers
	}
	// Partial configs are allowed; nil sub-configs mean defaults, same as the
	// stage constructors themselves.
	if config.Aligner == nil {
		config.Aligner = aligner.DefaultConfig()
	}
	if config.Decompose == nil {
		config.Decompose = decompose.DefaultConfig()
	}
	if config.Anomaly == nil {
		config.Anomaly = anomaly.DefaultConfig()
	}
	if config.Lag == nil {
		config.Lag = lag.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		config:     config,
		logger:     logger,
		metrics:    NewMetrics(reg),
		aligner:    aligner.NewAligner(config.Aligner, logger),
		decomposer: decompose.NewDecomposer(config.Decompose, logger),
		flagger:    anomaly.NewFlagger(config.Anomaly, logger),
		estimator:  lag.NewEstimator(config.Lag, logger),
	}
}

// Run processes all raw records against the invasion register and returns one
// outcome per key, sorted by key for deterministic output. An empty input
// yields an empty result.
func (p *Pipeline) Run(ctx context.Context, records []models.RawRecord, register []models.InvasionRecord) ([]models.KeyOutcome, error) {
	runID := uuid.New().String()
	start := time.Now()

	log := p.logger.WithFields(logrus.Fields{"run_id": runID, "records": len(records)})
	log.Info("Starting detection run")

	series, rejections := p.aligner.Align(records)

	outcomes := make([]models.KeyOutcome, 0, len(series)+len(rejections))
	for _, rej := range rejections {
		p.metrics.KeysProcessed.WithLabelValues(statusInsufficientData).Inc()
		outcomes = append(outcomes, models.KeyOutcome{Key: rej.Key, Err: rej.Err})
	}

	invasions := indexRegister(register)

	jobs := make(chan *models.ObservationSeries)
	results := make(chan models.KeyOutcome)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				results <- p.processKey(s, invasions)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range series {
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewPipelineError("detection run cancelled", err)
	}

	sortOutcomes(outcomes)

	log.WithFields(logrus.Fields{
		"keys":     len(outcomes),
		"duration": time.Since(start).String(),
	}).Info("Detection run complete")

	return outcomes, nil
}

// processKey runs one admitted series through the sequential stages. All
// failures come back as typed errors on the outcome.
func (p *Pipeline) processKey(s *models.ObservationSeries, invasions map[invasionKey]models.InvasionRecord) models.KeyOutcome {
	start := time.Now()
	defer func() {
		p.metrics.KeyDuration.Observe(time.Since(start).Seconds())
	}()

	record, ok := invasions[invasionKey{species: s.Key.Species, country: s.Key.Country}]
	if !ok {
		p.metrics.KeysProcessed.WithLabelValues(statusNoInvasionRecord).Inc()
		return models.KeyOutcome{Key: s.Key, Err: errors.NewAppError(errors.ErrorTypeData,
			"NO_INVASION_RECORD",
			fmt.Sprintf("no invasion record for %s in %s", s.Key.Species, s.Key.Country))}
	}

	labeled, err := p.Detect(s)
	if err != nil {
		p.metrics.KeysProcessed.WithLabelValues(failureStatus(err)).Inc()
		p.logger.WithFields(logrus.Fields{
			"key":   s.Key.String(),
			"error": err.Error(),
		}).Warn("Key failed detection")
		return models.KeyOutcome{Key: s.Key, Err: err}
	}

	for _, flagged := range labeled.IsAnomaly {
		if flagged {
			p.metrics.AnomaliesFlagged.Inc()
		}
	}

	result := p.estimator.Estimate(labeled, record)
	if result.Found() {
		p.metrics.KeysProcessed.WithLabelValues(statusOK).Inc()
	} else {
		p.metrics.KeysProcessed.WithLabelValues(statusNoAnomaly).Inc()
	}
	return models.KeyOutcome{Key: s.Key, Result: &result}
}

// Detect runs decomposition, flagging and recomposition for one aligned
// series, returning the labeled series. Exposed for callers that want the
// full artifact rather than just the lag row.
func (p *Pipeline) Detect(s *models.ObservationSeries) (*models.AnomalyLabeledSeries, error) {
	if err := aligner.Admit(s, p.config.Aligner.MinDistinctMonths); err != nil {
		return nil, err
	}

	dec, err := p.decomposer.Decompose(s)
	if err != nil {
		return nil, err
	}

	flags, err := p.flagger.Flag(dec.Remainder)
	if err != nil {
		return nil, err
	}

	return anomaly.Recompose(dec, flags)
}

type invasionKey struct {
	species string
	country string
}

// indexRegister keys the register by (species, country), keeping the earliest
// year when duplicates occur.
func indexRegister(register []models.InvasionRecord) map[invasionKey]models.InvasionRecord {
	index := make(map[invasionKey]models.InvasionRecord, len(register))
	for _, rec := range register {
		key := invasionKey{species: rec.Species, country: rec.Country}
		if existing, ok := index[key]; ok && existing.Year <= rec.Year {
			continue
		}
		index[key] = rec
	}
	return index
}

func sortOutcomes(outcomes []models.KeyOutcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Key, outcomes[j].Key
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Species != b.Species {
			return a.Species < b.Species
		}
		return a.Country < b.Country
	})
}

func failureStatus(err error) string {
	switch {
	case errors.IsInsufficientData(err):
		return statusInsufficientData
	case errors.IsDecompositionFailed(err):
		return statusDecomposition
	default:
		return statusError
	}
}
