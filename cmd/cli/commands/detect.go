package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecosense/invascope/internal/anomaly"
	"github.com/ecosense/invascope/internal/easin"
	"github.com/ecosense/invascope/internal/ingest"
	"github.com/ecosense/invascope/internal/pipeline"
	"github.com/ecosense/invascope/internal/storage"
	filesink "github.com/ecosense/invascope/internal/storage/implementations/file"
	influxsink "github.com/ecosense/invascope/internal/storage/implementations/influx"
	pgsink "github.com/ecosense/invascope/internal/storage/implementations/postgres"
	"github.com/ecosense/invascope/pkg/constants"
	"github.com/ecosense/invascope/pkg/models"
)

// DetectOptions holds the detect command's flags.
type DetectOptions struct {
	Sources    []string
	Register   string
	Synonyms   string
	Countries  string
	MinYear    int
	Alpha      float64
	MaxAnoms   float64
	Period     int
	Workers    int
	WindowDays int
	Output     string
	Token      string
	LogLevel   string
}

// NewDetectCmd creates the detect command: the full batch run from platform
// exports to a lag-result table.
func NewDetectCmd() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run anomaly detection and lag estimation over platform exports",
		Example: `  # Two platforms against the EASIN register, CSV output
  invascope detect \
      --source wikipedia=./data/wikipedia.csv \
      --source gbif=./data/gbif.csv \
      --register ./data/easin.csv \
      --output file:./results.csv

  # Permissive flagging into postgres
  invascope detect --source gbif=./data/gbif.csv --register ./data/easin.csv \
      --alpha 0.15 --max-anoms 0.5 \
      --output postgres://invascope@localhost/invascope?sslmode=disable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Sources, "source", "s", nil, "platform export as platform=path (repeatable, required)")
	cmd.Flags().StringVarP(&opts.Register, "register", "r", "", "invasion register CSV (required)")
	cmd.Flags().StringVar(&opts.Synonyms, "synonyms", "", "species synonym table CSV (synonym,canonical)")
	cmd.Flags().StringVar(&opts.Countries, "countries", "", "country mapping table CSV (name,alpha2)")
	cmd.Flags().IntVar(&opts.MinYear, "min-year", constants.DefaultYearCutoff, "ignore register entries before this year")
	cmd.Flags().Float64Var(&opts.Alpha, "alpha", constants.DefaultAlpha, "GESD significance level")
	cmd.Flags().Float64Var(&opts.MaxAnoms, "max-anoms", constants.DefaultMaxAnoms, "maximum fraction of points flagged per series")
	cmd.Flags().IntVar(&opts.Period, "period", 0, "seasonal period (0 = auto-detect)")
	cmd.Flags().IntVar(&opts.Workers, "workers", constants.DefaultWorkers, "parallel workers")
	cmd.Flags().IntVar(&opts.WindowDays, "window-days", constants.LagWindowDays, "lag search window around the invasion date")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "file:./results.csv", "result sink URI (file:, postgres:, influx:)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "sink auth token (influx)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("register")

	viper.BindPFlag("detect.alpha", cmd.Flags().Lookup("alpha"))
	viper.BindPFlag("detect.max_anoms", cmd.Flags().Lookup("max-anoms"))
	viper.BindPFlag("detect.workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("detect.output", cmd.Flags().Lookup("output"))

	return cmd
}

func runDetect(ctx context.Context, opts *DetectOptions) error {
	logger := newLogger(opts.LogLevel)

	synonyms, err := loadTable(opts.Synonyms)
	if err != nil {
		return fmt.Errorf("loading synonym table: %w", err)
	}
	countries, err := loadTable(opts.Countries)
	if err != nil {
		return fmt.Errorf("loading country table: %w", err)
	}
	canon := ingest.NewCanonicalizer(synonyms, countries)
	loader := ingest.NewLoader(canon, logger)

	var records []models.RawRecord
	for _, source := range opts.Sources {
		platform, path, ok := strings.Cut(source, "=")
		if !ok {
			return fmt.Errorf("source %q is not platform=path", source)
		}
		adapter, err := ingest.ForPlatform(models.Platform(platform))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s export: %w", platform, err)
		}
		recs, err := loader.Load(f, adapter)
		f.Close()
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}

	rf, err := os.Open(opts.Register)
	if err != nil {
		return fmt.Errorf("opening register: %w", err)
	}
	register, err := easin.LoadRegister(rf, canon, opts.MinYear, logger)
	rf.Close()
	if err != nil {
		return err
	}

	config := pipeline.DefaultConfig()
	config.Workers = opts.Workers
	config.Anomaly = &anomaly.Config{Alpha: opts.Alpha, MaxAnoms: opts.MaxAnoms}
	config.Decompose.Period = opts.Period
	config.Lag.WindowDays = opts.WindowDays

	p := pipeline.New(config, logger, nil)
	outcomes, err := p.Run(ctx, records, register)
	if err != nil {
		return err
	}

	sink, err := newSinkFactory(logger).Create(ctx, storage.SinkConfig{URI: opts.Output, Token: opts.Token})
	if err != nil {
		return err
	}
	defer sink.Close()

	runID := uuid.New().String()
	if err := sink.Write(ctx, runID, outcomes); err != nil {
		return err
	}

	found, failed := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Result.Found():
			found++
		}
	}
	fmt.Printf("Processed %d keys: %d with anomalies in window, %d failed\n", len(outcomes), found, failed)

	return nil
}

// newSinkFactory registers the built-in sink schemes.
func newSinkFactory(logger *logrus.Logger) *storage.Factory {
	return storage.NewFactory(logger, map[string]storage.SinkCreateFunc{
		"file": func(_ context.Context, config storage.SinkConfig, logger *logrus.Logger) (storage.ResultSink, error) {
			return filesink.NewSink(strings.TrimPrefix(config.URI, "file:"), logger), nil
		},
		"postgres": func(ctx context.Context, config storage.SinkConfig, logger *logrus.Logger) (storage.ResultSink, error) {
			return pgsink.NewSink(ctx, config.URI, logger)
		},
		"influx": func(_ context.Context, config storage.SinkConfig, logger *logrus.Logger) (storage.ResultSink, error) {
			return influxsink.NewSink(influxConfig(config), logger), nil
		},
	})
}

// influxConfig maps influx://host:8086/org/bucket plus the token flag onto
// the sink's connection settings.
func influxConfig(config storage.SinkConfig) influxsink.Config {
	trimmed := strings.TrimPrefix(config.URI, "influx://")
	host, rest, _ := strings.Cut(trimmed, "/")
	org, bucket, _ := strings.Cut(rest, "/")
	return influxsink.Config{
		URL:    "http://" + host,
		Token:  config.Token,
		Org:    org,
		Bucket: bucket,
	}
}

// loadTable reads a two-column CSV into a map; an empty path yields an empty
// table.
func loadTable(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	table := make(map[string]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		table[strings.TrimSpace(row[0])] = strings.TrimSpace(row[1])
	}
	return table, nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}
