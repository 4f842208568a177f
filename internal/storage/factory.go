package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// SinkConfig selects and configures a result sink by URI:
//
//	file:./results.csv              CSV file
//	postgres://user:pw@host/db      PostgreSQL table
//	influx://host:8086/org/bucket   InfluxDB bucket (token via Token field)
type SinkConfig struct {
	URI   string `json:"uri" yaml:"uri"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// SinkCreateFunc builds a sink from its configuration.
type SinkCreateFunc func(ctx context.Context, config SinkConfig, logger *logrus.Logger) (ResultSink, error)

// Factory creates result sinks by URI scheme.
type Factory struct {
	creators map[string]SinkCreateFunc
	logger   *logrus.Logger
}

// NewFactory creates a factory with the given scheme registrations.
func NewFactory(logger *logrus.Logger, creators map[string]SinkCreateFunc) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{creators: creators, logger: logger}
}

// Create builds the sink named by the configuration's URI scheme.
func (f *Factory) Create(ctx context.Context, config SinkConfig) (ResultSink, error) {
	scheme := schemeOf(config.URI)
	create, ok := f.creators[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported result sink scheme %q", scheme)
	}

	sink, err := create(ctx, config, f.logger)
	if err != nil {
		return nil, err
	}

	f.logger.WithField("sink", scheme).Info("Created result sink")
	return sink, nil
}

// SupportedSchemes lists the registered sink schemes.
func (f *Factory) SupportedSchemes() []string {
	schemes := make([]string, 0, len(f.creators))
	for scheme := range f.creators {
		schemes = append(schemes, scheme)
	}
	return schemes
}

func schemeOf(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		return u.Scheme
	}
	if i := strings.Index(uri, ":"); i > 0 {
		return uri[:i]
	}
	// A bare path means a CSV file.
	return "file"
}
