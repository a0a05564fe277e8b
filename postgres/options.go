package postgres

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	tracesql "github.com/arkline-labs/dbtrace/sql"
)

// config holds the integration configuration. The dependency tag is fixed
// to "postgresql"; everything else forwards to the sql interceptor.
type config struct {
	logger  zerolog.Logger
	sqlOpts []tracesql.Option
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures the PostgreSQL integration.
type Option func(*config)

// WithLogger sets the logger used for the install line and ping retries.
// Logging is off by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithTracerProvider pins a tracer provider for the interceptor, so every
// call is traced even without a parent span in its context.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithTracerProvider(tp))
	}
}

// WithMeterProvider sets the meter provider for the interceptor's metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithMeterProvider(mp))
	}
}

// WithDBName sets the database name recorded on spans.
func WithDBName(name string) Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithDBName(name))
	}
}

// WithInstanceName sets the connection instance identifier recorded on spans.
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithInstanceName(name))
	}
}

// WithQuerySanitizer sets the sanitizer applied to statement text before it
// is recorded on spans.
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithQuerySanitizer(fn))
	}
}

// WithDisableQuery disables recording of statement text on spans.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithDisableQuery())
	}
}

// WithQueryArgs enables recording of JSON-encoded query arguments.
func WithQueryArgs() Option {
	return func(cfg *config) {
		cfg.sqlOpts = append(cfg.sqlOpts, tracesql.WithQueryArgs())
	}
}
