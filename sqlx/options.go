package sqlx

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/arkline-labs/dbtrace/sqlx"
)

// config holds the configuration for instrumentation.
type config struct {
	// TracerProvider is the tracer provider to use. When nil (the default),
	// the tracer is looked up from the span in each call's context, and
	// calls without a span pass through untraced.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Tracer is set only when TracerProvider was configured explicitly.
	Tracer trace.Tracer

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// DBSystem identifies the wrapped database product, e.g. "postgresql".
	// It is recorded as the dependency.type attribute and used as the
	// prefix for the query/success attribute keys.
	DBSystem string

	// DBName is the name of the database being accessed.
	DBName string

	// InstanceName identifies a specific database connection instance,
	// such as "primary" or "replica" in a read/write split.
	InstanceName string

	// QuerySanitizer sanitizes SQL queries before adding them to spans.
	// If nil, queries are included as-is (may expose sensitive data).
	QuerySanitizer func(query string) string

	// DisableQuery disables recording of SQL statement text in spans.
	DisableQuery bool

	// RecordArgs enables recording of JSON-encoded query arguments.
	// Off by default: argument values are almost always sensitive.
	RecordArgs bool
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		MeterProvider: otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// An explicitly configured provider pins the tracer for every call.
	// Without one, tracing follows the span found in each call context.
	if cfg.TracerProvider != nil {
		cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	}

	cfg.Meter = cfg.MeterProvider.Meter(scope)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// Option configures the instrumentation.
type Option func(*config)

// WithTracerProvider pins a tracer provider, so every call is traced even
// when its context carries no parent span. If not called, tracing is driven
// entirely by the span in each call's context.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(...)
//	db, _ := tracesqlx.Open("postgres", dsn,
//	    tracesqlx.WithTracerProvider(tp),
//	)
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithDBSystem sets the database system identifier (DBMS product). It is
// recorded as the dependency.type attribute on every span and prefixes the
// query/success attribute keys.
//
// Common values: "postgresql", "mysql", "sqlite", "mssql", "oracle".
func WithDBSystem(system string) Option {
	return func(cfg *config) {
		cfg.DBSystem = system
	}
}

// WithDBName sets the database name being accessed.
// This is added as the "db.name" attribute on all spans.
func WithDBName(name string) Option {
	return func(cfg *config) {
		cfg.DBName = name
	}
}

// WithInstanceName sets an identifier for this specific database
// connection, such as "primary", "replica" or "shard-1". It is added as
// the "db.instance" attribute on all spans.
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.InstanceName = name
	}
}

// WithQuerySanitizer sets a custom query sanitizer function. The sanitizer
// receives the raw SQL query and should return a version with sensitive
// literals replaced by placeholders.
//
// Use DefaultQuerySanitizer for a basic regex-based implementation.
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithDisableQuery disables recording of SQL statement text in spans
// entirely. The cursor method name and success flag are still recorded.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.DisableQuery = true
	}
}

// WithQueryArgs enables recording of JSON-encoded query arguments under the
// "<system>.query.args" attribute. Use with care: argument values usually
// contain exactly the data a sanitizer is meant to keep out of traces.
func WithQueryArgs() Option {
	return func(cfg *config) {
		cfg.RecordArgs = true
	}
}
