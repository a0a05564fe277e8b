// Package sql wraps a database/sql driver so query execution is traced
// with OpenTelemetry spans.
//
// # Design
//
// The wrapper is a driver decorator, not a patch: it never touches the
// wrapped driver's registration or internals. Connections produced through
// the wrapped driver are always the instrumented connection type, and each
// query-executing method opens a span, delegates to the real driver with
// identical arguments, records a success flag, and ends the span - whether
// the call returned normally or failed. Errors from the wrapped driver
// reach the caller unchanged; the wrapper never translates or swallows them.
//
// Tracing follows the call context. When a context carries an active span,
// a child span is emitted against that span's tracer provider. When it does
// not, the call passes straight through to the wrapped driver with no
// tracing side effects at all, unless a provider was pinned with
// WithTracerProvider.
//
// # Quick Start
//
//	import tracesql "github.com/arkline-labs/dbtrace/sql"
//
//	db, err := tracesql.Open("postgres", dsn,
//	    tracesql.WithDBSystem("postgresql"),
//	    tracesql.WithDBName("myapp"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	// Use like standard *sql.DB
//	rows, err := db.QueryContext(ctx, "SELECT * FROM users")
//
// # Driver Registration
//
// For more control, wrap and register a driver explicitly:
//
//	driver := tracesql.WrapDriver(pq.Driver{},
//	    tracesql.WithDBSystem("postgresql"),
//	)
//	sql.Register("postgres-traced", driver)
//
//	db, _ := sql.Open("postgres-traced", dsn)
//
// Registration mutates process-wide state. Install the wrapped driver once,
// during startup, before queries run; installs are idempotent per
// (driver, options) combination but must not race query execution.
//
// # Span Attributes
//
// Every query span carries:
//   - dependency.type: the configured database system ("postgresql", ...)
//   - <system>.query: the literal statement text (optionally sanitized)
//   - <system>.cursor.method.name: the wrapper method that ran it
//   - <system>.success: whether the delegated call returned without error
//   - db.connection.id: identifier of the pooled connection
//
// # Query Sanitization
//
// Use DefaultQuerySanitizer to mask literal values:
//
//	// Input:  "SELECT * FROM users WHERE id = 123"
//	// Output: "SELECT * FROM users WHERE id = ?"
//
//	db, _ := tracesql.Open("postgres", dsn,
//	    tracesql.WithQuerySanitizer(tracesql.DefaultQuerySanitizer),
//	)
//
// # Metrics
//
// The wrapper records db.client.operation.duration histograms through the
// configured meter provider, and connection pool gauges can be registered
// with RecordPoolMetrics. Scrape-based setups can register a
// PoolStatsCollector with Prometheus instead.
package sql
