package sqlx

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Regex patterns for query sanitization.
var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches numeric literals (integers and floats).
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals such as 0xDEADBEEF.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// tracer resolves the tracer bound to this call. The second return value is
// false when the call must pass through untraced: no tracer provider was
// configured and the context carries no span to parent on.
func (cfg *config) tracer(ctx context.Context) (trace.Tracer, bool) {
	if cfg.Tracer != nil {
		return cfg.Tracer, true
	}
	if ctx == nil {
		return nil, false
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil, false
	}
	return span.TracerProvider().Tracer(scope), true
}

// finishSpan records the success flag, marks failed calls, and ends the
// span. Callers invoke it deferred so a started span is ended exactly once
// on every exit path.
func (cfg *config) finishSpan(span trace.Span, err error) {
	span.SetAttributes(attribute.Bool(cfg.attrKey("success"), err == nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// attrKey prefixes an attribute name with the module tag, mirroring the
// dependency.type value.
func (cfg *config) attrKey(name string) string {
	if cfg.DBSystem != "" {
		return cfg.DBSystem + "." + name
	}
	return "sql." + name
}

// dependencyType returns the fixed tag identifying the wrapped dependency.
func (cfg *config) dependencyType() string {
	if cfg.DBSystem != "" {
		return cfg.DBSystem
	}
	return "sql"
}

// baseAttributes returns the attributes shared by every span the wrapper
// emits for this database.
func (cfg *config) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.String("dependency.type", cfg.dependencyType()))
	if cfg.DBName != "" {
		attrs = append(attrs, attribute.String("db.name", cfg.DBName))
	}
	if cfg.InstanceName != "" {
		attrs = append(attrs, attribute.String("db.instance", cfg.InstanceName))
	}
	return attrs
}

// queryAttributes returns the attributes for a query span: the literal (or
// sanitized) statement text, the name of the wrapper method that ran it,
// and optionally the JSON-encoded arguments.
func (cfg *config) queryAttributes(query, method string, args []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)

	if !cfg.DisableQuery && query != "" {
		sanitized := query
		if cfg.QuerySanitizer != nil {
			sanitized = cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, attribute.String(cfg.attrKey("query"), sanitized))
	}

	attrs = append(attrs, attribute.String(cfg.attrKey("cursor.method.name"), method))

	if cfg.RecordArgs && len(args) > 0 {
		if encoded := encodeArgs(args); encoded != "" {
			attrs = append(attrs, attribute.String(cfg.attrKey("query.args"), encoded))
		}
	}

	return attrs
}

// traceQuery runs op with a span around it. The span carries the query
// attributes for method, the success flag is recorded when the span ends,
// and the call duration feeds the operation histogram. Calls that resolve
// no tracer pass straight through to op.
func (cfg *config) traceQuery(
	ctx context.Context,
	name, query, method string,
	args []interface{},
	op func(context.Context) error,
) error {
	start := time.Now()
	operation := extractOperation(query)

	tracer, traced := cfg.tracer(ctx)
	if !traced {
		err := op(ctx)
		cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, cfg.baseAttributes(), err)
		return err
	}

	attrs := append(cfg.baseAttributes(), cfg.queryAttributes(query, method, args)...)
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { cfg.finishSpan(span, err) }()

	err = op(ctx)

	cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, cfg.baseAttributes(), err)

	return err
}

// encodeArgs renders query arguments as a JSON array. Values that cannot be
// marshalled degrade to the empty string rather than failing the query.
func encodeArgs(args []interface{}) string {
	encoded, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// spanName returns a span name from a SQL query.
// Returns the SQL operation (SELECT, INSERT, etc.) or "SQL" for empty/unknown
// queries, since OpenTelemetry span names must not be empty.
func spanName(query string) string {
	op := extractOperation(query)
	if op != "" {
		return op
	}
	return "SQL"
}

// sqlxSpanName generates a span name for sqlx-specific operations.
func sqlxSpanName(method, query string) string {
	op := extractOperation(query)
	if op == "" {
		return method
	}
	return method + ": " + op
}

// extractOperation extracts the SQL operation (first word) from a query.
// Returns the uppercase operation name or empty string for an empty query.
func extractOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	spaceIdx := strings.IndexAny(query, " \t\n\r")
	if spaceIdx == -1 {
		return strings.ToUpper(query)
	}

	return strings.ToUpper(query[:spaceIdx])
}

// DefaultQuerySanitizer is a basic query sanitizer that replaces literal
// values with placeholders so sensitive data does not end up in traces.
//
// What it sanitizes:
//   - String literals: 'john' → '?'
//   - Numeric literals: 123, 45.67 → ?
//   - Hex literals: 0xDEADBEEF → ?
func DefaultQuerySanitizer(query string) string {
	query = stringLiteralRegex.ReplaceAllString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")
	return query
}
