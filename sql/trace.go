package sql

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Regex patterns for query sanitization.
var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	// Example matches: 'hello', 'it\'s', 'foo''bar'
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches numeric literals (integers and floats).
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals such as 0xDEADBEEF.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// tracer resolves the tracer bound to this call. The second return value is
// false when the call must pass through untraced: no tracer provider was
// configured and the context carries no span to parent on. An explicitly
// configured provider always traces, matching the behavior of handing the
// interceptor a tracer at install time.
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
// dependency.type value. With DBSystem "postgresql" the query text is
// recorded under "postgresql.query".
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
func (cfg *config) queryAttributes(query, method string, args []driver.NamedValue) []attribute.KeyValue {
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

// encodeArgs renders query arguments as a JSON array. Values that cannot be
// marshalled degrade to the empty string rather than failing the query.
func encodeArgs(args []driver.NamedValue) string {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			values[i] = map[string]interface{}{arg.Name: arg.Value}
			continue
		}
		values[i] = arg.Value
	}

	encoded, err := json.Marshal(values)
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
//
// Note: This is a simple regex-based implementation. For production use
// with complex queries, consider using a proper SQL parser.
func DefaultQuerySanitizer(query string) string {
	query = stringLiteralRegex.ReplaceAllString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")
	return query
}
