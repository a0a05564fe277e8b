package sql

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface checks.
var (
	_ driver.Conn               = (*tracingConn)(nil)
	_ driver.ConnPrepareContext = (*tracingConn)(nil)
	_ driver.ConnBeginTx        = (*tracingConn)(nil)
	_ driver.ExecerContext      = (*tracingConn)(nil)
	_ driver.QueryerContext     = (*tracingConn)(nil)
	_ driver.Pinger             = (*tracingConn)(nil)
	_ driver.SessionResetter    = (*tracingConn)(nil)
	_ driver.Validator          = (*tracingConn)(nil)
)

// tracingConn wraps a driver.Conn. Query-executing methods open a span as a
// child of the span found in the call context, delegate to the wrapped
// connection with identical arguments, record the success flag, and close
// the span on every exit path. When the context carries no span and no
// tracer provider was configured, the call passes straight through.
type tracingConn struct {
	conn driver.Conn
	cfg  *config
	id   string
}

// newTracingConn creates a new instrumented connection. Each connection gets
// a process-unique id that is attached to its spans, so traces from pooled
// connections to the same database can be told apart.
func newTracingConn(conn driver.Conn, cfg *config) *tracingConn {
	return &tracingConn{
		conn: conn,
		cfg:  cfg,
		id:   uuid.NewString(),
	}
}

// connAttributes returns the per-connection attributes for spans.
func (c *tracingConn) connAttributes() []attribute.KeyValue {
	return append(c.cfg.baseAttributes(), attribute.String("db.connection.id", c.id))
}

// Prepare implements driver.Conn.
func (c *tracingConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return newTracingStmt(stmt, c, query, context.Background()), nil
}

// Close implements driver.Conn.
func (c *tracingConn) Close() error {
	return c.conn.Close()
}

// Begin implements driver.Conn.
// Deprecated: Use BeginTx instead. This exists for driver.Conn interface compatibility.
func (c *tracingConn) Begin() (driver.Tx, error) {
	tx, err := c.conn.Begin() //nolint:staticcheck // Required for driver.Conn interface
	if err != nil {
		return nil, err
	}
	return newTracingTx(tx, c, context.Background()), nil
}

// PrepareContext implements driver.ConnPrepareContext. Preparing itself is
// not traced; the statement remembers the prepare context so later
// executions can fall back to its span when called without one.
func (c *tracingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var stmt driver.Stmt
	var err error

	if preparer, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = preparer.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}

	if err != nil {
		return nil, err
	}
	return newTracingStmt(stmt, c, query, ctx), nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *tracingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	tracer, traced := c.cfg.tracer(ctx)
	if !traced {
		tx, err := c.beginTx(ctx, opts)
		if err != nil {
			return nil, err
		}
		return newTracingTx(tx, c, ctx), nil
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "BEGIN",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.connAttributes()...),
	)

	var err error
	defer func() { c.cfg.finishSpan(span, err) }()

	var tx driver.Tx
	tx, err = c.beginTx(ctx, opts)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "BEGIN", c.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return newTracingTx(tx, c, ctx), nil
}

func (c *tracingConn) beginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if beginner, ok := c.conn.(driver.ConnBeginTx); ok {
		return beginner.BeginTx(ctx, opts)
	}
	return c.conn.Begin() //nolint:staticcheck // Fallback for older drivers
}

// ExecContext implements driver.ExecerContext. This is the single-statement
// execution path.
func (c *tracingConn) ExecContext(
	ctx context.Context,
	query string,
	args []driver.NamedValue,
) (driver.Result, error) {
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		// Let database/sql fall back to prepare-and-execute.
		return nil, driver.ErrSkip
	}

	tracer, traced := c.cfg.tracer(ctx)
	if !traced {
		return execer.ExecContext(ctx, query, args)
	}

	start := time.Now()
	operation := extractOperation(query)

	attrs := append(c.connAttributes(), c.cfg.queryAttributes(query, "ExecContext", args)...)
	ctx, span := tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { c.cfg.finishSpan(span, err) }()

	var result driver.Result
	result, err = execer.ExecContext(ctx, query, args)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, c.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryContext implements driver.QueryerContext.
func (c *tracingConn) QueryContext(
	ctx context.Context,
	query string,
	args []driver.NamedValue,
) (driver.Rows, error) {
	queryer, ok := c.conn.(driver.QueryerContext)
	if !ok {
		// Let database/sql fall back to prepare-and-query.
		return nil, driver.ErrSkip
	}

	tracer, traced := c.cfg.tracer(ctx)
	if !traced {
		return queryer.QueryContext(ctx, query, args)
	}

	start := time.Now()
	operation := extractOperation(query)

	attrs := append(c.connAttributes(), c.cfg.queryAttributes(query, "QueryContext", args)...)
	ctx, span := tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { c.cfg.finishSpan(span, err) }()

	var rows driver.Rows
	rows, err = queryer.QueryContext(ctx, query, args)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, c.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Ping implements driver.Pinger.
func (c *tracingConn) Ping(ctx context.Context) error {
	pinger, ok := c.conn.(driver.Pinger)
	if !ok {
		return nil
	}

	tracer, traced := c.cfg.tracer(ctx)
	if !traced {
		return pinger.Ping(ctx)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "PING",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.connAttributes()...),
	)

	var err error
	defer func() { c.cfg.finishSpan(span, err) }()

	err = pinger.Ping(ctx)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "PING", c.cfg.baseAttributes(), err)

	return err
}

// ResetSession implements driver.SessionResetter.
func (c *tracingConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

// IsValid implements driver.Validator.
func (c *tracingConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}
