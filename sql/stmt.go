package sql

import (
	"context"
	"database/sql/driver"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface checks.
var (
	_ driver.Stmt             = (*tracingStmt)(nil)
	_ driver.StmtExecContext  = (*tracingStmt)(nil)
	_ driver.StmtQueryContext = (*tracingStmt)(nil)
)

// tracingStmt wraps a driver.Stmt. The statement text is captured at prepare
// time and attached to every execution span. Batch-style workloads that
// prepare once and execute per row get one span per execution.
type tracingStmt struct {
	stmt  driver.Stmt
	conn  *tracingConn
	query string

	// prepareCtx is the context the statement was prepared with. Executions
	// called without a span in their own context fall back to the span that
	// was live at prepare time.
	prepareCtx context.Context
}

func newTracingStmt(stmt driver.Stmt, conn *tracingConn, query string, ctx context.Context) *tracingStmt {
	return &tracingStmt{
		stmt:       stmt,
		conn:       conn,
		query:      query,
		prepareCtx: ctx,
	}
}

// tracer resolves the tracer for a statement execution, preferring the call
// context over the prepare context.
func (s *tracingStmt) tracer(ctx context.Context) (trace.Tracer, bool) {
	if tracer, ok := s.conn.cfg.tracer(ctx); ok {
		return tracer, true
	}
	return s.conn.cfg.tracer(s.prepareCtx)
}

// Close implements driver.Stmt.
func (s *tracingStmt) Close() error {
	return s.stmt.Close()
}

// NumInput implements driver.Stmt.
func (s *tracingStmt) NumInput() int {
	return s.stmt.NumInput()
}

// Exec implements driver.Stmt.
// Deprecated: Use ExecContext instead. This exists for driver.Stmt interface compatibility.
func (s *tracingStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.stmt.Exec(args) //nolint:staticcheck // Required for driver.Stmt interface
}

// Query implements driver.Stmt.
// Deprecated: Use QueryContext instead. This exists for driver.Stmt interface compatibility.
func (s *tracingStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.stmt.Query(args) //nolint:staticcheck // Required for driver.Stmt interface
}

// ExecContext implements driver.StmtExecContext.
func (s *tracingStmt) ExecContext(
	ctx context.Context,
	args []driver.NamedValue,
) (driver.Result, error) {
	tracer, traced := s.tracer(ctx)
	if !traced {
		return s.execContext(ctx, args)
	}

	start := time.Now()
	operation := extractOperation(s.query)

	attrs := append(s.conn.connAttributes(), s.conn.cfg.queryAttributes(s.query, "StmtExecContext", args)...)
	ctx, span := tracer.Start(ctx, spanName(s.query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { s.conn.cfg.finishSpan(span, err) }()

	var result driver.Result
	result, err = s.execContext(ctx, args)

	s.conn.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.conn.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryContext implements driver.StmtQueryContext.
func (s *tracingStmt) QueryContext(
	ctx context.Context,
	args []driver.NamedValue,
) (driver.Rows, error) {
	tracer, traced := s.tracer(ctx)
	if !traced {
		return s.queryContext(ctx, args)
	}

	start := time.Now()
	operation := extractOperation(s.query)

	attrs := append(s.conn.connAttributes(), s.conn.cfg.queryAttributes(s.query, "StmtQueryContext", args)...)
	ctx, span := tracer.Start(ctx, spanName(s.query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { s.conn.cfg.finishSpan(span, err) }()

	var rows driver.Rows
	rows, err = s.queryContext(ctx, args)

	s.conn.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.conn.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *tracingStmt) execContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if execer, ok := s.stmt.(driver.StmtExecContext); ok {
		return execer.ExecContext(ctx, args)
	}
	return s.stmt.Exec(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
}

func (s *tracingStmt) queryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if queryer, ok := s.stmt.(driver.StmtQueryContext); ok {
		return queryer.QueryContext(ctx, args)
	}
	return s.stmt.Query(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
}

// namedValueToValue converts NamedValue slice to Value slice.
func namedValueToValue(named []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(named))
	for i, nv := range named {
		values[i] = nv.Value
	}
	return values
}
