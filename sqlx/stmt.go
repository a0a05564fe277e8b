package sqlx

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"go.opentelemetry.io/otel/trace"
)

// Stmt wraps *sqlx.Stmt. The statement text is captured at prepare time and
// attached to every execution span. Batch-style workloads that prepare once
// and execute per row get one span per execution. Executions called without
// a span in their own context fall back to the span that was live at
// prepare time.
type Stmt struct {
	*sqlx.Stmt
	cfg        *config
	query      string
	prepareCtx context.Context
}

// tracer resolves the tracer for a statement execution, preferring the call
// context over the prepare context.
func (s *Stmt) tracer(ctx context.Context) (trace.Tracer, bool) {
	if tracer, ok := s.cfg.tracer(ctx); ok {
		return tracer, true
	}
	return s.cfg.tracer(s.prepareCtx)
}

// trace runs op with a span around it, resolving the tracer through the
// prepare-context fallback.
func (s *Stmt) trace(ctx context.Context, name, method string, args []interface{}, op func(context.Context) error) error {
	start := time.Now()
	operation := extractOperation(s.query)

	tracer, traced := s.tracer(ctx)
	if !traced {
		err := op(ctx)
		s.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.cfg.baseAttributes(), err)
		return err
	}

	attrs := append(s.cfg.baseAttributes(), s.cfg.queryAttributes(s.query, method, args)...)
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { s.cfg.finishSpan(span, err) }()

	err = op(ctx)

	s.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.cfg.baseAttributes(), err)

	return err
}

// GetContext executes the prepared statement for a single row.
func (s *Stmt) GetContext(ctx context.Context, dest interface{}, args ...interface{}) error {
	return s.trace(ctx, sqlxSpanName("sqlx.Stmt.Get", s.query), "GetContext", args,
		func(ctx context.Context) error {
			return s.Stmt.GetContext(ctx, dest, args...)
		})
}

// SelectContext executes the prepared statement and scans results into dest.
func (s *Stmt) SelectContext(ctx context.Context, dest interface{}, args ...interface{}) error {
	return s.trace(ctx, sqlxSpanName("sqlx.Stmt.Select", s.query), "SelectContext", args,
		func(ctx context.Context) error {
			return s.Stmt.SelectContext(ctx, dest, args...)
		})
}

// ExecContext executes the prepared statement.
func (s *Stmt) ExecContext(ctx context.Context, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := s.trace(ctx, spanName(s.query), "ExecContext", args,
		func(ctx context.Context) error {
			var err error
			result, err = s.Stmt.ExecContext(ctx, args...)
			return err
		})
	return result, err
}

// QueryContext executes the prepared statement and returns rows.
func (s *Stmt) QueryContext(ctx context.Context, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.trace(ctx, spanName(s.query), "QueryContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = s.Stmt.QueryContext(ctx, args...)
			return err
		})
	return rows, err
}

// QueryRowContext executes the prepared statement and returns a single row.
func (s *Stmt) QueryRowContext(ctx context.Context, args ...interface{}) *sql.Row {
	var row *sql.Row
	_ = s.trace(ctx, spanName(s.query), "QueryRowContext", args,
		func(ctx context.Context) error {
			row = s.Stmt.QueryRowContext(ctx, args...)
			return nil
		})
	return row
}

// QueryxContext executes the prepared statement and returns sqlx.Rows.
func (s *Stmt) QueryxContext(ctx context.Context, args ...interface{}) (*sqlx.Rows, error) {
	var rows *sqlx.Rows
	err := s.trace(ctx, sqlxSpanName("sqlx.Stmt.Queryx", s.query), "QueryxContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = s.Stmt.QueryxContext(ctx, args...)
			return err
		})
	return rows, err
}

// QueryRowxContext executes the prepared statement and returns a sqlx.Row.
func (s *Stmt) QueryRowxContext(ctx context.Context, args ...interface{}) *sqlx.Row {
	var row *sqlx.Row
	_ = s.trace(ctx, sqlxSpanName("sqlx.Stmt.QueryRowx", s.query), "QueryRowxContext", args,
		func(ctx context.Context) error {
			row = s.Stmt.QueryRowxContext(ctx, args...)
			return nil
		})
	return row
}

// Unsafe returns a version of Stmt that silently ignores missing destination fields.
func (s *Stmt) Unsafe() *Stmt {
	return &Stmt{
		Stmt:       s.Stmt.Unsafe(),
		cfg:        s.cfg,
		query:      s.query,
		prepareCtx: s.prepareCtx,
	}
}

// NamedStmt wraps *sqlx.NamedStmt with the same instrumentation as Stmt.
type NamedStmt struct {
	*sqlx.NamedStmt
	cfg        *config
	query      string
	prepareCtx context.Context
}

func (ns *NamedStmt) tracer(ctx context.Context) (trace.Tracer, bool) {
	if tracer, ok := ns.cfg.tracer(ctx); ok {
		return tracer, true
	}
	return ns.cfg.tracer(ns.prepareCtx)
}

func (ns *NamedStmt) trace(ctx context.Context, name, method string, op func(context.Context) error) error {
	start := time.Now()
	operation := extractOperation(ns.query)

	tracer, traced := ns.tracer(ctx)
	if !traced {
		err := op(ctx)
		ns.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, ns.cfg.baseAttributes(), err)
		return err
	}

	attrs := append(ns.cfg.baseAttributes(), ns.cfg.queryAttributes(ns.query, method, nil)...)
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	var err error
	defer func() { ns.cfg.finishSpan(span, err) }()

	err = op(ctx)

	ns.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, ns.cfg.baseAttributes(), err)

	return err
}

// GetContext executes the named statement for a single row.
func (ns *NamedStmt) GetContext(ctx context.Context, dest interface{}, arg interface{}) error {
	return ns.trace(ctx, sqlxSpanName("sqlx.NamedStmt.Get", ns.query), "GetContext",
		func(ctx context.Context) error {
			return ns.NamedStmt.GetContext(ctx, dest, arg)
		})
}

// SelectContext executes the named statement and scans results into dest.
func (ns *NamedStmt) SelectContext(ctx context.Context, dest interface{}, arg interface{}) error {
	return ns.trace(ctx, sqlxSpanName("sqlx.NamedStmt.Select", ns.query), "SelectContext",
		func(ctx context.Context) error {
			return ns.NamedStmt.SelectContext(ctx, dest, arg)
		})
}

// ExecContext executes the named statement.
func (ns *NamedStmt) ExecContext(ctx context.Context, arg interface{}) (sql.Result, error) {
	var result sql.Result
	err := ns.trace(ctx, spanName(ns.query), "ExecContext",
		func(ctx context.Context) error {
			var err error
			result, err = ns.NamedStmt.ExecContext(ctx, arg)
			return err
		})
	return result, err
}

// QueryContext executes the named statement and returns rows.
func (ns *NamedStmt) QueryContext(ctx context.Context, arg interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := ns.trace(ctx, spanName(ns.query), "QueryContext",
		func(ctx context.Context) error {
			var err error
			rows, err = ns.NamedStmt.QueryContext(ctx, arg)
			return err
		})
	return rows, err
}

// QueryRowContext executes the named statement and returns a single row.
func (ns *NamedStmt) QueryRowContext(ctx context.Context, arg interface{}) *sqlx.Row {
	var row *sqlx.Row
	_ = ns.trace(ctx, spanName(ns.query), "QueryRowContext",
		func(ctx context.Context) error {
			row = ns.NamedStmt.QueryRowContext(ctx, arg)
			return nil
		})
	return row
}

// QueryxContext executes the named statement and returns sqlx.Rows.
func (ns *NamedStmt) QueryxContext(ctx context.Context, arg interface{}) (*sqlx.Rows, error) {
	var rows *sqlx.Rows
	err := ns.trace(ctx, sqlxSpanName("sqlx.NamedStmt.Queryx", ns.query), "QueryxContext",
		func(ctx context.Context) error {
			var err error
			rows, err = ns.NamedStmt.QueryxContext(ctx, arg)
			return err
		})
	return rows, err
}

// QueryRowxContext executes the named statement and returns a sqlx.Row.
func (ns *NamedStmt) QueryRowxContext(ctx context.Context, arg interface{}) *sqlx.Row {
	var row *sqlx.Row
	_ = ns.trace(ctx, sqlxSpanName("sqlx.NamedStmt.QueryRowx", ns.query), "QueryRowxContext",
		func(ctx context.Context) error {
			row = ns.NamedStmt.QueryRowxContext(ctx, arg)
			return nil
		})
	return row
}

// MustExecContext executes the named statement and panics on error.
func (ns *NamedStmt) MustExecContext(ctx context.Context, arg interface{}) sql.Result {
	result, err := ns.ExecContext(ctx, arg)
	if err != nil {
		panic(err)
	}
	return result
}

// Unsafe returns a version of NamedStmt that silently ignores missing fields.
func (ns *NamedStmt) Unsafe() *NamedStmt {
	return &NamedStmt{
		NamedStmt:  ns.NamedStmt.Unsafe(),
		cfg:        ns.cfg,
		query:      ns.query,
		prepareCtx: ns.prepareCtx,
	}
}

// Close closes the named statement.
func (ns *NamedStmt) Close() error {
	return ns.NamedStmt.Close()
}
