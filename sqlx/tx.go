package sqlx

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"go.opentelemetry.io/otel/trace"
)

// Tx wraps *sqlx.Tx with the same instrumentation as DB. The context the
// transaction was begun with is retained: Commit and Rollback take no
// context of their own, so their spans parent on the begin span.
type Tx struct {
	*sqlx.Tx
	cfg      *config
	beginCtx context.Context
}

// GetContext executes a query within the transaction and scans a single row.
func (tx *Tx) GetContext(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	return tx.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Tx.Get", query), query, "GetContext", args,
		func(ctx context.Context) error {
			return tx.Tx.GetContext(ctx, dest, query, args...)
		})
}

// SelectContext executes a query within the transaction and scans all rows.
func (tx *Tx) SelectContext(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	return tx.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Tx.Select", query), query, "SelectContext", args,
		func(ctx context.Context) error {
			return tx.Tx.SelectContext(ctx, dest, query, args...)
		})
}

// NamedExecContext executes a named query within the transaction.
func (tx *Tx) NamedExecContext(
	ctx context.Context,
	query string,
	arg interface{},
) (sql.Result, error) {
	var result sql.Result
	err := tx.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Tx.NamedExec", query), query, "NamedExecContext", nil,
		func(ctx context.Context) error {
			var err error
			result, err = tx.Tx.NamedExecContext(ctx, query, arg)
			return err
		})
	return result, err
}

// ExecContext executes a query within the transaction without returning rows.
func (tx *Tx) ExecContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (sql.Result, error) {
	var result sql.Result
	err := tx.cfg.traceQuery(ctx, spanName(query), query, "ExecContext", args,
		func(ctx context.Context) error {
			var err error
			result, err = tx.Tx.ExecContext(ctx, query, args...)
			return err
		})
	return result, err
}

// QueryContext executes a query within the transaction and returns rows.
func (tx *Tx) QueryContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (*sql.Rows, error) {
	var rows *sql.Rows
	err := tx.cfg.traceQuery(ctx, spanName(query), query, "QueryContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = tx.Tx.QueryContext(ctx, query, args...)
			return err
		})
	return rows, err
}

// QueryxContext executes a query within the transaction and returns sqlx.Rows.
func (tx *Tx) QueryxContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (*sqlx.Rows, error) {
	var rows *sqlx.Rows
	err := tx.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Tx.Queryx", query), query, "QueryxContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = tx.Tx.QueryxContext(ctx, query, args...)
			return err
		})
	return rows, err
}

// QueryRowContext executes a query within the transaction and returns one row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	var row *sql.Row
	_ = tx.cfg.traceQuery(ctx, spanName(query), query, "QueryRowContext", args,
		func(ctx context.Context) error {
			row = tx.Tx.QueryRowContext(ctx, query, args...)
			return nil
		})
	return row
}

// QueryRowxContext executes a query within the transaction and returns one
// sqlx.Row.
func (tx *Tx) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	var row *sqlx.Row
	_ = tx.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Tx.QueryRowx", query), query, "QueryRowxContext", args,
		func(ctx context.Context) error {
			row = tx.Tx.QueryRowxContext(ctx, query, args...)
			return nil
		})
	return row
}

// PreparexContext prepares an instrumented statement within the transaction.
func (tx *Tx) PreparexContext(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := tx.Tx.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, cfg: tx.cfg, query: query, prepareCtx: ctx}, nil
}

// PrepareNamedContext prepares an instrumented named statement within the
// transaction.
func (tx *Tx) PrepareNamedContext(ctx context.Context, query string) (*NamedStmt, error) {
	stmt, err := tx.Tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &NamedStmt{NamedStmt: stmt, cfg: tx.cfg, query: query, prepareCtx: ctx}, nil
}

// StmtxContext returns a transaction-specific version of a prepared statement.
func (tx *Tx) StmtxContext(ctx context.Context, stmt *Stmt) *Stmt {
	return &Stmt{
		Stmt:       tx.Tx.StmtxContext(ctx, stmt.Stmt),
		cfg:        tx.cfg,
		query:      stmt.query,
		prepareCtx: ctx,
	}
}

// NamedStmtContext returns a transaction-specific version of a named statement.
func (tx *Tx) NamedStmtContext(ctx context.Context, stmt *NamedStmt) *NamedStmt {
	return &NamedStmt{
		NamedStmt:  tx.Tx.NamedStmtContext(ctx, stmt.NamedStmt),
		cfg:        tx.cfg,
		query:      stmt.query,
		prepareCtx: ctx,
	}
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.finish("COMMIT", tx.Tx.Commit)
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error {
	return tx.finish("ROLLBACK", tx.Tx.Rollback)
}

// finish traces Commit and Rollback against the begin context.
func (tx *Tx) finish(name string, op func() error) error {
	ctx := tx.beginCtx
	if ctx == nil {
		ctx = context.Background()
	}

	tracer, traced := tx.cfg.tracer(ctx)
	if !traced {
		return op()
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tx.cfg.baseAttributes()...),
	)

	var err error
	defer func() { tx.cfg.finishSpan(span, err) }()

	err = op()

	tx.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), name, tx.cfg.baseAttributes(), err)

	return err
}

// Rebind transforms a query from QUESTION to the DB driver's bindvar type.
func (tx *Tx) Rebind(query string) string {
	return tx.Tx.Rebind(query)
}

// BindNamed binds a named query to a map or struct.
func (tx *Tx) BindNamed(query string, arg interface{}) (string, []interface{}, error) {
	return tx.Tx.BindNamed(query, arg)
}

// DriverName returns the driver name.
func (tx *Tx) DriverName() string {
	return tx.Tx.DriverName()
}

// Unsafe returns a version of Tx that silently ignores missing destination fields.
func (tx *Tx) Unsafe() *Tx {
	return &Tx{
		Tx:       tx.Tx.Unsafe(),
		cfg:      tx.cfg,
		beginCtx: tx.beginCtx,
	}
}
