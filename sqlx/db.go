package sqlx

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"go.opentelemetry.io/otel/trace"
)

// DB wraps *sqlx.DB. Query-executing methods open a span as a child of the
// span found in the call context, delegate to the wrapped database with
// identical arguments, record the success flag, and close the span on every
// exit path. Calls whose context carries no span pass straight through
// unless a tracer provider was configured explicitly.
type DB struct {
	*sqlx.DB
	cfg *config
}

// Open opens an instrumented database connection.
//
// Example:
//
//	db, err := tracesqlx.Open("postgres", dsn,
//	    tracesqlx.WithDBSystem("postgresql"),
//	    tracesqlx.WithDBName("mydb"),
//	)
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	cfg := newConfig(opts...)

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, cfg: cfg}, nil
}

// Connect opens and verifies a database connection.
// It is equivalent to Open followed by Ping.
func Connect(ctx context.Context, driverName, dsn string, opts ...Option) (*DB, error) {
	cfg := newConfig(opts...)

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, cfg: cfg}, nil
}

// NewDB wraps an existing *sql.DB with sqlx and instrumentation.
//
// Example:
//
//	sqlDB, _ := tracesql.Open("postgres", dsn)
//	db := tracesqlx.NewDB(sqlDB, "postgres",
//	    tracesqlx.WithDBSystem("postgresql"),
//	)
func NewDB(db *sql.DB, driverName string, opts ...Option) *DB {
	cfg := newConfig(opts...)
	return &DB{
		DB:  sqlx.NewDb(db, driverName),
		cfg: cfg,
	}
}

// MustConnect is like Connect but panics on error.
func MustConnect(ctx context.Context, driverName, dsn string, opts ...Option) *DB {
	db, err := Connect(ctx, driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// MustOpen is like Open but panics on error.
func MustOpen(driverName, dsn string, opts ...Option) *DB {
	db, err := Open(driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// GetContext executes a query that is expected to return at most one row
// and scans the result into dest.
func (db *DB) GetContext(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	return db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Get", query), query, "GetContext", args,
		func(ctx context.Context) error {
			return db.DB.GetContext(ctx, dest, query, args...)
		})
}

// SelectContext executes a query and scans all results into dest.
func (db *DB) SelectContext(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	return db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Select", query), query, "SelectContext", args,
		func(ctx context.Context) error {
			return db.DB.SelectContext(ctx, dest, query, args...)
		})
}

// NamedExecContext executes a named query.
func (db *DB) NamedExecContext(
	ctx context.Context,
	query string,
	arg interface{},
) (sql.Result, error) {
	var result sql.Result
	err := db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.NamedExec", query), query, "NamedExecContext", nil,
		func(ctx context.Context) error {
			var err error
			result, err = db.DB.NamedExecContext(ctx, query, arg)
			return err
		})
	return result, err
}

// NamedQueryContext executes a named query and returns rows.
func (db *DB) NamedQueryContext(
	ctx context.Context,
	query string,
	arg interface{},
) (*sqlx.Rows, error) {
	var rows *sqlx.Rows
	err := db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.NamedQuery", query), query, "NamedQueryContext", nil,
		func(ctx context.Context) error {
			var err error
			rows, err = db.DB.NamedQueryContext(ctx, query, arg)
			return err
		})
	return rows, err
}

// QueryxContext executes a query and returns sqlx.Rows.
func (db *DB) QueryxContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (*sqlx.Rows, error) {
	var rows *sqlx.Rows
	err := db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.Queryx", query), query, "QueryxContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = db.DB.QueryxContext(ctx, query, args...)
			return err
		})
	return rows, err
}

// QueryRowxContext executes a query and returns a single sqlx.Row.
// Errors surface on Scan, so the span records success for the call itself.
func (db *DB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	var row *sqlx.Row
	_ = db.cfg.traceQuery(ctx, sqlxSpanName("sqlx.QueryRowx", query), query, "QueryRowxContext", args,
		func(ctx context.Context) error {
			row = db.DB.QueryRowxContext(ctx, query, args...)
			return nil
		})
	return row
}

// ExecContext executes a query without returning rows.
func (db *DB) ExecContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (sql.Result, error) {
	var result sql.Result
	err := db.cfg.traceQuery(ctx, spanName(query), query, "ExecContext", args,
		func(ctx context.Context) error {
			var err error
			result, err = db.DB.ExecContext(ctx, query, args...)
			return err
		})
	return result, err
}

// QueryContext executes a query and returns rows.
func (db *DB) QueryContext(
	ctx context.Context,
	query string,
	args ...interface{},
) (*sql.Rows, error) {
	var rows *sql.Rows
	err := db.cfg.traceQuery(ctx, spanName(query), query, "QueryContext", args,
		func(ctx context.Context) error {
			var err error
			rows, err = db.DB.QueryContext(ctx, query, args...)
			return err
		})
	return rows, err
}

// QueryRowContext executes a query and returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	var row *sql.Row
	_ = db.cfg.traceQuery(ctx, spanName(query), query, "QueryRowContext", args,
		func(ctx context.Context) error {
			row = db.DB.QueryRowContext(ctx, query, args...)
			return nil
		})
	return row
}

// BeginTxx starts an instrumented transaction. The begin context is kept so
// Commit and Rollback, which take no context, can still be traced as
// children of the span that opened the transaction.
func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tracer, traced := db.cfg.tracer(ctx)
	if !traced {
		tx, err := db.DB.BeginTxx(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Tx{Tx: tx, cfg: db.cfg, beginCtx: ctx}, nil
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "BEGIN",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(db.cfg.baseAttributes()...),
	)

	var err error
	defer func() { db.cfg.finishSpan(span, err) }()

	var tx *sqlx.Tx
	tx, err = db.DB.BeginTxx(ctx, opts)

	db.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "BEGIN", db.cfg.baseAttributes(), err)

	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, cfg: db.cfg, beginCtx: ctx}, nil
}

// Beginx starts an instrumented transaction with default options.
func (db *DB) Beginx() (*Tx, error) {
	return db.BeginTxx(context.Background(), nil)
}

// MustBeginTx starts a transaction and panics on error.
func (db *DB) MustBeginTx(ctx context.Context, opts *sql.TxOptions) *Tx {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		panic(err)
	}
	return tx
}

// MustBegin starts a transaction and panics on error.
func (db *DB) MustBegin() *Tx {
	return db.MustBeginTx(context.Background(), nil)
}

// PreparexContext prepares an instrumented statement. Preparing itself is
// not traced; the statement remembers the prepare context so later
// executions can fall back to its span when called without one.
func (db *DB) PreparexContext(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := db.DB.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{Stmt: stmt, cfg: db.cfg, query: query, prepareCtx: ctx}, nil
}

// Preparex prepares a statement without context.
func (db *DB) Preparex(query string) (*Stmt, error) {
	return db.PreparexContext(context.Background(), query)
}

// PrepareNamedContext prepares an instrumented named statement.
func (db *DB) PrepareNamedContext(ctx context.Context, query string) (*NamedStmt, error) {
	stmt, err := db.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &NamedStmt{NamedStmt: stmt, cfg: db.cfg, query: query, prepareCtx: ctx}, nil
}

// PrepareNamed prepares a named statement without context.
func (db *DB) PrepareNamed(query string) (*NamedStmt, error) {
	return db.PrepareNamedContext(context.Background(), query)
}

// PingContext verifies the database connection.
func (db *DB) PingContext(ctx context.Context) error {
	tracer, traced := db.cfg.tracer(ctx)
	if !traced {
		return db.DB.PingContext(ctx)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "PING",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(db.cfg.baseAttributes()...),
	)

	var err error
	defer func() { db.cfg.finishSpan(span, err) }()

	err = db.DB.PingContext(ctx)

	db.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "PING", db.cfg.baseAttributes(), err)

	return err
}

// Rebind transforms a query from QUESTION to the DB driver's bindvar type.
func (db *DB) Rebind(query string) string {
	return db.DB.Rebind(query)
}

// BindNamed binds a named query to a map or struct.
func (db *DB) BindNamed(query string, arg interface{}) (string, []interface{}, error) {
	return db.DB.BindNamed(query, arg)
}

// DriverName returns the driver name.
func (db *DB) DriverName() string {
	return db.DB.DriverName()
}

// MapperFunc sets a custom field name mapper.
func (db *DB) MapperFunc(mf func(string) string) {
	db.DB.MapperFunc(mf)
}

// Unsafe returns a version of DB that silently ignores missing destination fields.
func (db *DB) Unsafe() *DB {
	return &DB{
		DB:  db.DB.Unsafe(),
		cfg: db.cfg,
	}
}
