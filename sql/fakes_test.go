package sql

import (
	"context"
	"database/sql/driver"
	"io"
)

// In-package fakes for exercising the wrappers without a real database.
// Each fake records the calls it receives and returns configured errors,
// so tests can assert pass-through equivalence and error identity.

type execCall struct {
	query string
	args  []driver.NamedValue
}

// fakeConn implements the full context-aware connection interface set.
type fakeConn struct {
	prepareErr error
	beginErr   error
	execErr    error
	queryErr   error
	pingErr    error

	execCalls  []execCall
	queryCalls []execCall
	pingCalls  int
	closed     bool

	stmt *fakeStmt
	tx   *fakeTx
}

var (
	_ driver.Conn               = (*fakeConn)(nil)
	_ driver.ConnPrepareContext = (*fakeConn)(nil)
	_ driver.ConnBeginTx        = (*fakeConn)(nil)
	_ driver.ExecerContext      = (*fakeConn)(nil)
	_ driver.QueryerContext     = (*fakeConn)(nil)
	_ driver.Pinger             = (*fakeConn)(nil)
)

func newFakeConn() *fakeConn {
	return &fakeConn{
		stmt: &fakeStmt{},
		tx:   &fakeTx{},
	}
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	if c.prepareErr != nil {
		return nil, c.prepareErr
	}
	c.stmt.query = query
	return c.stmt, nil
}

func (c *fakeConn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return c.Prepare(query)
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *fakeConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	return c.Begin()
}

func (c *fakeConn) ExecContext(
	_ context.Context,
	query string,
	args []driver.NamedValue,
) (driver.Result, error) {
	c.execCalls = append(c.execCalls, execCall{query: query, args: args})
	if c.execErr != nil {
		return nil, c.execErr
	}
	return fakeResult{}, nil
}

func (c *fakeConn) QueryContext(
	_ context.Context,
	query string,
	args []driver.NamedValue,
) (driver.Rows, error) {
	c.queryCalls = append(c.queryCalls, execCall{query: query, args: args})
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeRows{}, nil
}

func (c *fakeConn) Ping(_ context.Context) error {
	c.pingCalls++
	return c.pingErr
}

// minimalConn implements only driver.Conn, for exercising the ErrSkip and
// non-context fallback paths.
type minimalConn struct {
	stmt *fakeStmt
	tx   *fakeTx
}

func (c *minimalConn) Prepare(query string) (driver.Stmt, error) {
	c.stmt.query = query
	return c.stmt, nil
}

func (c *minimalConn) Close() error { return nil }

func (c *minimalConn) Begin() (driver.Tx, error) { return c.tx, nil }

// fakeStmt implements the context-aware statement interfaces.
type fakeStmt struct {
	query    string
	execErr  error
	queryErr error

	execArgs  [][]driver.NamedValue
	queryArgs [][]driver.NamedValue
	closed    bool
}

var (
	_ driver.Stmt             = (*fakeStmt)(nil)
	_ driver.StmtExecContext  = (*fakeStmt)(nil)
	_ driver.StmtQueryContext = (*fakeStmt)(nil)
)

func (s *fakeStmt) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *fakeStmt) ExecContext(_ context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.execArgs = append(s.execArgs, args)
	if s.execErr != nil {
		return nil, s.execErr
	}
	return fakeResult{}, nil
}

func (s *fakeStmt) QueryContext(_ context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.queryArgs = append(s.queryArgs, args)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &fakeRows{}, nil
}

func valuesToNamed(values []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(values))
	for i, v := range values {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// fakeTx records commits and rollbacks.
type fakeTx struct {
	commitErr   error
	rollbackErr error

	commits   int
	rollbacks int
}

var _ driver.Tx = (*fakeTx)(nil)

func (t *fakeTx) Commit() error {
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback() error {
	t.rollbacks++
	return t.rollbackErr
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 1, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRows struct {
	closed bool
}

func (r *fakeRows) Columns() []string { return []string{"id"} }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Next(_ []driver.Value) error { return io.EOF }

// fakeDriver hands out a fixed connection.
type fakeDriver struct {
	conn    driver.Conn
	openErr error
}

func (d *fakeDriver) Open(_ string) (driver.Conn, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.conn, nil
}
