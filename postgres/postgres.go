// Package postgres wires the tracing interceptor to PostgreSQL. Enable
// registers an instrumented pgx driver for the whole process; Open and
// Connect build on it for the common open-and-ping path.
//
// Usage:
//
//	import "github.com/arkline-labs/dbtrace/postgres"
//
//	driverName := postgres.Enable(postgres.WithLogger(logger))
//	db, err := sql.Open(driverName, dsn)
//
// or simply:
//
//	db, err := postgres.Connect(ctx, dsn, postgres.WithLogger(logger))
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/stdlib"

	tracesql "github.com/arkline-labs/dbtrace/sql"
)

const (
	// DriverName is the name the instrumented pgx driver is registered under.
	DriverName = "dbtrace-pgx"

	// dbSystem is the dependency tag recorded on every span.
	dbSystem = "postgresql"
)

var enableOnce sync.Once

// Enable registers the instrumented pgx driver under DriverName, once per
// process, and returns the name to pass to sql.Open. The first call wins:
// Go's driver registry is write-once, so options carried by later calls are
// ignored and a warning is logged.
//
// Call Enable during startup, before queries run.
func Enable(opts ...Option) string {
	cfg := newConfig(opts...)
	if !enable(cfg) && len(opts) > 0 {
		cfg.logger.Warn().Msg("postgresql integration already enabled, options ignored")
	}
	return DriverName
}

// enable performs the process-wide registration. It reports whether this
// call did the install.
func enable(cfg *config) bool {
	installed := false
	enableOnce.Do(func() {
		sqlOpts := append([]tracesql.Option{tracesql.WithDBSystem(dbSystem)}, cfg.sqlOpts...)
		tracesql.Register(DriverName, stdlib.GetDefaultDriver(), sqlOpts...)
		cfg.logger.Info().Str("dependency", dbSystem).Msg("integrated module: postgresql")
		installed = true
	})
	return installed
}

// Open enables the integration and opens a database handle through the
// instrumented driver. The handle is lazy; no connection is made until
// first use.
func Open(dsn string, opts ...Option) (*sql.DB, error) {
	cfg := newConfig(opts...)
	enable(cfg)

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Connect opens a database handle and pings it until the database is
// reachable, with exponential backoff, or ctx is done. Retry attempts are
// logged through the configured logger.
func Connect(ctx context.Context, dsn string, opts ...Option) (*sql.DB, error) {
	cfg := newConfig(opts...)

	db, err := Open(dsn, opts...)
	if err != nil {
		return nil, err
	}

	ping := func() (bool, error) {
		if err := db.PingContext(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	notify := func(err error, next time.Duration) {
		cfg.logger.Warn().Err(err).Dur("retry_in", next).Msg("postgres not ready, retrying ping")
	}

	if _, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(notify),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}
