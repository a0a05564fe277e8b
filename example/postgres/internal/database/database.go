package database

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/arkline-labs/dbtrace/example/postgres/internal/config"
	"github.com/arkline-labs/dbtrace/postgres"
	tracesql "github.com/arkline-labs/dbtrace/sql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens an instrumented PostgreSQL connection and waits for the
// database to become reachable.
func New(ctx context.Context, logger zerolog.Logger) (*DB, error) {
	db, err := postgres.Connect(ctx, config.DefaultDSN,
		postgres.WithLogger(logger),
		postgres.WithDBName(config.DefaultDBName),
		postgres.WithInstanceName(config.DefaultInstance),
	)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.DefaultMaxOpen)
	db.SetMaxIdleConns(config.DefaultMaxIdle)
	db.SetConnMaxLifetime(time.Duration(config.DefaultMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(config.DefaultMaxIdleTime) * time.Second)

	// Pool metrics through the OTel pipeline...
	err = tracesql.RecordPoolMetrics(db, otel.GetMeterProvider().Meter("example-app"))
	if err != nil {
		log.Printf("Failed to register pool metrics: %v", err)
	}

	// ...and as a plain Prometheus collector on the scrape endpoint.
	if err := prometheus.Register(tracesql.NewPoolStatsCollector(db, config.DefaultDBName)); err != nil {
		log.Printf("Failed to register pool stats collector: %v", err)
	}

	return &DB{DB: db}, nil
}
