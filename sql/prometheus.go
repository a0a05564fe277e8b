package sql

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// Compile-time interface check.
var _ prometheus.Collector = (*PoolStatsCollector)(nil)

// PoolStatsCollector exposes *sql.DB connection pool statistics as
// Prometheus metrics, for deployments that scrape Prometheus directly
// instead of running an OpenTelemetry metrics pipeline.
//
// Example:
//
//	db, _ := tracesql.Open("postgres", dsn, tracesql.WithDBName("mydb"))
//	prometheus.MustRegister(tracesql.NewPoolStatsCollector(db, "mydb"))
type PoolStatsCollector struct {
	db *sql.DB

	openConnections *prometheus.Desc
	idleConnections *prometheus.Desc
	maxConnections  *prometheus.Desc
	usedConnections *prometheus.Desc
	waitCount       *prometheus.Desc
	waitDuration    *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for the given database handle.
// dbName becomes the db_name label on every metric.
func NewPoolStatsCollector(db *sql.DB, dbName string) *PoolStatsCollector {
	labels := prometheus.Labels{"db_name": dbName}

	return &PoolStatsCollector{
		db: db,
		openConnections: prometheus.NewDesc(
			"db_client_connections_open",
			"Number of open connections in the pool",
			nil, labels,
		),
		idleConnections: prometheus.NewDesc(
			"db_client_connections_idle",
			"Number of idle connections in the pool",
			nil, labels,
		),
		maxConnections: prometheus.NewDesc(
			"db_client_connections_max",
			"Maximum number of connections allowed in the pool",
			nil, labels,
		),
		usedConnections: prometheus.NewDesc(
			"db_client_connections_used",
			"Number of connections currently in use",
			nil, labels,
		),
		waitCount: prometheus.NewDesc(
			"db_client_connections_wait_count_total",
			"Total number of times waited for a connection",
			nil, labels,
		),
		waitDuration: prometheus.NewDesc(
			"db_client_connections_wait_duration_seconds_total",
			"Total time waited for connections in seconds",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConnections
	ch <- c.idleConnections
	ch <- c.maxConnections
	ch <- c.usedConnections
	ch <- c.waitCount
	ch <- c.waitDuration
}

// Collect implements prometheus.Collector. Stats() is a snapshot read, so
// collection never blocks query execution.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Stats()

	ch <- prometheus.MustNewConstMetric(
		c.openConnections, prometheus.GaugeValue, float64(stats.OpenConnections))
	ch <- prometheus.MustNewConstMetric(
		c.idleConnections, prometheus.GaugeValue, float64(stats.Idle))
	ch <- prometheus.MustNewConstMetric(
		c.maxConnections, prometheus.GaugeValue, float64(stats.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(
		c.usedConnections, prometheus.GaugeValue, float64(stats.InUse))
	ch <- prometheus.MustNewConstMetric(
		c.waitCount, prometheus.CounterValue, float64(stats.WaitCount))
	ch <- prometheus.MustNewConstMetric(
		c.waitDuration, prometheus.CounterValue, stats.WaitDuration.Seconds())
}
