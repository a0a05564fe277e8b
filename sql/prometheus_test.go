package sql

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector(t *testing.T) {
	t.Run("given database handle, then collects all pool metrics", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		collector := NewPoolStatsCollector(db, "testdb")

		count := testutil.CollectAndCount(collector)
		assert.Equal(t, 6, count)
	})

	t.Run("given registry, then registers without collision", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		registry := prometheus.NewRegistry()
		err = registry.Register(NewPoolStatsCollector(db, "testdb"))

		require.NoError(t, err)

		families, err := registry.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}
