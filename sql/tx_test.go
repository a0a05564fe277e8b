package sql

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func beginTracedTx(t *testing.T, conn *tracingConn, ctx context.Context) *tracingTx {
	t.Helper()
	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	require.NoError(t, err)
	return tx.(*tracingTx)
}

func TestTracingTx_Commit(t *testing.T) {
	t.Run("given transaction begun with span, then commit is traced", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		fake := newFakeConn()
		conn := newTracingConn(fake, newConfig(WithDBSystem("postgresql")))
		tx := beginTracedTx(t, conn, ctx)
		exporter.Reset()

		err := tx.Commit()

		require.NoError(t, err)
		assert.Equal(t, 1, fake.tx.commits)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "COMMIT", spans[0].Name)
		assert.True(t, spanAttrs(spans[0])["postgresql.success"].AsBool())
	})

	t.Run("given transaction begun without span, then commit passes through", func(t *testing.T) {
		exporter, _ := newSpanRecorder()
		fake := newFakeConn()
		conn := newTracingConn(fake, newConfig())
		tx := beginTracedTx(t, conn, context.Background())

		err := tx.Commit()

		require.NoError(t, err)
		assert.Equal(t, 1, fake.tx.commits)
		assert.Empty(t, exporter.GetSpans())
	})

	t.Run("given commit fails, then span has error status and original error propagates", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		fake := newFakeConn()
		fake.tx.commitErr = assert.AnError
		conn := newTracingConn(fake, newConfig(WithDBSystem("postgresql")))
		tx := beginTracedTx(t, conn, ctx)
		exporter.Reset()

		err := tx.Commit()

		require.ErrorIs(t, err, assert.AnError)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.False(t, spanAttrs(spans[0])["postgresql.success"].AsBool())
	})
}

func TestTracingTx_Rollback(t *testing.T) {
	t.Run("given transaction begun with span, then rollback is traced", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		fake := newFakeConn()
		conn := newTracingConn(fake, newConfig(WithDBSystem("postgresql")))
		tx := beginTracedTx(t, conn, ctx)
		exporter.Reset()

		err := tx.Rollback()

		require.NoError(t, err)
		assert.Equal(t, 1, fake.tx.rollbacks)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "ROLLBACK", spans[0].Name)
	})

	t.Run("given rollback fails, then original error propagates", func(t *testing.T) {
		_, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		fake := newFakeConn()
		fake.tx.rollbackErr = assert.AnError
		conn := newTracingConn(fake, newConfig())
		tx := beginTracedTx(t, conn, ctx)

		err := tx.Rollback()

		require.ErrorIs(t, err, assert.AnError)
	})
}
