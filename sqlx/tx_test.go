package sqlx

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestTx_CommitRollback(t *testing.T) {
	t.Run("given traced begin, then commit span parents on the begin context", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, parent := tracedContext(t, tp)
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)

		_, err = tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - 10")
		require.NoError(t, err)

		exporter.Reset()
		require.NoError(t, tx.Commit())

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "COMMIT", spans[0].Name)
		assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext.TraceID())
		assert.True(t, spanAttrs(spans[0])["postgresql.success"].AsBool())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("given traced begin, then rollback is traced", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)

		exporter.Reset()
		require.NoError(t, tx.Rollback())

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "ROLLBACK", spans[0].Name)
	})

	t.Run("given untraced begin, then commit passes through without spans", func(t *testing.T) {
		exporter, _ := newSpanRecorder()
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := db.BeginTxx(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.Empty(t, exporter.GetSpans())
	})

	t.Run("given commit fails, then error propagates and span records it", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(assert.AnError)

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)

		exporter.Reset()
		require.ErrorIs(t, tx.Commit(), assert.AnError)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.False(t, spanAttrs(spans[0])["postgresql.success"].AsBool())
	})
}

func TestTx_Queries(t *testing.T) {
	t.Run("given span in context, then BEGIN and query spans are recorded", func(t *testing.T) {
		exporter, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .+ FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice"))

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)

		var user testUser
		require.NoError(t, tx.GetContext(ctx, &user, "SELECT id, name FROM users WHERE id = $1", 1))

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)
		assert.Equal(t, "BEGIN", spans[0].Name)
		assert.Equal(t, "sqlx.Tx.Get: SELECT", spans[1].Name)
		assert.Equal(t, "GetContext", spanAttrs(spans[1])["postgresql.cursor.method.name"].AsString())
	})

	t.Run("given no span in context, then tx queries pass through untraced", func(t *testing.T) {
		exporter, _ := newSpanRecorder()
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

		tx, err := db.BeginTxx(context.Background(), nil)
		require.NoError(t, err)

		_, err = tx.NamedExecContext(context.Background(),
			"INSERT INTO users (name) VALUES (:name)",
			map[string]interface{}{"name": "bob"},
		)
		require.NoError(t, err)

		assert.Empty(t, exporter.GetSpans())
	})

	t.Run("given query in tx fails, then error propagates unchanged", func(t *testing.T) {
		_, tp := newSpanRecorder()
		ctx, _ := tracedContext(t, tp)
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM users").WillReturnError(assert.AnError)

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)

		_, err = tx.ExecContext(ctx, "DELETE FROM users")
		require.ErrorIs(t, err, assert.AnError)
	})
}
