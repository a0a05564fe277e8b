package sql

import (
	"context"
	"database/sql/driver"

	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ driver.Tx = (*tracingTx)(nil)

// tracingTx wraps a driver.Tx. driver.Tx has no context parameters, so the
// transaction remembers the context it was started with and traces Commit
// and Rollback against the span that was live at BeginTx time.
type tracingTx struct {
	tx       driver.Tx
	conn     *tracingConn
	beginCtx context.Context
}

func newTracingTx(tx driver.Tx, conn *tracingConn, ctx context.Context) *tracingTx {
	return &tracingTx{
		tx:       tx,
		conn:     conn,
		beginCtx: ctx,
	}
}

// Commit implements driver.Tx.
func (t *tracingTx) Commit() error {
	return t.finish("COMMIT", t.tx.Commit)
}

// Rollback implements driver.Tx.
func (t *tracingTx) Rollback() error {
	return t.finish("ROLLBACK", t.tx.Rollback)
}

func (t *tracingTx) finish(name string, op func() error) error {
	tracer, traced := t.conn.cfg.tracer(t.beginCtx)
	if !traced {
		return op()
	}

	_, span := tracer.Start(t.beginCtx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.conn.connAttributes()...),
	)

	var err error
	defer func() { t.conn.cfg.finishSpan(span, err) }()

	err = op()
	return err
}
