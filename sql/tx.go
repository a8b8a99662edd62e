package sql

import (
	"context"
	"database/sql/driver"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ driver.Tx = (*instTx)(nil)

// instTx wraps a driver.Tx. COMMIT and ROLLBACK are traced, metered and
// logged like any other statement, under the context the transaction was
// started with.
type instTx struct {
	tx  driver.Tx
	ctx context.Context
	cfg *config
}

// newInstTx creates a new instrumented transaction.
func newInstTx(ctx context.Context, tx driver.Tx, cfg *config) *instTx {
	return &instTx{
		tx:  tx,
		ctx: ctx,
		cfg: cfg,
	}
}

// Commit implements driver.Tx.
func (t *instTx) Commit() error {
	return t.end("COMMIT", t.tx.Commit)
}

// Rollback implements driver.Tx.
func (t *instTx) Rollback() error {
	return t.end("ROLLBACK", t.tx.Rollback)
}

func (t *instTx) end(statement string, fn func() error) error {
	start := time.Now()
	ctx, span := t.cfg.Tracer.Start(t.ctx, statement,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.baseAttributes()...),
	)
	defer span.End()

	q := t.cfg.QueryLog.Start(statement)
	defer q.Finish()

	err := fn()
	t.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), statement, t.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}
