package pgx

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

var (
	_ pgx.QueryTracer    = (*Tracer)(nil)
	_ pgx.BatchTracer    = (*Tracer)(nil)
	_ pgx.CopyFromTracer = (*Tracer)(nil)
)

type (
	queryKey struct{}
	batchKey struct{}
)

// Tracer is a pgx tracer that writes one query log line per statement.
// It covers Query, Exec and QueryRow, every statement queued in a Batch, and
// CopyFrom.
type Tracer struct {
	log *querylog.Logger
}

// NewTracer creates a Tracer. Without options it logs through the zerolog
// global logger.
func NewTracer(opts ...Option) *Tracer {
	cfg := newConfig(opts...)
	return &Tracer{log: cfg.QueryLog}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *Tracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	if t.log == nil {
		return ctx
	}
	return context.WithValue(ctx, queryKey{}, t.log.Start(data.SQL))
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *Tracer) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	q, ok := ctx.Value(queryKey{}).(*querylog.Query)
	if !ok {
		return
	}
	finish(q, data.CommandTag, data.Err)
}

// batchQueries tracks the statements of one batch. Results are read in
// queue order, so each statement is timed from the moment the previous
// result was read, or from SendBatch for the first one.
type batchQueries struct {
	log     *querylog.Logger
	queued  []string
	next    int
	pending *querylog.Query
}

func (b *batchQueries) advance() {
	b.pending = nil
	if b.next < len(b.queued) {
		b.pending = b.log.Start(b.queued[b.next])
		b.next++
	}
}

// TraceBatchStart implements pgx.BatchTracer.
func (t *Tracer) TraceBatchStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceBatchStartData,
) context.Context {
	if t.log == nil {
		return ctx
	}

	b := &batchQueries{log: t.log}
	if data.Batch != nil {
		b.queued = make([]string, len(data.Batch.QueuedQueries))
		for i, qq := range data.Batch.QueuedQueries {
			b.queued[i] = qq.SQL
		}
	}
	b.advance()

	return context.WithValue(ctx, batchKey{}, b)
}

// TraceBatchQuery implements pgx.BatchTracer. It logs the statement whose
// result was just read.
func (t *Tracer) TraceBatchQuery(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceBatchQueryData,
) {
	b, ok := ctx.Value(batchKey{}).(*batchQueries)
	if !ok {
		return
	}

	q := b.pending
	if q == nil {
		q = b.log.Start(data.SQL)
	}
	finish(q, data.CommandTag, data.Err)
	b.advance()
}

// TraceBatchEnd implements pgx.BatchTracer. Statements whose results were
// never read are not logged.
func (t *Tracer) TraceBatchEnd(
	ctx context.Context,
	_ *pgx.Conn,
	_ pgx.TraceBatchEndData,
) {
	if b, ok := ctx.Value(batchKey{}).(*batchQueries); ok {
		b.pending = nil
		b.next = len(b.queued)
	}
}

// TraceCopyFromStart implements pgx.CopyFromTracer.
func (t *Tracer) TraceCopyFromStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceCopyFromStartData,
) context.Context {
	if t.log == nil {
		return ctx
	}
	return context.WithValue(ctx, queryKey{}, t.log.Start(copyStatement(data.TableName, data.ColumnNames)))
}

// TraceCopyFromEnd implements pgx.CopyFromTracer.
func (t *Tracer) TraceCopyFromEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceCopyFromEndData,
) {
	q, ok := ctx.Value(queryKey{}).(*querylog.Query)
	if !ok {
		return
	}
	finish(q, data.CommandTag, data.Err)
}

// copyStatement renders the COPY statement pgx sends for CopyFrom.
func copyStatement(table pgx.Identifier, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return "COPY " + table.Sanitize() + " (" + strings.Join(quoted, ", ") + ") FROM STDIN BINARY"
}

// finish counts the rows reported by tag and emits the log line. Failed
// statements report no rows.
func finish(q *querylog.Query, tag pgconn.CommandTag, err error) {
	if err == nil {
		if n := tag.RowsAffected(); n > 0 {
			q.AddRows(uint64(n))
		}
	}
	q.Finish()
}
