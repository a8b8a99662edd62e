package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

// Compile-time interface checks.
var (
	_ driver.Conn               = (*instConn)(nil)
	_ driver.ConnPrepareContext = (*instConn)(nil)
	_ driver.ConnBeginTx        = (*instConn)(nil)
	_ driver.ExecerContext      = (*instConn)(nil)
	_ driver.QueryerContext     = (*instConn)(nil)
	_ driver.Pinger             = (*instConn)(nil)
	_ driver.SessionResetter    = (*instConn)(nil)
	_ driver.Validator          = (*instConn)(nil)
	_ driver.NamedValueChecker  = (*instConn)(nil)
)

// instConn wraps a driver.Conn with tracing, metrics and query logging.
type instConn struct {
	conn driver.Conn
	cfg  *config
}

// newInstConn creates a new instrumented connection.
func newInstConn(conn driver.Conn, cfg *config) *instConn {
	return &instConn{
		conn: conn,
		cfg:  cfg,
	}
}

// Prepare implements driver.Conn.
func (c *instConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return newInstStmt(stmt, c.cfg, query, c.checker()), nil
}

// Close implements driver.Conn.
func (c *instConn) Close() error {
	return c.conn.Close()
}

// Begin implements driver.Conn.
// Deprecated: Use BeginTx instead. This exists for driver.Conn interface compatibility.
func (c *instConn) Begin() (driver.Tx, error) {
	tx, err := c.conn.Begin() //nolint:staticcheck // Required for driver.Conn interface
	if err != nil {
		return nil, err
	}
	return newInstTx(context.Background(), tx, c.cfg), nil
}

// PrepareContext implements driver.ConnPrepareContext.
func (c *instConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var stmt driver.Stmt
	var err error

	if preparer, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = preparer.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}

	if err != nil {
		return nil, err
	}
	return newInstStmt(stmt, c.cfg, query, c.checker()), nil
}

// BeginTx implements driver.ConnBeginTx.
// COMMIT and ROLLBACK spans are children of ctx, not of the BEGIN span.
func (c *instConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	parent := ctx
	start := time.Now()
	ctx, span := c.cfg.Tracer.Start(ctx, "BEGIN",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.cfg.baseAttributes()...),
	)
	defer span.End()

	q := c.cfg.QueryLog.Start("BEGIN")
	defer q.Finish()

	var tx driver.Tx
	var err error

	if beginner, ok := c.conn.(driver.ConnBeginTx); ok {
		tx, err = beginner.BeginTx(ctx, opts)
	} else {
		tx, err = c.conn.Begin() //nolint:staticcheck // Fallback for older drivers
	}

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "BEGIN", c.cfg.baseAttributes(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return newInstTx(parent, tx, c.cfg), nil
}

// ExecContext implements driver.ExecerContext.
// The log line counts the rows affected when the driver reports them.
func (c *instConn) ExecContext(
	ctx context.Context,
	query string,
	args []driver.NamedValue,
) (_ driver.Result, err error) {
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		// Fallback: database/sql prepares and executes through instStmt
		return nil, driver.ErrSkip
	}

	start := time.Now()
	operation := extractOperation(query)

	ctx, span := c.cfg.Tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.cfg.queryAttributes(query)...),
	)
	defer span.End()

	q := c.cfg.QueryLog.Start(query)
	defer func() { finishQuery(q, err) }()

	result, err := execer.ExecContext(ctx, query, args)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, c.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	addRowsAffected(q, result)
	return result, nil
}

// QueryContext implements driver.QueryerContext.
// The returned rows count every row read and log the statement when closed.
func (c *instConn) QueryContext(
	ctx context.Context,
	query string,
	args []driver.NamedValue,
) (_ driver.Rows, err error) {
	queryer, ok := c.conn.(driver.QueryerContext)
	if !ok {
		// Fallback: database/sql prepares and queries through instStmt
		return nil, driver.ErrSkip
	}

	start := time.Now()
	operation := extractOperation(query)

	ctx, span := c.cfg.Tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.cfg.queryAttributes(query)...),
	)
	defer span.End()

	q := c.cfg.QueryLog.Start(query)
	owned := false
	defer func() {
		if !owned {
			finishQuery(q, err)
		}
	}()

	rows, err := queryer.QueryContext(ctx, query, args)

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, c.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	owned = true
	return newInstRows(ctx, rows, q, c.cfg, operation), nil
}

// Ping implements driver.Pinger.
func (c *instConn) Ping(ctx context.Context) error {
	start := time.Now()
	ctx, span := c.cfg.Tracer.Start(ctx, "PING",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.cfg.baseAttributes()...),
	)
	defer span.End()

	var err error
	if pinger, ok := c.conn.(driver.Pinger); ok {
		err = pinger.Ping(ctx)
	}

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), "PING", c.cfg.baseAttributes(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// ResetSession implements driver.SessionResetter.
func (c *instConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

// IsValid implements driver.Validator.
func (c *instConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}

// CheckNamedValue implements driver.NamedValueChecker so that arguments
// reach the wrapped driver's own checker. Without one, database/sql falls
// back to its default conversion.
func (c *instConn) CheckNamedValue(nv *driver.NamedValue) error {
	if checker := c.checker(); checker != nil {
		return checker.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (c *instConn) checker() driver.NamedValueChecker {
	checker, _ := c.conn.(driver.NamedValueChecker)
	return checker
}

// finishQuery logs q unless the driver returned driver.ErrSkip, in which
// case database/sql retries the statement and the retry is logged instead.
func finishQuery(q *querylog.Query, err error) {
	if errors.Is(err, driver.ErrSkip) {
		return
	}
	q.Finish()
}

// addRowsAffected counts the rows an Exec affected, when the driver knows.
func addRowsAffected(q *querylog.Query, result driver.Result) {
	if result == nil {
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		q.AddRows(uint64(n))
	}
}

// recordSpanError marks span as failed unless err is driver.ErrSkip.
func recordSpanError(span trace.Span, err error) {
	if errors.Is(err, driver.ErrSkip) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// baseAttributes returns the base attributes for all spans and metrics.
func (cfg *config) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if cfg.DBSystem != "" {
		attrs = append(attrs, attribute.String("db.system", cfg.DBSystem))
	}
	if cfg.DBName != "" {
		attrs = append(attrs, attribute.String("db.name", cfg.DBName))
	}
	if cfg.InstanceName != "" {
		attrs = append(attrs, attribute.String("db.instance", cfg.InstanceName))
	}
	return attrs
}

// queryAttributes returns attributes for query spans.
func (cfg *config) queryAttributes(query string) []attribute.KeyValue {
	attrs := cfg.baseAttributes()

	if !cfg.DisableQuery && query != "" {
		sanitized := query
		if cfg.QuerySanitizer != nil {
			sanitized = cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, attribute.String("db.statement", sanitized))
	}

	op := extractOperation(query)
	if op != "" {
		attrs = append(attrs, attribute.String("db.operation", op))
	}

	return attrs
}
