package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface checks.
var (
	_ driver.Stmt              = (*instStmt)(nil)
	_ driver.StmtExecContext   = (*instStmt)(nil)
	_ driver.StmtQueryContext  = (*instStmt)(nil)
	_ driver.NamedValueChecker = (*instStmt)(nil)
)

// instStmt wraps a driver.Stmt with tracing, metrics and query logging.
// Every execution of the statement gets its own log line.
type instStmt struct {
	stmt  driver.Stmt
	cfg   *config
	query string

	// connChecker is the preparing connection's checker, used when the
	// statement has none of its own.
	connChecker driver.NamedValueChecker
}

// newInstStmt creates a new instrumented statement.
func newInstStmt(
	stmt driver.Stmt,
	cfg *config,
	query string,
	connChecker driver.NamedValueChecker,
) *instStmt {
	return &instStmt{
		stmt:        stmt,
		cfg:         cfg,
		query:       query,
		connChecker: connChecker,
	}
}

// Close implements driver.Stmt.
func (s *instStmt) Close() error {
	return s.stmt.Close()
}

// NumInput implements driver.Stmt.
func (s *instStmt) NumInput() int {
	return s.stmt.NumInput()
}

// Exec implements driver.Stmt.
// Deprecated: Use ExecContext instead. This exists for driver.Stmt interface compatibility.
func (s *instStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.stmt.Exec(args) //nolint:staticcheck // Required for driver.Stmt interface
}

// Query implements driver.Stmt.
// Deprecated: Use QueryContext instead. This exists for driver.Stmt interface compatibility.
func (s *instStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.stmt.Query(args) //nolint:staticcheck // Required for driver.Stmt interface
}

// ExecContext implements driver.StmtExecContext.
func (s *instStmt) ExecContext(
	ctx context.Context,
	args []driver.NamedValue,
) (_ driver.Result, err error) {
	start := time.Now()
	operation := extractOperation(s.query)

	ctx, span := s.cfg.Tracer.Start(ctx, spanName(s.query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.cfg.queryAttributes(s.query)...),
	)
	defer span.End()

	q := s.cfg.QueryLog.Start(s.query)
	defer func() { finishQuery(q, err) }()

	var result driver.Result
	if execer, ok := s.stmt.(driver.StmtExecContext); ok {
		result, err = execer.ExecContext(ctx, args)
	} else {
		// Fallback to non-context version
		result, err = s.stmt.Exec(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
	}

	s.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	addRowsAffected(q, result)
	return result, nil
}

// QueryContext implements driver.StmtQueryContext.
func (s *instStmt) QueryContext(
	ctx context.Context,
	args []driver.NamedValue,
) (_ driver.Rows, err error) {
	start := time.Now()
	operation := extractOperation(s.query)

	ctx, span := s.cfg.Tracer.Start(ctx, spanName(s.query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.cfg.queryAttributes(s.query)...),
	)
	defer span.End()

	q := s.cfg.QueryLog.Start(s.query)
	owned := false
	defer func() {
		if !owned {
			finishQuery(q, err)
		}
	}()

	var rows driver.Rows
	if queryer, ok := s.stmt.(driver.StmtQueryContext); ok {
		rows, err = queryer.QueryContext(ctx, args)
	} else {
		// Fallback to non-context version
		rows, err = s.stmt.Query(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
	}

	s.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), operation, s.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	owned = true
	return newInstRows(ctx, rows, q, s.cfg, operation), nil
}

// CheckNamedValue implements driver.NamedValueChecker. It applies the
// checks database/sql would apply to the unwrapped statement: the
// statement's checker, else the connection's, then the statement's column
// converter.
func (s *instStmt) CheckNamedValue(nv *driver.NamedValue) error {
	checker, ok := s.stmt.(driver.NamedValueChecker)
	if !ok {
		checker = s.connChecker
	}
	if checker != nil {
		if err := checker.CheckNamedValue(nv); !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}

	cc, ok := s.stmt.(driver.ColumnConverter) //nolint:staticcheck // Honored for older drivers
	if !ok {
		return driver.ErrSkip
	}
	return convertColumn(cc, nv)
}

// convertColumn converts nv with the converter for its parameter position.
func convertColumn(cc driver.ColumnConverter, nv *driver.NamedValue) error { //nolint:staticcheck // Honored for older drivers
	if vr, ok := nv.Value.(driver.Valuer); ok {
		v, err := vr.Value()
		if err != nil {
			return err
		}
		nv.Value = v
	}

	v, err := cc.ColumnConverter(nv.Ordinal - 1).ConvertValue(nv.Value)
	if err != nil {
		return fmt.Errorf("converting argument %d: %w", nv.Ordinal, err)
	}
	if !driver.IsValue(v) {
		return fmt.Errorf("converting argument %d: driver ColumnConverter returned %T", nv.Ordinal, v)
	}
	nv.Value = v
	return nil
}

// namedValueToValue converts NamedValue slice to Value slice.
func namedValueToValue(named []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(named))
	for i, nv := range named {
		values[i] = nv.Value
	}
	return values
}
