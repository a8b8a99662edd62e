package sql

import (
	"context"
	"database/sql/driver"
	"io"
	"reflect"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

// Compile-time interface checks.
var (
	_ driver.Rows                           = (*instRows)(nil)
	_ driver.RowsNextResultSet              = (*instRows)(nil)
	_ driver.RowsColumnTypeScanType         = (*instRows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*instRows)(nil)
	_ driver.RowsColumnTypeLength           = (*instRows)(nil)
	_ driver.RowsColumnTypeNullable         = (*instRows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*instRows)(nil)
)

var anyType = reflect.TypeOf(new(any)).Elem()

// instRows counts the rows read from a result set and logs the statement
// when the result set is closed.
//
// database/sql closes driver rows when iteration ends, when Rows.Close is
// called and when the query context is cancelled, and never runs Next and
// Close concurrently.
type instRows struct {
	rows      driver.Rows
	ctx       context.Context
	q         *querylog.Query
	cfg       *config
	operation string
	closed    bool
}

func newInstRows(
	ctx context.Context,
	rows driver.Rows,
	q *querylog.Query,
	cfg *config,
	operation string,
) *instRows {
	return &instRows{
		rows:      rows,
		ctx:       ctx,
		q:         q,
		cfg:       cfg,
		operation: operation,
	}
}

// Columns implements driver.Rows.
func (r *instRows) Columns() []string {
	return r.rows.Columns()
}

// Next implements driver.Rows.
func (r *instRows) Next(dest []driver.Value) error {
	err := r.rows.Next(dest)
	if err == nil {
		r.q.IncrementRows()
	}
	return err
}

// Close implements driver.Rows.
func (r *instRows) Close() error {
	err := r.rows.Close()
	if r.closed {
		return err
	}
	r.closed = true

	r.q.Finish()
	r.cfg.Metrics.recordReturnedRows(r.ctx, r.q.Rows(), r.operation, r.cfg.baseAttributes())

	return err
}

// HasNextResultSet implements driver.RowsNextResultSet.
func (r *instRows) HasNextResultSet() bool {
	if rs, ok := r.rows.(driver.RowsNextResultSet); ok {
		return rs.HasNextResultSet()
	}
	return false
}

// NextResultSet implements driver.RowsNextResultSet.
func (r *instRows) NextResultSet() error {
	if rs, ok := r.rows.(driver.RowsNextResultSet); ok {
		return rs.NextResultSet()
	}
	return io.EOF
}

// ColumnTypeScanType implements driver.RowsColumnTypeScanType.
func (r *instRows) ColumnTypeScanType(index int) reflect.Type {
	if ct, ok := r.rows.(driver.RowsColumnTypeScanType); ok {
		return ct.ColumnTypeScanType(index)
	}
	return anyType
}

// ColumnTypeDatabaseTypeName implements driver.RowsColumnTypeDatabaseTypeName.
func (r *instRows) ColumnTypeDatabaseTypeName(index int) string {
	if ct, ok := r.rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
		return ct.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

// ColumnTypeLength implements driver.RowsColumnTypeLength.
func (r *instRows) ColumnTypeLength(index int) (int64, bool) {
	if ct, ok := r.rows.(driver.RowsColumnTypeLength); ok {
		return ct.ColumnTypeLength(index)
	}
	return 0, false
}

// ColumnTypeNullable implements driver.RowsColumnTypeNullable.
func (r *instRows) ColumnTypeNullable(index int) (bool, bool) {
	if ct, ok := r.rows.(driver.RowsColumnTypeNullable); ok {
		return ct.ColumnTypeNullable(index)
	}
	return false, false
}

// ColumnTypePrecisionScale implements driver.RowsColumnTypePrecisionScale.
func (r *instRows) ColumnTypePrecisionScale(index int) (int64, int64, bool) {
	if ct, ok := r.rows.(driver.RowsColumnTypePrecisionScale); ok {
		return ct.ColumnTypePrecisionScale(index)
	}
	return 0, 0, false
}
