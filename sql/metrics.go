package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

// metrics holds the metric instruments for database operations.
type metrics struct {
	queryDuration metric.Float64Histogram

	// Statements at or above querylog.SlowQueryThreshold, the ones logged
	// at warn level.
	slowQueries metric.Int64Counter

	// Rows read from each result set
	returnedRows metric.Int64Histogram
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db.client.operation.duration",
		metric.WithDescription("Duration of database client operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation duration histogram: %w", err)
	}

	m.slowQueries, err = meter.Int64Counter(
		"db.client.operation.slow",
		metric.WithDescription("Number of database operations slower than the slow query threshold"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating slow operation counter: %w", err)
	}

	m.returnedRows, err = meter.Int64Histogram(
		"db.client.response.returned_rows",
		metric.WithDescription("Number of rows read from a query result set"),
		metric.WithUnit("{row}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 10000),
	)
	if err != nil {
		return nil, fmt.Errorf("creating returned rows histogram: %w", err)
	}

	return m, nil
}

// operationAttributes appends the db.operation attribute to attrs, leaving
// attrs itself untouched.
func operationAttributes(attrs []attribute.KeyValue, operation string, extra int) []attribute.KeyValue {
	all := make([]attribute.KeyValue, 0, len(attrs)+1+extra)
	all = append(all, attrs...)
	if operation != "" {
		all = append(all, attribute.String("db.operation", operation))
	}
	return all
}

// recordQueryDuration records the duration of a query operation and counts
// it as slow when it reaches querylog.SlowQueryThreshold.
func (m *metrics) recordQueryDuration(
	ctx context.Context,
	duration time.Duration,
	operation string,
	attrs []attribute.KeyValue,
	err error,
) {
	if m == nil || m.queryDuration == nil {
		return
	}

	allAttrs := operationAttributes(attrs, operation, 1)

	status := "ok"
	if err != nil {
		status = "error"
	}
	allAttrs = append(allAttrs, attribute.String("status", status))

	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(allAttrs...))

	if m.slowQueries != nil && duration >= querylog.SlowQueryThreshold {
		m.slowQueries.Add(ctx, 1, metric.WithAttributes(allAttrs...))
	}
}

// recordReturnedRows records how many rows were read from a result set.
func (m *metrics) recordReturnedRows(
	ctx context.Context,
	rows uint64,
	operation string,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.returnedRows == nil {
		return
	}

	m.returnedRows.Record(ctx, int64(rows), metric.WithAttributes(operationAttributes(attrs, operation, 0)...))
}

// poolInstrument is one connection pool measurement read from sql.DBStats.
type poolInstrument struct {
	name    string
	desc    string
	unit    string
	counter bool
	value   func(sql.DBStats) int64
}

var poolInstruments = []poolInstrument{
	{
		name:  "db.client.connections.open",
		desc:  "Number of open connections in the pool",
		unit:  "{connection}",
		value: func(s sql.DBStats) int64 { return int64(s.OpenConnections) },
	},
	{
		name:  "db.client.connections.idle",
		desc:  "Number of idle connections in the pool",
		unit:  "{connection}",
		value: func(s sql.DBStats) int64 { return int64(s.Idle) },
	},
	{
		name:  "db.client.connections.max",
		desc:  "Maximum number of connections allowed in the pool",
		unit:  "{connection}",
		value: func(s sql.DBStats) int64 { return int64(s.MaxOpenConnections) },
	},
	{
		name:  "db.client.connections.used",
		desc:  "Number of connections currently in use",
		unit:  "{connection}",
		value: func(s sql.DBStats) int64 { return int64(s.InUse) },
	},
	{
		name:    "db.client.connections.wait_count",
		desc:    "Total number of times waited for a connection",
		unit:    "{connection}",
		counter: true,
		value:   func(s sql.DBStats) int64 { return s.WaitCount },
	},
}

// registerPoolMetrics registers observable pool instruments for db. They
// are read from db.Stats() on collection, which the driver level never
// sees.
func registerPoolMetrics(meter metric.Meter, db *sql.DB, attrs []attribute.KeyValue) error {
	observables := make([]metric.Int64Observable, len(poolInstruments))
	for i, pi := range poolInstruments {
		var (
			obs metric.Int64Observable
			err error
		)
		if pi.counter {
			obs, err = meter.Int64ObservableCounter(pi.name,
				metric.WithDescription(pi.desc), metric.WithUnit(pi.unit))
		} else {
			obs, err = meter.Int64ObservableGauge(pi.name,
				metric.WithDescription(pi.desc), metric.WithUnit(pi.unit))
		}
		if err != nil {
			return fmt.Errorf("creating %s: %w", pi.name, err)
		}
		observables[i] = obs
	}

	waitDuration, err := meter.Float64ObservableCounter(
		"db.client.connections.wait_duration",
		metric.WithDescription("Total time waited for connections in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating db.client.connections.wait_duration: %w", err)
	}

	instruments := make([]metric.Observable, 0, len(observables)+1)
	for _, obs := range observables {
		instruments = append(instruments, obs)
	}
	instruments = append(instruments, waitDuration)

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stats := db.Stats()
			opt := metric.WithAttributes(attrs...)
			for i, pi := range poolInstruments {
				o.ObserveInt64(observables[i], pi.value(stats), opt)
			}
			o.ObserveFloat64(waitDuration, stats.WaitDuration.Seconds(), opt)
			return nil
		},
		instruments...,
	)
	if err != nil {
		return fmt.Errorf("registering pool metrics callback: %w", err)
	}
	return nil
}

// RecordPoolMetrics registers connection pool metrics for a database.
//
// Attributes given to Open, OpenDB or WrapDriver are detected from the
// database's driver and merged with attrs.
//
// Example:
//
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithDBSystem("postgresql"),
//	    sentinelsql.WithDBName("mydb"),
//	)
//
//	err := sentinelsql.RecordPoolMetrics(db, otel.GetMeterProvider().Meter("myapp"))
func RecordPoolMetrics(db *sql.DB, meter metric.Meter, attrs ...attribute.KeyValue) error {
	if drv, ok := db.Driver().(*instDriver); ok && drv.cfg != nil {
		attrs = append(drv.cfg.baseAttributes(), attrs...)
	}

	return registerPoolMetrics(meter, db, attrs)
}
