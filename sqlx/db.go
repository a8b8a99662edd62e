package sqlx

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sentinelsql "github.com/kroma-labs/sentinel-sql/sql"
)

// Open opens a *sqlx.DB whose connections go through the instrumented
// driver, so every statement sqlx runs is traced, metered and logged.
//
// Example:
//
//	db, err := sentinelsqlx.Open("postgres", dsn,
//	    sentinelsqlx.WithDBSystem("postgresql"),
//	    sentinelsqlx.WithDBName("mydb"),
//	)
func Open(driverName, dsn string, opts ...Option) (*sqlx.DB, error) {
	db, err := sentinelsql.Open(driverName, dsn, opts...)
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, driverName), nil
}

// Connect opens and verifies a database connection.
// It is equivalent to Open followed by Ping.
//
// Example:
//
//	db, err := sentinelsqlx.Connect(ctx, "postgres", dsn,
//	    sentinelsqlx.WithDBSystem("postgresql"),
//	)
func Connect(ctx context.Context, driverName, dsn string, opts ...Option) (*sqlx.DB, error) {
	db, err := Open(driverName, dsn, opts...)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenDB opens a *sqlx.DB from a connector. driverName selects the bind
// variable style sqlx uses for Rebind and named queries.
//
// Example:
//
//	connector, _ := pq.NewConnector(dsn)
//	db := sentinelsqlx.OpenDB(connector, "postgres",
//	    sentinelsqlx.WithDBSystem("postgresql"),
//	)
func OpenDB(c driver.Connector, driverName string, opts ...Option) *sqlx.DB {
	return sqlx.NewDb(sentinelsql.OpenDB(c, opts...), driverName)
}

// MustConnect is like Connect but panics on error.
func MustConnect(ctx context.Context, driverName, dsn string, opts ...Option) *sqlx.DB {
	db, err := Connect(ctx, driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// MustOpen is like Open but panics on error.
func MustOpen(driverName, dsn string, opts ...Option) *sqlx.DB {
	db, err := Open(driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// RecordPoolMetrics registers connection pool metrics for db.
// Attributes given to Open are detected automatically.
//
// Example:
//
//	err := sentinelsqlx.RecordPoolMetrics(db, otel.GetMeterProvider().Meter("myapp"))
func RecordPoolMetrics(db *sqlx.DB, meter metric.Meter, attrs ...attribute.KeyValue) error {
	return sentinelsql.RecordPoolMetrics(db.DB, meter, attrs...)
}
