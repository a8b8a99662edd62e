// Package sqlx opens jmoiron/sqlx handles on top of the instrumented
// database/sql driver from package sql.
//
// Every statement sqlx runs, including Get, Select, NamedExec and statements
// inside transactions, produces one query log line, a span and a duration
// measurement. Select and Get log the number of rows they scanned.
//
// # Quick Start
//
//	import sentinelsqlx "github.com/kroma-labs/sentinel-sql/sqlx"
//
//	db, err := sentinelsqlx.Connect(ctx, "postgres", dsn,
//	    sentinelsqlx.WithDBSystem("postgresql"),
//	    sentinelsqlx.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	var users []User
//	err = db.SelectContext(ctx, &users, "SELECT id, name FROM users WHERE active")
//	// SELECT id, name FROM …; rows: 12, elapsed: 2.114ms
//
// The returned handle is a plain *sqlx.DB, so transactions, prepared and
// named statements all work unchanged.
//
// # Configuration Options
//
// The options are those of package sql:
//
//	db, _ := sentinelsqlx.Open("postgres", dsn,
//	    sentinelsqlx.WithDBSystem("postgresql"),    // Required: database type
//	    sentinelsqlx.WithDBName("users_db"),        // Database name
//	    sentinelsqlx.WithInstanceName("replica"),   // Connection identifier
//	    sentinelsqlx.WithTracerProvider(tp),        // Custom tracer provider
//	    sentinelsqlx.WithMeterProvider(mp),         // Custom meter provider
//	    sentinelsqlx.WithDisableQueryLog(),         // No query log lines
//	)
package sqlx
