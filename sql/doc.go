// Package sql provides an instrumented database/sql driver wrapper that
// logs every statement with its row count and elapsed time, and traces and
// meters it with OpenTelemetry.
//
// # Quick Start
//
//	import sentinelsql "github.com/kroma-labs/sentinel-sql/sql"
//
//	db, err := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithDBSystem("postgresql"),
//	    sentinelsql.WithDBName("myapp"),
//	    sentinelsql.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	// Use like standard *sql.DB
//	rows, err := db.QueryContext(ctx, "SELECT * FROM users")
//
// The returned *sql.DB is a plain database/sql handle; only the driver
// underneath is wrapped.
//
// # Driver Registration
//
// Open registers one wrapped driver per driver name, DBSystem and DBName.
// For more control, wrap a driver or a connector yourself:
//
//	sentinelsql.Register("postgres-instrumented", pq.Driver{},
//	    sentinelsql.WithDBSystem("postgresql"),
//	)
//	db, _ := sql.Open("postgres-instrumented", dsn)
//
//	connector, _ := pq.NewConnector(dsn)
//	db := sentinelsql.OpenDB(connector, sentinelsql.WithDBSystem("postgresql"))
//
// # Query Logging
//
// Every statement produces exactly one log line through package querylog
// once it completes:
//
//	SELECT id, name FROM …; rows: 12, elapsed: 3.402ms
//
//	SELECT
//	  id,
//	  name
//	FROM
//	  users
//
// Result sets are logged when they are closed, so the row count is the
// number of rows actually read. That happens when iteration ends, when
// Rows.Close is called or when the query context is cancelled. Exec logs
// the rows affected when the driver reports them. BEGIN, COMMIT and
// ROLLBACK are logged as statements of their own.
//
// Statements that take querylog.SlowQueryThreshold or longer are logged at
// warn level, the rest at info level. Use WithLogger to choose the zerolog
// logger:
//
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithLogger(logger.Level(zerolog.WarnLevel)), // slow statements only
//	)
//
// Without WithLogger, lines go to the zerolog global logger (zerolog/log).
// WithDisableQueryLog turns them off.
//
// # Configuration Options
//
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithDBSystem("postgresql"),     // Required: database type
//	    sentinelsql.WithDBName("users_db"),         // Database name
//	    sentinelsql.WithInstanceName("primary"),    // Connection identifier
//	    sentinelsql.WithQuerySanitizer(sanitizer),  // Mask values in spans
//	    sentinelsql.WithDisableQuery(),             // Omit queries from spans
//	)
//
// # Query Sanitization
//
// DefaultQuerySanitizer replaces literals in the db.statement attribute
// with parameters:
//
//	// Input:  "SELECT * FROM users WHERE id = 123"
//	// Output: "SELECT * FROM users WHERE id = $1"
//
// Query log lines are not sanitized; they show the statement text the
// application sent, with its placeholders.
//
// # Observability
//
// Traces:
//   - Span per statement named after its operation
//   - Attributes: db.system, db.name, db.statement, db.operation
//
// Metrics:
//   - db.client.operation.duration (histogram by operation and status)
//   - db.client.operation.slow (counter of statements over the slow threshold)
//   - db.client.response.returned_rows (histogram by operation)
//   - db.client.connections.* (pool gauges, see RecordPoolMetrics)
package sql
