// Package pgx logs statements run through jackc/pgx v5 connections and
// pools with package querylog.
//
// A Tracer is installed as the connection's pgx tracer. pgx calls it
// when a query starts and when it ends, including failed queries and
// result sets closed early. The row count comes from the command tag the
// server returns.
//
// Statements queued in a pgx.Batch are logged one line each, in queue
// order, as their results are read. Each is timed from the moment the
// previous result was read, so the first statement also accounts for
// sending the batch. Statements whose results are never read before the
// batch is closed are not logged. CopyFrom is logged as the COPY statement
// pgx sends, with the number of rows copied.
//
// # Quick Start
//
//	import sentinelpgx "github.com/kroma-labs/sentinel-sql/pgx"
//
//	pool, err := sentinelpgx.NewPool(ctx, "postgres://app@localhost/app",
//	    sentinelpgx.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// To keep control of the pool configuration, use ParseConfig and adjust
// the returned config before calling pgxpool.NewWithConfig, or set the
// tracer directly:
//
//	connConfig.Tracer = sentinelpgx.NewTracer(sentinelpgx.WithLogger(logger))
package pgx
