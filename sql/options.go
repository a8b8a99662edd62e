package sql

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sentinel-sql/sql"
)

// config holds the configuration for instrumentation.
type config struct {
	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	Tracer  trace.Tracer
	Meter   metric.Meter
	Metrics *metrics

	// QueryLog creates the per-statement log lines.
	// Defaults to querylog.New(), which writes to the zerolog global logger.
	// Nil disables query logging.
	QueryLog *querylog.Logger

	// DBSystem identifies the database management system (DBMS) product.
	// Examples: "postgresql", "mysql", "sqlite"
	DBSystem string

	// DBName is the name of the database being accessed.
	DBName string

	// InstanceName identifies a specific database connection instance,
	// such as "primary" or "replica".
	InstanceName string

	// QuerySanitizer sanitizes SQL queries before adding to spans.
	// It does not apply to query log lines; use WithQueryLogger with a
	// custom summarizer for that.
	QuerySanitizer func(query string) string

	// DisableQuery disables recording of SQL queries in spans.
	DisableQuery bool
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		QueryLog:       querylog.New(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil when the meter rejects an instrument.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// Option configures the instrumentation.
type Option func(*config)

// WithTracerProvider sets a custom tracer provider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithDBSystem sets the database system identifier (DBMS product).
// This is added as the "db.system" attribute on all spans.
//
// Example:
//
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithDBSystem("postgresql"),
//	)
func WithDBSystem(system string) Option {
	return func(cfg *config) {
		cfg.DBSystem = system
	}
}

// WithDBName sets the database name being accessed.
// This is added as the "db.name" attribute on all spans.
func WithDBName(name string) Option {
	return func(cfg *config) {
		cfg.DBName = name
	}
}

// WithInstanceName sets an identifier for this specific database connection.
// This is added as the "db.instance" attribute on all spans.
//
// Use this to distinguish between multiple connections to the same database,
// such as "primary" and "replica".
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.InstanceName = name
	}
}

// WithQuerySanitizer sets a custom query sanitizer function for spans.
//
// Example:
//
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithQuerySanitizer(sentinelsql.DefaultQuerySanitizer),
//	)
//	// Query: "SELECT * FROM users WHERE id = 123"
//	// Recorded as: "SELECT * FROM users WHERE id = $1"
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithDisableQuery disables recording of SQL queries in spans entirely.
// The "db.operation" attribute is still recorded.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.DisableQuery = true
	}
}

// WithQueryLogger sets the logger used for per-statement log lines.
//
// Example:
//
//	ql := querylog.New(querylog.WithZerolog(logger))
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithQueryLogger(ql),
//	)
func WithQueryLogger(l *querylog.Logger) Option {
	return func(cfg *config) {
		cfg.QueryLog = l
	}
}

// WithLogger writes per-statement log lines to logger.
// Statements are logged at info level, or warn level when they take
// querylog.SlowQueryThreshold or longer.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	db, _ := sentinelsql.Open("postgres", dsn,
//	    sentinelsql.WithLogger(logger),
//	)
func WithLogger(logger zerolog.Logger) Option {
	return WithQueryLogger(querylog.New(querylog.WithZerolog(logger)))
}

// WithDisableQueryLog turns off per-statement log lines.
func WithDisableQueryLog() Option {
	return WithQueryLogger(nil)
}
