package pgx

import (
	"github.com/rs/zerolog"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

// config holds the Tracer configuration.
type config struct {
	// QueryLog creates the per-query log lines. Nil turns logging off.
	QueryLog *querylog.Logger
}

// Option configures a Tracer.
type Option func(*config)

func newConfig(opts ...Option) *config {
	cfg := &config{
		QueryLog: querylog.New(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithQueryLogger sets the logger used for per-query log lines.
func WithQueryLogger(l *querylog.Logger) Option {
	return func(cfg *config) {
		cfg.QueryLog = l
	}
}

// WithLogger writes per-query log lines to logger. Lines below the
// logger's level are dropped.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
//	tracer := sentinelpgx.NewTracer(sentinelpgx.WithLogger(logger)) // slow queries only
func WithLogger(logger zerolog.Logger) Option {
	return WithQueryLogger(querylog.New(querylog.WithZerolog(logger)))
}

// WithDisableQueryLog turns off per-query log lines.
func WithDisableQueryLog() Option {
	return WithQueryLogger(nil)
}
