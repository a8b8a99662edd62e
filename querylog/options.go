package querylog

import (
	"github.com/rs/zerolog"

	"github.com/kroma-labs/sentinel-sql/sqlfmt"
)

// Option configures a Logger.
type Option func(*Logger)

// WithSink sets where records are written. A nil sink disables logging.
func WithSink(sink Sink) Option {
	return func(l *Logger) {
		l.sink = sink
	}
}

// WithZerolog writes records to logger.
// It is shorthand for WithSink(NewZerologSink(logger)).
//
// Example:
//
//	ql := querylog.New(querylog.WithZerolog(
//	    zerolog.New(os.Stderr).With().Timestamp().Logger(),
//	))
func WithZerolog(logger zerolog.Logger) Option {
	return WithSink(NewZerologSink(logger))
}

// WithSummarizer replaces Summarize. A statement is treated as truncated,
// and pretty-printed in full, whenever fn returns something other than
// the statement itself.
func WithSummarizer(fn func(query string) string) Option {
	return func(l *Logger) {
		if fn != nil {
			l.summarize = fn
		}
	}
}

// WithFormatter replaces sqlfmt.Format as the pretty-printer for truncated
// statements.
func WithFormatter(fn func(query string, opts sqlfmt.Options) string) Option {
	return func(l *Logger) {
		if fn != nil {
			l.format = fn
		}
	}
}
