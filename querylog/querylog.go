// Package querylog records timing and row counts for individual SQL
// statements and emits one summarized log line per statement.
//
// Usage:
//
//	ql := querylog.New(querylog.WithZerolog(logger))
//
//	q := ql.Start(query)
//	defer q.Finish()
//
//	for rows.Next() {
//	    q.IncrementRows()
//	}
//
// A statement that took one second or longer is logged at warn level,
// anything faster at info level. Short statements are logged as-is:
//
//	SELECT 1; rows: 1, elapsed: 412.000µs
//
// Longer statements are summarized to their first four words and the full
// statement is appended pretty-printed:
//
//	SELECT * FROM users …; rows: 3, elapsed: 1.204ms
//
//	SELECT
//	  *
//	FROM
//	  users
//	WHERE
//	  active = true
package querylog

import (
	"strconv"
	"strings"
	"time"

	"github.com/kroma-labs/sentinel-sql/sqlfmt"
)

const (
	// SlowQueryThreshold is the elapsed time at which a statement is
	// logged at warn level instead of info level.
	SlowQueryThreshold = time.Second

	// SummaryWords is the number of words kept in a statement summary.
	SummaryWords = 4

	// Target identifies query log records so they can be routed
	// independently of where the statement was issued.
	Target = "sentinel::query"

	ellipsis = " …"
)

// Logger creates Query instruments that share a sink and collaborators.
// A Logger is immutable after New and safe for concurrent use.
type Logger struct {
	sink      Sink
	summarize func(query string) string
	format    func(query string, opts sqlfmt.Options) string
	now       func() time.Time
}

// New creates a Logger. Without options, records go to the process-wide
// zerolog logger (see GlobalSink).
func New(opts ...Option) *Logger {
	l := &Logger{
		sink:      GlobalSink(),
		summarize: Summarize,
		format:    sqlfmt.Format,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start begins observing a statement. It must be called immediately before
// the statement is dispatched. Start never logs.
//
// Calling Start on a nil Logger returns a Query that counts rows but never
// logs, so callers don't need to guard disabled logging.
func (l *Logger) Start(query string) *Query {
	q := &Query{
		logger: l,
		query:  query,
	}
	if l != nil {
		q.start = l.now()
	}
	return q
}

// Query observes one statement execution. It is owned by a single
// goroutine and is not safe for concurrent use.
type Query struct {
	logger   *Logger
	query    string
	rows     uint64
	start    time.Time
	finished bool
}

// IncrementRows counts one more row.
func (q *Query) IncrementRows() {
	q.rows++
}

// AddRows counts n more rows at once, for drivers that report a row count
// instead of streaming rows.
func (q *Query) AddRows(n uint64) {
	q.rows += n
}

// Rows returns the number of rows counted so far.
func (q *Query) Rows() uint64 {
	return q.rows
}

// Finish emits the log line for the statement. Only the first call has
// any effect, so it is safe to both defer Finish and call it explicitly.
func (q *Query) Finish() {
	if q.finished {
		return
	}
	q.finished = true

	l := q.logger
	if l == nil {
		return
	}

	elapsed := l.now().Sub(q.start)

	level := severity(elapsed)
	if !enabled(l.sink, level) {
		return
	}

	summary := l.summarize(q.query)

	var verbose string
	if summary != q.query {
		summary += ellipsis
		verbose = "\n\n" + l.format(q.query, sqlfmt.Options{}) + "\n"
	}

	var b strings.Builder
	b.Grow(len(summary) + len(verbose) + 40)
	b.WriteString(summary)
	b.WriteString("; rows: ")
	b.WriteString(strconv.FormatUint(q.rows, 10))
	b.WriteString(", elapsed: ")
	b.WriteString(FormatElapsed(elapsed))
	b.WriteString(verbose)

	l.sink.Log(Record{
		Level:   level,
		Target:  Target,
		Message: b.String(),
		Rows:    q.rows,
		Elapsed: elapsed,
	})
}

// Summarize returns the first SummaryWords whitespace-separated words of
// query joined by single spaces. It does not parse SQL.
//
// Example:
//
//	Summarize("SELECT * FROM users WHERE id = 1") // returns "SELECT * FROM users"
//	Summarize("SELECT 1")                         // returns "SELECT 1"
func Summarize(query string) string {
	words := strings.Fields(query)
	if len(words) > SummaryWords {
		words = words[:SummaryWords]
	}
	return strings.Join(words, " ")
}
