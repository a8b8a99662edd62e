package querylog

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-sql/sqlfmt"
)

// recordingSink keeps every record it receives.
type recordingSink struct {
	static  zerolog.Level
	current zerolog.Level
	records []Record
}

func (s *recordingSink) StaticLevel() zerolog.Level { return s.static }
func (s *recordingSink) Level() zerolog.Level       { return s.current }
func (s *recordingSink) Log(rec Record)             { s.records = append(s.records, rec) }

// fakeClock returns start on the first call and start+elapsed afterwards.
func fakeClock(elapsed time.Duration) func() time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(elapsed)
	}
}

type spies struct {
	summarized int
	formatted  int
}

func newTestLogger(sink Sink, elapsed time.Duration) (*Logger, *spies) {
	s := &spies{}
	l := New(
		WithSink(sink),
		WithSummarizer(func(query string) string {
			s.summarized++
			return Summarize(query)
		}),
		WithFormatter(func(query string, opts sqlfmt.Options) string {
			s.formatted++
			return sqlfmt.Format(query, opts)
		}),
	)
	l.now = fakeClock(elapsed)
	return l, s
}

func TestQuery_Finish(t *testing.T) {
	type args struct {
		query   string
		rows    int
		elapsed time.Duration
	}

	tests := []struct {
		name          string
		args          args
		wantLevel     zerolog.Level
		wantMessage   string
		wantFormatted int
	}{
		{
			name: "given short query, then logs it without verbose block",
			args: args{
				query:   "SELECT 1",
				rows:    1,
				elapsed: 5 * time.Millisecond,
			},
			wantLevel:     zerolog.InfoLevel,
			wantMessage:   "SELECT 1; rows: 1, elapsed: 5.000ms",
			wantFormatted: 0,
		},
		{
			name: "given query of exactly four words, then logs it without verbose block",
			args: args{
				query:   "SELECT * FROM users",
				rows:    3,
				elapsed: 1500 * time.Microsecond,
			},
			wantLevel:     zerolog.InfoLevel,
			wantMessage:   "SELECT * FROM users; rows: 3, elapsed: 1.500ms",
			wantFormatted: 0,
		},
		{
			name: "given long query, then logs summary with ellipsis and formatted query",
			args: args{
				query:   "SELECT * FROM users WHERE id = 1",
				rows:    1,
				elapsed: 2 * time.Millisecond,
			},
			wantLevel: zerolog.InfoLevel,
			wantMessage: "SELECT * FROM users …; rows: 1, elapsed: 2.000ms" +
				"\n\nSELECT\n  *\nFROM\n  users\nWHERE\n  id = 1\n",
			wantFormatted: 1,
		},
		{
			name: "given query with extra whitespace, then summary differs and verbose block is added",
			args: args{
				query:   "SELECT  1",
				rows:    0,
				elapsed: time.Millisecond,
			},
			wantLevel:     zerolog.InfoLevel,
			wantMessage:   "SELECT 1 …; rows: 0, elapsed: 1.000ms\n\nSELECT\n  1\n",
			wantFormatted: 1,
		},
		{
			name: "given zero rows, then logs rows: 0",
			args: args{
				query:   "DELETE FROM sessions",
				rows:    0,
				elapsed: 300 * time.Microsecond,
			},
			wantLevel:   zerolog.InfoLevel,
			wantMessage: "DELETE FROM sessions; rows: 0, elapsed: 300.000µs",
		},
		{
			name: "given elapsed just below threshold, then logs at info",
			args: args{
				query:   "SELECT 1",
				rows:    1,
				elapsed: SlowQueryThreshold - time.Millisecond,
			},
			wantLevel:   zerolog.InfoLevel,
			wantMessage: "SELECT 1; rows: 1, elapsed: 999.000ms",
		},
		{
			name: "given elapsed at threshold, then logs at warn",
			args: args{
				query:   "SELECT 1",
				rows:    1,
				elapsed: SlowQueryThreshold,
			},
			wantLevel:   zerolog.WarnLevel,
			wantMessage: "SELECT 1; rows: 1, elapsed: 1.000s",
		},
		{
			name: "given slow query, then logs at warn",
			args: args{
				query:   "SELECT pg_sleep(3)",
				rows:    1,
				elapsed: 3250 * time.Millisecond,
			},
			wantLevel:   zerolog.WarnLevel,
			wantMessage: "SELECT pg_sleep(3); rows: 1, elapsed: 3.250s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{static: zerolog.TraceLevel, current: zerolog.TraceLevel}
			l, s := newTestLogger(sink, tt.args.elapsed)

			q := l.Start(tt.args.query)
			for i := 0; i < tt.args.rows; i++ {
				q.IncrementRows()
			}
			q.Finish()

			require.Len(t, sink.records, 1)
			rec := sink.records[0]
			assert.Equal(t, tt.wantLevel, rec.Level)
			assert.Equal(t, tt.wantMessage, rec.Message)
			assert.Equal(t, Target, rec.Target)
			assert.Equal(t, uint64(tt.args.rows), rec.Rows)
			assert.Equal(t, tt.args.elapsed, rec.Elapsed)
			assert.Contains(t, rec.Message, fmt.Sprintf("rows: %d", tt.args.rows))
			assert.Equal(t, 1, s.summarized)
			assert.Equal(t, tt.wantFormatted, s.formatted)
		})
	}
}

func TestQuery_Finish_LevelFiltering(t *testing.T) {
	type args struct {
		static  zerolog.Level
		current zerolog.Level
		elapsed time.Duration
	}

	tests := []struct {
		name    string
		args    args
		wantLog bool
	}{
		{
			name:    "given both levels admit info, then logs",
			args:    args{static: zerolog.InfoLevel, current: zerolog.DebugLevel, elapsed: time.Millisecond},
			wantLog: true,
		},
		{
			name:    "given static level excludes info, then skips all work",
			args:    args{static: zerolog.WarnLevel, current: zerolog.DebugLevel, elapsed: time.Millisecond},
			wantLog: false,
		},
		{
			name:    "given current level excludes info, then skips all work",
			args:    args{static: zerolog.DebugLevel, current: zerolog.WarnLevel, elapsed: time.Millisecond},
			wantLog: false,
		},
		{
			name:    "given levels exclude info but slow query, then logs at warn",
			args:    args{static: zerolog.WarnLevel, current: zerolog.WarnLevel, elapsed: 2 * time.Second},
			wantLog: true,
		},
		{
			name:    "given levels exclude info and warn, then skips slow query too",
			args:    args{static: zerolog.ErrorLevel, current: zerolog.DebugLevel, elapsed: 2 * time.Second},
			wantLog: false,
		},
		{
			name:    "given disabled levels, then skips all work",
			args:    args{static: zerolog.Disabled, current: zerolog.Disabled, elapsed: 2 * time.Second},
			wantLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{static: tt.args.static, current: tt.args.current}
			l, s := newTestLogger(sink, tt.args.elapsed)

			q := l.Start("SELECT * FROM users WHERE id = 1")
			q.Finish()

			if !tt.wantLog {
				assert.Empty(t, sink.records)
				assert.Zero(t, s.summarized)
				assert.Zero(t, s.formatted)
				return
			}
			require.Len(t, sink.records, 1)
			assert.Equal(t, 1, s.summarized)
			assert.Equal(t, 1, s.formatted)
		})
	}
}

func TestQuery_Finish_OnlyOnce(t *testing.T) {
	t.Run("given early return after two of five rows, then logs partial count once", func(t *testing.T) {
		sink := &recordingSink{static: zerolog.TraceLevel, current: zerolog.TraceLevel}
		l, _ := newTestLogger(sink, time.Millisecond)

		var q *Query
		consume := func() error {
			q = l.Start("SELECT id FROM users")
			defer q.Finish()

			for i := 0; i < 5; i++ {
				if i == 2 {
					return assert.AnError
				}
				q.IncrementRows()
			}
			return nil
		}

		err := consume()
		require.ErrorIs(t, err, assert.AnError)

		q.Finish()
		q.Finish()

		require.Len(t, sink.records, 1)
		assert.Contains(t, sink.records[0].Message, "rows: 2")
	})

	t.Run("given panic during iteration, then deferred finish still logs", func(t *testing.T) {
		sink := &recordingSink{static: zerolog.TraceLevel, current: zerolog.TraceLevel}
		l, _ := newTestLogger(sink, time.Millisecond)

		var q *Query
		consume := func() {
			q = l.Start("SELECT id FROM users")
			defer q.Finish()

			for i := 0; i < 5; i++ {
				if i == 2 {
					panic("scan failed")
				}
				q.IncrementRows()
			}
		}

		assert.Panics(t, consume)
		q.Finish()

		require.Len(t, sink.records, 1)
		assert.Contains(t, sink.records[0].Message, "rows: 2")
	})

	t.Run("given explicit finish before deferred finish, then logs once", func(t *testing.T) {
		sink := &recordingSink{static: zerolog.TraceLevel, current: zerolog.TraceLevel}
		l, _ := newTestLogger(sink, time.Millisecond)

		func() {
			q := l.Start("SELECT 1")
			defer q.Finish()
			q.IncrementRows()
			q.Finish()
			q.IncrementRows()
		}()

		require.Len(t, sink.records, 1)
		assert.Contains(t, sink.records[0].Message, "rows: 1")
	})
}

func TestQuery_AddRows(t *testing.T) {
	t.Run("given mixed increments, then counts all rows", func(t *testing.T) {
		q := New(WithSink(NopSink())).Start("SELECT 1")

		q.IncrementRows()
		q.AddRows(41)

		assert.Equal(t, uint64(42), q.Rows())
	})
}

func TestLogger_Start_Nil(t *testing.T) {
	t.Run("given nil logger, then query counts rows and never logs", func(t *testing.T) {
		var l *Logger

		q := l.Start("SELECT 1")
		q.IncrementRows()

		assert.NotPanics(t, q.Finish)
		assert.Equal(t, uint64(1), q.Rows())
	})
}

func TestSummarize(t *testing.T) {
	type args struct {
		query string
	}

	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "given query longer than four words, then keeps first four",
			args: args{query: "SELECT * FROM users WHERE id = 1"},
			want: "SELECT * FROM users",
		},
		{
			name: "given short query, then returns it unchanged",
			args: args{query: "SELECT 1"},
			want: "SELECT 1",
		},
		{
			name: "given newlines and tabs, then joins words with single spaces",
			args: args{query: "SELECT\n\tid,\n\tname\nFROM users"},
			want: "SELECT id, name FROM",
		},
		{
			name: "given empty query, then returns empty string",
			args: args{query: ""},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.args.query))
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "given seconds, then uses s", d: 1500 * time.Millisecond, want: "1.500s"},
		{name: "given milliseconds, then uses ms", d: 12345 * time.Microsecond, want: "12.345ms"},
		{name: "given microseconds, then uses µs", d: 3210 * time.Nanosecond, want: "3.210µs"},
		{name: "given nanoseconds, then uses ns", d: 250 * time.Nanosecond, want: "250.000ns"},
		{name: "given zero, then returns 0.000ns", d: 0, want: "0.000ns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.d))
		})
	}
}
