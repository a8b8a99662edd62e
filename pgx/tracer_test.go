package pgx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-sql/querylog"
)

func TestTracer(t *testing.T) {
	tests := []struct {
		name        string
		sql         string
		end         pgx.TraceQueryEndData
		wantMessage string
	}{
		{
			name:        "given select command tag, then logs selected rows",
			sql:         "SELECT id FROM users",
			end:         pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 3")},
			wantMessage: "SELECT id FROM users; rows: 3, elapsed: ",
		},
		{
			name:        "given insert command tag, then logs inserted rows",
			sql:         "INSERT INTO users (name) VALUES ($1)",
			end:         pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("INSERT 0 5")},
			wantMessage: "INSERT INTO users (name) …; rows: 5, elapsed: ",
		},
		{
			name:        "given statement without row count, then logs zero rows",
			sql:         "BEGIN",
			end:         pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("BEGIN")},
			wantMessage: "BEGIN; rows: 0, elapsed: ",
		},
		{
			name: "given query error, then logs zero rows",
			sql:  "SELECT id FROM missing",
			end: pgx.TraceQueryEndData{
				CommandTag: pgconn.NewCommandTag("SELECT 2"),
				Err:        assert.AnError,
			},
			wantMessage: "SELECT id FROM missing; rows: 0, elapsed: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracer := NewTracer(WithLogger(zerolog.New(&buf)))

			ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: tt.sql})
			assert.Zero(t, buf.Len())

			tracer.TraceQueryEnd(ctx, nil, tt.end)

			assert.Contains(t, buf.String(), tt.wantMessage)
			assert.Contains(t, buf.String(), `"target":"`+querylog.Target+`"`)
			assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
		})
	}
}

func TestTracer_EndWithoutStart(t *testing.T) {
	t.Run("given context without started query, then logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		tracer := NewTracer(WithLogger(zerolog.New(&buf)))

		assert.NotPanics(t, func() {
			tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		})
		assert.Zero(t, buf.Len())
	})
}

func TestTracer_Disabled(t *testing.T) {
	t.Run("given WithDisableQueryLog, then returns context unchanged", func(t *testing.T) {
		tracer := NewTracer(WithDisableQueryLog())

		ctx := context.Background()
		got := tracer.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		assert.Equal(t, ctx, got)

		assert.NotPanics(t, func() {
			tracer.TraceQueryEnd(got, nil, pgx.TraceQueryEndData{})
		})
	})
}

func TestTracer_NestedQueries(t *testing.T) {
	t.Run("given query started inside another, then each logs its own line", func(t *testing.T) {
		var buf bytes.Buffer
		tracer := NewTracer(WithLogger(zerolog.New(&buf)))

		outer := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		inner := tracer.TraceQueryStart(outer, nil, pgx.TraceQueryStartData{SQL: "SELECT 2"})

		tracer.TraceQueryEnd(inner, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 4")})
		tracer.TraceQueryEnd(outer, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 2)
		assert.Contains(t, string(lines[0]), "SELECT 2; rows: 4,")
		assert.Contains(t, string(lines[1]), "SELECT 1; rows: 1,")
	})
}

// logMessages decodes the message of every JSON log line in buf.
func logMessages(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()

	var messages []string
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var line struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		messages = append(messages, line.Message)
	}
	require.NoError(t, scanner.Err())
	return messages
}

func TestTracer_Batch(t *testing.T) {
	tests := []struct {
		name         string
		queued       []string
		results      []pgx.TraceBatchQueryData
		wantMessages []string
	}{
		{
			name:   "given every result read, then logs each statement in queue order",
			queued: []string{"DELETE FROM sessions", "SELECT id FROM users"},
			results: []pgx.TraceBatchQueryData{
				{SQL: "DELETE FROM sessions", CommandTag: pgconn.NewCommandTag("DELETE 7")},
				{SQL: "SELECT id FROM users", CommandTag: pgconn.NewCommandTag("SELECT 2")},
			},
			wantMessages: []string{
				"DELETE FROM sessions; rows: 7, elapsed: ",
				"SELECT id FROM users; rows: 2, elapsed: ",
			},
		},
		{
			name:   "given batch closed early, then logs only the statements read",
			queued: []string{"DELETE FROM sessions", "SELECT id FROM users"},
			results: []pgx.TraceBatchQueryData{
				{SQL: "DELETE FROM sessions", CommandTag: pgconn.NewCommandTag("DELETE 1")},
			},
			wantMessages: []string{
				"DELETE FROM sessions; rows: 1, elapsed: ",
			},
		},
		{
			name:   "given failed statement, then logs zero rows",
			queued: []string{"SELECT id FROM missing"},
			results: []pgx.TraceBatchQueryData{
				{SQL: "SELECT id FROM missing", CommandTag: pgconn.NewCommandTag("SELECT 3"), Err: assert.AnError},
			},
			wantMessages: []string{
				"SELECT id FROM missing; rows: 0, elapsed: ",
			},
		},
		{
			name:   "given more results than queued statements, then logs the reported statement",
			queued: []string{"SELECT 1"},
			results: []pgx.TraceBatchQueryData{
				{SQL: "SELECT 1", CommandTag: pgconn.NewCommandTag("SELECT 1")},
				{SQL: "SELECT 2", Err: assert.AnError},
			},
			wantMessages: []string{
				"SELECT 1; rows: 1, elapsed: ",
				"SELECT 2; rows: 0, elapsed: ",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracer := NewTracer(WithLogger(zerolog.New(&buf)))

			batch := &pgx.Batch{}
			for _, sql := range tt.queued {
				batch.Queue(sql)
			}

			ctx := tracer.TraceBatchStart(context.Background(), nil, pgx.TraceBatchStartData{Batch: batch})
			assert.Zero(t, buf.Len())

			for _, res := range tt.results {
				tracer.TraceBatchQuery(ctx, nil, res)
			}
			tracer.TraceBatchEnd(ctx, nil, pgx.TraceBatchEndData{})

			messages := logMessages(t, &buf)
			require.Len(t, messages, len(tt.wantMessages))
			for i, want := range tt.wantMessages {
				assert.Contains(t, messages[i], want)
			}
		})
	}
}

func TestTracer_BatchDisabled(t *testing.T) {
	t.Run("given WithDisableQueryLog, then returns context unchanged", func(t *testing.T) {
		tracer := NewTracer(WithDisableQueryLog())

		batch := &pgx.Batch{}
		batch.Queue("SELECT 1")

		ctx := context.Background()
		got := tracer.TraceBatchStart(ctx, nil, pgx.TraceBatchStartData{Batch: batch})
		assert.Equal(t, ctx, got)

		assert.NotPanics(t, func() {
			tracer.TraceBatchQuery(got, nil, pgx.TraceBatchQueryData{SQL: "SELECT 1"})
			tracer.TraceBatchEnd(got, nil, pgx.TraceBatchEndData{})
		})
	})
}

func TestTracer_CopyFrom(t *testing.T) {
	tests := []struct {
		name        string
		start       pgx.TraceCopyFromStartData
		end         pgx.TraceCopyFromEndData
		wantMessage string
	}{
		{
			name: "given copied rows, then logs copy statement with row count",
			start: pgx.TraceCopyFromStartData{
				TableName:   pgx.Identifier{"users"},
				ColumnNames: []string{"id"},
			},
			end:         pgx.TraceCopyFromEndData{CommandTag: pgconn.NewCommandTag("COPY 3")},
			wantMessage: `COPY "users" ("id") FROM …; rows: 3, elapsed: `,
		},
		{
			name: "given copy error, then logs zero rows",
			start: pgx.TraceCopyFromStartData{
				TableName:   pgx.Identifier{"users"},
				ColumnNames: []string{"id"},
			},
			end:         pgx.TraceCopyFromEndData{Err: assert.AnError},
			wantMessage: `COPY "users" ("id") FROM …; rows: 0, elapsed: `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracer := NewTracer(WithLogger(zerolog.New(&buf)))

			ctx := tracer.TraceCopyFromStart(context.Background(), nil, tt.start)
			tracer.TraceCopyFromEnd(ctx, nil, tt.end)

			messages := logMessages(t, &buf)
			require.Len(t, messages, 1)
			assert.Contains(t, messages[0], tt.wantMessage)
		})
	}
}

func TestCopyStatement(t *testing.T) {
	tests := []struct {
		name    string
		table   pgx.Identifier
		columns []string
		want    string
	}{
		{
			name:    "given schema qualified table, then quotes every part",
			table:   pgx.Identifier{"public", "users"},
			columns: []string{"id", "name"},
			want:    `COPY "public"."users" ("id", "name") FROM STDIN BINARY`,
		},
		{
			name:    "given column with quote, then escapes it",
			table:   pgx.Identifier{"users"},
			columns: []string{`na"me`},
			want:    `COPY "users" ("na""me") FROM STDIN BINARY`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, copyStatement(tt.table, tt.columns))
		})
	}
}

func TestOptions(t *testing.T) {
	custom := querylog.New(querylog.WithSink(querylog.NopSink()))

	tests := []struct {
		name       string
		opts       []Option
		wantAssert func(*testing.T, *config)
	}{
		{
			name: "given no options, then uses default query logger",
			wantAssert: func(t *testing.T, cfg *config) {
				assert.NotNil(t, cfg.QueryLog)
			},
		},
		{
			name: "given WithQueryLogger, then uses the given logger",
			opts: []Option{WithQueryLogger(custom)},
			wantAssert: func(t *testing.T, cfg *config) {
				assert.Same(t, custom, cfg.QueryLog)
			},
		},
		{
			name: "given WithDisableQueryLog, then query logger is nil",
			opts: []Option{WithDisableQueryLog()},
			wantAssert: func(t *testing.T, cfg *config) {
				assert.Nil(t, cfg.QueryLog)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.wantAssert(t, newConfig(tt.opts...))
		})
	}
}
