package sql

import (
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Fallback patterns for statements the PostgreSQL normalizer rejects.
var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	// Example matches: 'hello', 'it\'s', 'foo''bar'
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches numeric literals (integers and floats).
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals such as 0xDEADBEEF.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// spanName returns a span name from a SQL query: the operation, or "SQL"
// when there is none. Span names must not be empty.
//
// Example:
//
//	spanName("SELECT * FROM users") // returns "SELECT"
//	spanName("")                    // returns "SQL"
func spanName(query string) string {
	op := extractOperation(query)
	if op != "" {
		return op
	}
	return "SQL"
}

// extractOperation returns the upper-cased first keyword of a query, used
// for the db.operation attribute and as the metrics operation label.
// Leading comments and opening parentheses are skipped.
//
// Example:
//
//	extractOperation("insert into users")           // returns "INSERT"
//	extractOperation("/* app:api */ SELECT 1")      // returns "SELECT"
//	extractOperation("(SELECT 1) UNION (SELECT 2)") // returns "SELECT"
//	extractOperation("")                            // returns ""
func extractOperation(query string) string {
	query = skipPreamble(query)
	if query == "" {
		return ""
	}

	end := strings.IndexAny(query, " \t\n\r(;")
	if end == -1 {
		return strings.ToUpper(query)
	}
	return strings.ToUpper(query[:end])
}

// skipPreamble drops whitespace, comments and opening parentheses from the
// start of query.
func skipPreamble(query string) string {
	for {
		query = strings.TrimLeft(query, " \t\n\r(")
		switch {
		case strings.HasPrefix(query, "--"):
			nl := strings.IndexByte(query, '\n')
			if nl == -1 {
				return ""
			}
			query = query[nl+1:]
		case strings.HasPrefix(query, "/*"):
			end := strings.Index(query, "*/")
			if end == -1 {
				return ""
			}
			query = query[end+2:]
		default:
			return query
		}
	}
}

// DefaultQuerySanitizer replaces literal values with placeholders so that
// sensitive data stays out of traces.
//
// Statements are normalized with the PostgreSQL parser, which replaces every
// constant with a numbered parameter following any the statement already
// has. Statements the parser rejects fall back to pattern matching, which
// replaces string literals with '?' and numbers with ?.
//
// Example:
//
//	DefaultQuerySanitizer("SELECT * FROM users WHERE name = 'john'")
//	// returns "SELECT * FROM users WHERE name = $1"
//
//	DefaultQuerySanitizer("SELECT * FROM `users` WHERE id = 7")
//	// returns "SELECT * FROM `users` WHERE id = ?"
func DefaultQuerySanitizer(query string) string {
	if normalized, err := pg_query.Normalize(query); err == nil {
		return normalized
	}

	query = stringLiteralRegex.ReplaceAllString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")

	return query
}
