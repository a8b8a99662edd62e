// Package sqlfmt pretty-prints SQL statements for multi-line log output.
//
// Statements are tokenized with the PostgreSQL scanner from pg_query_go and
// laid out with every top-level clause on its own line and its body
// indented below it:
//
//	sqlfmt.Format("SELECT id, name FROM users WHERE id = $1", sqlfmt.Options{})
//
//	// SELECT
//	//   id,
//	//   name
//	// FROM
//	//   users
//	// WHERE
//	//   id = $1
//
// Placeholders are never substituted. Input the scanner rejects is returned
// with its whitespace collapsed.
package sqlfmt

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const defaultIndent = "  "

// Options controls the layout. The zero value is the default layout.
type Options struct {
	// Indent is the string used for one indentation level.
	// Defaults to two spaces.
	Indent string

	// Uppercase rewrites keywords in upper case.
	Uppercase bool
}

func (o Options) indent() string {
	if o.Indent == "" {
		return defaultIndent
	}
	return o.Indent
}

// Format returns query pretty-printed according to opts.
func Format(query string, opts Options) string {
	toks, err := scan(query)
	if err != nil {
		return strings.Join(strings.Fields(query), " ")
	}
	if len(toks) == 0 {
		return strings.TrimSpace(query)
	}

	p := &printer{indent: opts.indent(), pending: -1, atStart: true}
	for i := 0; i < len(toks); i++ {
		i += p.token(toks, i, opts)
	}
	return p.String()
}

// token is one lexical unit of the input.
type token struct {
	text    string
	upper   string
	keyword bool
	comment bool
	gap     bool // whitespace or a comment precedes the token in the input
}

func scan(query string) ([]token, error) {
	res, err := pg_query.Scan(query)
	if err != nil {
		return nil, err
	}

	toks := make([]token, 0, len(res.GetTokens()))
	prevEnd := 0
	for _, st := range res.GetTokens() {
		start, end := int(st.GetStart()), int(st.GetEnd())
		if start < 0 || end > len(query) || start >= end {
			continue
		}
		text := query[start:end]
		toks = append(toks, token{
			text:    text,
			upper:   strings.ToUpper(text),
			keyword: st.GetKeywordKind() != pg_query.KeywordKind_NO_KEYWORD,
			comment: st.GetToken() == pg_query.Token_SQL_COMMENT || st.GetToken() == pg_query.Token_C_COMMENT,
			gap:     start > prevEnd,
		})
		prevEnd = end
	}
	return toks, nil
}
