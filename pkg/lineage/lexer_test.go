package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := lineage.Tokenize("SELECT a.b, 'it''s' -- comment\n FROM t /* block */ WHERE x::int >= 1.5;", lineage.Postgres)

	var types []lineage.TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []lineage.TokenType{
		lineage.TOKEN_SELECT, lineage.TOKEN_IDENT, lineage.TOKEN_DOT, lineage.TOKEN_IDENT, lineage.TOKEN_COMMA,
		lineage.TOKEN_STRING, lineage.TOKEN_FROM, lineage.TOKEN_IDENT, lineage.TOKEN_WHERE, lineage.TOKEN_IDENT,
		lineage.TOKEN_DCOLON, lineage.TOKEN_IDENT, lineage.TOKEN_GE, lineage.TOKEN_NUMBER, lineage.TOKEN_SEMICOLON,
		lineage.TOKEN_EOF,
	}, types)
	assert.Equal(t, "it's", tokens[5].Literal)
	assert.Equal(t, "1.5", tokens[13].Literal)
}

func TestTokenizeQuoting(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		dialect    *lineage.Dialect
		wantType   lineage.TokenType
		wantLit    string
		wantQuoted bool
	}{
		{"double quoted identifier", `"Order Id"`, lineage.Postgres, lineage.TOKEN_IDENT, "Order Id", true},
		{"escaped double quote", `"a""b"`, lineage.Snowflake, lineage.TOKEN_IDENT, `a"b`, true},
		{"backtick identifier", "`my-project.ds.orders`", lineage.BigQuery, lineage.TOKEN_IDENT, "my-project.ds.orders", true},
		{"double quoted string in bigquery", `"hello"`, lineage.BigQuery, lineage.TOKEN_STRING, "hello", false},
		{"keyword is case insensitive", "SeLeCt", lineage.ANSI, lineage.TOKEN_SELECT, "SeLeCt", false},
		{"plain identifier", "order_id", lineage.DuckDB, lineage.TOKEN_IDENT, "order_id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := lineage.Tokenize(tt.input, tt.dialect)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.wantType, tokens[0].Type)
			assert.Equal(t, tt.wantLit, tokens[0].Literal)
			assert.Equal(t, tt.wantQuoted, tokens[0].Quoted)
		})
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := lineage.Tokenize("SELECT\n  id", lineage.ANSI)
	require.Len(t, tokens, 3)
	assert.Equal(t, lineage.Position{Line: 1, Column: 1, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, 2, tokens[1].Pos.Line)
	assert.Equal(t, 3, tokens[1].Pos.Column)
}

func TestLexerErrors(t *testing.T) {
	l := lineage.NewLexer("SELECT 'unterminated", lineage.ANSI)
	for tok := l.NextToken(); tok.Type != lineage.TOKEN_EOF; tok = l.NextToken() {
	}
	require.Len(t, l.Errors(), 1)
	assert.Contains(t, l.Errors()[0].Error(), "unterminated string literal")

	l = lineage.NewLexer("SELECT `id`", lineage.Postgres)
	for tok := l.NextToken(); tok.Type != lineage.TOKEN_EOF; tok = l.NextToken() {
	}
	require.NotEmpty(t, l.Errors())
	assert.Contains(t, l.Errors()[0].Error(), "illegal character")
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "SELECT", lineage.TOKEN_SELECT.String())
	assert.Equal(t, "::", lineage.TOKEN_DCOLON.String())
	assert.Equal(t, "TOKEN(9999)", lineage.TokenType(9999).String())
}
