// Package lineage parses compiled SQL models and traces where each output
// column comes from.
//
// # Usage
//
//	node, err := lineage.Lineage("customer_id", sql, schema, lineage.BigQuery)
//	if err != nil {
//	    // *ParseError for invalid SQL, ErrColumnNotFound for unknown columns
//	}
//
// The returned Node is the root of a lineage graph: each node names a column
// in some scope, carries the expression that produced it and lists the nodes
// it was derived from. Leaves that reach a physical table carry the
// *TableName as their expression.
//
// # Grammar Overview
//
// The parser is a recursive descent parser for the SELECT dialect shared by
// the warehouses dbt targets:
//
//	statement     → [WITH [RECURSIVE] cte_list] select_body [;]
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	              | ( statement ) [set_op select_body]
//	select_core   → SELECT [DISTINCT [ON (expr_list)]] select_list
//	                [FROM from_clause] [WHERE expr] [GROUP BY expr_list]
//	                [HAVING expr] [QUALIFY expr] [WINDOW window_list]
//	                [ORDER BY order_list] [LIMIT expr [OFFSET expr]]
//
// See parser_from.go and parser_expr.go for the table reference and
// expression grammars.
package lineage

import (
	"fmt"
	"strings"
)

// maxNestingDepth bounds the recursion of the parser.
const maxNestingDepth = 200

// Parser parses SQL into an AST.
type Parser struct {
	lexer   *Lexer
	dialect *Dialect
	token   Token // current token
	peek    Token // lookahead token
	peek2   Token // second lookahead token
	errors  []error
	depth   int
}

// NewParser creates a new parser for the given SQL input. A nil dialect
// means ANSI.
func NewParser(sql string, d *Dialect) *Parser {
	if d == nil {
		d = ANSI
	}
	p := &Parser{
		lexer:   NewLexer(sql, d),
		dialect: d,
	}
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single SELECT statement.
func Parse(sql string, d *Dialect) (*SelectStmt, error) {
	p := NewParser(sql, d)
	stmt := p.parseStatement()
	for p.check(TOKEN_SEMICOLON) {
		p.nextToken()
	}
	if !p.failed() && !p.check(TOKEN_EOF) {
		p.addError(fmt.Sprintf(errTrailingInput, p.describe(p.token)))
	}
	if errs := p.lexer.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// checkWord reports whether the current token is the unquoted identifier word.
func (p *Parser) checkWord(word string) bool {
	return p.token.Type == TOKEN_IDENT && !p.token.Quoted && strings.EqualFold(p.token.Literal, word)
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(p.token), t))
	return false
}

// failed reports whether an error has been recorded. Loops stop on failure so
// the parser always terminates.
func (p *Parser) failed() bool {
	return len(p.errors) > 0 || len(p.lexer.errors) > 0
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{Pos: p.token.Pos, Message: msg})
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_IDENT, TOKEN_NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case TOKEN_STRING:
		return "string literal"
	default:
		return tok.Type.String()
	}
}

// enter increments the nesting depth and reports whether parsing may continue.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > maxNestingDepth {
		if !p.failed() {
			p.addError(fmt.Sprintf(errNestingTooDeep, maxNestingDepth))
		}
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

// ---------- Identifier Helpers ----------

// nonReserved lists keywords that may appear as bare column or function names.
var nonReserved = map[TokenType]bool{
	TOKEN_FILTER:    true,
	TOKEN_NULLS:     true,
	TOKEN_WITHIN:    true,
	TOKEN_PARTITION: true,
	TOKEN_RECURSIVE: true,
	TOKEN_OFFSET:    true,
	TOKEN_WINDOW:    true,
	TOKEN_ASC:       true,
	TOKEN_DESC:      true,
}

func (p *Parser) isIdentLike(tok Token) bool {
	return tok.Type == TOKEN_IDENT || nonReserved[tok.Type]
}

// parseIdent consumes an identifier. Keywords are accepted when anyKeyword is
// true, which is the case after AS and after a dot.
func (p *Parser) parseIdent(anyKeyword bool) (string, bool) {
	tok := p.token
	if p.isIdentLike(tok) || (anyKeyword && tok.Type >= TOKEN_ALL) {
		p.nextToken()
		return tok.Literal, tok.Quoted
	}
	p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(tok), "identifier"))
	return "", false
}

func (p *Parser) parseIdentList() []string {
	var names []string
	for !p.failed() {
		name, _ := p.parseIdent(true)
		names = append(names, name)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return names
}

// parseOptionalColumnList parses "(a, b)" after an alias.
func (p *Parser) parseOptionalColumnList() []string {
	if !p.check(TOKEN_LPAREN) || !p.isIdentLike(p.peek) {
		return nil
	}
	p.nextToken()
	cols := p.parseIdentList()
	p.expect(TOKEN_RPAREN)
	return cols
}

// skipBalanced consumes tokens up to and including the parenthesis that
// closes the one just consumed.
func (p *Parser) skipBalanced() {
	depth := 1
	for depth > 0 && !p.check(TOKEN_EOF) {
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		}
		p.nextToken()
	}
	if depth > 0 {
		p.addError(fmt.Sprintf(errUnexpectedToken, "end of input", TOKEN_RPAREN))
	}
}

// ---------- Statements ----------

// parseStatement parses [WITH ...] select_body.
func (p *Parser) parseStatement() *SelectStmt {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	stmt := &SelectStmt{}
	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWith()
	}
	stmt.Body = p.parseSelectBody()
	return stmt
}

// parseWith parses WITH [RECURSIVE] name [(cols)] AS (statement), ...
func (p *Parser) parseWith() *WithClause {
	p.nextToken() // consume WITH
	with := &WithClause{Recursive: p.match(TOKEN_RECURSIVE)}

	for !p.failed() {
		cte := &CTE{}
		cte.Name, _ = p.parseIdent(false)
		cte.Columns = p.parseOptionalColumnList()
		p.expect(TOKEN_AS)
		if p.check(TOKEN_NOT) && p.peek.Type == TOKEN_IDENT {
			p.nextToken()
		}
		p.matchWord("materialized")
		if !p.expect(TOKEN_LPAREN) {
			break
		}
		cte.Select = p.parseStatement()
		p.expect(TOKEN_RPAREN)
		with.CTEs = append(with.CTEs, cte)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return with
}

// parseSelectBody parses a select core followed by optional set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{}

	if p.check(TOKEN_LPAREN) {
		// (statement) is read as SELECT * FROM (statement).
		p.nextToken()
		inner := p.parseStatement()
		p.expect(TOKEN_RPAREN)
		body.Left = &SelectCore{
			Columns: []SelectItem{{Star: true}},
			From:    &FromClause{Source: &DerivedTable{Select: inner}},
		}
		p.parseTrailingClauses(body.Left)
	} else {
		body.Left = p.parseSelectCore()
	}

	if p.failed() {
		return body
	}

	switch p.token.Type {
	case TOKEN_UNION:
		body.Op = SetOpUnion
	case TOKEN_INTERSECT:
		body.Op = SetOpIntersect
	case TOKEN_EXCEPT:
		body.Op = SetOpExcept
	default:
		if p.checkWord("minus") {
			body.Op = SetOpExcept
		} else {
			return body
		}
	}
	p.nextToken()
	body.All = p.match(TOKEN_ALL)
	p.match(TOKEN_DISTINCT)
	if p.check(TOKEN_BY) {
		// DuckDB UNION BY NAME
		p.nextToken()
		p.matchWord("name")
	}
	body.Right = p.parseSelectBody()
	return body
}

// parseSelectCore parses a single SELECT ... block.
func (p *Parser) parseSelectCore() *SelectCore {
	core := &SelectCore{}
	if !p.expect(TOKEN_SELECT) {
		return core
	}

	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
		if p.check(TOKEN_ON) {
			p.nextToken()
			p.expect(TOKEN_LPAREN)
			p.parseExprList()
			p.expect(TOKEN_RPAREN)
		}
	}
	p.match(TOKEN_ALL)
	if p.checkWord("top") && p.checkPeek(TOKEN_NUMBER) {
		p.nextToken()
		p.nextToken()
	}

	core.Columns = p.parseSelectList()

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}
	p.parseTrailingClauses(core)
	return core
}

// parseTrailingClauses parses WHERE through OFFSET in any order.
func (p *Parser) parseTrailingClauses(core *SelectCore) {
	for !p.failed() {
		switch {
		case p.match(TOKEN_WHERE):
			core.Where = p.parseExpression()
		case p.check(TOKEN_GROUP):
			p.nextToken()
			p.expect(TOKEN_BY)
			if p.match(TOKEN_ALL) {
				continue
			}
			core.GroupBy = p.parseExprList()
		case p.match(TOKEN_HAVING):
			core.Having = p.parseExpression()
		case p.match(TOKEN_QUALIFY):
			core.Qualify = p.parseExpression()
		case p.match(TOKEN_WINDOW):
			p.parseWindowClause()
		case p.check(TOKEN_ORDER):
			p.nextToken()
			p.expect(TOKEN_BY)
			core.OrderBy = p.parseOrderByList()
		case p.match(TOKEN_LIMIT):
			core.Limit = p.parseExpression()
			if p.match(TOKEN_COMMA) {
				core.Offset = core.Limit
				core.Limit = p.parseExpression()
			}
		case p.match(TOKEN_OFFSET):
			core.Offset = p.parseExpression()
			if p.checkWord("rows") || p.checkWord("row") {
				p.nextToken()
			}
		default:
			return
		}
	}
}

// parseWindowClause parses WINDOW w AS (spec), ... and discards it; named
// windows only group columns that already appear in the select list.
func (p *Parser) parseWindowClause() {
	for !p.failed() {
		p.parseIdent(false)
		p.expect(TOKEN_AS)
		p.expect(TOKEN_LPAREN)
		p.parseWindowSpecBody()
		p.expect(TOKEN_RPAREN)
		if !p.match(TOKEN_COMMA) {
			return
		}
	}
}

// parseSelectList parses the projection list.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	for !p.failed() {
		items = append(items, p.parseSelectItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
		// BigQuery allows a trailing comma before FROM.
		if p.check(TOKEN_FROM) {
			break
		}
	}
	return items
}

func (p *Parser) parseSelectItem() SelectItem {
	var item SelectItem

	if p.match(TOKEN_STAR) {
		item.Star = true
		p.parseStarModifiers(&item)
		return item
	}

	item.Expr = p.parseExpression()
	if star, ok := item.Expr.(*StarExpr); ok {
		item.Expr = nil
		if star.Table == "" {
			item.Star = true
		} else {
			item.TableStar = star.Table
		}
		p.parseStarModifiers(&item)
		return item
	}

	if p.match(TOKEN_AS) {
		if p.check(TOKEN_STRING) {
			item.Alias = p.token.Literal
			item.Quoted = true
			p.nextToken()
		} else {
			item.Alias, item.Quoted = p.parseIdent(true)
		}
	} else if p.check(TOKEN_IDENT) {
		item.Alias, item.Quoted = p.token.Literal, p.token.Quoted
		p.nextToken()
	}
	return item
}

// parseStarModifiers parses * EXCEPT (a, b), * EXCLUDE a and * REPLACE (...).
func (p *Parser) parseStarModifiers(item *SelectItem) {
	for !p.failed() {
		switch {
		case p.check(TOKEN_EXCEPT) && p.checkPeek(TOKEN_LPAREN), p.checkWord("exclude"):
			p.nextToken()
			if p.match(TOKEN_LPAREN) {
				item.Except = append(item.Except, p.parseIdentList()...)
				p.expect(TOKEN_RPAREN)
			} else {
				name, _ := p.parseIdent(false)
				item.Except = append(item.Except, name)
			}
		case (p.checkWord("replace") || p.checkWord("rename")) && p.checkPeek(TOKEN_LPAREN):
			p.nextToken()
			p.nextToken()
			p.skipBalanced()
		default:
			return
		}
	}
}
