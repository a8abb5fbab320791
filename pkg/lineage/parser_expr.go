package lineage

import (
	"fmt"
	"strings"
)

// Expression parsing uses precedence climbing.
//
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precedenceAddition   = 5  (+, -, ||)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +)
//	precedencePostfix    = 8  (::, [], :, .)
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// typedLiterals are type names that may prefix a string literal: DATE '2024-01-01'.
var typedLiterals = map[string]bool{
	"date":       true,
	"time":       true,
	"timestamp":  true,
	"datetime":   true,
	"json":       true,
	"numeric":    true,
	"bignumeric": true,
	"decimal":    true,
}

func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precedenceOr)
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec == precedenceNone || prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}
	return left
}

func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parseExpressionWithPrecedence(precedenceNot)}
	case TOKEN_MINUS, TOKEN_PLUS:
		op := p.token.Type
		p.nextToken()
		return &UnaryExpr{Op: op, Expr: p.parseExpressionWithPrecedence(precedenceUnary)}
	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or precedenceNone.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return precedenceOr
	case TOKEN_AND:
		return precedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return precedenceComparison
	case TOKEN_NOT:
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
			return precedenceComparison
		}
		return precedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return precedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT:
		return precedenceMultiply
	case TOKEN_DCOLON, TOKEN_LBRACKET, TOKEN_COLON, TOKEN_DOT:
		return precedencePostfix
	default:
		return precedenceNone
	}
}

func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return p.parseNegatableInfix(left, true)
	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return p.parseNegatableInfix(left, false)
	case TOKEN_IS:
		return p.parseIsExpr(left)
	case TOKEN_DCOLON:
		p.nextToken()
		return &CastExpr{Expr: left, TypeName: p.parseTypeName()}
	case TOKEN_LBRACKET:
		p.nextToken()
		index := p.parseExpression()
		p.expect(TOKEN_RBRACKET)
		return &IndexExpr{Expr: left, Index: index}
	case TOKEN_COLON, TOKEN_DOT:
		p.nextToken()
		field, _ := p.parseIdent(true)
		return &FieldExpr{Expr: left, Field: field}
	}

	op := p.token.Type
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		return nil
	}
	return &BinaryExpr{Left: left, Op: op, Right: right}
}

// parseNegatableInfix parses [NOT] IN / BETWEEN / LIKE / ILIKE.
func (p *Parser) parseNegatableInfix(left Expr, not bool) Expr {
	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, not)
	case TOKEN_BETWEEN:
		p.nextToken()
		expr := &BetweenExpr{Expr: left, Not: not}
		expr.Low = p.parseExpressionWithPrecedence(precedenceAddition)
		p.expect(TOKEN_AND)
		expr.High = p.parseExpressionWithPrecedence(precedenceAddition)
		return expr
	case TOKEN_LIKE, TOKEN_ILIKE:
		op := p.token.Type
		p.nextToken()
		p.matchWord("any")
		expr := &LikeExpr{Expr: left, Not: not, Op: op}
		expr.Pattern = p.parseExpressionWithPrecedence(precedenceAddition)
		if p.matchWord("escape") {
			p.parseExpressionWithPrecedence(precedenceAddition)
		}
		return expr
	default:
		p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(p.token), "IN, BETWEEN or LIKE"))
		return nil
	}
}

func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	expr := &InExpr{Expr: left, Not: not}
	if !p.check(TOKEN_LPAREN) {
		// BigQuery IN UNNEST(array)
		expr.Values = []Expr{p.parsePrimary()}
		return expr
	}
	p.nextToken()
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		expr.Query = p.parseStatement()
	} else if !p.check(TOKEN_RPAREN) {
		expr.Values = p.parseExprList()
	}
	p.expect(TOKEN_RPAREN)
	return expr
}

func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS
	expr := &IsExpr{Expr: left, Not: p.match(TOKEN_NOT)}

	switch p.token.Type {
	case TOKEN_NULL:
		expr.Value = &Literal{Type: LiteralNull, Value: "NULL"}
		p.nextToken()
	case TOKEN_TRUE, TOKEN_FALSE:
		expr.Value = &Literal{Type: LiteralBool, Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
	case TOKEN_DISTINCT:
		p.nextToken()
		p.expect(TOKEN_FROM)
		expr.Value = p.parseExpressionWithPrecedence(precedenceAddition)
	default:
		if p.matchWord("unknown") {
			expr.Value = &Literal{Type: LiteralNull, Value: "UNKNOWN"}
			break
		}
		p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(p.token), "NULL, TRUE, FALSE or DISTINCT FROM"))
		return nil
	}
	return expr
}

// parsePrimary parses literals, column references, function calls and
// parenthesized expressions.
func (p *Parser) parsePrimary() Expr {
	tok := p.token

	switch tok.Type {
	case TOKEN_NUMBER:
		p.nextToken()
		return &Literal{Type: LiteralNumber, Value: tok.Literal}
	case TOKEN_STRING:
		p.nextToken()
		return &Literal{Type: LiteralString, Value: tok.Literal}
	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case TOKEN_TRUE, TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: strings.ToUpper(tok.Literal)}
	case TOKEN_STAR:
		p.nextToken()
		return &StarExpr{}
	case TOKEN_LPAREN:
		return p.parseParenExpr()
	case TOKEN_CASE:
		return p.parseCaseExpr()
	case TOKEN_CAST:
		p.nextToken()
		return p.parseCastArgs()
	case TOKEN_EXISTS:
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		expr := &ExistsExpr{Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return expr
	case TOKEN_LBRACKET:
		p.nextToken()
		return p.parseArrayItems()
	case TOKEN_LEFT, TOKEN_RIGHT, TOKEN_ALL:
		if p.checkPeek(TOKEN_LPAREN) {
			p.nextToken()
			return p.parseFuncCall(tok.Literal)
		}
	}

	if p.isIdentLike(tok) {
		return p.parseIdentExpr()
	}

	p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(tok), "expression"))
	return nil
}

func (p *Parser) parseParenExpr() Expr {
	p.nextToken() // consume (
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		expr := &SubqueryExpr{Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return expr
	}

	first := p.parseExpression()
	if !p.check(TOKEN_COMMA) {
		p.expect(TOKEN_RPAREN)
		return &ParenExpr{Expr: first}
	}

	tuple := &TupleExpr{Items: []Expr{first}}
	for p.match(TOKEN_COMMA) && !p.failed() {
		tuple.Items = append(tuple.Items, p.parseExpression())
	}
	p.expect(TOKEN_RPAREN)
	return tuple
}

// parseIdentExpr parses a column reference, qualified star, function call,
// typed literal or interval starting at an identifier.
func (p *Parser) parseIdentExpr() Expr {
	tok := p.token
	lower := strings.ToLower(tok.Literal)

	if !tok.Quoted {
		switch {
		case lower == "interval" && (p.peek.Type == TOKEN_STRING || p.peek.Type == TOKEN_NUMBER):
			p.nextToken()
			expr := &IntervalExpr{Value: p.parsePrimary()}
			if p.check(TOKEN_IDENT) {
				expr.Unit = strings.ToUpper(p.token.Literal)
				p.nextToken()
			}
			return expr
		case typedLiterals[lower] && p.peek.Type == TOKEN_STRING:
			p.nextToken()
			value := p.token.Literal
			p.nextToken()
			return &CastExpr{Expr: &Literal{Type: LiteralString, Value: value}, TypeName: strings.ToUpper(lower)}
		case lower == "array" && p.peek.Type == TOKEN_LBRACKET:
			p.nextToken()
			p.nextToken()
			return p.parseArrayItems()
		case (lower == "try_cast" || lower == "safe_cast") && p.peek.Type == TOKEN_LPAREN:
			p.nextToken()
			return p.parseCastArgs()
		}
	}

	if p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		return p.parseFuncCall(tok.Literal)
	}

	parts := []string{tok.Literal}
	quoted := tok.Quoted
	p.nextToken()

	for p.check(TOKEN_DOT) && !p.failed() {
		if p.checkPeek(TOKEN_STAR) {
			p.nextToken()
			p.nextToken()
			return &StarExpr{Table: parts[len(parts)-1]}
		}
		if p.peek.Type != TOKEN_IDENT && p.peek.Type < TOKEN_ALL {
			break
		}
		p.nextToken()
		parts = append(parts, p.token.Literal)
		quoted = p.token.Quoted
		p.nextToken()
		if p.check(TOKEN_LPAREN) {
			// SAFE.PARSE_DATE(...), schema.udf(...)
			return p.parseFuncCall(strings.Join(parts, "."))
		}
	}

	ref := &ColumnRef{Column: parts[len(parts)-1], Quoted: quoted}
	switch n := len(parts); {
	case n >= 3:
		ref.Schema, ref.Table = parts[n-3], parts[n-2]
	case n == 2:
		ref.Table = parts[0]
	}
	return ref
}

// parseFuncCall parses the argument list and trailing clauses of a call whose
// name has already been consumed. The current token is "(".
func (p *Parser) parseFuncCall(name string) *FuncCall {
	call := &FuncCall{Name: name}
	if !p.expect(TOKEN_LPAREN) {
		return call
	}

	switch {
	case p.check(TOKEN_RPAREN):
	case p.check(TOKEN_STAR) && p.checkPeek(TOKEN_RPAREN):
		call.Star = true
		p.nextToken()
	default:
		call.Distinct = p.match(TOKEN_DISTINCT)
		p.parseFuncArgs(call)
	}
	p.expect(TOKEN_RPAREN)

	if (p.checkWord("ignore") || p.checkWord("respect")) && p.checkPeek(TOKEN_NULLS) {
		p.nextToken()
		p.nextToken()
	}
	if p.check(TOKEN_WITHIN) {
		p.nextToken()
		p.expect(TOKEN_GROUP)
		p.expect(TOKEN_LPAREN)
		p.expect(TOKEN_ORDER)
		p.expect(TOKEN_BY)
		call.WithinGroup = p.parseOrderByList()
		p.expect(TOKEN_RPAREN)
	}
	if p.check(TOKEN_FILTER) && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(TOKEN_WHERE)
		call.Filter = p.parseExpression()
		p.expect(TOKEN_RPAREN)
	}
	if p.match(TOKEN_OVER) {
		call.Window = p.parseWindowSpec()
	}
	return call
}

// parseFuncArgs parses call arguments, including the keyword separated forms
// EXTRACT(part FROM x), SUBSTRING(x FROM 1 FOR 2), TRIM(BOTH ' ' FROM x),
// ARRAY_AGG(x ORDER BY y LIMIT 1) and x AS type inside cast-like calls.
func (p *Parser) parseFuncArgs(call *FuncCall) {
	for !p.failed() {
		if p.checkWord("both") || p.checkWord("leading") || p.checkWord("trailing") {
			p.nextToken()
			if p.match(TOKEN_FROM) {
				continue
			}
		}

		var arg Expr
		if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
			arg = &SubqueryExpr{Select: p.parseStatement()}
		} else {
			arg = p.parseExpression()
		}
		if p.match(TOKEN_AS) {
			arg = &CastExpr{Expr: arg, TypeName: p.parseTypeName()}
		}
		call.Args = append(call.Args, arg)

		if (p.checkWord("ignore") || p.checkWord("respect")) && p.checkPeek(TOKEN_NULLS) {
			p.nextToken()
			p.nextToken()
		}
		if p.check(TOKEN_ORDER) {
			p.nextToken()
			p.expect(TOKEN_BY)
			call.WithinGroup = append(call.WithinGroup, p.parseOrderByList()...)
		}
		if p.match(TOKEN_LIMIT) {
			p.parseExpression()
		}

		if p.match(TOKEN_COMMA) || p.match(TOKEN_FROM) || p.matchWord("for") {
			continue
		}
		break
	}
	datePartArgs(call)
}

// datePartFuncs take a bare date part such as MONTH as one of their arguments.
var datePartFuncs = map[string]bool{
	"extract":         true,
	"date_trunc":      true,
	"datetime_trunc":  true,
	"timestamp_trunc": true,
	"time_trunc":      true,
	"date_diff":       true,
	"datetime_diff":   true,
	"timestamp_diff":  true,
	"time_diff":       true,
	"datediff":        true,
	"dateadd":         true,
	"date_add":        true,
	"timestampdiff":   true,
	"timestampadd":    true,
	"date_part":       true,
	"datepart":        true,
	"last_day":        true,
}

var dateParts = map[string]bool{
	"microsecond": true, "millisecond": true, "second": true, "minute": true,
	"hour": true, "day": true, "dayofweek": true, "dayofyear": true, "dow": true,
	"doy": true, "week": true, "isoweek": true, "month": true, "quarter": true,
	"year": true, "isoyear": true, "epoch": true, "date": true, "time": true,
	"days": true, "months": true, "years": true, "hours": true, "minutes": true,
	"seconds": true, "weeks": true,
}

// datePartArgs rewrites bare date part arguments into string literals so they
// are not mistaken for column references.
func datePartArgs(call *FuncCall) {
	if !datePartFuncs[strings.ToLower(call.Name)] {
		return
	}
	for i, arg := range call.Args {
		ref, ok := arg.(*ColumnRef)
		if !ok || ref.Table != "" || ref.Quoted || !dateParts[strings.ToLower(ref.Column)] {
			continue
		}
		call.Args[i] = &Literal{Type: LiteralString, Value: strings.ToUpper(ref.Column)}
	}
}

// parseCastArgs parses (expr AS type) after CAST, TRY_CAST or SAFE_CAST.
func (p *Parser) parseCastArgs() Expr {
	p.expect(TOKEN_LPAREN)
	expr := &CastExpr{Expr: p.parseExpression()}
	if p.expect(TOKEN_AS) {
		expr.TypeName = p.parseTypeName()
	}
	if p.matchWord("format") {
		p.parseExpression()
	}
	p.expect(TOKEN_RPAREN)
	return expr
}

// parseTypeName parses a type such as INT64, VARCHAR(20), NUMERIC(10, 2),
// DOUBLE PRECISION, TIMESTAMP WITH TIME ZONE, ARRAY<STRUCT<a INT64>> or INT[].
func (p *Parser) parseTypeName() string {
	name, _ := p.parseIdent(true)
	var b strings.Builder
	b.WriteString(strings.ToUpper(name))

	for !p.failed() {
		switch {
		case p.checkWord("precision"), p.checkWord("varying"), p.checkWord("unsigned"):
			b.WriteString(" " + strings.ToUpper(p.token.Literal))
			p.nextToken()
			continue
		case (p.check(TOKEN_WITH) || p.checkWord("without")) && p.peek.Type == TOKEN_IDENT &&
			(strings.EqualFold(p.peek.Literal, "time") || strings.EqualFold(p.peek.Literal, "local")):
			for p.check(TOKEN_WITH) || p.check(TOKEN_IDENT) {
				b.WriteString(" " + strings.ToUpper(p.token.Literal))
				p.nextToken()
				if strings.EqualFold(b.String()[b.Len()-4:], "ZONE") {
					break
				}
			}
			continue
		}
		break
	}

	if p.check(TOKEN_LPAREN) {
		b.WriteString("(")
		p.nextToken()
		for !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF) && !p.failed() {
			if p.check(TOKEN_COMMA) {
				b.WriteString(", ")
			} else {
				b.WriteString(p.token.Literal)
			}
			p.nextToken()
		}
		p.expect(TOKEN_RPAREN)
		b.WriteString(")")
	}

	if p.check(TOKEN_LT) {
		depth := 0
		for !p.check(TOKEN_EOF) && !p.failed() {
			switch p.token.Type {
			case TOKEN_LT:
				depth++
			case TOKEN_GT:
				depth--
			}
			lit := p.token.Literal
			if p.check(TOKEN_COMMA) {
				lit = ", "
			} else if p.check(TOKEN_IDENT) && p.peek.Type != TOKEN_LT && p.peek.Type != TOKEN_GT && p.peek.Type != TOKEN_COMMA {
				lit += " "
			}
			b.WriteString(strings.ToUpper(lit))
			p.nextToken()
			if depth == 0 {
				break
			}
		}
	}

	for p.check(TOKEN_LBRACKET) && p.checkPeek(TOKEN_RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}
	return b.String()
}

func (p *Parser) parseArrayItems() Expr {
	arr := &ArrayExpr{}
	for !p.check(TOKEN_RBRACKET) && !p.failed() {
		arr.Items = append(arr.Items, p.parseExpression())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RBRACKET)
	return arr
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() Expr {
	p.nextToken() // consume CASE
	expr := &CaseExpr{}
	if !p.check(TOKEN_WHEN) {
		expr.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) && !p.failed() {
		when := WhenClause{Condition: p.parseExpression()}
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		expr.Whens = append(expr.Whens, when)
	}
	if len(expr.Whens) == 0 {
		p.addError(fmt.Sprintf(errUnexpectedToken, p.describe(p.token), TOKEN_WHEN))
		return nil
	}
	if p.match(TOKEN_ELSE) {
		expr.Else = p.parseExpression()
	}
	p.expect(TOKEN_END)
	return expr
}

// parseWindowSpec parses the target of OVER: a window name or (spec).
func (p *Parser) parseWindowSpec() *WindowSpec {
	if p.check(TOKEN_IDENT) {
		spec := &WindowSpec{Name: p.token.Literal}
		p.nextToken()
		return spec
	}
	p.expect(TOKEN_LPAREN)
	spec := p.parseWindowSpecBody()
	p.expect(TOKEN_RPAREN)
	return spec
}

// parseWindowSpecBody parses [name] [PARTITION BY ...] [ORDER BY ...] [frame].
func (p *Parser) parseWindowSpecBody() *WindowSpec {
	spec := &WindowSpec{}
	if p.check(TOKEN_IDENT) && !p.checkWord("rows") && !p.checkWord("range") && !p.checkWord("groups") {
		spec.Name = p.token.Literal
		p.nextToken()
	}
	if p.check(TOKEN_PARTITION) {
		p.nextToken()
		p.expect(TOKEN_BY)
		spec.PartitionBy = p.parseExprList()
	}
	if p.check(TOKEN_ORDER) {
		p.nextToken()
		p.expect(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}
	// Frame clauses (ROWS BETWEEN ... AND ...) never reference columns.
	depth := 0
	for !p.check(TOKEN_EOF) && !p.failed() {
		if p.check(TOKEN_RPAREN) {
			if depth == 0 {
				break
			}
			depth--
		} else if p.check(TOKEN_LPAREN) {
			depth++
		}
		p.nextToken()
	}
	return spec
}

func (p *Parser) parseExprList() []Expr {
	var exprs []Expr
	for !p.failed() {
		exprs = append(exprs, p.parseExpression())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}

func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for !p.failed() {
		item := OrderByItem{Expr: p.parseExpression()}
		if p.match(TOKEN_DESC) {
			item.Desc = true
		} else {
			p.match(TOKEN_ASC)
		}
		if p.match(TOKEN_NULLS) {
			// FIRST / LAST
			p.nextToken()
		}
		items = append(items, item)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}
