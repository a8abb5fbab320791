package lineage

import "strings"

// FROM clause grammar:
//
//	from_clause → table_ref { join_clause | , table_ref }
//	join_clause → [NATURAL] [INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS] JOIN
//	              table_ref [ON expr | USING (column_list)]
//	table_ref   → [LATERAL] ( statement ) [[AS] alias [(column_list)]]
//	            | name ( args ) [[AS] alias [(column_list)]] [WITH OFFSET [[AS] alias]]
//	            | qualified_name [[AS] alias]

// parseFromClause parses the table references following FROM.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{Source: p.parseTableRef()}

	for !p.failed() {
		if p.match(TOKEN_COMMA) {
			from.Joins = append(from.Joins, &Join{Type: JoinComma, Right: p.parseTableRef()})
			continue
		}
		if !p.isJoinStart() {
			break
		}
		from.Joins = append(from.Joins, p.parseJoin())
	}
	return from
}

func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case TOKEN_JOIN, TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_FULL, TOKEN_CROSS, TOKEN_NATURAL:
		return true
	}
	return false
}

func (p *Parser) parseJoin() *Join {
	join := &Join{Type: JoinInner, Natural: p.match(TOKEN_NATURAL)}

	switch {
	case p.match(TOKEN_INNER):
	case p.match(TOKEN_LEFT):
		join.Type = JoinLeft
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_RIGHT):
		join.Type = JoinRight
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_FULL):
		join.Type = JoinFull
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_CROSS):
		join.Type = JoinCross
	}
	p.expect(TOKEN_JOIN)

	join.Right = p.parseTableRef()

	switch {
	case p.match(TOKEN_ON):
		join.Condition = p.parseExpression()
	case p.match(TOKEN_USING):
		p.expect(TOKEN_LPAREN)
		join.Using = p.parseIdentList()
		p.expect(TOKEN_RPAREN)
	}
	return join
}

// parseTableRef parses a single table reference.
func (p *Parser) parseTableRef() TableRef {
	lateral := p.match(TOKEN_LATERAL)

	if p.check(TOKEN_LPAREN) {
		p.nextToken()
		if !p.check(TOKEN_SELECT) && !p.check(TOKEN_WITH) && !p.check(TOKEN_LPAREN) {
			p.addError("parenthesized joins are not supported")
			return nil
		}
		derived := &DerivedTable{Select: p.parseStatement(), Lateral: lateral}
		p.expect(TOKEN_RPAREN)
		derived.Alias = p.parseOptionalAlias()
		derived.Columns = p.parseOptionalColumnList()
		return derived
	}

	if p.isIdentLike(p.token) && p.checkPeek(TOKEN_LPAREN) {
		name := p.token.Literal
		p.nextToken()
		fn := &TableFunc{Call: p.parseFuncCall(name)}
		fn.Alias = p.parseOptionalAlias()
		fn.Columns = p.parseOptionalColumnList()
		if p.check(TOKEN_WITH) && p.checkPeek(TOKEN_OFFSET) {
			p.nextToken()
			p.nextToken()
			p.parseOptionalAlias()
		}
		return fn
	}

	parts, quoted := p.parseQualifiedName()
	table := &TableName{Quoted: quoted}
	switch n := len(parts); {
	case n >= 3:
		table.Catalog, table.Schema, table.Name = parts[n-3], parts[n-2], parts[n-1]
	case n == 2:
		table.Schema, table.Name = parts[0], parts[1]
	case n == 1:
		table.Name = parts[0]
	}
	table.Alias = p.parseOptionalAlias()
	return table
}

// parseQualifiedName parses name { . name }. Quoted parts containing dots are
// split for dialects that quote whole paths.
func (p *Parser) parseQualifiedName() ([]string, bool) {
	var parts []string
	quoted := false
	for !p.failed() {
		tok := p.token
		name, q := p.parseIdent(len(parts) > 0)
		quoted = q
		if q && p.dialect.SplitQuotedPaths && strings.Contains(name, ".") {
			parts = append(parts, strings.Split(name, ".")...)
		} else {
			parts = append(parts, name)
		}
		if tok.Type == TOKEN_EOF || !p.match(TOKEN_DOT) {
			break
		}
	}
	return parts, quoted
}

// parseOptionalAlias parses [AS] alias. Without AS only plain identifiers are
// accepted so that clause keywords are never taken as aliases.
func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		name, _ := p.parseIdent(true)
		return name
	}
	if p.check(TOKEN_IDENT) && !p.checkWord("minus") {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	return ""
}
