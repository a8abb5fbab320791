package lineage

import (
	"fmt"
	"strings"
)

// Node is one step in the lineage of a column. Name is dot qualified
// ("alias.column") except for the root, which is the requested column.
// Downstream lists the nodes this one was derived from. Nodes are shared:
// a CTE column or table column reached twice yields the same *Node, and
// recursive CTEs produce cycles.
type Node struct {
	Name       string
	Expression Expr
	Source     *SelectStmt
	Downstream []*Node
	// Derived marks output columns of the query, a CTE or a derived table.
	// The qualifier in Name of such a node is a query alias, never a table.
	Derived bool
}

// Walk calls fn for n and every node reachable from it, visiting each node
// once. Children of a node are skipped when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	visited := make(map[*Node]bool)
	var walk func(*Node)
	walk = func(node *Node) {
		if node == nil || visited[node] {
			return
		}
		visited[node] = true
		if !fn(node) {
			return
		}
		for _, child := range node.Downstream {
			walk(child)
		}
	}
	walk(n)
}

// Lineage parses sql and returns the lineage graph of the output column
// identified by column. The identifier follows the quoting rules of the
// dialect: `id`, "ID" and ID may name different columns.
func Lineage(column, sql string, schema Schema, d *Dialect) (*Node, error) {
	if d == nil {
		d = ANSI
	}
	stmt, err := Parse(sql, d)
	if err != nil {
		return nil, err
	}
	return LineageOf(column, stmt, schema, d)
}

// LineageOf is Lineage over an already parsed statement. The statement is
// not modified, so it may be shared across calls.
func LineageOf(column string, stmt *SelectStmt, schema Schema, d *Dialect) (*Node, error) {
	if d == nil {
		d = ANSI
	}
	name, quoted, err := parseColumnIdentifier(column, d)
	if err != nil {
		return nil, err
	}

	b := newBuilder(schema, d)
	node := b.output(stmt, nil, nil, d.Normalize(name, quoted), name)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	return node, nil
}

// parseColumnIdentifier reads a possibly qualified, possibly quoted column
// identifier and returns its last part.
func parseColumnIdentifier(column string, d *Dialect) (string, bool, error) {
	l := NewLexer(strings.TrimSpace(column), d)
	var (
		name   string
		quoted bool
	)
	for {
		tok := l.NextToken()
		if errs := l.Errors(); len(errs) > 0 {
			return "", false, errs[0]
		}
		if tok.Type != TOKEN_IDENT && tok.Type < TOKEN_ALL {
			return "", false, &ParseError{Pos: tok.Pos, Message: fmt.Sprintf(errUnexpectedToken, tok.Type, "column identifier")}
		}
		name, quoted = tok.Literal, tok.Quoted

		next := l.NextToken()
		if next.Type == TOKEN_EOF {
			return name, quoted, nil
		}
		if next.Type != TOKEN_DOT {
			return "", false, &ParseError{Pos: next.Pos, Message: fmt.Sprintf(errTrailingInput, next.Type)}
		}
	}
}

// OutputColumns returns the names of the final projection of stmt as written.
// Star items are reported as "*" or "t.*"; unnamed expressions as "".
func OutputColumns(stmt *SelectStmt) []string {
	if stmt == nil || stmt.Body == nil || stmt.Body.Left == nil {
		return nil
	}
	items := stmt.Body.Left.Columns
	names := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Star:
			names = append(names, "*")
		case item.TableStar != "":
			names = append(names, item.TableStar+".*")
		default:
			name, _ := itemName(item)
			names = append(names, name)
		}
	}
	return names
}

// itemName returns the output name of a non-star select item.
func itemName(item SelectItem) (string, bool) {
	if item.Alias != "" {
		return item.Alias, item.Quoted
	}
	return exprName(item.Expr)
}

func exprName(e Expr) (string, bool) {
	switch x := e.(type) {
	case *ColumnRef:
		return x.Column, x.Quoted
	case *CastExpr:
		return exprName(x.Expr)
	case *ParenExpr:
		return exprName(x.Expr)
	case *FieldExpr:
		return x.Field, false
	}
	return "", false
}

// ---------- Scopes ----------

// cteEnv is an immutable chain of visible CTEs.
type cteEnv struct {
	cte    *CTE
	parent *cteEnv
}

func (e *cteEnv) lookup(name string) *CTE {
	for env := e; env != nil; env = env.parent {
		if strings.EqualFold(env.cte.Name, name) {
			return env.cte
		}
	}
	return nil
}

// source is one relation visible in a SELECT core.
type source struct {
	alias   string
	table   *TableName
	cte     *CTE
	derived *DerivedTable
	fn      *TableFunc
	columns []string // explicit column aliases: t(a, b)
	env     *cteEnv  // environment the relation is evaluated in
}

func (s *source) label() string {
	return s.alias
}

func (s *source) stmt() *SelectStmt {
	switch {
	case s.cte != nil:
		return s.cte.Select
	case s.derived != nil:
		return s.derived.Select
	}
	return nil
}

type scope struct {
	stmt    *SelectStmt
	core    *SelectCore
	env     *cteEnv
	sources []*source
	parent  *scope
}

func (b *builder) newScope(stmt *SelectStmt, core *SelectCore, env *cteEnv, parent *scope) *scope {
	sc := &scope{stmt: stmt, core: core, env: env, parent: parent}
	if core.From == nil {
		return sc
	}
	b.addSource(sc, core.From.Source)
	for _, join := range core.From.Joins {
		b.addSource(sc, join.Right)
	}
	return sc
}

func (b *builder) addSource(sc *scope, ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		if t.Schema == "" && t.Catalog == "" {
			if cte := sc.env.lookup(t.Name); cte != nil {
				sc.sources = append(sc.sources, &source{alias: t.Ref(), cte: cte, columns: cte.Columns, env: b.cteEnvs[cte]})
				return
			}
		}
		sc.sources = append(sc.sources, &source{alias: t.Ref(), table: t})
	case *DerivedTable:
		sc.sources = append(sc.sources, &source{alias: t.Alias, derived: t, columns: t.Columns, env: sc.env})
	case *TableFunc:
		alias := t.Alias
		if alias == "" {
			alias = t.Call.Name
		}
		sc.sources = append(sc.sources, &source{alias: alias, fn: t, columns: t.Columns})
	}
}

func (sc *scope) byLabel(name string) *source {
	for _, src := range sc.sources {
		if strings.EqualFold(src.label(), name) {
			return src
		}
	}
	for _, src := range sc.sources {
		if src.table != nil && strings.EqualFold(src.table.Name, name) {
			return src
		}
	}
	return nil
}

// ---------- Builder ----------

type outputKey struct {
	stmt   *SelectStmt
	column string
}

type leafKey struct {
	table  *TableName
	column string
}

type funcKey struct {
	fn     *TableFunc
	column string
}

type builder struct {
	schema   Schema
	dialect  *Dialect
	outputs  map[outputKey]*Node
	leaves   map[leafKey]*Node
	funcs    map[funcKey]*Node
	envs     map[*SelectStmt]*cteEnv
	cteEnvs  map[*CTE]*cteEnv
	produced map[outputKey]bool
	depth    int
}

func newBuilder(schema Schema, d *Dialect) *builder {
	return &builder{
		schema:   schema,
		dialect:  d,
		outputs:  make(map[outputKey]*Node),
		leaves:   make(map[leafKey]*Node),
		funcs:    make(map[funcKey]*Node),
		envs:     make(map[*SelectStmt]*cteEnv),
		cteEnvs:  make(map[*CTE]*cteEnv),
		produced: make(map[outputKey]bool),
	}
}

func (b *builder) enter() bool {
	b.depth++
	return b.depth <= maxNestingDepth
}

func (b *builder) leave() {
	b.depth--
}

func (b *builder) normalize(name string, quoted bool) string {
	return b.dialect.Normalize(name, quoted)
}

// bind returns the CTE environment visible to the body of stmt and records
// the environment each of its CTEs is evaluated in.
func (b *builder) bind(stmt *SelectStmt, outer *cteEnv) *cteEnv {
	if env, ok := b.envs[stmt]; ok {
		return env
	}
	env := outer
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			self := &cteEnv{cte: cte, parent: env}
			if stmt.With.Recursive {
				b.cteEnvs[cte] = self
			} else {
				b.cteEnvs[cte] = env
			}
			env = self
		}
	}
	b.envs[stmt] = env
	return env
}

// output returns the node of the output column named column (normalized) of
// stmt, or nil when stmt has no such column.
func (b *builder) output(stmt *SelectStmt, env *cteEnv, outer *scope, column, label string) *Node {
	if stmt == nil || stmt.Body == nil || stmt.Body.Left == nil {
		return nil
	}
	key := outputKey{stmt: stmt, column: column}
	if node, ok := b.outputs[key]; ok {
		return node
	}
	env = b.bind(stmt, env)
	first := b.newScope(stmt, stmt.Body.Left, env, outer)
	idx := b.findItem(first, column)
	if idx < 0 {
		return nil
	}
	return b.build(stmt, env, outer, key, idx, column, label)
}

// outputAt returns the node of the output column at position idx.
func (b *builder) outputAt(stmt *SelectStmt, env *cteEnv, outer *scope, idx int, label string) *Node {
	if stmt == nil || stmt.Body == nil || stmt.Body.Left == nil || idx >= len(stmt.Body.Left.Columns) {
		return nil
	}
	key := outputKey{stmt: stmt, column: fmt.Sprintf("#%d", idx)}
	if node, ok := b.outputs[key]; ok {
		return node
	}
	column := ""
	if name, quoted := itemName(stmt.Body.Left.Columns[idx]); name != "" {
		column = b.normalize(name, quoted)
	}
	return b.build(stmt, b.bind(stmt, env), outer, key, idx, column, label)
}

func (b *builder) build(stmt *SelectStmt, env *cteEnv, outer *scope, key outputKey, idx int, column, label string) *Node {
	node := &Node{Name: label, Source: stmt, Derived: true}
	b.outputs[key] = node
	if !b.enter() {
		b.leave()
		return node
	}
	defer b.leave()

	for i, core := range stmt.Body.Cores() {
		if idx >= len(core.Columns) {
			continue
		}
		sc := b.newScope(stmt, core, env, outer)
		item := core.Columns[idx]
		if i == 0 {
			node.Expression = item.Expr
			if item.Expr == nil {
				node.Expression = &StarExpr{Table: item.TableStar}
			}
		}
		node.Downstream = appendNodes(node.Downstream, b.itemNodes(sc, item, column)...)
	}
	return node
}

// findItem returns the index of the select item producing column, or -1.
func (b *builder) findItem(sc *scope, column string) int {
	for i, item := range sc.core.Columns {
		if item.Star || item.TableStar != "" {
			continue
		}
		if name, quoted := itemName(item); name != "" && b.normalize(name, quoted) == column {
			return i
		}
	}
	for i, item := range sc.core.Columns {
		if !item.Star && item.TableStar == "" {
			continue
		}
		if b.excluded(item, column) {
			continue
		}
		if src := b.starSource(sc, item, column); src != nil {
			return i
		}
	}
	return -1
}

func (b *builder) excluded(item SelectItem, column string) bool {
	for _, name := range item.Except {
		if b.normalize(name, false) == column || strings.EqualFold(name, column) {
			return true
		}
	}
	return false
}

// starSource picks the relation a star item takes column from.
func (b *builder) starSource(sc *scope, item SelectItem, column string) *source {
	if item.TableStar != "" {
		src := sc.byLabel(item.TableStar)
		if src == nil {
			return nil
		}
		if len(sc.sources) == 1 || b.hasColumn(src, column) {
			return src
		}
		return nil
	}
	for _, src := range sc.sources {
		if b.hasColumn(src, column) {
			return src
		}
	}
	if len(sc.sources) == 1 {
		return sc.sources[0]
	}
	return nil
}

// hasColumn reports whether src is known to produce column.
func (b *builder) hasColumn(src *source, column string) bool {
	if len(src.columns) > 0 {
		for _, name := range src.columns {
			if b.normalize(name, false) == column || strings.EqualFold(name, column) {
				return true
			}
		}
		return false
	}
	switch {
	case src.table != nil:
		return b.schema.HasColumn(src.table.Name, column)
	case src.cte != nil, src.derived != nil:
		return b.produces(src.stmt(), src.env, column)
	case src.fn != nil:
		// UNNEST(x) AS item exposes a single column named after its alias.
		return b.normalize(src.alias, false) == column
	}
	return false
}

// produces reports whether stmt has an output column named column.
func (b *builder) produces(stmt *SelectStmt, env *cteEnv, column string) bool {
	if stmt == nil || stmt.Body == nil || stmt.Body.Left == nil {
		return false
	}
	key := outputKey{stmt: stmt, column: column}
	if v, ok := b.produced[key]; ok {
		return v
	}
	b.produced[key] = false // guards recursive CTEs
	inner := b.newScope(stmt, stmt.Body.Left, b.bind(stmt, env), nil)
	v := b.findItem(inner, column) >= 0
	b.produced[key] = v
	return v
}

// itemNodes returns the nodes a select item is derived from.
func (b *builder) itemNodes(sc *scope, item SelectItem, column string) []*Node {
	if item.Star || item.TableStar != "" {
		if column == "" {
			return nil
		}
		src := b.starSource(sc, item, column)
		if src == nil {
			return nil
		}
		return []*Node{b.sourceColumn(sc, src, column, true)}
	}
	return b.exprNodes(sc, item.Expr)
}

// exprNodes returns the nodes of every column referenced by e. Subqueries in
// IN and EXISTS only filter rows and are not followed.
func (b *builder) exprNodes(sc *scope, e Expr) []*Node {
	var nodes []*Node
	Inspect(e, func(n any) bool {
		switch x := n.(type) {
		case *ColumnRef:
			nodes = appendNodes(nodes, b.resolve(sc, x))
		case *SubqueryExpr:
			if node := b.outputAt(x.Select, sc.env, sc, 0, "_subquery"); node != nil {
				nodes = appendNodes(nodes, node)
			}
			return false
		case *ExistsExpr:
			return false
		case *InExpr:
			nodes = appendNodes(nodes, b.exprNodes(sc, x.Expr)...)
			for _, v := range x.Values {
				nodes = appendNodes(nodes, b.exprNodes(sc, v)...)
			}
			return false
		}
		return true
	})
	return nodes
}

// resolve binds a column reference to a relation of sc or an enclosing scope.
func (b *builder) resolve(sc *scope, ref *ColumnRef) *Node {
	column := b.normalize(ref.Column, ref.Quoted)
	for s := sc; s != nil; s = s.parent {
		if src := b.find(s, ref, column, s == sc); src != nil {
			return b.sourceColumn(s, src, ref.Column, ref.Quoted)
		}
		// alias.struct_column.field
		if ref.Schema != "" {
			if src := s.byLabel(ref.Schema); src != nil {
				return b.sourceColumn(s, src, ref.Table, false)
			}
		}
	}
	name := ref.Column
	if ref.Table != "" {
		name = ref.Table + "." + ref.Column
	}
	return &Node{Name: name, Expression: ref, Source: sc.stmt}
}

func (b *builder) find(sc *scope, ref *ColumnRef, column string, innermost bool) *source {
	if ref.Table != "" {
		return sc.byLabel(ref.Table)
	}
	if innermost && len(sc.sources) == 1 {
		return sc.sources[0]
	}
	for _, src := range sc.sources {
		if b.hasColumn(src, column) {
			return src
		}
	}
	return nil
}

// sourceColumn returns the node for column as produced by src.
func (b *builder) sourceColumn(sc *scope, src *source, column string, quoted bool) *Node {
	label := column
	if src.label() != "" {
		label = src.label() + "." + column
	}
	normalized := b.normalize(column, quoted)

	switch {
	case src.table != nil:
		key := leafKey{table: src.table, column: strings.ToLower(column)}
		if node, ok := b.leaves[key]; ok {
			return node
		}
		node := &Node{Name: label, Expression: src.table, Source: sc.stmt}
		b.leaves[key] = node
		return node

	case src.cte != nil, src.derived != nil:
		stmt := src.stmt()
		var outer *scope
		if src.derived != nil && src.derived.Lateral {
			outer = sc
		}
		var node *Node
		if idx := b.columnIndex(src, normalized); idx >= 0 {
			node = b.outputAt(stmt, src.env, outer, idx, label)
		} else {
			node = b.output(stmt, src.env, outer, normalized, label)
		}
		if node != nil {
			return node
		}

	case src.fn != nil:
		key := funcKey{fn: src.fn, column: normalized}
		if node, ok := b.funcs[key]; ok {
			return node
		}
		node := &Node{Name: label, Expression: src.fn.Call, Source: sc.stmt}
		b.funcs[key] = node
		for _, arg := range src.fn.Call.Args {
			node.Downstream = appendNodes(node.Downstream, b.exprNodes(sc, arg)...)
		}
		return node
	}

	return &Node{Name: label, Expression: &ColumnRef{Table: src.label(), Column: column, Quoted: quoted}, Source: sc.stmt, Derived: true}
}

// columnIndex maps a column of a relation with an explicit column list to
// its position.
func (b *builder) columnIndex(src *source, column string) int {
	for i, name := range src.columns {
		if b.normalize(name, false) == column || strings.EqualFold(name, column) {
			return i
		}
	}
	return -1
}

// appendNodes appends nodes not already present, by identity.
func appendNodes(dst []*Node, nodes ...*Node) []*Node {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == n {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, n)
		}
	}
	return dst
}
