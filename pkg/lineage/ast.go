package lineage

// Expr represents an expression in SQL.
type Expr interface {
	exprNode()
}

// TableRef represents a table reference in a FROM clause.
type TableRef interface {
	tableRefNode()
}

// ---------- Statement Types ----------

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	Name    string
	Columns []string // optional column list: cte(a, b)
	Select  *SelectStmt
}

// SelectBody represents the body of a SELECT with possible set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType   // UNION, INTERSECT, EXCEPT, or empty
	All   bool        // UNION ALL
	Right *SelectBody // For chained set operations
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpType constants for set operations in queries.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// Cores returns the select cores of the body in source order.
func (b *SelectBody) Cores() []*SelectCore {
	var cores []*SelectCore
	for body := b; body != nil; body = body.Right {
		if body.Left != nil {
			cores = append(cores, body.Left)
		}
	}
	return cores
}

// SelectCore represents the core SELECT clause.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	Qualify  Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
	Quoted    bool // alias was quoted
	Except    []string
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON clause
	Using     []string // USING (col1, col2)
}

// JoinType is the SQL keyword of a join.
type JoinType string

// JoinType constants.
const (
	JoinComma JoinType = ","
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// ---------- Table Reference Types ----------

// TableName represents a physical table name reference. It is also the
// expression carried by lineage leaf nodes.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
	Quoted  bool
}

func (*TableName) tableRefNode() {}
func (*TableName) exprNode()     {}

// Ref returns the name the table is referenced by: its alias, or its name.
func (t *TableName) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// DerivedTable represents a subquery in a FROM clause.
type DerivedTable struct {
	Select  *SelectStmt
	Alias   string
	Columns []string
	Lateral bool
}

func (*DerivedTable) tableRefNode() {}

// TableFunc represents a table-valued function: UNNEST(arr), FLATTEN(...).
type TableFunc struct {
	Call    *FuncCall
	Alias   string
	Columns []string
}

func (*TableFunc) tableRefNode() {}

// ---------- Expression Types ----------

// ColumnRef represents a column reference, possibly qualified.
type ColumnRef struct {
	Schema string
	Table  string // optional table/alias qualifier
	Column string
	Quoted bool
}

func (*ColumnRef) exprNode() {}

// Literal represents a literal value.
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for SQL literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Name        string
	Distinct    bool
	Args        []Expr
	Star        bool        // COUNT(*)
	Filter      Expr        // FILTER (WHERE ...)
	WithinGroup []OrderByItem
	Window      *WindowSpec // OVER clause
}

func (*FuncCall) exprNode() {}

// WindowSpec represents a window specification (OVER clause). Frame clauses
// are accepted but not kept; they never reference columns.
type WindowSpec struct {
	Name        string
	PartitionBy []Expr
	OrderBy     []OrderByItem
}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(x AS t), TRY_CAST, SAFE_CAST and x::t.
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr represents an IN expression.
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsExpr represents IS [NOT] NULL / TRUE / FALSE / DISTINCT FROM.
type IsExpr struct {
	Expr  Expr
	Not   bool
	Value Expr // *Literal for NULL/TRUE/FALSE, any expression for DISTINCT FROM
}

func (*IsExpr) exprNode() {}

// LikeExpr represents LIKE / ILIKE.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	Op      TokenType
}

func (*LikeExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// TupleExpr represents (a, b, c).
type TupleExpr struct {
	Items []Expr
}

func (*TupleExpr) exprNode() {}

// StarExpr represents * inside an expression.
type StarExpr struct {
	Table string
}

func (*StarExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr represents an EXISTS expression.
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// IndexExpr represents arr[i] and struct['key'].
type IndexExpr struct {
	Expr  Expr
	Index Expr
}

func (*IndexExpr) exprNode() {}

// FieldExpr represents a path access such as Snowflake's col:field or
// (expr).field.
type FieldExpr struct {
	Expr  Expr
	Field string
}

func (*FieldExpr) exprNode() {}

// IntervalExpr represents INTERVAL '1' DAY.
type IntervalExpr struct {
	Value Expr
	Unit  string
}

func (*IntervalExpr) exprNode() {}

// ArrayExpr represents [a, b] and ARRAY[a, b] literals.
type ArrayExpr struct {
	Items []Expr
}

func (*ArrayExpr) exprNode() {}
