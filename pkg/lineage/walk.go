package lineage

// Inspect traverses an AST in depth-first order: it calls fn(node) for each
// node, starting with root. If fn returns false, the children of that node
// are skipped. Subqueries are traversed like any other child.
func Inspect(root any, fn func(any) bool) {
	if root == nil || !fn(root) {
		return
	}

	switch n := root.(type) {
	case *SelectStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		if n.Body != nil {
			Inspect(n.Body, fn)
		}
	case *WithClause:
		for _, cte := range n.CTEs {
			Inspect(cte, fn)
		}
	case *CTE:
		inspectSelect(n.Select, fn)
	case *SelectBody:
		for _, core := range n.Cores() {
			Inspect(core, fn)
		}
	case *SelectCore:
		for _, item := range n.Columns {
			inspectExpr(item.Expr, fn)
		}
		if n.From != nil {
			Inspect(n.From, fn)
		}
		inspectExpr(n.Where, fn)
		inspectExprs(n.GroupBy, fn)
		inspectExpr(n.Having, fn)
		inspectExpr(n.Qualify, fn)
		inspectOrderBy(n.OrderBy, fn)
		inspectExpr(n.Limit, fn)
		inspectExpr(n.Offset, fn)
	case *FromClause:
		inspectTableRef(n.Source, fn)
		for _, join := range n.Joins {
			Inspect(join, fn)
		}
	case *Join:
		inspectTableRef(n.Right, fn)
		inspectExpr(n.Condition, fn)
	case *DerivedTable:
		inspectSelect(n.Select, fn)
	case *TableFunc:
		Inspect(n.Call, fn)
	case *TableName, *ColumnRef, *Literal, *StarExpr:
	case *BinaryExpr:
		inspectExpr(n.Left, fn)
		inspectExpr(n.Right, fn)
	case *UnaryExpr:
		inspectExpr(n.Expr, fn)
	case *FuncCall:
		inspectExprs(n.Args, fn)
		inspectExpr(n.Filter, fn)
		inspectOrderBy(n.WithinGroup, fn)
		if n.Window != nil {
			inspectExprs(n.Window.PartitionBy, fn)
			inspectOrderBy(n.Window.OrderBy, fn)
		}
	case *CaseExpr:
		inspectExpr(n.Operand, fn)
		for _, when := range n.Whens {
			inspectExpr(when.Condition, fn)
			inspectExpr(when.Result, fn)
		}
		inspectExpr(n.Else, fn)
	case *CastExpr:
		inspectExpr(n.Expr, fn)
	case *InExpr:
		inspectExpr(n.Expr, fn)
		inspectExprs(n.Values, fn)
		inspectSelect(n.Query, fn)
	case *BetweenExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Low, fn)
		inspectExpr(n.High, fn)
	case *IsExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Value, fn)
	case *LikeExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Pattern, fn)
	case *ParenExpr:
		inspectExpr(n.Expr, fn)
	case *TupleExpr:
		inspectExprs(n.Items, fn)
	case *ArrayExpr:
		inspectExprs(n.Items, fn)
	case *SubqueryExpr:
		inspectSelect(n.Select, fn)
	case *ExistsExpr:
		inspectSelect(n.Select, fn)
	case *IndexExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Index, fn)
	case *FieldExpr:
		inspectExpr(n.Expr, fn)
	case *IntervalExpr:
		inspectExpr(n.Value, fn)
	}
}

// inspectExpr skips nil interfaces so that fn never sees a typed nil.
func inspectExpr(e Expr, fn func(any) bool) {
	if e != nil {
		Inspect(e, fn)
	}
}

func inspectSelect(s *SelectStmt, fn func(any) bool) {
	if s != nil {
		Inspect(s, fn)
	}
}

func inspectExprs(exprs []Expr, fn func(any) bool) {
	for _, e := range exprs {
		inspectExpr(e, fn)
	}
}

func inspectOrderBy(items []OrderByItem, fn func(any) bool) {
	for _, item := range items {
		inspectExpr(item.Expr, fn)
	}
}

func inspectTableRef(ref TableRef, fn func(any) bool) {
	if ref != nil {
		Inspect(ref, fn)
	}
}
