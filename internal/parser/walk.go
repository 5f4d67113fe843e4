package parser

// Inspect walks the tree rooted at n in source order, calling f for every
// node. When f returns false the children of that node are skipped.
// Binding targets (loop variables, set and with targets, macro parameters,
// import names) are not visited since they are written, not read.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		Inspect(c, f)
	}
}

func children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	exprs := func(es []Expr) {
		for _, e := range es {
			add(e)
		}
	}
	stmts := func(ss []Stmt) {
		for _, s := range ss {
			add(s)
		}
	}
	args := func(as []CallArg) {
		for _, a := range as {
			add(a.Value)
		}
	}

	switch n := n.(type) {
	case *Template:
		stmts(n.Children)
	case *EmitExpr:
		add(n.Expr)
	case *ForLoop:
		add(n.Iter, n.FilterExpr)
		stmts(n.Body)
		stmts(n.ElseBody)
	case *IfCond:
		add(n.Expr)
		stmts(n.TrueBody)
		stmts(n.FalseBody)
	case *WithBlock:
		for _, a := range n.Assignments {
			add(a.Value)
		}
		stmts(n.Body)
	case *Set:
		add(n.Expr)
	case *SetBlock:
		add(n.Filter)
		stmts(n.Body)
	case *AutoEscape:
		add(n.Enabled)
		stmts(n.Body)
	case *FilterBlock:
		add(n.Filter)
		stmts(n.Body)
	case *Block:
		stmts(n.Body)
	case *Extends:
		add(n.Name)
	case *Include:
		add(n.Name)
	case *Import:
		add(n.Expr)
	case *FromImport:
		add(n.Expr)
	case *Macro:
		exprs(n.Defaults)
		stmts(n.Body)
	case *CallBlock:
		add(n.Call, n.MacroDecl)
	case *Do:
		add(n.Call)

	case *UnaryOp:
		add(n.Expr)
	case *BinOp:
		add(n.Left, n.Right)
	case *IfExpr:
		add(n.TestExpr, n.TrueExpr, n.FalseExpr)
	case *Filter:
		add(n.Expr)
		args(n.Args)
	case *Test:
		add(n.Expr)
		args(n.Args)
	case *GetAttr:
		add(n.Expr)
	case *GetItem:
		add(n.Expr, n.SubscriptExpr)
	case *Slice:
		add(n.Expr, n.Start, n.Stop, n.Step)
	case *Call:
		add(n.Expr)
		args(n.Args)
	case *List:
		exprs(n.Items)
	case *Map:
		for i := range n.Keys {
			add(n.Keys[i], n.Values[i])
		}
	}
	return out
}

// isNilNode catches typed nils such as a (*Call)(nil) stored in a Node.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Call:
		return n == nil
	case *Macro:
		return n == nil
	}
	return false
}
