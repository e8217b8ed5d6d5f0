package ir

// Children returns e's direct sub-expressions in evaluation order.
// Optional children that are absent are not included.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Block:
		return n.List
	case *If:
		if n.IfFalse != nil {
			return []Expr{n.Cond, n.IfTrue, n.IfFalse}
		}
		return []Expr{n.Cond, n.IfTrue}
	case *Loop:
		return []Expr{n.Body}
	case *Break:
		var kids []Expr
		if n.Value != nil {
			kids = append(kids, n.Value)
		}
		if n.Cond != nil {
			kids = append(kids, n.Cond)
		}
		return kids
	case *Switch:
		var kids []Expr
		if n.Value != nil {
			kids = append(kids, n.Value)
		}
		kids = append(kids, n.Cond)
		return kids
	case *Call:
		return n.Operands
	case *CallIndirect:
		kids := make([]Expr, 0, len(n.Operands)+1)
		kids = append(kids, n.Operands...)
		return append(kids, n.Target)
	case *SetLocal:
		return []Expr{n.Value}
	case *SetGlobal:
		return []Expr{n.Value}
	case *Load:
		return []Expr{n.Ptr}
	case *Store:
		return []Expr{n.Ptr, n.Value}
	case *Unary:
		return []Expr{n.Value}
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Select:
		return []Expr{n.IfTrue, n.IfFalse, n.Cond}
	case *Drop:
		return []Expr{n.Value}
	case *Return:
		if n.Value != nil {
			return []Expr{n.Value}
		}
		return nil
	case *Host:
		return n.Operands
	case *AtomicRMW:
		return []Expr{n.Ptr, n.Value}
	case *AtomicCmpxchg:
		return []Expr{n.Ptr, n.Expected, n.Replacement}
	case *AtomicWait:
		return []Expr{n.Ptr, n.Expected, n.Timeout}
	case *AtomicWake:
		return []Expr{n.Ptr, n.WakeCount}
	}
	return nil
}

// Walk traverses the tree rooted at e in pre-order, calling f for each
// node. When f returns false the node's children are skipped.
func Walk(e Expr, f func(Expr) bool) {
	if e == nil {
		return
	}
	if !f(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, f)
	}
}
