package analysis

import (
	"arrayjit/internal/ir"

	"golang.org/x/tools/container/intsets"
)

// nameInterner assigns a stable small integer to each SSA name seen so
// far, letting the use-count and liveness passes key their bit sets on
// ints (what intsets.Sparse wants) instead of paying map[string]-lookup
// cost on every visit of a hot PrimCall chain.
type nameInterner struct {
	ids   map[string]int
	names []string
}

func newNameInterner() *nameInterner {
	return &nameInterner{ids: make(map[string]int)}
}

func (n *nameInterner) intern(name string) int {
	if id, ok := n.ids[name]; ok {
		return id
	}
	id := len(n.names)
	n.ids[name] = id
	n.names = append(n.names, name)
	return id
}

func (n *nameInterner) name(id int) string { return n.names[id] }

// UseCounts maps each SSA name referenced anywhere in a function body to
// the number of Var nodes that reference it, plus the set of names
// referenced at all (as an intsets.Sparse bit set, for fast union/
// membership tests at φ-merge points during dead-rhs elision).
type UseCounts struct {
	interner *nameInterner
	counts   map[string]int
	live     intsets.Sparse
}

// Count returns how many times name is read.
func (u *UseCounts) Count(name string) int { return u.counts[name] }

// Live reports whether name is read anywhere in the analyzed body.
func (u *UseCounts) Live(name string) bool {
	id, ok := u.interner.ids[name]
	return ok && u.live.Has(id)
}

// ComputeUseCounts walks body counting Var references. Destination-only
// names (assigned but never read) report a zero count and are absent
// from Live, which is exactly the condition dead-rhs elision in
// Simplify's post_apply dead-code pass uses to drop an assignment whose
// value is never consumed.
func ComputeUseCounts(body []ir.Stmt) *UseCounts {
	u := &UseCounts{interner: newNameInterner(), counts: make(map[string]int)}
	for _, s := range body {
		u.visitStmt(s)
	}
	return u
}

func (u *UseCounts) touch(name string) {
	u.counts[name]++
	u.live.Insert(u.interner.intern(name))
}

func (u *UseCounts) visitStmt(s ir.Stmt) {
	switch st := s.(type) {
	case *ir.Assign:
		u.visitExpr(st.Rhs)
		// Index/Attribute/Tuple lhs forms read their base value.
		switch lhs := st.Lhs.(type) {
		case *ir.Index:
			u.visitExpr(lhs.Value)
			u.visitExpr(lhs.Idx)
		case *ir.Attribute:
			u.visitExpr(lhs.Value)
		}
	case *ir.If:
		u.visitExpr(st.Cond)
		for _, s := range st.ThenBlock {
			u.visitStmt(s)
		}
		for _, s := range st.ElseBlock {
			u.visitStmt(s)
		}
		u.visitMerge(st.MergeMap)
	case *ir.While:
		u.visitExpr(st.Cond)
		for _, s := range st.Body {
			u.visitStmt(s)
		}
		u.visitMerge(st.MergeMap)
	case *ir.Return:
		if st.Value != nil {
			u.visitExpr(st.Value)
		}
	}
}

func (u *UseCounts) visitMerge(m ir.Merge) {
	for _, name := range m.Names() {
		pair := m[name]
		u.visitExpr(pair[0])
		u.visitExpr(pair[1])
	}
}

func (u *UseCounts) visitExpr(e ir.Expr) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ir.Const:
	case *ir.Var:
		u.touch(ex.Name)
	case *ir.PrimCall:
		u.visitAll(ex.Args)
	case *ir.Cast:
		u.visitExpr(ex.Value)
	case *ir.Tuple:
		u.visitAll(ex.Elts)
	case *ir.TupleProj:
		u.visitExpr(ex.TupleExpr)
	case *ir.Struct:
		u.visitAll(ex.Args)
	case *ir.Attribute:
		u.visitExpr(ex.Value)
	case *ir.Array:
		u.visitAll(ex.Elts)
	case *ir.ArrayView:
		u.visitExpr(ex.Data)
		u.visitExpr(ex.Shape)
		u.visitExpr(ex.Strides)
		u.visitExpr(ex.Offset)
		u.visitExpr(ex.TotalElts)
	case *ir.Index:
		u.visitExpr(ex.Value)
		u.visitExpr(ex.Idx)
	case *ir.Slice:
		u.visitExpr(ex.Start)
		u.visitExpr(ex.Stop)
		u.visitExpr(ex.Step)
	case *ir.Closure:
		u.visitAll(ex.Captured)
	case *ir.ClosureElt:
		u.visitExpr(ex.ClosureExpr)
	case *ir.Call:
		u.visitExpr(ex.Callee)
		u.visitAll(ex.Args)
	case *ir.Map:
		u.visitExpr(ex.Fn)
		u.visitAll(ex.Args)
	case *ir.AllPairs:
		u.visitExpr(ex.Fn)
		u.visitExpr(ex.X)
		u.visitExpr(ex.Y)
	case *ir.Reduce:
		u.visitExpr(ex.Fn)
		u.visitExpr(ex.Combine)
		u.visitAll(ex.Args)
		u.visitExpr(ex.Init)
	case *ir.Scan:
		u.visitExpr(ex.Fn)
		u.visitExpr(ex.Combine)
		u.visitExpr(ex.Emit)
		u.visitAll(ex.Args)
		u.visitExpr(ex.Init)
	}
}

func (u *UseCounts) visitAll(exprs []ir.Expr) {
	for _, e := range exprs {
		u.visitExpr(e)
	}
}
