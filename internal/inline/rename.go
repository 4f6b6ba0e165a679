package inline

import (
	"arrayjit/internal/ir"
	"arrayjit/internal/transform"
)

// renamer alpha-renames every Var bound by subst, including lhs
// positions and φ-merge keys — the positions transform.ExprBase's
// generic expression rewriting alone doesn't reach, since a Merge's
// domain is a set of plain strings rather than Expr nodes.
type renamer struct {
	transform.ExprBase
	transform.StmtBase
	subst map[string]ir.Expr
}

func newRenamer(subst map[string]ir.Expr) *renamer {
	r := &renamer{subst: subst}
	r.ExprBase.Self = r
	r.StmtBase.ExprSelf = r
	r.StmtBase.StmtSelf = r
	return r
}

func (r *renamer) VisitVar(e *ir.Var) any {
	if v, ok := r.subst[e.Name]; ok {
		return v
	}
	return e
}

func (r *renamer) VisitAssign(s *ir.Assign) any {
	lhs := r.renameLhs(s.Lhs)
	rhs := s.Rhs.Accept(r).(ir.Expr)
	return &ir.Assign{Lhs: lhs, Rhs: rhs}
}

func (r *renamer) renameLhs(lhs ir.Expr) ir.Expr {
	switch l := lhs.(type) {
	case *ir.Var:
		if v, ok := r.subst[l.Name]; ok {
			return v
		}
		return l
	case *ir.Index:
		out := &ir.Index{Value: l.Value.Accept(r).(ir.Expr), Idx: l.Idx.Accept(r).(ir.Expr)}
		out.SetType(l.Type())
		return out
	case *ir.Attribute:
		out := &ir.Attribute{Value: l.Value.Accept(r).(ir.Expr), Field: l.Field}
		out.SetType(l.Type())
		return out
	case *ir.Tuple:
		elts := make([]ir.Expr, len(l.Elts))
		for i, e := range l.Elts {
			elts[i] = r.renameLhs(e)
		}
		out := &ir.Tuple{Elts: elts}
		out.SetType(l.Type())
		return out
	default:
		return lhs
	}
}

func (r *renamer) VisitIf(s *ir.If) any {
	cond := s.Cond.Accept(r).(ir.Expr)
	thenBlock := r.StmtBase.RewriteBlock(s.ThenBlock)
	elseBlock := r.StmtBase.RewriteBlock(s.ElseBlock)
	merge := r.renameMerge(s.MergeMap)
	return &ir.If{Cond: cond, ThenBlock: thenBlock, ElseBlock: elseBlock, MergeMap: merge}
}

func (r *renamer) VisitWhile(s *ir.While) any {
	cond := s.Cond.Accept(r).(ir.Expr)
	body := r.StmtBase.RewriteBlock(s.Body)
	merge := r.renameMerge(s.MergeMap)
	return &ir.While{Cond: cond, Body: body, MergeMap: merge}
}

func (r *renamer) renameMerge(m ir.Merge) ir.Merge {
	if m == nil {
		return nil
	}
	out := make(ir.Merge, len(m))
	for _, name := range m.Names() {
		pair := m[name]
		newName := name
		if v, ok := r.subst[name]; ok {
			if rv, ok := v.(*ir.Var); ok {
				newName = rv.Name
			}
		}
		out[newName] = [2]ir.Expr{pair[0].Accept(r).(ir.Expr), pair[1].Accept(r).(ir.Expr)}
	}
	return out
}

// renameBody applies subst throughout body via the renamer above.
func renameBody(body []ir.Stmt, subst map[string]ir.Expr) []ir.Stmt {
	r := newRenamer(subst)
	return r.StmtBase.RewriteBlock(body)
}

// collectLocalVars gathers every name a function body binds — Assign
// lhs Vars (recursing through Tuple destructuring) and φ-merge keys —
// each mapped to one Var instance carrying its type, so the inliner can
// generate a fresh, type-preserving replacement for every one of them.
func collectLocalVars(body []ir.Stmt, out map[string]*ir.Var) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ir.Assign:
			collectLhsVars(s.Lhs, out)
		case *ir.If:
			collectMergeVars(s.MergeMap, out)
			collectLocalVars(s.ThenBlock, out)
			collectLocalVars(s.ElseBlock, out)
		case *ir.While:
			collectMergeVars(s.MergeMap, out)
			collectLocalVars(s.Body, out)
		}
	}
}

func collectLhsVars(lhs ir.Expr, out map[string]*ir.Var) {
	switch l := lhs.(type) {
	case *ir.Var:
		if _, ok := out[l.Name]; !ok {
			out[l.Name] = l
		}
	case *ir.Tuple:
		for _, e := range l.Elts {
			collectLhsVars(e, out)
		}
	}
}

func collectMergeVars(m ir.Merge, out map[string]*ir.Var) {
	if m == nil {
		return
	}
	for _, name := range m.Names() {
		if _, ok := out[name]; ok {
			continue
		}
		pair := m[name]
		v := &ir.Var{Name: name}
		v.SetType(pair[0].Type())
		out[name] = v
	}
}
