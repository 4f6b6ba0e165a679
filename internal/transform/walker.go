// Package transform is the generic IR walker every pass builds on: a
// per-node-class dispatch hook set (so a pass only overrides the node
// kinds it cares about), scoped symbol environments, a fresh-name
// supply, and statement emission into whichever block is currently
// being rewritten.
package transform

import (
	"arrayjit/internal/ir"
)

// ExprBase is an embeddable default ir.ExprVisitor: every method
// rewrites its node's children (by delegating back through Self, so an
// embedding pass's overrides still fire on nested subexpressions) and
// rebuilds the node only if a child actually changed, preserving
// pointer identity on the fast (no-op) path the way the original
// Simplify's `if rhs == stmt.rhs: return stmt` check does.
//
// A concrete pass embeds ExprBase, sets Self to itself in its
// constructor, and defines its own VisitFoo methods for the node kinds
// it rewrites; Go's method-shadowing rule makes those overrides win
// both when called directly and when dispatched through the
// ir.ExprVisitor interface, while every other node kind falls through
// to this default traversal.
type ExprBase struct {
	Self ir.ExprVisitor
}

// ExprRewriter lets a pass intercept every recursive descent into a
// child expression, not just the node kinds it overrides a Visit method
// for — Simplify uses this to consult its available-expressions cache
// before dispatching, the same role Transform.transform_expr plays.
type ExprRewriter interface {
	TransformExpr(e ir.Expr) ir.Expr
}

func (b *ExprBase) rewrite(e ir.Expr) ir.Expr {
	if r, ok := b.Self.(ExprRewriter); ok {
		return r.TransformExpr(e)
	}
	return e.Accept(b.Self).(ir.Expr)
}

func (b *ExprBase) VisitConst(e *ir.Const) any { return e }
func (b *ExprBase) VisitVar(e *ir.Var) any     { return e }

func (b *ExprBase) VisitPrimCall(e *ir.PrimCall) any {
	args, changed := rewriteAll(b, e.Args)
	if !changed {
		return e
	}
	out := &ir.PrimCall{Prim: e.Prim, Args: args}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitCast(e *ir.Cast) any {
	v := b.rewrite(e.Value)
	if v == e.Value {
		return e
	}
	out := &ir.Cast{Value: v, Target: e.Target}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitTuple(e *ir.Tuple) any {
	elts, changed := rewriteAll(b, e.Elts)
	if !changed {
		return e
	}
	out := &ir.Tuple{Elts: elts}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitTupleProj(e *ir.TupleProj) any {
	t := b.rewrite(e.TupleExpr)
	if t == e.TupleExpr {
		return e
	}
	out := &ir.TupleProj{TupleExpr: t, Index: e.Index}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitStruct(e *ir.Struct) any {
	args, changed := rewriteAll(b, e.Args)
	if !changed {
		return e
	}
	out := &ir.Struct{Args: args}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitAttribute(e *ir.Attribute) any {
	v := b.rewrite(e.Value)
	if v == e.Value {
		return e
	}
	out := &ir.Attribute{Value: v, Field: e.Field}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitArray(e *ir.Array) any {
	elts, changed := rewriteAll(b, e.Elts)
	if !changed {
		return e
	}
	out := &ir.Array{Elts: elts}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitArrayView(e *ir.ArrayView) any {
	data := b.rewrite(e.Data)
	shp := b.rewrite(e.Shape)
	strides := b.rewrite(e.Strides)
	offset := b.rewrite(e.Offset)
	total := b.rewrite(e.TotalElts)
	if data == e.Data && shp == e.Shape && strides == e.Strides && offset == e.Offset && total == e.TotalElts {
		return e
	}
	out := &ir.ArrayView{Data: data, Shape: shp, Strides: strides, Offset: offset, TotalElts: total}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitIndex(e *ir.Index) any {
	v := b.rewrite(e.Value)
	idx := b.rewrite(e.Idx)
	if v == e.Value && idx == e.Idx {
		return e
	}
	out := &ir.Index{Value: v, Idx: idx}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitSlice(e *ir.Slice) any {
	start := b.rewrite(e.Start)
	stop := b.rewrite(e.Stop)
	step := b.rewrite(e.Step)
	if start == e.Start && stop == e.Stop && step == e.Step {
		return e
	}
	out := &ir.Slice{Start: start, Stop: stop, Step: step}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitClosure(e *ir.Closure) any {
	captured, changed := rewriteAll(b, e.Captured)
	if !changed {
		return e
	}
	out := &ir.Closure{FnName: e.FnName, Captured: captured}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitClosureElt(e *ir.ClosureElt) any {
	c := b.rewrite(e.ClosureExpr)
	if c == e.ClosureExpr {
		return e
	}
	out := &ir.ClosureElt{ClosureExpr: c, Index: e.Index}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitCall(e *ir.Call) any {
	callee := b.rewrite(e.Callee)
	args, argsChanged := rewriteAll(b, e.Args)
	if callee == e.Callee && !argsChanged {
		return e
	}
	out := &ir.Call{Callee: callee, Args: args, TypedCallee: e.TypedCallee}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitMap(e *ir.Map) any {
	fn := b.rewrite(e.Fn)
	args, changed := rewriteAll(b, e.Args)
	if fn == e.Fn && !changed {
		return e
	}
	out := &ir.Map{Fn: fn, Args: args, Axis: e.Axis}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitAllPairs(e *ir.AllPairs) any {
	fn := b.rewrite(e.Fn)
	x := b.rewrite(e.X)
	y := b.rewrite(e.Y)
	if fn == e.Fn && x == e.X && y == e.Y {
		return e
	}
	out := &ir.AllPairs{Fn: fn, X: x, Y: y, Axis: e.Axis}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitReduce(e *ir.Reduce) any {
	fn := b.rewrite(e.Fn)
	combine := b.rewrite(e.Combine)
	args, changed := rewriteAll(b, e.Args)
	var init ir.Expr
	if e.Init != nil {
		init = b.rewrite(e.Init)
	}
	if fn == e.Fn && combine == e.Combine && !changed && init == e.Init {
		return e
	}
	out := &ir.Reduce{Fn: fn, Combine: combine, Args: args, Init: init, Axis: e.Axis}
	out.SetType(e.Type())
	return out
}

func (b *ExprBase) VisitScan(e *ir.Scan) any {
	fn := b.rewrite(e.Fn)
	combine := b.rewrite(e.Combine)
	emit := b.rewrite(e.Emit)
	args, changed := rewriteAll(b, e.Args)
	var init ir.Expr
	if e.Init != nil {
		init = b.rewrite(e.Init)
	}
	if fn == e.Fn && combine == e.Combine && emit == e.Emit && !changed && init == e.Init {
		return e
	}
	out := &ir.Scan{Fn: fn, Combine: combine, Emit: emit, Args: args, Init: init, Axis: e.Axis}
	out.SetType(e.Type())
	return out
}

func rewriteAll(b *ExprBase, exprs []ir.Expr) ([]ir.Expr, bool) {
	changed := false
	out := make([]ir.Expr, len(exprs))
	for i, e := range exprs {
		ne := b.rewrite(e)
		out[i] = ne
		if ne != e {
			changed = true
		}
	}
	if !changed {
		return exprs, false
	}
	return out, true
}

// StmtBase is the statement-level counterpart of ExprBase: default
// pass-through rewriting of Assign/If/While/Return, delegating
// expression rewriting to ExprSelf and statement-block rewriting to
// StmtSelf so nested blocks see the embedding pass's overrides too.
type StmtBase struct {
	ExprSelf ir.ExprVisitor
	StmtSelf ir.StmtVisitor
}

func (b *StmtBase) rewriteExpr(e ir.Expr) ir.Expr {
	if e == nil {
		return nil
	}
	if r, ok := b.ExprSelf.(ExprRewriter); ok {
		return r.TransformExpr(e)
	}
	return e.Accept(b.ExprSelf).(ir.Expr)
}

func (b *StmtBase) rewriteStmt(s ir.Stmt) ir.Stmt {
	return s.Accept(b.StmtSelf).(ir.Stmt)
}

// RewriteBlock rewrites every statement in block via StmtSelf.
func (b *StmtBase) RewriteBlock(block []ir.Stmt) []ir.Stmt {
	out := make([]ir.Stmt, len(block))
	for i, s := range block {
		out[i] = b.rewriteStmt(s)
	}
	return out
}

func (b *StmtBase) VisitAssign(s *ir.Assign) any {
	rhs := b.rewriteExpr(s.Rhs)
	if rhs == s.Rhs {
		return s
	}
	return &ir.Assign{Lhs: s.Lhs, Rhs: rhs}
}

func (b *StmtBase) VisitIf(s *ir.If) any {
	cond := b.rewriteExpr(s.Cond)
	thenBlock := b.RewriteBlock(s.ThenBlock)
	elseBlock := b.RewriteBlock(s.ElseBlock)
	merge := b.rewriteMerge(s.MergeMap)
	return &ir.If{Cond: cond, ThenBlock: thenBlock, ElseBlock: elseBlock, MergeMap: merge}
}

func (b *StmtBase) VisitWhile(s *ir.While) any {
	cond := b.rewriteExpr(s.Cond)
	body := b.RewriteBlock(s.Body)
	merge := b.rewriteMerge(s.MergeMap)
	return &ir.While{Cond: cond, Body: body, MergeMap: merge}
}

func (b *StmtBase) VisitReturn(s *ir.Return) any {
	v := b.rewriteExpr(s.Value)
	if v == s.Value {
		return s
	}
	return &ir.Return{Value: v}
}

func (b *StmtBase) rewriteMerge(m ir.Merge) ir.Merge {
	if m == nil {
		return nil
	}
	out := make(ir.Merge, len(m))
	for _, name := range m.Names() {
		pair := m[name]
		out[name] = [2]ir.Expr{b.rewriteExpr(pair[0]), b.rewriteExpr(pair[1])}
	}
	return out
}
