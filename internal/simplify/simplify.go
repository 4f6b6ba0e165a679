// Package simplify implements the core's single richest optimization
// pass: copy propagation through a binding map, constant folding and
// algebraic identities, control-flow-scoped common-subexpression
// elimination, φ-merge normalization with branch-local hoisting,
// loop-condition hoisting, and an inline micro dead-rhs elision that
// runs alongside the full rewrite.
package simplify

import (
	"arrayjit/internal/analysis"
	"arrayjit/internal/ir"
	"arrayjit/internal/transform"
	"arrayjit/internal/types"
)

// Simplify rewrites one typed function's body to a local fixpoint of
// the rules above. A fresh Simplify is constructed per pipeline round;
// internal/pipeline re-runs it (and Inliner) until a whole round leaves
// the body unchanged.
type Simplify struct {
	transform.ExprBase
	transform.StmtBase

	names      *ir.NameSupply
	blocks     *transform.BlockStack
	mutability *analysis.TypeBasedMutabilityAnalysis
	useCounts  map[string]int

	// bindings tracks, per SSA name, the (possibly non-Var/Const) rhs it
	// was last assigned, for copy propagation and dead-rhs elision.
	bindings map[string]ir.Expr
	// availableExprs is a control-flow-scoped map from a safe
	// expression's canonical key to the Var it was first computed into.
	availableExprs *transform.Scope[string, *ir.Var]

	changed bool
}

// New constructs a Simplify for one function body, computing its
// mutability and use-count analyses up front.
func New(fn *ir.TypedFn, names *ir.NameSupply) *Simplify {
	s := &Simplify{
		names:          names,
		mutability:     analysis.NewTypeBasedMutabilityAnalysis(),
		bindings:       make(map[string]ir.Expr),
		availableExprs: transform.NewScope[string, *ir.Var](),
	}
	s.mutability.VisitFn(fn)
	uc := analysis.ComputeUseCounts(fn.Body)
	s.useCounts = make(map[string]int)
	for _, name := range fn.ArgNames {
		if uc.Live(name) {
			s.useCounts[name] = uc.Count(name)
		}
	}
	snapshotUseCounts(fn.Body, uc, s.useCounts)
	s.ExprBase.Self = s
	s.StmtBase.ExprSelf = s
	s.StmtBase.StmtSelf = s
	s.blocks = transform.NewBlockStack(names)
	return s
}

func snapshotUseCounts(body []ir.Stmt, uc *analysis.UseCounts, into map[string]int) {
	var walk func(stmts []ir.Stmt)
	walk = func(stmts []ir.Stmt) {
		for _, st := range stmts {
			switch s := st.(type) {
			case *ir.Assign:
				if v, ok := s.Lhs.(*ir.Var); ok {
					into[v.Name] = uc.Count(v.Name)
				}
			case *ir.If:
				walk(s.ThenBlock)
				walk(s.ElseBlock)
			case *ir.While:
				walk(s.Body)
			}
		}
	}
	walk(body)
}

// Name identifies this pass for pipeline diagnostics.
func (s *Simplify) Name() string { return "simplify" }

// Run rewrites body to this Simplify instance's fixed point, then drops
// any assignment whose destination is never read in the rewritten body
// and whose rhs is effect-free (the post-apply dead-code step that lets
// a dead-branch fold, which leaves its condition's inputs unread,
// actually shrink the body instead of just discarding the If).
func (s *Simplify) Run(body []ir.Stmt) ([]ir.Stmt, bool, error) {
	root := s.blocks.Push()
	s.rewriteBlock(body, root)
	s.blocks.Pop()
	out := s.dropDeadAssigns(root.Stmts())
	return out, s.changed, nil
}

// dropDeadAssigns removes every Var-destined Assign whose value is
// provably never consumed and whose rhs cannot have an externally
// visible effect, recursing into If/While bodies. Index/Attribute
// destinations and anything whose rhs fails isSafe (Call, Index) are
// never candidates: they may read or write state this use-count sweep
// doesn't track.
func (s *Simplify) dropDeadAssigns(body []ir.Stmt) []ir.Stmt {
	uc := analysis.ComputeUseCounts(body)
	return s.dropDeadAssignsIn(body, uc)
}

func (s *Simplify) dropDeadAssignsIn(body []ir.Stmt, uc *analysis.UseCounts) []ir.Stmt {
	out := make([]ir.Stmt, 0, len(body))
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *ir.Assign:
			if v, ok := st.Lhs.(*ir.Var); ok && !uc.Live(v.Name) && isSafe(s.mutability, st.Rhs) {
				s.changed = true
				continue
			}
			out = append(out, st)
		case *ir.If:
			thenBlock := s.dropDeadAssignsIn(st.ThenBlock, uc)
			elseBlock := s.dropDeadAssignsIn(st.ElseBlock, uc)
			if len(st.MergeMap) == 0 && len(thenBlock) == 0 && len(elseBlock) == 0 && isSafe(s.mutability, st.Cond) {
				s.changed = true
				continue
			}
			out = append(out, &ir.If{
				Cond:      st.Cond,
				ThenBlock: thenBlock,
				ElseBlock: elseBlock,
				MergeMap:  st.MergeMap,
			})
		case *ir.While:
			out = append(out, &ir.While{
				Cond:     st.Cond,
				Body:     s.dropDeadAssignsIn(st.Body, uc),
				MergeMap: st.MergeMap,
			})
		default:
			out = append(out, stmt)
		}
	}
	return out
}

// rewriteBlock rewrites body statement by statement into out, splicing in
// zero or more output statements per input statement: an If whose
// condition folds to a constant bool (see rewriteIf) collapses to its
// live branch's statements with no If node surviving, while every other
// statement kind still rewrites one-for-one through Accept.
func (s *Simplify) rewriteBlock(body []ir.Stmt, out *transform.BlockBuilder) {
	for _, stmt := range body {
		if ifs, ok := stmt.(*ir.If); ok {
			s.rewriteIf(ifs, out)
			continue
		}
		out.Emit(stmt.Accept(s).(ir.Stmt))
	}
}

// rewriteIf rewrites stmt into out. When its condition rewrites to a
// constant bool, the dead branch (and the If itself) is dropped
// entirely: the live branch's statements splice directly into out, and
// each φ-merged name rebinds to that branch's value instead of leaving
// behind a merge with a single live edge. Otherwise both branches
// rewrite in their own block and the If survives with its normalized
// merge, exactly as before.
func (s *Simplify) rewriteIf(stmt *ir.If, out *transform.BlockBuilder) {
	s.availableExprs.Push()
	cond := s.TransformExpr(stmt.Cond)

	if c, ok := cond.(*ir.Const); ok {
		if bv, ok := c.Value.(bool); ok {
			branch, side := stmt.ThenBlock, 0
			if !bv {
				branch, side = stmt.ElseBlock, 1
			}

			live := s.blocks.Push()
			s.rewriteBlock(branch, live)
			s.blocks.Pop()
			for _, st := range live.Stmts() {
				out.Emit(st)
			}

			for _, name := range stmt.MergeMap.Names() {
				v := s.TransformExpr(stmt.MergeMap.Branch(name, side))
				if !transform.IsSimple(v) {
					v = transform.AssignTempIn(s.names, out, "phi", v)
				}
				s.bindings[name] = v
			}

			s.availableExprs.Pop()
			s.changed = true
			return
		}
	}

	thenB := s.blocks.Push()
	s.rewriteBlock(stmt.ThenBlock, thenB)
	s.blocks.Pop()

	elseB := s.blocks.Push()
	s.rewriteBlock(stmt.ElseBlock, elseB)
	s.blocks.Pop()

	merge := s.transformMerge(stmt.MergeMap, thenB, elseB)
	s.availableExprs.Pop()

	out.Emit(&ir.If{Cond: cond, ThenBlock: thenB.Stmts(), ElseBlock: elseB.Stmts(), MergeMap: merge})
}

// TransformExpr implements transform.ExprRewriter: every recursive
// descent into a child expression consults the available-expressions
// cache before falling through to dispatch, mirroring the reference
// pass's overridden transform_expr entry point.
func (s *Simplify) TransformExpr(e ir.Expr) ir.Expr {
	if isSafe(s.mutability, e) {
		if v, ok := s.availableExprs.Get(exprKey(e)); ok {
			return v
		}
	}
	return e.Accept(s).(ir.Expr)
}

// VisitVar resolves copy-propagation chains: following bindings until
// they land on a Const (substitute it), another Var (rename to it), or
// anything else (leave the original reference alone).
func (s *Simplify) VisitVar(e *ir.Var) any {
	name := e.Name
	var bound ir.Expr
	for {
		b, ok := s.bindings[name]
		if !ok {
			bound = nil
			break
		}
		if v, ok := b.(*ir.Var); ok {
			name = v.Name
			continue
		}
		bound = b
		break
	}
	if c, ok := bound.(*ir.Const); ok {
		s.changed = true
		return c
	}
	if name == e.Name {
		return e
	}
	s.changed = true
	nv := &ir.Var{Name: name}
	nv.SetType(e.Type())
	return nv
}

// VisitAttribute reduces through Struct constructors and hoists a
// non-Var base into a temp so later attribute folding over the same
// base keeps working.
func (s *Simplify) VisitAttribute(e *ir.Attribute) any {
	v := s.TransformExpr(e.Value)
	if vv, ok := v.(*ir.Var); ok {
		if stored, ok := s.bindings[vv.Name]; ok {
			switch stored.(type) {
			case *ir.Var, *ir.Struct:
				v = stored
			}
		}
	}
	if st, ok := v.(*ir.Struct); ok {
		if layout, ok := st.Type().(types.Struct); ok {
			idx := layout.FieldPos(e.Field)
			if idx >= 0 {
				s.changed = true
				return st.Args[idx]
			}
		}
	}
	if !transform.IsSimple(v) {
		v = s.blocks.AssignTemp("attr_base", v)
	}
	if v == e.Value {
		return e
	}
	s.changed = true
	out := &ir.Attribute{Value: v, Field: e.Field}
	out.SetType(e.Type())
	return out
}

// VisitTupleProj reduces through Tuple literals to the projected
// element.
func (s *Simplify) VisitTupleProj(e *ir.TupleProj) any {
	nt := s.TransformExpr(e.TupleExpr)
	if v, ok := nt.(*ir.Var); ok {
		if stored, ok := s.bindings[v.Name]; ok {
			nt = stored
		}
	}
	if tup, ok := nt.(*ir.Tuple); ok {
		s.changed = true
		return tup.Elts[e.Index]
	}
	if nt == e.TupleExpr {
		return e
	}
	s.changed = true
	out := &ir.TupleProj{TupleExpr: nt, Index: e.Index}
	out.SetType(e.Type())
	return out
}

// VisitIndex folds a constant index into an Array literal.
func (s *Simplify) VisitIndex(e *ir.Index) any {
	v := s.TransformExpr(e.Value)
	idx := s.TransformExpr(e.Idx)
	if arr, ok := v.(*ir.Array); ok {
		if c, ok := idx.(*ir.Const); ok {
			if n, ok := intValue(c.Value); ok && n >= 0 && int(n) < len(arr.Elts) {
				s.changed = true
				return arr.Elts[n]
			}
		}
	}
	if v == e.Value && idx == e.Idx {
		return e
	}
	s.changed = true
	out := &ir.Index{Value: v, Idx: idx}
	out.SetType(e.Type())
	return out
}

func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// VisitCall rewrites a call through a resolved closure callee that has
// captured values, prepending them to the call-site args and leaving a
// capture-free closure as the callee (so the rewrite happens once), and
// otherwise normalizes arguments like any other call.
func (s *Simplify) VisitCall(e *ir.Call) any {
	fn := s.TransformExpr(e.Callee)
	args := s.transformArgs(e.Args)
	if cl, ok := fn.(*ir.Closure); ok && e.TypedCallee != nil && len(cl.Captured) > 0 {
		combined := make([]ir.Expr, 0, len(cl.Captured)+len(args))
		combined = append(combined, cl.Captured...)
		combined = append(combined, args...)
		s.changed = true
		bare := &ir.Closure{FnName: cl.FnName}
		bare.SetType(types.Closure{FnName: cl.FnName})
		out := &ir.Call{Callee: bare, Args: combined, TypedCallee: e.TypedCallee}
		out.SetType(e.Type())
		return out
	}
	if fn == e.Callee && sameExprSlice(args, e.Args) {
		return e
	}
	s.changed = true
	out := &ir.Call{Callee: fn, Args: args, TypedCallee: e.TypedCallee}
	out.SetType(e.Type())
	return out
}

func sameExprSlice(a, b []ir.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// transformArgs normalizes a call/prim/struct argument list: anything
// not already a Var or Const is assigned to a fresh temp in the current
// block so later passes can match on simple operands.
func (s *Simplify) transformArgs(args []ir.Expr) []ir.Expr {
	out := make([]ir.Expr, len(args))
	for i, a := range args {
		na := s.TransformExpr(a)
		if transform.IsSimple(na) {
			out[i] = na
		} else {
			out[i] = s.blocks.AssignTemp("tmp", na)
		}
	}
	return out
}

// VisitStruct normalizes a struct literal's field arguments.
func (s *Simplify) VisitStruct(e *ir.Struct) any {
	args := s.transformArgs(e.Args)
	if sameExprSlice(args, e.Args) {
		return e
	}
	out := &ir.Struct{Args: args}
	out.SetType(e.Type())
	return out
}

// VisitPrimCall evaluates constant-folded calls and applies the fixed
// set of algebraic identities for add/multiply/divide.
func (s *Simplify) VisitPrimCall(e *ir.PrimCall) any {
	args := s.transformArgs(e.Args)
	prim := e.Prim

	if allConstants(args) {
		result, err := prim.Eval(collectConstants(args))
		if err == nil {
			s.changed = true
			c := &ir.Const{Value: result}
			c.SetType(e.Type())
			return c
		}
	}

	switch prim.Name {
	case ir.PrimAdd.Name:
		if isZero(args[0]) {
			s.changed = true
			return args[1]
		}
		if isZero(args[1]) {
			s.changed = true
			return args[0]
		}
	case ir.PrimMul.Name:
		if isOne(args[0]) {
			s.changed = true
			return args[1]
		}
		if isOne(args[1]) {
			s.changed = true
			return args[0]
		}
		if !isFloatType(e.Type()) && (isZero(args[0]) || isZero(args[1])) {
			s.changed = true
			c := &ir.Const{Value: zeroValueFor(e.Type())}
			c.SetType(e.Type())
			return c
		}
	case ir.PrimDiv.Name:
		if isOne(args[1]) {
			s.changed = true
			return args[0]
		}
	}

	if sameExprSlice(args, e.Args) {
		return e
	}
	out := &ir.PrimCall{Prim: prim, Args: args}
	out.SetType(e.Type())
	return out
}

func zeroValueFor(t types.Type) any {
	if isFloatType(t) {
		return float64(0)
	}
	return int64(0)
}

// isFloatType reports whether t is a floating-point ground type. The
// mul-by-zero identity above only holds for integers: under IEEE 754,
// 0 * NaN and 0 * Inf are both NaN, not 0, so folding a float multiply
// to a zero constant whenever either operand is a literal zero would
// silently change the result for a NaN/Inf-valued other operand.
func isFloatType(t types.Type) bool {
	g, ok := t.(types.Ground)
	return ok && g.Kind.IsFloat()
}

// bindVar records rhs as the propagatable value of name, per bind_var's
// two admission rules: a Var rhs propagates through its own simple
// binding (if any), and any other safe rhs is recorded directly.
func (s *Simplify) bindVar(name string, rhs ir.Expr) {
	if v, ok := rhs.(*ir.Var); ok {
		if old, ok := s.bindings[v.Name]; ok && transform.IsSimple(old) {
			s.bindings[name] = old
			return
		}
		s.bindings[name] = rhs
		return
	}
	if isSafe(s.mutability, rhs) {
		s.bindings[name] = rhs
	}
}

// bind recurses through Tuple destructuring so each leaf name gets its
// own binding.
func (s *Simplify) bind(lhs, rhs ir.Expr) {
	switch l := lhs.(type) {
	case *ir.Var:
		s.bindVar(l.Name, rhs)
	case *ir.Tuple:
		if r, ok := rhs.(*ir.Tuple); ok {
			for i := range l.Elts {
				if i < len(r.Elts) {
					s.bind(l.Elts[i], r.Elts[i])
				}
			}
		}
	}
}

// VisitAssign rewrites the rhs, applies dead-rhs elision when the
// result is a singly-used Var with a recorded binding, records bindings
// and available-expression admission, and returns the original node
// unchanged when nothing moved.
func (s *Simplify) VisitAssign(stmt *ir.Assign) any {
	rhs := s.TransformExpr(stmt.Rhs)

	if v, ok := rhs.(*ir.Var); ok {
		if s.useCounts[v.Name] == 1 {
			if bound, ok := s.bindings[v.Name]; ok {
				rhs = bound
				s.useCounts[v.Name] = 0
				s.changed = true
			}
		}
	}

	s.bind(stmt.Lhs, rhs)

	if v, ok := stmt.Lhs.(*ir.Var); ok {
		switch rhs.(type) {
		case *ir.Var, *ir.Const:
		default:
			if isSafe(s.mutability, rhs) {
				key := exprKey(rhs)
				if _, exists := s.availableExprs.Get(key); !exists {
					s.availableExprs.Set(key, v)
				}
			}
		}
	}

	if rhs == stmt.Rhs {
		return stmt
	}
	s.changed = true
	return &ir.Assign{Lhs: stmt.Lhs, Rhs: rhs}
}

// VisitWhile rewrites the loop body in its own scope, normalizes the
// loop-carried φ-merge (pre-loop value in the enclosing block, back-edge
// value in the body's tail), and if the rewritten condition is not
// already simple, hoists it into a fresh φ variable per the
// loop-condition-hoisting rule.
func (s *Simplify) VisitWhile(stmt *ir.While) any {
	s.availableExprs.Push()
	cond := s.TransformExpr(stmt.Cond)

	bodyB := s.blocks.Push()
	s.rewriteBlock(stmt.Body, bodyB)
	s.blocks.Pop()

	merge := s.transformMerge(stmt.MergeMap, s.blocks.Current(), bodyB)

	if !transform.IsSimple(cond) {
		if merge == nil {
			merge = ir.Merge{}
		}
		preSubst := make(map[string]ir.Expr, len(merge))
		backSubst := make(map[string]ir.Expr, len(merge))
		for name, pair := range merge {
			preSubst[name] = pair[0]
			backSubst[name] = pair[1]
		}
		preCond := substVars(cond, preSubst)
		backCond := substVars(cond, backSubst)

		cPre := transform.AssignTempIn(s.names, s.blocks.Current(), "c_pre", preCond)
		cBack := transform.AssignTempIn(s.names, bodyB, "c_back", backCond)

		freshC := s.names.Fresh("c")
		cVar := &ir.Var{Name: freshC}
		cVar.SetType(transform.BoolType)
		merge[freshC] = [2]ir.Expr{cPre, cBack}
		cond = cVar
		s.changed = true
	}

	s.availableExprs.Pop()
	return &ir.While{Cond: cond, Body: bodyB.Stmts(), MergeMap: merge}
}

// transformMerge rewrites both sides of every φ in m, hoisting any
// non-simple branch value into its own branch block, and drops the φ
// (rebinding name to the shared value) whenever both sides agree
// structurally after rewriting.
func (s *Simplify) transformMerge(m ir.Merge, leftBlock, rightBlock *transform.BlockBuilder) ir.Merge {
	if m == nil {
		return nil
	}
	result := make(ir.Merge)
	for _, name := range m.Names() {
		pair := m[name]
		newLeft := s.TransformExpr(pair[0])
		newRight := s.TransformExpr(pair[1])

		if !transform.IsSimple(newLeft) {
			newLeft = transform.AssignTempIn(s.names, leftBlock, "phi", newLeft)
			s.changed = true
		}
		if !transform.IsSimple(newRight) {
			newRight = transform.AssignTempIn(s.names, rightBlock, "phi", newRight)
			s.changed = true
		}

		if exprEqual(newLeft, newRight) {
			s.bindings[name] = newLeft
			s.changed = true
			continue
		}
		result[name] = [2]ir.Expr{newLeft, newRight}
	}
	return result
}

// VisitReturn rewrites the return value.
func (s *Simplify) VisitReturn(stmt *ir.Return) any {
	if stmt.Value == nil {
		return stmt
	}
	v := s.TransformExpr(stmt.Value)
	if v == stmt.Value {
		return stmt
	}
	s.changed = true
	return &ir.Return{Value: v}
}
