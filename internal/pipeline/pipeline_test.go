package pipeline

import (
	"reflect"
	"testing"

	"arrayjit/internal/ir"
	"arrayjit/internal/specialize"
	"arrayjit/internal/types"
)

func mustFormals(t *testing.T, names []string) *ir.FormalArgs {
	t.Helper()
	fa, err := ir.NewFormalArgs(names)
	if err != nil {
		t.Fatalf("NewFormalArgs(%v): %v", names, err)
	}
	return fa
}

// evalConst evaluates e to a float64, resolving Var references against
// env and folding PrimCalls through the node's own Prim.Eval — the
// pipeline has no interpreter, so tests check a scenario's literal
// output this way rather than by running compiled code.
func evalConst(t *testing.T, e ir.Expr, env map[string]float64) float64 {
	t.Helper()
	switch x := e.(type) {
	case *ir.Const:
		switch v := x.Value.(type) {
		case int64:
			return float64(v)
		case int:
			return float64(v)
		case float64:
			return v
		case float32:
			return float64(v)
		}
		t.Fatalf("evalConst: unsupported constant value %v (%T)", x.Value, x.Value)
	case *ir.Var:
		v, ok := env[x.Name]
		if !ok {
			t.Fatalf("evalConst: unbound variable %q", x.Name)
		}
		return v
	case *ir.PrimCall:
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = evalConst(t, a, env)
		}
		result, err := x.Prim.Eval(args)
		if err != nil {
			t.Fatalf("evalConst: %s: %v", x.Prim.Name, err)
		}
		f, ok := result.(float64)
		if !ok {
			t.Fatalf("evalConst: %s produced non-float64 %v (%T)", x.Prim.Name, result, result)
		}
		return f
	}
	t.Fatalf("evalConst: cannot evaluate expression kind %T", e)
	return 0
}

// evalBody evaluates a straight-line body (zero or more Assigns binding
// Vars, ending in a Return) against argEnv, returning the Return's value.
func evalBody(t *testing.T, body []ir.Stmt, argEnv map[string]float64) float64 {
	t.Helper()
	env := make(map[string]float64, len(argEnv))
	for k, v := range argEnv {
		env[k] = v
	}
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *ir.Assign:
			v, ok := st.Lhs.(*ir.Var)
			if !ok {
				t.Fatalf("evalBody: non-Var assignment destination %T", st.Lhs)
			}
			env[v.Name] = evalConst(t, st.Rhs, env)
		case *ir.Return:
			return evalConst(t, st.Value, env)
		default:
			t.Fatalf("evalBody: unexpected statement kind %T", stmt)
		}
	}
	t.Fatalf("evalBody: body has no Return")
	return 0
}

// containsCall reports whether any expression in body is, or contains, an
// *ir.Call node.
func containsCall(body []ir.Stmt) bool {
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *ir.Assign:
			if exprContainsCall(st.Rhs) {
				return true
			}
		case *ir.If:
			if exprContainsCall(st.Cond) || containsCall(st.ThenBlock) || containsCall(st.ElseBlock) {
				return true
			}
		case *ir.While:
			if exprContainsCall(st.Cond) || containsCall(st.Body) {
				return true
			}
		case *ir.Return:
			if st.Value != nil && exprContainsCall(st.Value) {
				return true
			}
		}
	}
	return false
}

func exprContainsCall(e ir.Expr) bool {
	switch x := e.(type) {
	case nil:
		return false
	case *ir.Call:
		return true
	case *ir.PrimCall:
		return anyContainsCall(x.Args)
	case *ir.Cast:
		return exprContainsCall(x.Value)
	case *ir.Tuple:
		return anyContainsCall(x.Elts)
	case *ir.TupleProj:
		return exprContainsCall(x.TupleExpr)
	case *ir.Index:
		return exprContainsCall(x.Value) || exprContainsCall(x.Idx)
	case *ir.Slice:
		return exprContainsCall(x.Start) || exprContainsCall(x.Stop) || exprContainsCall(x.Step)
	case *ir.Closure:
		return anyContainsCall(x.Captured)
	case *ir.ClosureElt:
		return exprContainsCall(x.ClosureExpr)
	default:
		return false
	}
}

func anyContainsCall(exprs []ir.Expr) bool {
	for _, e := range exprs {
		if exprContainsCall(e) {
			return true
		}
	}
	return false
}

// countAllStmts counts a body's statements, recursing into branch/loop
// bodies, mirroring internal/inline's own size heuristic.
func countAllStmts(body []ir.Stmt) int {
	n := 0
	for _, stmt := range body {
		n++
		switch st := stmt.(type) {
		case *ir.If:
			n += countAllStmts(st.ThenBlock) + countAllStmts(st.ElseBlock)
		case *ir.While:
			n += countAllStmts(st.Body)
		}
	}
	return n
}

// assertTypesPresent fails the test if any expression in body carries a
// nil Type() — Optimize must preserve the type annotations specialize
// attached to every node.
func assertTypesPresent(t *testing.T, body []ir.Stmt) {
	t.Helper()
	var walkExpr func(e ir.Expr)
	walkExpr = func(e ir.Expr) {
		if e == nil {
			return
		}
		if e.Type() == nil {
			t.Fatalf("expression %T has a nil type after optimization", e)
		}
		switch x := e.(type) {
		case *ir.PrimCall:
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ir.Cast:
			walkExpr(x.Value)
		case *ir.Tuple:
			for _, a := range x.Elts {
				walkExpr(a)
			}
		case *ir.TupleProj:
			walkExpr(x.TupleExpr)
		case *ir.Index:
			walkExpr(x.Value)
			walkExpr(x.Idx)
		case *ir.Call:
			walkExpr(x.Callee)
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ir.Closure:
			for _, a := range x.Captured {
				walkExpr(a)
			}
		}
	}
	var walk func(stmts []ir.Stmt)
	walk = func(stmts []ir.Stmt) {
		for _, stmt := range stmts {
			switch st := stmt.(type) {
			case *ir.Assign:
				walkExpr(st.Rhs)
			case *ir.If:
				walkExpr(st.Cond)
				walk(st.ThenBlock)
				walk(st.ElseBlock)
			case *ir.While:
				walkExpr(st.Cond)
				walk(st.Body)
			case *ir.Return:
				walkExpr(st.Value)
			}
		}
	}
	walk(body)
}

// registerInliningChain registers A(x)=x+1, B(x)=A(x), C(x)=B(x), the
// literal three-deep inlining chain: B's and C's bodies are each a bare
// Return of a Call through a Closure, the shape that used to deadlock
// Registry and that the inliner used to leave un-inlined.
func registerInliningChain(t *testing.T, registry *ir.Registry) {
	t.Helper()

	a := &ir.UntypedFn{Name: "A", FormalArgs: mustFormals(t, []string{"x"}), Body: []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int64(1)},
		}}},
	}}
	if err := registry.RegisterUntyped(a); err != nil {
		t.Fatalf("RegisterUntyped(A): %v", err)
	}

	b := &ir.UntypedFn{Name: "B", FormalArgs: mustFormals(t, []string{"x"}), Body: []ir.Stmt{
		&ir.Return{Value: &ir.Call{
			Callee: &ir.Closure{FnName: "A", Captured: nil},
			Args:   []ir.Expr{&ir.Var{Name: "x"}},
		}},
	}}
	if err := registry.RegisterUntyped(b); err != nil {
		t.Fatalf("RegisterUntyped(B): %v", err)
	}

	c := &ir.UntypedFn{Name: "C", FormalArgs: mustFormals(t, []string{"x"}), Body: []ir.Stmt{
		&ir.Return{Value: &ir.Call{
			Callee: &ir.Closure{FnName: "B", Captured: nil},
			Args:   []ir.Expr{&ir.Var{Name: "x"}},
		}},
	}}
	if err := registry.RegisterUntyped(c); err != nil {
		t.Fatalf("RegisterUntyped(C): %v", err)
	}
}

func TestOptimizeCollapsesInliningChain(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerInliningChain(t, registry)

	cFn, ok := registry.Untyped("C")
	if !ok {
		t.Fatalf("C not registered")
	}
	typedC, err := specialize.Specialize(registry, cFn, []types.Type{types.TInt64}, names)
	if err != nil {
		t.Fatalf("Specialize(C): %v", err)
	}

	optimized, err := Optimize(registry, typedC, names, nil, Config{})
	if err != nil {
		t.Fatalf("Optimize(C): %v", err)
	}

	if n := countAllStmts(optimized.Body); n > 2 {
		t.Fatalf("optimized C has %d statements, want <= 2: %+v", n, optimized.Body)
	}
	if containsCall(optimized.Body) {
		t.Fatalf("optimized C still contains a Call node: %+v", optimized.Body)
	}
	assertTypesPresent(t, optimized.Body)

	got := evalBody(t, optimized.Body, map[string]float64{typedC.ArgNames[0]: 1})
	if got != 2 {
		t.Fatalf("C(1) = %v, want 2", got)
	}
}

func TestOptimizeFoldsConstantArithmeticChain(t *testing.T) {
	// f(x): y = 4*1; z = y+1; a = z/5; b = x*a; return b
	// folds to a single `return x`, since 4*1=4, 4+1=5, 5/5=1, and x*1
	// collapses via the mul-by-one identity.
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()

	f := &ir.UntypedFn{Name: "f", FormalArgs: mustFormals(t, []string{"x"}), Body: []ir.Stmt{
		&ir.Assign{Lhs: &ir.Var{Name: "y"}, Rhs: &ir.PrimCall{Prim: ir.PrimMul, Args: []ir.Expr{
			&ir.Const{Value: int64(4)}, &ir.Const{Value: int64(1)},
		}}},
		&ir.Assign{Lhs: &ir.Var{Name: "z"}, Rhs: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "y"}, &ir.Const{Value: int64(1)},
		}}},
		&ir.Assign{Lhs: &ir.Var{Name: "a"}, Rhs: &ir.PrimCall{Prim: ir.PrimDiv, Args: []ir.Expr{
			&ir.Var{Name: "z"}, &ir.Const{Value: int64(5)},
		}}},
		&ir.Assign{Lhs: &ir.Var{Name: "b"}, Rhs: &ir.PrimCall{Prim: ir.PrimMul, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Var{Name: "a"},
		}}},
		&ir.Return{Value: &ir.Var{Name: "b"}},
	}}
	if err := registry.RegisterUntyped(f); err != nil {
		t.Fatalf("RegisterUntyped(f): %v", err)
	}

	typedF, err := specialize.Specialize(registry, f, []types.Type{types.TInt64}, names)
	if err != nil {
		t.Fatalf("Specialize(f): %v", err)
	}

	optimized, err := Optimize(registry, typedF, names, nil, Config{})
	if err != nil {
		t.Fatalf("Optimize(f): %v", err)
	}

	if len(optimized.Body) != 1 {
		t.Fatalf("optimized f has %d statements, want 1: %+v", len(optimized.Body), optimized.Body)
	}
	if _, ok := optimized.Body[0].(*ir.Return); !ok {
		t.Fatalf("optimized f's sole statement is %T, want *ir.Return", optimized.Body[0])
	}
	assertTypesPresent(t, optimized.Body)

	got := evalBody(t, optimized.Body, map[string]float64{typedF.ArgNames[0]: 1})
	if got != 1 {
		t.Fatalf("f(1) = %v, want 1", got)
	}
}

// TestOptimizeIsIdempotentAcrossIndependentRuns runs Optimize twice on
// the same typed function, each with Config{Copy: true} (bypassing the
// optimized-function cache so each call performs its own independent
// rewrite) and its own fresh NameSupply. Since the rewrite passes are
// pure functions of (body, starting name counters), both runs must
// produce structurally identical output.
func TestOptimizeIsIdempotentAcrossIndependentRuns(t *testing.T) {
	build := func() (*ir.Registry, *ir.TypedFn, *ir.NameSupply) {
		registry := ir.NewRegistry()
		names := ir.NewNameSupply()
		registerInliningChain(t, registry)
		cFn, ok := registry.Untyped("C")
		if !ok {
			t.Fatalf("C not registered")
		}
		typedC, err := specialize.Specialize(registry, cFn, []types.Type{types.TInt64}, names)
		if err != nil {
			t.Fatalf("Specialize(C): %v", err)
		}
		return registry, typedC, names
	}

	reg1, fn1, names1 := build()
	out1, err := Optimize(reg1, fn1, names1, nil, Config{Copy: true})
	if err != nil {
		t.Fatalf("first Optimize: %v", err)
	}

	reg2, fn2, names2 := build()
	out2, err := Optimize(reg2, fn2, names2, nil, Config{Copy: true})
	if err != nil {
		t.Fatalf("second Optimize: %v", err)
	}

	if !reflect.DeepEqual(out1.Body, out2.Body) {
		t.Fatalf("two independent Optimize runs over identical input diverged:\n%+v\nvs\n%+v", out1.Body, out2.Body)
	}

	// A cached (non-Copy) call against the same registry must return the
	// exact same object the first call stored, not a fresh rewrite.
	cached, err := Optimize(reg1, fn1, names1, nil, Config{})
	if err != nil {
		t.Fatalf("cached Optimize: %v", err)
	}
	if !reflect.DeepEqual(cached.Body, out1.Body) {
		t.Fatalf("cached Optimize returned a different body than the Copy run that populated the cache")
	}
}
