package simplify

import (
	"testing"

	"arrayjit/internal/analysis"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

func int64Const(v int64) *ir.Const {
	c := &ir.Const{Value: v}
	c.SetType(types.TInt64)
	return c
}

func int64Var(name string) *ir.Var {
	v := &ir.Var{Name: name}
	v.SetType(types.TInt64)
	return v
}

func boolVar(name string) *ir.Var {
	v := &ir.Var{Name: name}
	v.SetType(types.TBool)
	return v
}

func prim(p ir.Prim, t types.Type, args ...ir.Expr) *ir.PrimCall {
	c := &ir.PrimCall{Prim: p, Args: args}
	c.SetType(t)
	return c
}

func runSimplify(t *testing.T, fn *ir.TypedFn) ([]ir.Stmt, bool) {
	t.Helper()
	names := ir.NewNameSupply()
	s := New(fn, names)
	out, changed, err := s.Run(fn.Body)
	if err != nil {
		t.Fatalf("Simplify.Run: %v", err)
	}
	return out, changed
}

func asReturnConst(t *testing.T, body []ir.Stmt) float64 {
	t.Helper()
	if len(body) != 1 {
		t.Fatalf("body has %d statements, want 1: %+v", len(body), body)
	}
	ret, ok := body[0].(*ir.Return)
	if !ok {
		t.Fatalf("sole statement is %T, want *ir.Return", body[0])
	}
	c, ok := ret.Value.(*ir.Const)
	if !ok {
		t.Fatalf("return value is %T, want *ir.Const", ret.Value)
	}
	switch v := c.Value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		t.Fatalf("unexpected constant kind %T", c.Value)
		return 0
	}
}

// Scenario: "constants across control flow" — both branches of an If
// assign the same constant to a name later merged by a φ. Even though
// the condition itself is a free variable (not foldable), the merge's
// two sides agree once simplified, so the φ collapses and, since
// nothing else references the branch-local names, the whole If
// disappears along with the now-dead assignments inside it.
func TestSimplifyCollapsesAgreeingPhiAndDropsDeadIf(t *testing.T) {
	thenAssign := &ir.Assign{Lhs: int64Var("x_then"), Rhs: int64Const(1)}
	elseAssign := &ir.Assign{Lhs: int64Var("x_else"), Rhs: int64Const(1)}
	ifStmt := &ir.If{
		Cond:      boolVar("b"),
		ThenBlock: []ir.Stmt{thenAssign},
		ElseBlock: []ir.Stmt{elseAssign},
		MergeMap:  ir.Merge{"x": [2]ir.Expr{int64Var("x_then"), int64Var("x_else")}},
	}
	ret := &ir.Return{Value: int64Var("x")}

	fn := &ir.TypedFn{
		Name: "g", UntypedName: "g",
		ArgTypes: []types.Type{types.TBool}, ArgNames: []string{"b"},
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{ifStmt, ret},
	}

	out, changed := runSimplify(t, fn)
	if !changed {
		t.Fatalf("expected Simplify to report a change")
	}
	if got := asReturnConst(t, out); got != 1 {
		t.Fatalf("g(true) = %v, want 1", got)
	}

	seen := make(map[string]bool)
	var walk func(stmts []ir.Stmt)
	walk = func(stmts []ir.Stmt) {
		for _, stmt := range stmts {
			if a, ok := stmt.(*ir.Assign); ok {
				if v, ok := a.Lhs.(*ir.Var); ok {
					if seen[v.Name] {
						t.Fatalf("duplicate assignment target %q: SSA form violated", v.Name)
					}
					seen[v.Name] = true
				}
			}
		}
	}
	walk(out)
}

// Scenario: always-true branch. x folds to a constant, the If's
// condition folds to true, and the dead else-branch (and the now-dead
// assignment to x) both disappear, leaving a single Return.
func TestSimplifyFoldsAlwaysTrueBranch(t *testing.T) {
	assignX := &ir.Assign{Lhs: int64Var("x"), Rhs: prim(ir.PrimAdd, types.TInt64, int64Const(1), int64Const(1))}
	cond := prim(ir.PrimEq, types.TBool, int64Var("x"), int64Const(2))
	thenRet := &ir.Return{Value: prim(ir.PrimAdd, types.TInt64, int64Const(0), int64Const(0))}
	elseRet := &ir.Return{Value: prim(ir.PrimAdd, types.TInt64,
		prim(ir.PrimMul, types.TInt64, int64Const(1), int64Const(1)), int64Const(0))}
	ifStmt := &ir.If{Cond: cond, ThenBlock: []ir.Stmt{thenRet}, ElseBlock: []ir.Stmt{elseRet}}

	fn := &ir.TypedFn{
		Name: "h", UntypedName: "h",
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{assignX, ifStmt},
	}

	out, changed := runSimplify(t, fn)
	if !changed {
		t.Fatalf("expected Simplify to report a change")
	}
	if got := asReturnConst(t, out); got != 0 {
		t.Fatalf("h() = %v, want 0", got)
	}
}

// Scenario: always-false branch — the mirror image of the always-true
// case, picking the else branch's Return instead.
func TestSimplifyFoldsAlwaysFalseBranch(t *testing.T) {
	assignX := &ir.Assign{Lhs: int64Var("x"), Rhs: prim(ir.PrimAdd, types.TInt64, int64Const(2), int64Const(2))}
	cond := prim(ir.PrimEq, types.TBool, int64Var("x"), int64Const(5))
	thenRet := &ir.Return{Value: int64Const(1)}
	elseRet := &ir.Return{Value: int64Const(2)}
	ifStmt := &ir.If{Cond: cond, ThenBlock: []ir.Stmt{thenRet}, ElseBlock: []ir.Stmt{elseRet}}

	fn := &ir.TypedFn{
		Name: "k", UntypedName: "k",
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{assignX, ifStmt},
	}

	out, changed := runSimplify(t, fn)
	if !changed {
		t.Fatalf("expected Simplify to report a change")
	}
	if got := asReturnConst(t, out); got != 2 {
		t.Fatalf("k() = %v, want 2", got)
	}
}

// Index is always opaque in internal/simplify's safety lattice
// (children treats *ir.Index as unconditionally unsafe, regardless of
// mutability): a read through an array can observe a write that
// happened since the last identical read, so it must never be treated
// as a pure, cacheable expression the way a Const or a transparent
// Tuple/Cast is.
func TestIndexIsNeverSafeToHoistOrCache(t *testing.T) {
	mutability := analysis.NewTypeBasedMutabilityAnalysis()

	arr := &ir.Var{Name: "arr"}
	arr.SetType(types.Array{Rank: 1, Elt: types.TInt64})
	index := &ir.Index{Value: arr, Idx: int64Const(0)}
	index.SetType(types.TInt64)

	if isSafe(mutability, index) {
		t.Fatalf("Index must never be reported safe: a later write through the same array would make a cached read stale")
	}
}

// Scenario: volatile-through-loop. Two textually identical Index reads
// inside one loop body must both survive Simplify's rewrite as
// distinct statements — since Index is never a CSE candidate, the
// second read is not folded into a reuse of the first read's result,
// which would be unsound if the array were mutated between them.
func TestSimplifyNeverCSEsIndexReadsAcrossALoopBody(t *testing.T) {
	arrType := types.Array{Rank: 1, Elt: types.TInt64}
	arr := &ir.Var{Name: "arr"}
	arr.SetType(arrType)

	readExpr := func() *ir.Index {
		idx := &ir.Index{Value: &ir.Var{Name: "arr"}, Idx: int64Const(0)}
		idx.Value.SetType(arrType)
		idx.SetType(types.TInt64)
		return idx
	}

	body := []ir.Stmt{
		&ir.Assign{Lhs: int64Var("r1"), Rhs: readExpr()},
		&ir.Assign{Lhs: int64Var("r2"), Rhs: readExpr()},
	}
	loop := &ir.While{Cond: boolVar("cond"), Body: body}

	fn := &ir.TypedFn{
		Name: "loop_read", UntypedName: "loop_read",
		ArgTypes:   []types.Type{arrType, types.TBool},
		ArgNames:   []string{"arr", "cond"},
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{loop, &ir.Return{Value: int64Var("r1")}},
	}

	out, _ := runSimplify(t, fn)
	if len(out) != 2 {
		t.Fatalf("expected the While and the Return to both survive, got %d statements: %+v", len(out), out)
	}
	w, ok := out[0].(*ir.While)
	if !ok {
		t.Fatalf("first statement is %T, want *ir.While", out[0])
	}
	if len(w.Body) != 2 {
		t.Fatalf("loop body has %d statements, want 2 (no CSE across Index reads): %+v", len(w.Body), w.Body)
	}
	for i, stmt := range w.Body {
		a, ok := stmt.(*ir.Assign)
		if !ok {
			t.Fatalf("loop body statement %d is %T, want *ir.Assign", i, stmt)
		}
		if _, ok := a.Rhs.(*ir.Index); !ok {
			t.Fatalf("loop body statement %d's rhs is %T, want *ir.Index (not folded into a reuse of an earlier read)", i, a.Rhs)
		}
	}
}

// Constant-folding soundness: VisitPrimCall must only fold a PrimCall
// whose every argument is already a Const, and the folded value must
// match the prim's own Eval, never an ad hoc reimplementation.
func TestConstantFoldingMatchesPrimEval(t *testing.T) {
	add := prim(ir.PrimAdd, types.TInt64, int64Const(3), int64Const(4))
	fn := &ir.TypedFn{
		Name: "addc", UntypedName: "addc",
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{&ir.Return{Value: add}},
	}
	out, changed := runSimplify(t, fn)
	if !changed {
		t.Fatalf("expected folding of an all-constant PrimCall to report a change")
	}
	want, err := ir.PrimAdd.Eval([]any{int64(3), int64(4)})
	if err != nil {
		t.Fatalf("PrimAdd.Eval: %v", err)
	}
	if got := asReturnConst(t, out); got != want.(float64) {
		t.Fatalf("folded result %v does not match PrimAdd.Eval result %v", got, want)
	}

	// A PrimCall with a non-constant argument must not be folded.
	mixed := prim(ir.PrimAdd, types.TInt64, int64Var("n"), int64Const(1))
	fn2 := &ir.TypedFn{
		Name: "addn", UntypedName: "addn",
		ArgTypes: []types.Type{types.TInt64}, ArgNames: []string{"n"},
		ReturnType: types.TInt64,
		Body:       []ir.Stmt{&ir.Return{Value: mixed}},
	}
	out2, _ := runSimplify(t, fn2)
	ret, ok := out2[0].(*ir.Return)
	if !ok {
		t.Fatalf("expected a Return, got %T", out2[0])
	}
	if _, ok := ret.Value.(*ir.Const); ok {
		t.Fatalf("a PrimCall with a non-constant argument must not fold to a Const")
	}
}
