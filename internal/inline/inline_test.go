package inline

import (
	"testing"

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

func prim(p ir.Prim, t types.Type, args ...ir.Expr) *ir.PrimCall {
	c := &ir.PrimCall{Prim: p, Args: args}
	c.SetType(t)
	return c
}

// clampCallee builds the equivalent of:
//
//	fn clamp(x):
//	    if x < 0:
//	        return 0
//	    return x
//
// a callee whose early Return sits under a branch with a further
// statement (the trailing Return) after the branch — the shape that
// rewriteReturns must never see, since flattening its Return into an
// Assign would strand the post-branch Assign to always overwrite it.
func clampCallee() *ir.TypedFn {
	return &ir.TypedFn{
		Name:       "clamp",
		ArgNames:   []string{"x"},
		ArgTypes:   []types.Type{types.TInt64},
		ReturnType: types.TInt64,
		Body: []ir.Stmt{
			&ir.If{
				Cond:      prim(ir.PrimLt, types.TBool, int64Var("x"), int64Const(0)),
				ThenBlock: []ir.Stmt{&ir.Return{Value: int64Const(0)}},
				ElseBlock: nil,
			},
			&ir.Return{Value: int64Var("x")},
		},
	}
}

func TestInlinableRejectsEarlyReturnFollowedByStatements(t *testing.T) {
	if onlyTailReturns(clampCallee().Body) {
		t.Fatalf("onlyTailReturns: clamp's early Return is not in tail position, want false")
	}

	p := New(ir.NewNameSupply(), nil)
	callee := clampCallee()
	if p.inlinable(callee) {
		t.Fatalf("inlinable(clamp) = true, want false: inlining would clobber the early-return branch's Assign")
	}
}

func TestRunLeavesUninlinableCallSiteUntouched(t *testing.T) {
	callee := clampCallee()
	call := &ir.Call{TypedCallee: callee, Args: []ir.Expr{int64Const(5)}}
	call.SetType(types.TInt64)
	body := []ir.Stmt{
		&ir.Assign{Lhs: int64Var("y"), Rhs: call},
		&ir.Return{Value: int64Var("y")},
	}

	p := New(ir.NewNameSupply(), nil)
	out, changed, err := p.Run(body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed {
		t.Fatalf("Run reported changed=true, want false: clamp is not tail-return-safe so must not be inlined")
	}
	assign, ok := out[0].(*ir.Assign)
	if !ok || assign.Rhs != call {
		t.Fatalf("call site %+v was rewritten, want left as the original Assign", out[0])
	}
}

// straightLineCallee builds fn add1(x): return x + 1, a single
// tail-return callee that is always eligible for inlining.
func straightLineCallee() *ir.TypedFn {
	return &ir.TypedFn{
		Name:       "add1",
		ArgNames:   []string{"x"},
		ArgTypes:   []types.Type{types.TInt64},
		ReturnType: types.TInt64,
		Body: []ir.Stmt{
			&ir.Return{Value: prim(ir.PrimAdd, types.TInt64, int64Var("x"), int64Const(1))},
		},
	}
}

func TestRunInlinesTailReturnCalleeIntoAssign(t *testing.T) {
	callee := straightLineCallee()
	call := &ir.Call{TypedCallee: callee, Args: []ir.Expr{int64Const(5)}}
	call.SetType(types.TInt64)
	body := []ir.Stmt{
		&ir.Assign{Lhs: int64Var("y"), Rhs: call},
		&ir.Return{Value: int64Var("y")},
	}

	p := New(ir.NewNameSupply(), nil)
	out, changed, err := p.Run(body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("Run reported changed=false, want true: add1 is a single tail-return callee and should inline")
	}
	for _, st := range out {
		if assign, ok := st.(*ir.Assign); ok {
			if _, ok := assign.Rhs.(*ir.Call); ok {
				t.Fatalf("call site survived inlining: %+v", st)
			}
		}
	}
}

func TestRunInlinesBareReturnOfCall(t *testing.T) {
	callee := straightLineCallee()
	call := &ir.Call{TypedCallee: callee, Args: []ir.Expr{int64Const(5)}}
	call.SetType(types.TInt64)
	body := []ir.Stmt{&ir.Return{Value: call}}

	p := New(ir.NewNameSupply(), nil)
	out, changed, err := p.Run(body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !changed {
		t.Fatalf("Run reported changed=false, want true")
	}
	for _, st := range out {
		if ret, ok := st.(*ir.Return); ok {
			if _, ok := ret.Value.(*ir.Call); ok {
				t.Fatalf("call site survived inlining inside a bare Return: %+v", st)
			}
		}
	}
}
