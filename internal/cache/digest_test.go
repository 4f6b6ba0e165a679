package cache

import (
	"testing"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

func mustFn(t *testing.T, name string, positional []string, body []ir.Stmt) *ir.UntypedFn {
	t.Helper()
	fa, err := ir.NewFormalArgs(positional)
	if err != nil {
		t.Fatalf("NewFormalArgs(%v): %v", positional, err)
	}
	return &ir.UntypedFn{Name: name, FormalArgs: fa, Body: body}
}

func incrementBody() []ir.Stmt {
	return []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	}
}

func TestDigestDeterministic(t *testing.T) {
	fn1 := mustFn(t, "increment", []string{"x"}, incrementBody())
	fn2 := mustFn(t, "increment", []string{"x"}, incrementBody())

	d1 := Digest(fn1, []types.Type{types.TInt32})
	d2 := Digest(fn2, []types.Type{types.TInt32})
	if d1 != d2 {
		t.Fatalf("Digest differs for structurally identical functions: %s vs %s", d1, d2)
	}
}

func TestDigestIndependentOfNameVersion(t *testing.T) {
	bodyVersioned := []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x.2"}, &ir.Const{Value: int32(1)},
		}}},
	}
	fnBase := mustFn(t, "increment", []string{"x"}, incrementBody())
	fnVersioned := mustFn(t, "increment", []string{"x"}, bodyVersioned)

	d1 := Digest(fnBase, []types.Type{types.TInt32})
	d2 := Digest(fnVersioned, []types.Type{types.TInt32})
	if d1 != d2 {
		t.Fatalf("Digest should be independent of SSA .N suffixes: %s vs %s", d1, d2)
	}
}

func TestDigestDiffersOnArgTypes(t *testing.T) {
	fn := mustFn(t, "increment", []string{"x"}, incrementBody())

	d1 := Digest(fn, []types.Type{types.TInt32})
	d2 := Digest(fn, []types.Type{types.TFloat64})
	if d1 == d2 {
		t.Fatalf("Digest should differ across argument types, got equal digests %s", d1)
	}
}

func TestDigestDiffersOnBody(t *testing.T) {
	fn1 := mustFn(t, "increment", []string{"x"}, incrementBody())
	fn2 := mustFn(t, "decrement", []string{"x"}, []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimSub, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	})

	d1 := Digest(fn1, []types.Type{types.TInt32})
	d2 := Digest(fn2, []types.Type{types.TInt32})
	if d1 == d2 {
		t.Fatalf("Digest should differ for different function names/bodies, got equal digests %s", d1)
	}
}
