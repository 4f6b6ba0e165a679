package specialize

import (
	"testing"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

func registerProbeFns(t *testing.T, registry *ir.Registry) {
	t.Helper()

	incFA, err := ir.NewFormalArgs([]string{"x"})
	if err != nil {
		t.Fatalf("NewFormalArgs: %v", err)
	}
	inc := &ir.UntypedFn{Name: "increment", FormalArgs: incFA, Body: []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	}}
	if err := registry.RegisterUntyped(inc); err != nil {
		t.Fatalf("RegisterUntyped(increment): %v", err)
	}

	sumFA, err := ir.NewFormalArgs([]string{"a", "b"})
	if err != nil {
		t.Fatalf("NewFormalArgs: %v", err)
	}
	sum := &ir.UntypedFn{Name: "sum", FormalArgs: sumFA, Body: []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "a"}, &ir.Var{Name: "b"},
		}}},
	}}
	if err := registry.RegisterUntyped(sum); err != nil {
		t.Fatalf("RegisterUntyped(sum): %v", err)
	}
}

func TestInferAdverbResultMap(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerProbeFns(t, registry)

	elt := types.Array{Rank: 1, Elt: types.TInt32}
	rt, err := InferAdverbResult(registry, names, ir.AdverbMap, "increment", "", []types.Type{elt})
	if err != nil {
		t.Fatalf("InferAdverbResult(Map): %v", err)
	}
	if !rt.Equal(elt) {
		t.Fatalf("map(increment) over %s should produce %s, got %s", elt, elt, rt)
	}
}

func TestInferAdverbResultReduce(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerProbeFns(t, registry)

	elt := types.Array{Rank: 1, Elt: types.TInt32}
	rt, err := InferAdverbResult(registry, names, ir.AdverbReduce, "increment", "sum", []types.Type{elt})
	if err != nil {
		t.Fatalf("InferAdverbResult(Reduce): %v", err)
	}
	if !rt.Equal(types.TInt32) {
		t.Fatalf("reduce(increment, sum) over %s should produce Int32, got %s", elt, rt)
	}
}

func TestInferAdverbResultUnknownKind(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerProbeFns(t, registry)

	elt := types.Array{Rank: 1, Elt: types.TInt32}
	if _, err := InferAdverbResult(registry, names, ir.AdverbKind(99), "increment", "", []types.Type{elt}); err == nil {
		t.Fatalf("expected an error for an unrecognized adverb kind")
	}
}
