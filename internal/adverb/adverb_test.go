package adverb

import (
	"testing"

	"arrayjit/internal/ir"
	"arrayjit/internal/pipeline"
	"arrayjit/internal/types"
)

func registerTestFns(t *testing.T, registry *ir.Registry) {
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

func TestPlanMapProducesArrayOutput(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerTestFns(t, registry)

	synth := New(registry, names, nil, pipeline.Config{})
	elt := types.Array{Rank: 1, Elt: types.TInt32}

	plan, err := synth.Plan(Map, "increment", "", []types.Type{elt})
	if err != nil {
		t.Fatalf("Plan(Map): %v", err)
	}

	outField := plan.ArgsType.Fields[len(plan.ArgsType.Fields)-1]
	if outField.Name != "output" {
		t.Fatalf("expected last field to be output, got %s", outField.Name)
	}
	if !outField.Type.Equal(elt) {
		t.Fatalf("expected map(increment) over Array(1,Int32) to produce Array(1,Int32) output, got %s", outField.Type)
	}
}

func TestPlanReduceProducesScalarOutput(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerTestFns(t, registry)

	synth := New(registry, names, nil, pipeline.Config{})
	elt := types.Array{Rank: 1, Elt: types.TInt32}

	plan, err := synth.Plan(Reduce, "increment", "sum", []types.Type{elt})
	if err != nil {
		t.Fatalf("Plan(Reduce): %v", err)
	}

	outField := plan.ArgsType.Fields[len(plan.ArgsType.Fields)-1]
	if !outField.Type.Equal(types.TInt32) {
		t.Fatalf("expected reduce(increment, sum) over Array(1,Int32) to produce Int32 output, got %s", outField.Type)
	}
}

func TestPlanIsMemoized(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerTestFns(t, registry)

	synth := New(registry, names, nil, pipeline.Config{})
	elt := types.Array{Rank: 1, Elt: types.TInt32}

	p1, err := synth.Plan(Map, "increment", "", []types.Type{elt})
	if err != nil {
		t.Fatalf("first Plan(Map): %v", err)
	}
	p2, err := synth.Plan(Map, "increment", "", []types.Type{elt})
	if err != nil {
		t.Fatalf("second Plan(Map): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected Plan to return the memoized pointer on a repeat call")
	}
}

func TestLowerRequiresBackend(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	registerTestFns(t, registry)

	synth := New(registry, names, nil, pipeline.Config{})
	elt := types.Array{Rank: 1, Elt: types.TInt32}

	if _, err := synth.Lower(Map, "increment", "", []types.Type{elt}); err == nil {
		t.Fatalf("expected Lower with a nil backend to error")
	}
}
