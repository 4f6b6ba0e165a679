package specialize

import (
	"context"
	"testing"

	"arrayjit/internal/cache"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

func TestSpecializeRecordedReportsWarmOnSecondCall(t *testing.T) {
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()

	fa, err := ir.NewFormalArgs([]string{"x"})
	if err != nil {
		t.Fatalf("NewFormalArgs: %v", err)
	}
	fn := &ir.UntypedFn{Name: "increment", FormalArgs: fa, Body: []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	}}
	if err := registry.RegisterUntyped(fn); err != nil {
		t.Fatalf("RegisterUntyped: %v", err)
	}

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	argTypes := []types.Type{types.TInt32}

	_, warm, err := SpecializeRecorded(ctx, store, registry, fn, argTypes, names)
	if err != nil {
		t.Fatalf("first SpecializeRecorded: %v", err)
	}
	if warm {
		t.Fatalf("expected first specialization to be reported cold")
	}

	_, warm, err = SpecializeRecorded(ctx, store, registry, fn, argTypes, names)
	if err != nil {
		t.Fatalf("second SpecializeRecorded: %v", err)
	}
	if !warm {
		t.Fatalf("expected second specialization of the same digest to be reported warm")
	}
}

func TestSpecializeRecordedStillSpecializesOnWarmHit(t *testing.T) {
	// The digest store is a seen-set, not an artifact cache: even a warm
	// hit must still run Specialize, since no IR is ever reconstructed
	// from a digest alone.
	registry := ir.NewRegistry()
	names := ir.NewNameSupply()

	fa, err := ir.NewFormalArgs([]string{"x"})
	if err != nil {
		t.Fatalf("NewFormalArgs: %v", err)
	}
	fn := &ir.UntypedFn{Name: "increment", FormalArgs: fa, Body: []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	}}
	if err := registry.RegisterUntyped(fn); err != nil {
		t.Fatalf("RegisterUntyped: %v", err)
	}

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	argTypes := []types.Type{types.TInt32}

	typed1, _, err := SpecializeRecorded(ctx, store, registry, fn, argTypes, names)
	if err != nil {
		t.Fatalf("first SpecializeRecorded: %v", err)
	}
	typed2, warm, err := SpecializeRecorded(ctx, store, registry, fn, argTypes, names)
	if err != nil {
		t.Fatalf("second SpecializeRecorded: %v", err)
	}
	if !warm {
		t.Fatalf("expected warm on second call")
	}
	if typed2 == nil {
		t.Fatalf("expected a real typed function even on a warm digest hit")
	}
	if typed1.ReturnType == nil || !typed1.ReturnType.Equal(typed2.ReturnType) {
		t.Fatalf("expected both calls to agree on return type")
	}
}
