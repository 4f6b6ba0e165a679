package specialize

import (
	"context"

	"arrayjit/internal/cache"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// SpecializeRecorded behaves exactly like Specialize, additionally
// consulting and updating store's persistent seen-set. store only ever
// gates diagnostics: the in-process registry (TypedLocked/StoreTypedLocked)
// remains the sole source of truth for whether specialization work can be
// skipped within this process, since store never serializes IR and so can
// never answer "do I already have the typed function" — only "have I paid
// for this specialization before, in some process". Callers that don't
// care about cross-process warm/cold accounting should call Specialize
// directly; cmd/arrayjit uses this entry point to report cache statistics.
func SpecializeRecorded(ctx context.Context, store *cache.Store, registry *ir.Registry, fn *ir.UntypedFn, argTypes []types.Type, names *ir.NameSupply) (typed *ir.TypedFn, warm bool, err error) {
	digest := cache.Digest(fn, argTypes)

	warm, err = store.Seen(ctx, digest)
	if err != nil {
		return nil, false, err
	}

	typed, err = Specialize(registry, fn, argTypes, names)
	if err != nil {
		return nil, warm, err
	}

	if err := store.Record(ctx, digest); err != nil {
		return nil, warm, err
	}
	return typed, warm, nil
}
