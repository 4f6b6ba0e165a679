// Package adverb synthesizes the parallel work function behind a single
// adverb call site: given an adverb kind, its callee, and the concrete
// argument types at that call, it builds an untyped wrapper function
// with the runtime's fixed (start, stop, args, tile_sizes) calling
// convention, hands it through internal/specialize and internal/pipeline
// like any other function, and returns it ready for internal/backend to
// lower. It is the direct generalization of gen_par_work_function in the
// original implementation's adverb_api module: that function built one
// untyped wrapper per (adverb_class, fn.name, arg_types) key, memoized in
// a module-level dict, with a body that unpacks a per-worker args struct
// (slicing the array-typed fields to [start:stop], passing scalar fields
// straight through) and assigns the adverb's result into args.output.
// This package keeps that same shape and memoization discipline, adapted
// to a typed Go cache instead of a Python dict keyed on a raw tuple.
package adverb

import (
	"fmt"
	"sync"

	"arrayjit/internal/backend"
	"arrayjit/internal/ir"
	"arrayjit/internal/pipeline"
	"arrayjit/internal/specialize"
	"arrayjit/internal/types"
)

// Kind mirrors ir.AdverbKind at the adverb package's own boundary, kept
// distinct so this package's public API doesn't leak ir's internal enum
// representation into callers that only want to name an adverb kind.
type Kind int

const (
	Map Kind = iota
	AllPairs
	Reduce
	Scan
)

func (k Kind) String() string { return ir.AdverbKind(k).String() }

func (k Kind) irKind() ir.AdverbKind { return ir.AdverbKind(k) }

// Plan is a fully synthesized, optimized work function together with the
// struct layout its args pointer must satisfy at runtime.
type Plan struct {
	// WorkFn is the typed, optimized (start, stop, args, tile_sizes)
	// wrapper function, ready for internal/backend.Lower.
	WorkFn *ir.TypedFn
	// ArgsType is the per-worker argument struct layout: one field
	// "argN" per adverb operand (array operands pre-sliced inside the
	// wrapper, scalar operands passed through unchanged) plus a final
	// "output" field holding the adverb's per-range result.
	ArgsType types.Struct
}

// key identifies one memoized work function, mirroring the original
// implementation's (adverb_class, fn.name, arg_types) cache key.
type key struct {
	kind     Kind
	callee   string
	combine  string
	argsKey  string
}

// Synthesizer builds and memoizes work-function Plans and lowers them to
// backend artifacts. It owns no registry state of its own beyond its
// memo table — specialization and optimization still go through the
// shared *ir.Registry so a work function specialized once is visible to
// every subsequent adverb call site that needs the same plan.
type Synthesizer struct {
	registry *ir.Registry
	names    *ir.NameSupply
	backend  backend.Backend
	cfg      pipeline.Config

	mu    sync.Mutex
	plans map[key]*Plan
}

// New constructs a Synthesizer. backend may be nil if the caller only
// needs Plans (typed IR) and never calls Lower.
func New(registry *ir.Registry, names *ir.NameSupply, be backend.Backend, cfg pipeline.Config) *Synthesizer {
	return &Synthesizer{
		registry: registry,
		names:    names,
		backend:  be,
		cfg:      cfg,
		plans:    make(map[key]*Plan),
	}
}

// Plan returns the memoized work-function Plan for applying callee
// (and, for Reduce/Scan, combine) along an adverb of the given kind to
// operands of argTypes, building and optimizing a fresh one on a miss.
func (s *Synthesizer) Plan(kind Kind, callee string, combine string, argTypes []types.Type) (*Plan, error) {
	k := key{kind: kind, callee: callee, combine: combine, argsKey: types.Key(argTypes)}

	s.mu.Lock()
	if p, ok := s.plans[k]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	plan, err := s.build(kind, callee, combine, argTypes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.plans[k] = plan
	s.mu.Unlock()
	return plan, nil
}

// Lower synthesizes (or reuses) the Plan for the given call shape and
// lowers its work function through the configured backend.
func (s *Synthesizer) Lower(kind Kind, callee string, combine string, argTypes []types.Type) (*backend.Artifact, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("adverb: no backend configured")
	}
	plan, err := s.Plan(kind, callee, combine, argTypes)
	if err != nil {
		return nil, err
	}
	return s.backend.Lower(plan.WorkFn, backend.LowerOptions{OptTile: s.cfg.OptTile})
}

func (s *Synthesizer) build(kind Kind, callee string, combine string, argTypes []types.Type) (*Plan, error) {
	outputType, err := specialize.InferAdverbResult(s.registry, s.names, kind.irKind(), callee, combine, argTypes)
	if err != nil {
		return nil, fmt.Errorf("adverb: inferring result type for %s(%s): %w", kind, callee, err)
	}

	untypedWF, argsType, err := buildWrapper(s.names, kind, callee, combine, argTypes, outputType)
	if err != nil {
		return nil, err
	}
	if err := s.registry.RegisterUntyped(untypedWF); err != nil {
		return nil, fmt.Errorf("adverb: registering work function for %s(%s): %w", kind, callee, err)
	}

	wfArgTypes := []types.Type{
		types.TInt32,
		types.TInt32,
		argsType,
		types.Ptr{Elt: types.TInt32},
	}

	typed, err := specialize.Specialize(s.registry, untypedWF, wfArgTypes, s.names)
	if err != nil {
		return nil, fmt.Errorf("adverb: specializing work function for %s(%s): %w", kind, callee, err)
	}

	// No self-reference to mark here: the wrapper's own body never calls
	// itself. The always-inline convention applies at whatever call site
	// later invokes this wrapper by name (see inline.New's doc comment);
	// a caller optimizing that call site should include typed.Name in
	// its own pipeline.ExplicitInline set.
	optimized, err := pipeline.Optimize(s.registry, typed, s.names, nil, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("adverb: optimizing work function for %s(%s): %w", kind, callee, err)
	}

	return &Plan{WorkFn: optimized, ArgsType: argsType}, nil
}
