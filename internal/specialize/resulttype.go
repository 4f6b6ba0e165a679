package specialize

import (
	"fmt"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// InferAdverbResult computes the result type an adverb node of the given
// kind would produce when applied to operands of operandTypes via
// calleeName (the elementwise/pairwise function for every kind) and, for
// Reduce/Scan, combineName (the fold function) — the same rank/elt-type
// combinators inferBlock's Map/AllPairs/Reduce/Scan cases use during
// ordinary specialization (see adverbs.go), exposed here so
// internal/adverb can learn a work function's real output type before
// constructing the args-struct layout the wrapper body will be
// type-checked against, rather than guessing a placeholder field type
// and hoping it agrees.
func InferAdverbResult(registry *ir.Registry, names *ir.NameSupply, kind ir.AdverbKind, calleeName, combineName string, operandTypes []types.Type) (types.Type, error) {
	registry.Lock()
	defer registry.Unlock()

	inf := &inferer{registry: registry, names: names, fnName: "<adverb-result-probe>"}
	e := make(env, len(operandTypes))
	args := make([]ir.Expr, len(operandTypes))
	for i, t := range operandTypes {
		name := fmt.Sprintf("probe%d", i)
		e[name] = t
		args[i] = &ir.Var{Name: name}
	}

	fnClosure := &ir.Closure{FnName: calleeName}

	switch kind {
	case ir.AdverbMap:
		_, rt, err := inf.inferMap(&ir.Map{Fn: fnClosure, Args: args, Axis: 0}, e)
		return rt, err
	case ir.AdverbAllPairs:
		if len(args) != 2 {
			return nil, fmt.Errorf("adverb: all_pairs probe requires exactly 2 operand types, got %d", len(args))
		}
		_, rt, err := inf.inferAllPairs(&ir.AllPairs{Fn: fnClosure, X: args[0], Y: args[1], Axis: 0}, e)
		return rt, err
	case ir.AdverbReduce:
		combineClosure := &ir.Closure{FnName: combineName}
		_, rt, err := inf.inferReduce(&ir.Reduce{Fn: fnClosure, Combine: combineClosure, Args: args, Axis: 0}, e)
		return rt, err
	case ir.AdverbScan:
		combineClosure := &ir.Closure{FnName: combineName}
		_, rt, err := inf.inferScan(&ir.Scan{Fn: fnClosure, Combine: combineClosure, Emit: fnClosure, Args: args, Axis: 0}, e)
		return rt, err
	default:
		return nil, fmt.Errorf("adverb: unrecognized adverb kind %v", kind)
	}
}
