package specialize

import (
	"fmt"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// primRule computes a PrimCall's result type from its already-inferred
// argument types, or reports an incompatible-argument error. This is the
// rule table spec.md §4.2 calls for: "PrimCall -> rule table keyed on prim
// and arg types".
func primRule(fnName string, p ir.Prim, argTypes []types.Type) (types.Type, error) {
	switch p.Name {
	case "add", "sub", "mul", "div", "mod":
		return numericRule(fnName, p.Name, argTypes)
	case "eq", "neq", "lt", "lte", "gt", "gte", "and", "or":
		if len(argTypes) != 2 {
			return nil, typeErr(fnName, p.Name, argTypes)
		}
		return types.TBool, nil
	case "not":
		if len(argTypes) != 1 || !argTypes[0].Equal(types.TBool) {
			return nil, typeErr(fnName, p.Name, argTypes)
		}
		return types.TBool, nil
	case "neg":
		if len(argTypes) != 1 {
			return nil, typeErr(fnName, p.Name, argTypes)
		}
		g, ok := argTypes[0].(types.Ground)
		if !ok || g.Kind == types.Bool {
			return nil, typeErr(fnName, p.Name, argTypes)
		}
		return argTypes[0], nil
	default:
		return nil, typeErr(fnName, p.Name, argTypes)
	}
}

func numericRule(fnName, prim string, argTypes []types.Type) (types.Type, error) {
	if len(argTypes) != 2 {
		return nil, typeErr(fnName, prim, argTypes)
	}
	ga, aok := argTypes[0].(types.Ground)
	gb, bok := argTypes[1].(types.Ground)
	if !aok || !bok || ga.Kind == types.Bool || gb.Kind == types.Bool {
		return nil, typeErr(fnName, prim, argTypes)
	}
	unified, err := types.Unify(ga, gb)
	if err != nil {
		return nil, typeErr(fnName, prim, argTypes)
	}
	return unified, nil
}

func typeErr(fnName, prim string, argTypes []types.Type) error {
	parts := make([]string, len(argTypes))
	for i, t := range argTypes {
		parts[i] = t.String()
	}
	return fmt.Errorf("prim %s: incompatible argument types (%v)", prim, parts)
}
