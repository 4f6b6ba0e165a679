package ir

import "fmt"

// Prim names a total, pure, side-effect-free primitive operation:
// arithmetic, comparisons, logical and bitwise ops, and scalar casts.
// PrimCall nodes over all-constant arguments are foldable by Eval.
type Prim struct {
	Name  string
	Arity int
	Eval  func(args []any) (any, error)
}

func (p Prim) String() string { return p.Name }

func binNumeric(name string, f func(a, b float64) float64) Prim {
	return Prim{
		Name:  name,
		Arity: 2,
		Eval: func(args []any) (any, error) {
			a, aok := asFloat(args[0])
			b, bok := asFloat(args[1])
			if !aok || !bok {
				return nil, fmt.Errorf("prim %s: non-numeric constant argument", name)
			}
			return f(a, b), nil
		},
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func cmp(name string, f func(a, b float64) bool) Prim {
	return Prim{
		Name:  name,
		Arity: 2,
		Eval: func(args []any) (any, error) {
			a, aok := asFloat(args[0])
			b, bok := asFloat(args[1])
			if !aok || !bok {
				return nil, fmt.Errorf("prim %s: non-numeric constant argument", name)
			}
			return f(a, b), nil
		},
	}
}

func logical(name string, f func(a, b bool) bool) Prim {
	return Prim{
		Name:  name,
		Arity: 2,
		Eval: func(args []any) (any, error) {
			a, aok := asBool(args[0])
			b, bok := asBool(args[1])
			if !aok || !bok {
				return nil, fmt.Errorf("prim %s: non-boolean constant argument", name)
			}
			return f(a, b), nil
		},
	}
}

// The fixed set of primitives the untyped-IR producer may emit.
var (
	PrimAdd = binNumeric("add", func(a, b float64) float64 { return a + b })
	PrimSub = binNumeric("sub", func(a, b float64) float64 { return a - b })
	PrimMul = binNumeric("mul", func(a, b float64) float64 { return a * b })
	PrimDiv = binNumeric("div", func(a, b float64) float64 { return a / b })
	PrimMod = Prim{
		Name:  "mod",
		Arity: 2,
		Eval: func(args []any) (any, error) {
			a, aok := args[0].(int64)
			b, bok := args[1].(int64)
			if !aok || !bok {
				return nil, fmt.Errorf("prim mod: non-integer constant argument")
			}
			return a % b, nil
		},
	}

	PrimEq  = cmp("eq", func(a, b float64) bool { return a == b })
	PrimNeq = cmp("neq", func(a, b float64) bool { return a != b })
	PrimLt  = cmp("lt", func(a, b float64) bool { return a < b })
	PrimLte = cmp("lte", func(a, b float64) bool { return a <= b })
	PrimGt  = cmp("gt", func(a, b float64) bool { return a > b })
	PrimGte = cmp("gte", func(a, b float64) bool { return a >= b })

	PrimAnd = logical("and", func(a, b bool) bool { return a && b })
	PrimOr  = logical("or", func(a, b bool) bool { return a || b })
	PrimNot = Prim{
		Name:  "not",
		Arity: 1,
		Eval: func(args []any) (any, error) {
			a, ok := asBool(args[0])
			if !ok {
				return nil, fmt.Errorf("prim not: non-boolean constant argument")
			}
			return !a, nil
		},
	}
	PrimNeg = Prim{
		Name:  "neg",
		Arity: 1,
		Eval: func(args []any) (any, error) {
			a, ok := asFloat(args[0])
			if !ok {
				return nil, fmt.Errorf("prim neg: non-numeric constant argument")
			}
			return -a, nil
		},
	}
)

// Equal reports whether two prims are the same operation (prims are
// interned as package-level values, so pointer/name identity suffices).
func (p Prim) Equal(other Prim) bool { return p.Name == other.Name }
