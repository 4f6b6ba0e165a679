package simplify

import (
	"arrayjit/internal/analysis"
	"arrayjit/internal/ir"
)

// children returns the sub-expressions that determine whether e's value
// is unaffected by mutable state elsewhere in the function, or (nil,
// false) if e's kind is opaque to this analysis (Index and Call: the
// former reads through array storage another statement may write, the
// latter may call into code that reads or writes anything). When
// allowMutable is true, Array/ArrayView/Struct/Attribute are treated as
// transparent regardless of their element type's mutability — used by
// the available-expressions admission check, which only needs
// transparency for the expr actually being hashed, not full safety.
func children(m *analysis.TypeBasedMutabilityAnalysis, e ir.Expr, allowMutable bool) ([]ir.Expr, bool) {
	switch ex := e.(type) {
	case *ir.Const, *ir.Var:
		return nil, true
	case *ir.PrimCall:
		return ex.Args, true
	case *ir.Closure:
		return ex.Captured, true
	case *ir.ClosureElt:
		return []ir.Expr{ex.ClosureExpr}, true
	case *ir.Tuple:
		return ex.Elts, true
	case *ir.TupleProj:
		return []ir.Expr{ex.TupleExpr}, true
	case *ir.Slice:
		return []ir.Expr{ex.Start, ex.Stop, ex.Step}, true
	case *ir.Cast:
		return []ir.Expr{ex.Value}, true
	}

	if allowMutable || m.Immutable(e.Type()) {
		switch ex := e.(type) {
		case *ir.Array:
			return ex.Elts, true
		case *ir.ArrayView:
			return []ir.Expr{ex.Data, ex.Shape, ex.Strides, ex.Offset}, true
		case *ir.Struct:
			return ex.Args, true
		case *ir.Attribute:
			return []ir.Expr{ex.Value}, true
		}
	}
	return nil, false
}

// isSafe reports whether e is pure and unaffected by any mutable state
// write elsewhere in the function — the condition under which it may be
// cached in available expressions or hoisted past a loop back-edge.
func isSafe(m *analysis.TypeBasedMutabilityAnalysis, e ir.Expr) bool {
	kids, ok := children(m, e, false)
	if !ok {
		return false
	}
	for _, k := range kids {
		if k == nil {
			continue
		}
		if !isSafe(m, k) {
			return false
		}
	}
	return true
}

func allSafe(m *analysis.TypeBasedMutabilityAnalysis, exprs []ir.Expr) bool {
	for _, e := range exprs {
		if e != nil && !isSafe(m, e) {
			return false
		}
	}
	return true
}
