package simplify

import (
	"arrayjit/internal/ir"
	"arrayjit/internal/transform"
)

// substVisitor replaces every Var matching a name in subst with its
// mapped replacement expression, leaving everything else untouched. It
// reuses transform.ExprBase for the generic recursive rebuild and only
// overrides the Var case, the same embed-and-shadow idiom every pass in
// this module follows.
type substVisitor struct {
	transform.ExprBase
	subst map[string]ir.Expr
}

func newSubstVisitor(subst map[string]ir.Expr) *substVisitor {
	sv := &substVisitor{subst: subst}
	sv.ExprBase.Self = sv
	return sv
}

func (sv *substVisitor) VisitVar(e *ir.Var) any {
	if r, ok := sv.subst[e.Name]; ok {
		return r
	}
	return e
}

// substVars rewrites e, replacing loop-carried Vars with the φ-merge
// branch value named in subst — used by loop-condition hoisting to form
// the pre-loop and back-edge copies of a non-simple While condition.
func substVars(e ir.Expr, subst map[string]ir.Expr) ir.Expr {
	return e.Accept(newSubstVisitor(subst)).(ir.Expr)
}

// exprEqual is a full structural equality check over every IR
// expression kind, used to decide whether a φ-merge's two rewritten
// branch values agree (and the φ can be dropped) — broader than
// exprKey's "safe expressions only" domain, since merge branches may
// legitimately carry an Index or Call.
func exprEqual(a, b ir.Expr) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *ir.Const:
		y, ok := b.(*ir.Const)
		return ok && x.Value == y.Value
	case *ir.Var:
		y, ok := b.(*ir.Var)
		return ok && x.Name == y.Name
	case *ir.PrimCall:
		y, ok := b.(*ir.PrimCall)
		return ok && x.Prim.Equal(y.Prim) && exprSliceEqual(x.Args, y.Args)
	case *ir.Cast:
		y, ok := b.(*ir.Cast)
		return ok && x.Target.Equal(y.Target) && exprEqual(x.Value, y.Value)
	case *ir.Tuple:
		y, ok := b.(*ir.Tuple)
		return ok && exprSliceEqual(x.Elts, y.Elts)
	case *ir.TupleProj:
		y, ok := b.(*ir.TupleProj)
		return ok && x.Index == y.Index && exprEqual(x.TupleExpr, y.TupleExpr)
	case *ir.Struct:
		y, ok := b.(*ir.Struct)
		return ok && exprSliceEqual(x.Args, y.Args)
	case *ir.Attribute:
		y, ok := b.(*ir.Attribute)
		return ok && x.Field == y.Field && exprEqual(x.Value, y.Value)
	case *ir.Array:
		y, ok := b.(*ir.Array)
		return ok && exprSliceEqual(x.Elts, y.Elts)
	case *ir.ArrayView:
		y, ok := b.(*ir.ArrayView)
		return ok && exprEqual(x.Data, y.Data) && exprEqual(x.Shape, y.Shape) &&
			exprEqual(x.Strides, y.Strides) && exprEqual(x.Offset, y.Offset)
	case *ir.Index:
		y, ok := b.(*ir.Index)
		return ok && exprEqual(x.Value, y.Value) && exprEqual(x.Idx, y.Idx)
	case *ir.Slice:
		y, ok := b.(*ir.Slice)
		return ok && exprEqual(x.Start, y.Start) && exprEqual(x.Stop, y.Stop) && exprEqual(x.Step, y.Step)
	case *ir.Closure:
		y, ok := b.(*ir.Closure)
		return ok && x.FnName == y.FnName && exprSliceEqual(x.Captured, y.Captured)
	case *ir.ClosureElt:
		y, ok := b.(*ir.ClosureElt)
		return ok && x.Index == y.Index && exprEqual(x.ClosureExpr, y.ClosureExpr)
	case *ir.Call:
		y, ok := b.(*ir.Call)
		return ok && exprEqual(x.Callee, y.Callee) && exprSliceEqual(x.Args, y.Args)
	default:
		return false
	}
}

func exprSliceEqual(a, b []ir.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !exprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
