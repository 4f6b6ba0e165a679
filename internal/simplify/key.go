package simplify

import (
	"fmt"
	"strings"

	"arrayjit/internal/ir"
)

// exprKey renders a safe expression into a canonical string so
// structurally equal expressions (same prim, same operand names) hash
// to the same available-expressions slot, mirroring the original
// syntax nodes' structural __eq__/__hash__. Only ever called on exprs
// that passed isSafe, so every case below is one children() already
// knows how to recurse into.
func exprKey(e ir.Expr) string {
	switch ex := e.(type) {
	case *ir.Const:
		return fmt.Sprintf("const(%v:%s)", ex.Value, typeKey(ex))
	case *ir.Var:
		return "var(" + ex.Name + ")"
	case *ir.PrimCall:
		return "prim(" + ex.Prim.Name + "," + keyAll(ex.Args) + ")"
	case *ir.Cast:
		return "cast(" + exprKey(ex.Value) + "->" + typeKey(ex) + ")"
	case *ir.Tuple:
		return "tuple(" + keyAll(ex.Elts) + ")"
	case *ir.TupleProj:
		return fmt.Sprintf("tupleproj(%s,%d)", exprKey(ex.TupleExpr), ex.Index)
	case *ir.Struct:
		return "struct(" + typeKey(ex) + ";" + keyAll(ex.Args) + ")"
	case *ir.Attribute:
		return "attr(" + exprKey(ex.Value) + "." + ex.Field + ")"
	case *ir.Array:
		return "array(" + keyAll(ex.Elts) + ")"
	case *ir.ArrayView:
		return "view(" + exprKey(ex.Data) + "," + exprKey(ex.Shape) + "," + exprKey(ex.Strides) + "," + exprKey(ex.Offset) + ")"
	case *ir.Slice:
		return "slice(" + exprKey(ex.Start) + ":" + exprKey(ex.Stop) + ":" + exprKey(ex.Step) + ")"
	case *ir.Closure:
		return "closure(" + ex.FnName + ";" + keyAll(ex.Captured) + ")"
	case *ir.ClosureElt:
		return fmt.Sprintf("closureelt(%s,%d)", exprKey(ex.ClosureExpr), ex.Index)
	default:
		// Index and Call are never safe, so exprKey is never asked to
		// render them; panic loudly if that invariant is ever violated.
		panic(fmt.Sprintf("simplify: exprKey called on unsafe expression kind %T", e))
	}
}

func typeKey(e ir.Expr) string {
	if e.Type() == nil {
		return "?"
	}
	return e.Type().String()
}

func keyAll(exprs []ir.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = exprKey(e)
	}
	return strings.Join(parts, ",")
}
