package simplify

import "arrayjit/internal/ir"

// asConst reports whether e is already a folded Const node.
func asConst(e ir.Expr) (*ir.Const, bool) {
	c, ok := e.(*ir.Const)
	return c, ok
}

func allConstants(exprs []ir.Expr) bool {
	for _, e := range exprs {
		if _, ok := asConst(e); !ok {
			return false
		}
	}
	return true
}

func collectConstants(exprs []ir.Expr) []any {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		c := e.(*ir.Const)
		out[i] = c.Value
	}
	return out
}

func isZero(e ir.Expr) bool {
	c, ok := asConst(e)
	if !ok {
		return false
	}
	return numericEqual(c.Value, 0)
}

func isOne(e ir.Expr) bool {
	c, ok := asConst(e)
	if !ok {
		return false
	}
	return numericEqual(c.Value, 1)
}

func numericEqual(v any, want float64) bool {
	switch n := v.(type) {
	case int64:
		return float64(n) == want
	case int:
		return float64(n) == want
	case float64:
		return n == want
	case float32:
		return float64(n) == want
	default:
		return false
	}
}
