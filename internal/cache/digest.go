// Package cache persists the specialization cache's content-keyed digest
// set across process runs, backed by modernc.org/sqlite (pure Go, no
// cgo — the one persistence driver this core keeps from the teacher's
// go.mod, since a compiler's specialization seen-set is its only
// candidate for durable storage; see DESIGN.md for the other SQL drivers
// dropped alongside it). It is a seen-set, not an artifact cache: the IR
// itself is never serialized, only the digest recording that a given
// (untyped function, argument types) pair has already been compiled once
// in some prior process.
package cache

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// Digest computes the content-keyed specialization digest SPEC_FULL §3.1
// describes: a blake2b-256 hash over the untyped function's structural
// encoding plus its ordered argument-type descriptors. Two calls with
// structurally identical functions and identical argument types always
// produce the same digest, independent of SSA name versions or the order
// functions were registered in — the encoding below never includes a
// name carrying a ".N" suffix, only ir.BaseName-stripped identifiers
// and the shape of the expression tree itself.
func Digest(fn *ir.UntypedFn, argTypes []types.Type) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an oversized MAC key, and nil
		// never qualifies; a failure here indicates a corrupted build.
		panic(fmt.Sprintf("cache: blake2b.New256: %v", err))
	}

	fmt.Fprintf(h, "fn:%s\n", ir.BaseName(fn.Name))
	encodeFormals(h, fn.FormalArgs)
	encodeBody(h, fn.Body)
	for _, t := range argTypes {
		fmt.Fprintf(h, "arg:%s\n", t.String())
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

func encodeFormals(w fmtWriter, f *ir.FormalArgs) {
	fmt.Fprintf(w, "formals:%d\n", len(f.Positional))
	for _, name := range f.Positional {
		fmt.Fprintf(w, "  %s\n", ir.BaseName(name))
	}
	if f.Variadic != "" {
		fmt.Fprintf(w, "variadic:%s\n", ir.BaseName(f.Variadic))
	}
}

type fmtWriter interface {
	Write(p []byte) (int, error)
}

func encodeBody(w fmtWriter, body []ir.Stmt) {
	fmt.Fprintf(w, "block(%d)\n", len(body))
	for _, stmt := range body {
		encodeStmt(w, stmt)
	}
}

func encodeStmt(w fmtWriter, stmt ir.Stmt) {
	switch s := stmt.(type) {
	case *ir.Assign:
		fmt.Fprint(w, "assign(")
		encodeExpr(w, s.Lhs)
		fmt.Fprint(w, ",")
		encodeExpr(w, s.Rhs)
		fmt.Fprint(w, ")\n")
	case *ir.If:
		fmt.Fprint(w, "if(")
		encodeExpr(w, s.Cond)
		fmt.Fprint(w, ")\n")
		encodeBody(w, s.ThenBlock)
		fmt.Fprint(w, "else\n")
		encodeBody(w, s.ElseBlock)
		encodeMerge(w, s.MergeMap)
	case *ir.While:
		fmt.Fprint(w, "while(")
		encodeExpr(w, s.Cond)
		fmt.Fprint(w, ")\n")
		encodeBody(w, s.Body)
		encodeMerge(w, s.MergeMap)
	case *ir.Return:
		fmt.Fprint(w, "return(")
		if s.Value != nil {
			encodeExpr(w, s.Value)
		}
		fmt.Fprint(w, ")\n")
	}
}

func encodeMerge(w fmtWriter, m ir.Merge) {
	names := m.Names()
	sort.Strings(names)
	fmt.Fprintf(w, "merge(%d)\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  %s:", ir.BaseName(name))
		encodeExpr(w, m.Branch(name, 0))
		fmt.Fprint(w, ",")
		encodeExpr(w, m.Branch(name, 1))
		fmt.Fprint(w, "\n")
	}
}

func encodeExpr(w fmtWriter, e ir.Expr) {
	if e == nil {
		fmt.Fprint(w, "nil")
		return
	}
	switch x := e.(type) {
	case *ir.Const:
		fmt.Fprintf(w, "const(%v)", x.Value)
	case *ir.Var:
		fmt.Fprintf(w, "var(%s)", ir.BaseName(x.Name))
	case *ir.PrimCall:
		fmt.Fprintf(w, "prim(%s,", x.Prim.Name)
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ")")
	case *ir.Cast:
		fmt.Fprintf(w, "cast(%s,", x.Target.String())
		encodeExpr(w, x.Value)
		fmt.Fprint(w, ")")
	case *ir.Tuple:
		fmt.Fprint(w, "tuple(")
		encodeExprList(w, x.Elts)
		fmt.Fprint(w, ")")
	case *ir.TupleProj:
		fmt.Fprintf(w, "proj(%d,", x.Index)
		encodeExpr(w, x.TupleExpr)
		fmt.Fprint(w, ")")
	case *ir.Struct:
		fmt.Fprint(w, "struct(")
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ")")
	case *ir.Attribute:
		fmt.Fprintf(w, "attr(%s,", x.Field)
		encodeExpr(w, x.Value)
		fmt.Fprint(w, ")")
	case *ir.Array:
		fmt.Fprint(w, "array(")
		encodeExprList(w, x.Elts)
		fmt.Fprint(w, ")")
	case *ir.ArrayView:
		fmt.Fprint(w, "view(")
		encodeExprList(w, []ir.Expr{x.Data, x.Shape, x.Strides, x.Offset})
		fmt.Fprint(w, ")")
	case *ir.Index:
		fmt.Fprint(w, "index(")
		encodeExpr(w, x.Value)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.Idx)
		fmt.Fprint(w, ")")
	case *ir.Slice:
		fmt.Fprint(w, "slice(")
		encodeExprList(w, []ir.Expr{x.Start, x.Stop, x.Step})
		fmt.Fprint(w, ")")
	case *ir.Closure:
		fmt.Fprintf(w, "closure(%s,", ir.BaseName(x.FnName))
		encodeExprList(w, x.Captured)
		fmt.Fprint(w, ")")
	case *ir.ClosureElt:
		fmt.Fprintf(w, "closureelt(%d,", x.Index)
		encodeExpr(w, x.ClosureExpr)
		fmt.Fprint(w, ")")
	case *ir.Call:
		fmt.Fprint(w, "call(")
		encodeExpr(w, x.Callee)
		fmt.Fprint(w, ",")
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ")")
	case *ir.Map:
		fmt.Fprintf(w, "map(%d,", x.Axis)
		encodeExpr(w, x.Fn)
		fmt.Fprint(w, ",")
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ")")
	case *ir.AllPairs:
		fmt.Fprintf(w, "allpairs(%d,", x.Axis)
		encodeExpr(w, x.Fn)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.X)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.Y)
		fmt.Fprint(w, ")")
	case *ir.Reduce:
		fmt.Fprintf(w, "reduce(%d,", x.Axis)
		encodeExpr(w, x.Fn)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.Combine)
		fmt.Fprint(w, ",")
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ",")
		if x.Init != nil {
			encodeExpr(w, x.Init)
		}
		fmt.Fprint(w, ")")
	case *ir.Scan:
		fmt.Fprintf(w, "scan(%d,", x.Axis)
		encodeExpr(w, x.Fn)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.Combine)
		fmt.Fprint(w, ",")
		encodeExpr(w, x.Emit)
		fmt.Fprint(w, ",")
		encodeExprList(w, x.Args)
		fmt.Fprint(w, ",")
		if x.Init != nil {
			encodeExpr(w, x.Init)
		}
		fmt.Fprint(w, ")")
	default:
		fmt.Fprintf(w, "unknown(%T)", e)
	}
}

func encodeExprList(w fmtWriter, exprs []ir.Expr) {
	for i, e := range exprs {
		if i > 0 {
			fmt.Fprint(w, ";")
		}
		encodeExpr(w, e)
	}
}
