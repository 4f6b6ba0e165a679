package specialize

import (
	"fmt"

	"arrayjit/internal/errors"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// inferExpr returns a type-annotated copy of e together with its inferred
// type, given the bindings currently in scope in e. Literal constants get
// their ground type read off the Go value they already carry; every other
// kind propagates from its already-typed children.
func (inf *inferer) inferExpr(e ir.Expr, e2 env) (ir.Expr, types.Type, error) {
	switch x := e.(type) {
	case *ir.Const:
		t := constType(x.Value)
		if t == nil {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("constant %v has no ground type", x.Value))
		}
		c := &ir.Const{Value: x.Value}
		c.SetType(t)
		return c, t, nil

	case *ir.Var:
		t, ok := e2[x.Name]
		if !ok {
			return nil, nil, errors.NewNameNotFound(x.Name)
		}
		v := &ir.Var{Name: x.Name}
		v.SetType(t)
		return v, t, nil

	case *ir.PrimCall:
		args, argTypes, err := inf.inferAll(x.Args, e2)
		if err != nil {
			return nil, nil, err
		}
		rt, err := primRule(inf.fnName, x.Prim, argTypes)
		if err != nil {
			return nil, nil, errors.NewTypeError(inf.fnName, err.Error())
		}
		out := &ir.PrimCall{Prim: x.Prim, Args: args}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Cast:
		val, _, err := inf.inferExpr(x.Value, e2)
		if err != nil {
			return nil, nil, err
		}
		out := &ir.Cast{Value: val, Target: x.Target}
		out.SetType(x.Target)
		return out, x.Target, nil

	case *ir.Tuple:
		elts, eltTypes, err := inf.inferAll(x.Elts, e2)
		if err != nil {
			return nil, nil, err
		}
		t := types.Tuple{Elts: eltTypes}
		out := &ir.Tuple{Elts: elts}
		out.SetType(t)
		return out, t, nil

	case *ir.TupleProj:
		tup, tt, err := inf.inferExpr(x.TupleExpr, e2)
		if err != nil {
			return nil, nil, err
		}
		tuple, ok := tt.(types.Tuple)
		if !ok || x.Index < 0 || x.Index >= len(tuple.Elts) {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("tuple projection index %d out of range for %s", x.Index, tt))
		}
		rt := tuple.Elts[x.Index]
		out := &ir.TupleProj{TupleExpr: tup, Index: x.Index}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Struct:
		args, argTypes, err := inf.inferAll(x.Args, e2)
		if err != nil {
			return nil, nil, err
		}
		fields := make([]types.Field, len(argTypes))
		for i, t := range argTypes {
			fields[i] = types.Field{Name: fmt.Sprintf("f%d", i), Type: t}
		}
		st := types.Struct{Fields: fields}
		out := &ir.Struct{Args: args}
		out.SetType(st)
		return out, st, nil

	case *ir.Attribute:
		val, vt, err := inf.inferExpr(x.Value, e2)
		if err != nil {
			return nil, nil, err
		}
		st, ok := vt.(types.Struct)
		if !ok {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("attribute access on non-struct type %s", vt))
		}
		pos := st.FieldPos(x.Field)
		if pos < 0 {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("struct type %s has no field %q", vt, x.Field))
		}
		rt := st.Fields[pos].Type
		out := &ir.Attribute{Value: val, Field: x.Field}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Array:
		elts, eltTypes, err := inf.inferAll(x.Elts, e2)
		if err != nil {
			return nil, nil, err
		}
		elt, err := types.UnifyAll(eltTypes)
		if err != nil {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("array literal: %s", err))
		}
		rt := types.Array{Rank: 1, Elt: elt}
		out := &ir.Array{Elts: elts}
		out.SetType(rt)
		return out, rt, nil

	case *ir.ArrayView:
		data, dt, err := inf.inferExpr(x.Data, e2)
		if err != nil {
			return nil, nil, err
		}
		shape, _, err := inf.inferExpr(x.Shape, e2)
		if err != nil {
			return nil, nil, err
		}
		strides, _, err := inf.inferExpr(x.Strides, e2)
		if err != nil {
			return nil, nil, err
		}
		offset, _, err := inf.inferExpr(x.Offset, e2)
		if err != nil {
			return nil, nil, err
		}
		var total ir.Expr
		if x.TotalElts != nil {
			total, _, err = inf.inferExpr(x.TotalElts, e2)
			if err != nil {
				return nil, nil, err
			}
		}
		ptr, ok := dt.(types.Ptr)
		if !ok {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("array view over non-pointer data type %s", dt))
		}
		shapeTuple, ok := shapeRank(shape)
		if !ok {
			return nil, nil, errors.NewTypeError(inf.fnName, "array view shape must be a fixed-arity tuple")
		}
		rt := types.Array{Rank: shapeTuple, Elt: ptr.Elt}
		out := &ir.ArrayView{Data: data, Shape: shape, Strides: strides, Offset: offset, TotalElts: total}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Index:
		val, vt, err := inf.inferExpr(x.Value, e2)
		if err != nil {
			return nil, nil, err
		}
		idx, it, err := inf.inferExpr(x.Idx, e2)
		if err != nil {
			return nil, nil, err
		}
		arr, ok := vt.(types.Array)
		if !ok {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("index into non-array type %s", vt))
		}
		var rt types.Type = arr.Elt
		if _, isSlice := it.(types.Tuple); isSlice {
			rt = arr
		}
		out := &ir.Index{Value: val, Idx: idx}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Slice:
		start, _, err := inf.inferOptional(x.Start, e2)
		if err != nil {
			return nil, nil, err
		}
		stop, _, err := inf.inferOptional(x.Stop, e2)
		if err != nil {
			return nil, nil, err
		}
		step, _, err := inf.inferOptional(x.Step, e2)
		if err != nil {
			return nil, nil, err
		}
		rt := types.Tuple{Elts: []types.Type{types.TInt64, types.TInt64, types.TInt64}}
		out := &ir.Slice{Start: start, Stop: stop, Step: step}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Closure:
		captured, capTypes, err := inf.inferAll(x.Captured, e2)
		if err != nil {
			return nil, nil, err
		}
		rt := types.Closure{FnName: x.FnName, Captured: capTypes}
		out := &ir.Closure{FnName: x.FnName, Captured: captured}
		out.SetType(rt)
		return out, rt, nil

	case *ir.ClosureElt:
		cl, ct, err := inf.inferExpr(x.ClosureExpr, e2)
		if err != nil {
			return nil, nil, err
		}
		clo, ok := ct.(types.Closure)
		if !ok || x.Index < 0 || x.Index >= len(clo.Captured) {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("closure element index %d out of range for %s", x.Index, ct))
		}
		rt := clo.Captured[x.Index]
		out := &ir.ClosureElt{ClosureExpr: cl, Index: x.Index}
		out.SetType(rt)
		return out, rt, nil

	case *ir.Call:
		callee, ct, err := inf.inferExpr(x.Callee, e2)
		if err != nil {
			return nil, nil, err
		}
		args, argTypes, err := inf.inferAll(x.Args, e2)
		if err != nil {
			return nil, nil, err
		}
		clo, ok := ct.(types.Closure)
		if !ok {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("call target has non-closure type %s", ct))
		}
		typedCallee, err := inf.specializeClosure(clo, argTypes)
		if err != nil {
			return nil, nil, err
		}
		out := &ir.Call{Callee: callee, Args: args, TypedCallee: typedCallee}
		out.SetType(typedCallee.ReturnType)
		return out, typedCallee.ReturnType, nil

	case *ir.Map:
		return inf.inferMap(x, e2)
	case *ir.AllPairs:
		return inf.inferAllPairs(x, e2)
	case *ir.Reduce:
		return inf.inferReduce(x, e2)
	case *ir.Scan:
		return inf.inferScan(x, e2)

	default:
		return nil, nil, errors.NewAssertionFailure(inf.fnName, fmt.Sprintf("unrecognized expression kind %T", e))
	}
}

func (inf *inferer) inferAll(exprs []ir.Expr, e env) ([]ir.Expr, []types.Type, error) {
	out := make([]ir.Expr, len(exprs))
	ts := make([]types.Type, len(exprs))
	for i, ex := range exprs {
		v, t, err := inf.inferExpr(ex, e)
		if err != nil {
			return nil, nil, err
		}
		out[i] = v
		ts[i] = t
	}
	return out, ts, nil
}

func (inf *inferer) inferOptional(e ir.Expr, env env) (ir.Expr, types.Type, error) {
	if e == nil {
		return nil, nil, nil
	}
	return inf.inferExpr(e, env)
}

// specializeClosure resolves a Closure-typed callee to a concrete TypedFn,
// recursively specializing the referenced untyped function for the
// captured-plus-call-site argument types (captured values are prepended as
// leading formals, the same convention internal/simplify's closure-call
// rewrite and internal/inline's renaming both assume).
func (inf *inferer) specializeClosure(clo types.Closure, callArgTypes []types.Type) (*ir.TypedFn, error) {
	untyped, ok := inf.registry.UntypedLocked(clo.FnName)
	if !ok {
		return nil, errors.NewNameNotFound(clo.FnName)
	}
	combined := make([]types.Type, 0, len(clo.Captured)+len(callArgTypes))
	combined = append(combined, clo.Captured...)
	combined = append(combined, callArgTypes...)
	return specializeLocked(inf.registry, untyped, combined, inf.names)
}

func constType(v any) types.Type {
	switch v.(type) {
	case bool:
		return types.TBool
	case int32:
		return types.TInt32
	case int64, int:
		return types.TInt64
	case float32:
		return types.TFloat32
	case float64:
		return types.TFloat64
	default:
		return nil
	}
}

// shapeRank reports the rank a shape tuple expression's type implies: the
// arity of the Tuple type inferred for it.
func shapeRank(shape ir.Expr) (int, bool) {
	t, ok := shape.Type().(types.Tuple)
	if !ok {
		return 0, false
	}
	return len(t.Elts), true
}
