package specialize

import (
	"fmt"

	"arrayjit/internal/errors"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// arrayElts infers each expr in exprs and requires every result to be an
// Array type, returning the typed exprs alongside their element types.
func (inf *inferer) arrayElts(exprs []ir.Expr, e env) ([]ir.Expr, []types.Type, []int, error) {
	out := make([]ir.Expr, len(exprs))
	elts := make([]types.Type, len(exprs))
	ranks := make([]int, len(exprs))
	for i, ex := range exprs {
		v, t, err := inf.inferExpr(ex, e)
		if err != nil {
			return nil, nil, nil, err
		}
		arr, ok := t.(types.Array)
		if !ok {
			return nil, nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("adverb argument has non-array type %s", t))
		}
		out[i] = v
		elts[i] = arr.Elt
		ranks[i] = arr.Rank
	}
	return out, elts, ranks, nil
}

func (inf *inferer) closureType(fn ir.Expr, e env) (ir.Expr, types.Closure, error) {
	v, t, err := inf.inferExpr(fn, e)
	if err != nil {
		return nil, types.Closure{}, err
	}
	clo, ok := t.(types.Closure)
	if !ok {
		return nil, types.Closure{}, errors.NewTypeError(inf.fnName, fmt.Sprintf("adverb function operand has non-closure type %s", t))
	}
	return v, clo, nil
}

// inferMap applies Fn elementwise across Args (all sharing the same rank),
// producing an array of that rank whose element type is Fn's result type.
func (inf *inferer) inferMap(x *ir.Map, e env) (ir.Expr, types.Type, error) {
	args, elts, ranks, err := inf.arrayElts(x.Args, e)
	if err != nil {
		return nil, nil, err
	}
	rank, err := agreeingRank(inf.fnName, ranks)
	if err != nil {
		return nil, nil, err
	}
	fnExpr, clo, err := inf.closureType(x.Fn, e)
	if err != nil {
		return nil, nil, err
	}
	callee, err := inf.specializeClosure(clo, elts)
	if err != nil {
		return nil, nil, err
	}
	rt := types.Array{Rank: rank, Elt: callee.ReturnType}
	out := &ir.Map{Fn: fnExpr, Args: args, Axis: x.Axis}
	out.SetType(rt)
	return out, rt, nil
}

// inferAllPairs applies Fn to every pair drawn from X and Y, producing an
// array whose rank is the sum of its operands' ranks (a full cross
// product) and whose element type is Fn's result type.
func (inf *inferer) inferAllPairs(x *ir.AllPairs, e env) (ir.Expr, types.Type, error) {
	xv, xt, err := inf.inferExpr(x.X, e)
	if err != nil {
		return nil, nil, err
	}
	yv, yt, err := inf.inferExpr(x.Y, e)
	if err != nil {
		return nil, nil, err
	}
	xa, ok := xt.(types.Array)
	if !ok {
		return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("all_pairs: left operand has non-array type %s", xt))
	}
	ya, ok := yt.(types.Array)
	if !ok {
		return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("all_pairs: right operand has non-array type %s", yt))
	}
	fnExpr, clo, err := inf.closureType(x.Fn, e)
	if err != nil {
		return nil, nil, err
	}
	callee, err := inf.specializeClosure(clo, []types.Type{xa.Elt, ya.Elt})
	if err != nil {
		return nil, nil, err
	}
	rt := types.Array{Rank: xa.Rank + ya.Rank, Elt: callee.ReturnType}
	out := &ir.AllPairs{Fn: fnExpr, X: xv, Y: yv, Axis: x.Axis}
	out.SetType(rt)
	return out, rt, nil
}

// inferReduce maps Fn elementwise across Args, then folds the result with
// Combine along one axis, dropping that axis from the result's rank (a
// rank-1 array reduces to a bare scalar).
func (inf *inferer) inferReduce(x *ir.Reduce, e env) (ir.Expr, types.Type, error) {
	args, elts, ranks, err := inf.arrayElts(x.Args, e)
	if err != nil {
		return nil, nil, err
	}
	rank, err := agreeingRank(inf.fnName, ranks)
	if err != nil {
		return nil, nil, err
	}
	if rank < 1 {
		return nil, nil, errors.NewTypeError(inf.fnName, "reduce: cannot reduce a rank-0 array")
	}

	fnExpr, fnClo, err := inf.closureType(x.Fn, e)
	if err != nil {
		return nil, nil, err
	}
	mapped, err := inf.specializeClosure(fnClo, elts)
	if err != nil {
		return nil, nil, err
	}

	accType := mapped.ReturnType
	var initExpr ir.Expr
	if x.Init != nil {
		iv, it, err := inf.inferExpr(x.Init, e)
		if err != nil {
			return nil, nil, err
		}
		initExpr = iv
		if accType, err = types.Unify(accType, it); err != nil {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("reduce: init type disagrees with element type: %s", err))
		}
	}

	combineExpr, combineClo, err := inf.closureType(x.Combine, e)
	if err != nil {
		return nil, nil, err
	}
	combineCallee, err := inf.specializeClosure(combineClo, []types.Type{accType, mapped.ReturnType})
	if err != nil {
		return nil, nil, err
	}
	resultElt, err := types.Unify(accType, combineCallee.ReturnType)
	if err != nil {
		return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("reduce: combine result disagrees with accumulator type: %s", err))
	}

	var rt types.Type = resultElt
	if rank > 1 {
		rt = types.Array{Rank: rank - 1, Elt: resultElt}
	}

	out := &ir.Reduce{Fn: fnExpr, Combine: combineExpr, Args: args, Init: initExpr, Axis: x.Axis}
	out.SetType(rt)
	return out, rt, nil
}

// inferScan is inferReduce's running-total sibling: it keeps every
// intermediate accumulator value, so the result rank matches the inputs'
// instead of dropping a dimension.
func (inf *inferer) inferScan(x *ir.Scan, e env) (ir.Expr, types.Type, error) {
	args, elts, ranks, err := inf.arrayElts(x.Args, e)
	if err != nil {
		return nil, nil, err
	}
	rank, err := agreeingRank(inf.fnName, ranks)
	if err != nil {
		return nil, nil, err
	}
	if rank < 1 {
		return nil, nil, errors.NewTypeError(inf.fnName, "scan: cannot scan a rank-0 array")
	}

	fnExpr, fnClo, err := inf.closureType(x.Fn, e)
	if err != nil {
		return nil, nil, err
	}
	mapped, err := inf.specializeClosure(fnClo, elts)
	if err != nil {
		return nil, nil, err
	}

	accType := mapped.ReturnType
	var initExpr ir.Expr
	if x.Init != nil {
		iv, it, err := inf.inferExpr(x.Init, e)
		if err != nil {
			return nil, nil, err
		}
		initExpr = iv
		if accType, err = types.Unify(accType, it); err != nil {
			return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("scan: init type disagrees with element type: %s", err))
		}
	}

	combineExpr, combineClo, err := inf.closureType(x.Combine, e)
	if err != nil {
		return nil, nil, err
	}
	combineCallee, err := inf.specializeClosure(combineClo, []types.Type{accType, mapped.ReturnType})
	if err != nil {
		return nil, nil, err
	}
	resultElt, err := types.Unify(accType, combineCallee.ReturnType)
	if err != nil {
		return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("scan: combine result disagrees with accumulator type: %s", err))
	}

	var emitExpr ir.Expr
	if x.Emit != nil {
		emitExpr, _, err = inf.inferExpr(x.Emit, e)
		if err != nil {
			return nil, nil, err
		}
	}

	rt := types.Array{Rank: rank, Elt: resultElt}
	out := &ir.Scan{Fn: fnExpr, Combine: combineExpr, Emit: emitExpr, Args: args, Init: initExpr, Axis: x.Axis}
	out.SetType(rt)
	return out, rt, nil
}

func agreeingRank(fnName string, ranks []int) (int, error) {
	if len(ranks) == 0 {
		return 0, errors.NewTypeError(fnName, "adverb with no array arguments")
	}
	rank := ranks[0]
	for _, r := range ranks[1:] {
		if r != rank {
			return 0, errors.NewTypeError(fnName, fmt.Sprintf("adverb arguments disagree on rank: %d vs %d", rank, r))
		}
	}
	return rank, nil
}
