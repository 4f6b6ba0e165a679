package adverb

import (
	"fmt"

	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// buildWrapper constructs the untyped (start, stop, args, tile_sizes)
// work function and its args-struct layout for one adverb call shape,
// following gen_par_work_function's shape: every array-typed operand is
// read out of the args struct and sliced to [start:stop) before being
// handed to the adverb; every scalar operand passes straight through;
// the adverb's result is written to the struct's "output" field, typed
// outputType (computed by the caller via specialize.InferAdverbResult
// before the struct layout is fixed, so the wrapper's own
// type-inference pass — which types an Attribute lhs with the struct's
// already-declared field type rather than widening it — sees a
// field type that actually agrees with what the adverb produces).
func buildWrapper(names *ir.NameSupply, kind Kind, callee string, combine string, argTypes []types.Type, outputType types.Type) (*ir.UntypedFn, types.Struct, error) {
	startName := names.Fresh("start")
	stopName := names.Fresh("stop")
	argsName := names.Fresh("args")
	tileSizesName := names.Fresh("tile_sizes")

	startVar := &ir.Var{Name: startName}
	stopVar := &ir.Var{Name: stopName}
	argsVar := &ir.Var{Name: argsName}

	fields := make([]types.Field, 0, len(argTypes)+1)
	operands := make([]ir.Expr, len(argTypes))
	for i, t := range argTypes {
		fname := fieldName(i)
		fields = append(fields, types.Field{Name: fname, Type: t})

		attr := &ir.Attribute{Value: argsVar, Field: fname}
		if _, isArray := t.(types.Array); isArray {
			slice := &ir.Slice{Start: startVar, Stop: stopVar, Step: &ir.Const{Value: int32(1)}}
			operands[i] = &ir.Index{Value: attr, Idx: slice}
		} else {
			operands[i] = attr
		}
	}
	fields = append(fields, types.Field{Name: "output", Type: outputType})
	argsType := types.Struct{Fields: fields}

	adverbExpr, err := buildAdverbExpr(kind, callee, combine, operands)
	if err != nil {
		return nil, types.Struct{}, err
	}

	// The wrapper's real output travels through args.output, matching
	// runtime.WorkFn's (start, stop, args, tileSizes) signature, which has
	// no return value at all. inferBlock's Return case treats a bare
	// Return{Value: nil} identically to a function with no Return
	// anywhere (both leave retType nil and fail "no reachable return"),
	// so the wrapper returns a disregarded zero instead of falling off
	// the end or returning nothing — its value is never read by the
	// runtime dispatch, only its presence satisfies specialization.
	body := []ir.Stmt{
		&ir.Assign{
			Lhs: &ir.Attribute{Value: argsVar, Field: "output"},
			Rhs: adverbExpr,
		},
		&ir.Return{Value: &ir.Const{Value: int32(0)}},
	}

	formals, err := ir.NewFormalArgs([]string{startName, stopName, argsName, tileSizesName})
	if err != nil {
		return nil, types.Struct{}, err
	}

	fnName := names.Fresh(kind.String() + "_" + ir.BaseName(callee) + "_par_wrapper")
	fn := &ir.UntypedFn{
		Name:       fnName,
		FormalArgs: formals,
		Body:       body,
	}
	return fn, argsType, nil
}

func fieldName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "arg" + string(digits[i])
	}
	// Decimal-render i without strconv, matching this package's narrow,
	// single-caller need (at most a handful of adverb operands ever).
	var buf []byte
	n := i
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "arg" + string(buf)
}

// buildAdverbExpr constructs the IR node applying callee (and, for
// Reduce/Scan, combine) over operands for the given adverb kind. Fn is
// always the elementwise/pairwise transform (callee); Combine (Reduce,
// Scan only) is the associative fold, unlike the original
// implementation's reduce/scan macros, which always pass an identity Fn
// and route the caller's actual function in as Combine.
func buildAdverbExpr(kind Kind, callee string, combine string, operands []ir.Expr) (ir.Expr, error) {
	fnClosure := &ir.Closure{FnName: callee, Captured: nil}

	switch kind {
	case Map:
		return &ir.Map{Fn: fnClosure, Args: operands, Axis: 0}, nil
	case AllPairs:
		if len(operands) != 2 {
			return nil, &OperandCountError{Kind: kind, Want: 2, Got: len(operands)}
		}
		return &ir.AllPairs{Fn: fnClosure, X: operands[0], Y: operands[1], Axis: 0}, nil
	case Reduce:
		combineClosure := &ir.Closure{FnName: combine, Captured: nil}
		return &ir.Reduce{Fn: fnClosure, Combine: combineClosure, Args: operands, Init: nil, Axis: 0}, nil
	case Scan:
		combineClosure := &ir.Closure{FnName: combine, Captured: nil}
		return &ir.Scan{Fn: fnClosure, Combine: combineClosure, Emit: fnClosure, Args: operands, Init: nil, Axis: 0}, nil
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}

// UnknownKindError reports a Kind value outside the four defined
// constants.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "adverb: unrecognized adverb kind " + e.Kind.String()
}

// OperandCountError reports an adverb call shape with the wrong number
// of array operands (e.g. all_pairs needs exactly two).
type OperandCountError struct {
	Kind     Kind
	Want, Got int
}

func (e *OperandCountError) Error() string {
	return fmt.Sprintf("adverb: %s expects %d operand(s), got %d", e.Kind, e.Want, e.Got)
}
