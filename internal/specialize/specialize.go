// Package specialize turns an untyped function plus a concrete argument-type
// tuple into a cached typed function: abstract interpretation over the
// untyped body, binding formals to argTypes and propagating types statement
// by statement, branches and loops agreeing via the type lattice's Unify.
//
// This lives in its own package rather than inside internal/types because
// internal/ir already imports internal/types (every Expr carries a
// types.Type); a specializer that walks ir.Stmt/ir.Expr trees while calling
// into the type lattice would close that import cycle if it lived in
// internal/types itself. Keeping the lattice package pure and putting the
// walker here, one level up, is the idiomatic resolution.
package specialize

import (
	"fmt"

	"arrayjit/internal/errors"
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// env is the type environment threaded through abstract interpretation: a
// binding from SSA name to its currently-known type.
type env map[string]types.Type

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Specialize looks up (fn.Name, argTypes) in registry's typed-function
// cache, returning the cached entry on a hit. On a miss it binds fn's
// formals to argTypes, walks fn.Body propagating types, and on success
// builds a TypedFn, registers it, and returns it. The registry lock is held
// for the whole lookup-or-build sequence so two concurrent specializations
// of the same key never race to populate the cache with different results.
func Specialize(registry *ir.Registry, fn *ir.UntypedFn, argTypes []types.Type, names *ir.NameSupply) (*ir.TypedFn, error) {
	registry.Lock()
	defer registry.Unlock()
	return specializeLocked(registry, fn, argTypes, names)
}

// specializeLocked is Specialize's body, callable with registry's mutex
// already held. Type inference over adverb/Call nodes (below) may demand a
// nested specialization of a different untyped function; since
// *ir.Registry's mutex isn't reentrant, those nested lookups must reuse the
// caller's lock rather than call the exported Specialize and deadlock.
func specializeLocked(registry *ir.Registry, fn *ir.UntypedFn, argTypes []types.Type, names *ir.NameSupply) (*ir.TypedFn, error) {
	key := ir.NewTypedKey(fn.Name, argTypes)

	if cached, ok := registry.TypedLocked(key); ok {
		return cached, nil
	}

	formals := fn.FormalArgs.Positional
	if len(formals) != len(argTypes) {
		return nil, errors.NewTypeError(fn.Name,
			fmt.Sprintf("specializing %s: %d formal(s), %d argument type(s)", fn.Name, len(formals), len(argTypes)))
	}

	base := make(env, len(formals))
	for i, name := range formals {
		base[name] = argTypes[i]
	}

	inf := &inferer{registry: registry, names: names, fnName: fn.Name}
	body, retType, err := inf.inferBlock(fn.Body, base)
	if err != nil {
		return nil, err
	}
	if retType == nil {
		return nil, errors.NewTypeError(fn.Name, fmt.Sprintf("specializing %s: no reachable return", fn.Name))
	}

	argNames := make([]string, len(formals))
	copy(argNames, formals)

	typed := &ir.TypedFn{
		Name:        names.Fresh(fn.Name),
		UntypedName: fn.Name,
		ArgTypes:    append([]types.Type(nil), argTypes...),
		ArgNames:    argNames,
		ReturnType:  retType,
		Body:        body,
	}

	registry.StoreTypedLocked(key, typed)
	return typed, nil
}

// inferer carries the bits of context an abstract-interpretation walk needs
// beyond the environment itself: the registry (for Closure/Call type
// resolution against already-specialized or still-untyped callees) and the
// name supply (for the fresh names loop-fixpoint widening can require).
type inferer struct {
	registry *ir.Registry
	names    *ir.NameSupply
	fnName   string
}

// inferBlock walks body under e, returning a type-annotated copy of body
// and the type of the first reachable Return it finds (nil if the block
// never returns along any path — a while loop with no return past it is
// normal; a function specialization with no reachable Return anywhere is
// the caller's error to report).
func (inf *inferer) inferBlock(body []ir.Stmt, e env) ([]ir.Stmt, types.Type, error) {
	out := make([]ir.Stmt, 0, len(body))
	var retType types.Type

	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ir.Assign:
			rhs, rt, err := inf.inferExpr(s.Rhs, e)
			if err != nil {
				return nil, nil, err
			}
			lhs, err := inf.bindLhs(s.Lhs, rt, e)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, &ir.Assign{Lhs: lhs, Rhs: rhs})

		case *ir.If:
			cond, ct, err := inf.inferExpr(s.Cond, e)
			if err != nil {
				return nil, nil, err
			}
			if !ct.Equal(types.TBool) {
				return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("if condition has type %s, want Bool", ct))
			}

			thenEnv, elseEnv := e.clone(), e.clone()
			thenBody, thenRet, err := inf.inferBlock(s.ThenBlock, thenEnv)
			if err != nil {
				return nil, nil, err
			}
			elseBody, elseRet, err := inf.inferBlock(s.ElseBlock, elseEnv)
			if err != nil {
				return nil, nil, err
			}

			merge, err := inf.unifyMerge(s.MergeMap, thenEnv, elseEnv, e)
			if err != nil {
				return nil, nil, err
			}

			out = append(out, &ir.If{Cond: cond, ThenBlock: thenBody, ElseBlock: elseBody, MergeMap: merge})

			if thenRet != nil && elseRet != nil {
				unified, err := types.Unify(thenRet, elseRet)
				if err != nil {
					return nil, nil, errors.NewTypeError(inf.fnName, err.Error())
				}
				if retType == nil {
					retType = unified
				} else if retType, err = types.Unify(retType, unified); err != nil {
					return nil, nil, errors.NewTypeError(inf.fnName, err.Error())
				}
			}

		case *ir.While:
			loopEnv := e.clone()
			body, merge, err := inf.fixpointWhile(s, loopEnv, e)
			if err != nil {
				return nil, nil, err
			}
			cond, ct, err := inf.inferExpr(s.Cond, loopEnv)
			if err != nil {
				return nil, nil, err
			}
			if !ct.Equal(types.TBool) {
				return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("while condition has type %s, want Bool", ct))
			}
			out = append(out, &ir.While{Cond: cond, Body: body, MergeMap: merge})

		case *ir.Return:
			if s.Value == nil {
				out = append(out, s)
				continue
			}
			val, vt, err := inf.inferExpr(s.Value, e)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, &ir.Return{Value: val})
			if retType == nil {
				retType = vt
			} else if retType, err = types.Unify(retType, vt); err != nil {
				return nil, nil, errors.NewTypeError(inf.fnName, err.Error())
			}

		default:
			return nil, nil, errors.NewAssertionFailure(inf.fnName, fmt.Sprintf("unrecognized statement kind %T", stmt))
		}
	}

	return out, retType, nil
}

// fixpointWhile type-infers a loop body to a fixpoint: the merge map's
// back-edge type for every loop-carried name must equal (after widening)
// the pre-loop type already bound in outerEnv, since the loop may run zero
// or many times and every iteration must see the same formal types. Each
// round re-infers the body from the current best guess; a round that
// leaves every loop-carried type unchanged from the previous round is the
// fixpoint. The type lattice has finite height (Unify only ever widens
// along a fixed chain of integer/float ranks, never narrows), so this
// terminates in at most as many rounds as there are widening steps.
func (inf *inferer) fixpointWhile(s *ir.While, loopEnv env, outerEnv env) ([]ir.Stmt, ir.Merge, error) {
	const maxRounds = 8

	names := s.MergeMap.Names()
	for round := 0; round < maxRounds; round++ {
		trial := loopEnv.clone()
		bodyCopy, _, err := inf.inferBlock(s.Body, trial)
		if err != nil {
			return nil, nil, err
		}

		changed := false
		next := loopEnv.clone()
		for _, name := range names {
			_, preT, err := inf.inferExpr(s.MergeMap.Branch(name, 0), outerEnv)
			if err != nil {
				return nil, nil, err
			}
			_, backT, err := inf.inferExpr(s.MergeMap.Branch(name, 1), trial)
			if err != nil {
				return nil, nil, err
			}
			unified, err := types.Unify(preT, backT)
			if err != nil {
				return nil, nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("loop-carried %s: %s", name, err))
			}
			if cur, ok := loopEnv[name]; !ok || !cur.Equal(unified) {
				changed = true
			}
			next[name] = unified
		}

		if !changed {
			merge := make(ir.Merge, len(names))
			for _, name := range names {
				preExpr, _, err := inf.inferExpr(s.MergeMap.Branch(name, 0), outerEnv)
				if err != nil {
					return nil, nil, err
				}
				backExpr, _, err := inf.inferExpr(s.MergeMap.Branch(name, 1), trial)
				if err != nil {
					return nil, nil, err
				}
				merge[name] = [2]ir.Expr{preExpr, backExpr}
			}
			for k, v := range next {
				loopEnv[k] = v
			}
			return bodyCopy, merge, nil
		}

		for k, v := range next {
			loopEnv[k] = v
		}
	}

	return nil, nil, errors.NewTypeError(inf.fnName, "while: type lattice did not converge within the round budget")
}

// unifyMerge computes the join type for every name in m by unifying the
// type it has in thenEnv against the type it has in elseEnv, recording the
// result into outerEnv (the environment visible after the If), and returns
// a type-annotated copy of m.
func (inf *inferer) unifyMerge(m ir.Merge, thenEnv, elseEnv, outerEnv env) (ir.Merge, error) {
	if m == nil {
		return nil, nil
	}
	out := make(ir.Merge, len(m))
	for _, name := range m.Names() {
		left, lt, err := inf.inferExpr(m.Branch(name, 0), thenEnv)
		if err != nil {
			return nil, err
		}
		right, rt, err := inf.inferExpr(m.Branch(name, 1), elseEnv)
		if err != nil {
			return nil, err
		}
		unified, err := types.Unify(lt, rt)
		if err != nil {
			return nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("merge %s: %s", name, err))
		}
		outerEnv[name] = unified
		out[name] = [2]ir.Expr{left, right}
	}
	return out, nil
}

// bindLhs records rt as the type of lhs in e (for a plain Var) or
// recursively destructures a Tuple lhs against rt's Tuple element types,
// returning a type-annotated copy of lhs. Index/Attribute lhs forms
// describe a mutation through an existing binding rather than introducing
// one, so they're type-checked against the existing base type instead of
// rebinding it.
func (inf *inferer) bindLhs(lhs ir.Expr, rt types.Type, e env) (ir.Expr, error) {
	switch l := lhs.(type) {
	case *ir.Var:
		e[l.Name] = rt
		v := &ir.Var{Name: l.Name}
		v.SetType(rt)
		return v, nil
	case *ir.Tuple:
		tt, ok := rt.(types.Tuple)
		if !ok || len(tt.Elts) != len(l.Elts) {
			return nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("tuple destructure: rhs type %s does not match %d-element pattern", rt, len(l.Elts)))
		}
		elts := make([]ir.Expr, len(l.Elts))
		for i, elt := range l.Elts {
			var err error
			elts[i], err = inf.bindLhs(elt, tt.Elts[i], e)
			if err != nil {
				return nil, err
			}
		}
		out := &ir.Tuple{Elts: elts}
		out.SetType(rt)
		return out, nil
	case *ir.Index:
		val, vt, err := inf.inferExpr(l.Value, e)
		if err != nil {
			return nil, err
		}
		idx, _, err := inf.inferExpr(l.Idx, e)
		if err != nil {
			return nil, err
		}
		arr, ok := vt.(types.Array)
		if !ok {
			return nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("index assignment target has non-array type %s", vt))
		}
		out := &ir.Index{Value: val, Idx: idx}
		out.SetType(arr.Elt)
		return out, nil
	case *ir.Attribute:
		val, vt, err := inf.inferExpr(l.Value, e)
		if err != nil {
			return nil, err
		}
		st, ok := vt.(types.Struct)
		if !ok {
			return nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("attribute assignment target has non-struct type %s", vt))
		}
		pos := st.FieldPos(l.Field)
		if pos < 0 {
			return nil, errors.NewTypeError(inf.fnName, fmt.Sprintf("struct type %s has no field %q", vt, l.Field))
		}
		out := &ir.Attribute{Value: val, Field: l.Field}
		out.SetType(st.Fields[pos].Type)
		return out, nil
	default:
		return nil, errors.NewAssertionFailure(inf.fnName, fmt.Sprintf("unrecognized assignment target kind %T", lhs))
	}
}
