// Package inline implements the pipeline's second stage: inlining Call
// sites whose callee is a small (or explicitly marked) known typed
// function, so a following Simplify pass can collapse the introduced
// copies.
package inline

import "arrayjit/internal/ir"

// DefaultMaxInlineStmts is the statement-count heuristic threshold: a
// callee with no more than this many statements (counting nested
// branch/loop bodies) is small enough to inline, provided every Return
// in it is in tail position.
const DefaultMaxInlineStmts = 8

// Inliner rewrites Call sites into their callee's body, α-renamed and
// bound to the call-site arguments.
type Inliner struct {
	names          *ir.NameSupply
	maxStmts       int
	explicitMarked map[string]bool
	changed        bool
}

// New constructs an Inliner. explicitMarks names callees that are
// inlined regardless of size, as long as every Return in them is in
// tail position (e.g. adverb work-function
// wrappers synthesized by internal/adverb, which exist solely to be
// inlined into their call site).
func New(names *ir.NameSupply, explicitMarks map[string]bool) *Inliner {
	if explicitMarks == nil {
		explicitMarks = make(map[string]bool)
	}
	return &Inliner{names: names, maxStmts: DefaultMaxInlineStmts, explicitMarked: explicitMarks}
}

// Name identifies this pass for pipeline diagnostics.
func (p *Inliner) Name() string { return "inline" }

// Run rewrites body, inlining every eligible call site it finds.
func (p *Inliner) Run(body []ir.Stmt) ([]ir.Stmt, bool, error) {
	p.changed = false
	out := p.rewriteBlock(body)
	return out, p.changed, nil
}

func (p *Inliner) rewriteBlock(body []ir.Stmt) []ir.Stmt {
	out := make([]ir.Stmt, 0, len(body))
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *ir.Assign:
			if call, ok := st.Rhs.(*ir.Call); ok {
				if inlined, ok := p.tryInline(call, st.Lhs); ok {
					out = append(out, inlined...)
					p.changed = true
					continue
				}
			}
			out = append(out, st)
		case *ir.If:
			out = append(out, &ir.If{
				Cond:      st.Cond,
				ThenBlock: p.rewriteBlock(st.ThenBlock),
				ElseBlock: p.rewriteBlock(st.ElseBlock),
				MergeMap:  st.MergeMap,
			})
		case *ir.While:
			out = append(out, &ir.While{
				Cond:     st.Cond,
				Body:     p.rewriteBlock(st.Body),
				MergeMap: st.MergeMap,
			})
		case *ir.Return:
			if call, ok := st.Value.(*ir.Call); ok {
				if inlined, ok := p.tryInline(call, nil); ok {
					out = append(out, inlined...)
					p.changed = true
					continue
				}
			}
			out = append(out, st)
		default:
			out = append(out, stmt)
		}
	}
	return out
}

// tryInline expands call into a statement sequence bound to dest, or
// reports false if call's callee isn't known or isn't eligible.
func (p *Inliner) tryInline(call *ir.Call, dest ir.Expr) ([]ir.Stmt, bool) {
	callee := call.TypedCallee
	if callee == nil {
		return nil, false
	}
	if !p.inlinable(callee) {
		return nil, false
	}

	subst := make(map[string]ir.Expr, len(callee.ArgNames))
	var prelude []ir.Stmt
	for i, name := range callee.ArgNames {
		fresh := p.names.Fresh(name)
		v := &ir.Var{Name: fresh}
		v.SetType(callee.ArgTypes[i])
		subst[name] = v
		var arg ir.Expr
		if i < len(call.Args) {
			arg = call.Args[i]
		}
		prelude = append(prelude, &ir.Assign{Lhs: v, Rhs: arg})
	}

	locals := make(map[string]*ir.Var)
	collectLocalVars(callee.Body, locals)
	for name, v := range locals {
		if _, already := subst[name]; already {
			continue
		}
		fresh := p.names.Fresh(name)
		nv := &ir.Var{Name: fresh}
		nv.SetType(v.Type())
		subst[name] = nv
	}

	renamed := renameBody(callee.Body, subst)
	withDest := rewriteReturns(renamed, dest)

	return append(prelude, withDest...), true
}

func (p *Inliner) inlinable(callee *ir.TypedFn) bool {
	if !onlyTailReturns(callee.Body) {
		return false
	}
	if p.explicitMarked[callee.Name] {
		return true
	}
	return countStmts(callee.Body) <= p.maxStmts
}

// onlyTailReturns reports whether every Return in body occurs in tail
// position: the last statement of its immediately enclosing block, with
// that block itself in tail position all the way up to body's end.
// rewriteReturns splices the callee's body in place of the call site and,
// when binding the call's result to a destination, turns each Return into
// an unconditional Assign — which only preserves the callee's semantics
// if a Return can never be followed by further statements on any path.
// A Return under a branch with code after the branch (an early exit) is
// rejected here rather than miscompiled; inlining such a callee would
// need restructuring it around an explicit "done" flag, not just a
// returns-to-assigns rewrite.
func onlyTailReturns(body []ir.Stmt) bool {
	for i, stmt := range body {
		last := i == len(body)-1
		switch st := stmt.(type) {
		case *ir.Return:
			if !last {
				return false
			}
		case *ir.If:
			if !onlyTailReturns(st.ThenBlock) || !onlyTailReturns(st.ElseBlock) {
				return false
			}
			if !last && (containsReturn(st.ThenBlock) || containsReturn(st.ElseBlock)) {
				return false
			}
		case *ir.While:
			if containsReturn(st.Body) {
				return false
			}
		}
	}
	return true
}

func containsReturn(body []ir.Stmt) bool {
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *ir.Return:
			return true
		case *ir.If:
			if containsReturn(st.ThenBlock) || containsReturn(st.ElseBlock) {
				return true
			}
		case *ir.While:
			if containsReturn(st.Body) {
				return true
			}
		}
	}
	return false
}

func countStmts(body []ir.Stmt) int {
	n := 0
	for _, stmt := range body {
		n++
		switch st := stmt.(type) {
		case *ir.If:
			n += countStmts(st.ThenBlock) + countStmts(st.ElseBlock)
		case *ir.While:
			n += countStmts(st.Body)
		}
	}
	return n
}
