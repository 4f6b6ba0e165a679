package transform

import (
	"arrayjit/internal/ir"
	"arrayjit/internal/types"
)

// BlockBuilder accumulates statements for the block currently being
// rewritten, supporting nested builders (one per block depth) so a
// hoisted temporary can be emitted into the enclosing block or into a
// specific branch/loop-body block, never accidentally into the wrong
// one — the correctness requirement §4.5's φ-merge normalization and
// loop-condition hoisting both depend on.
type BlockBuilder struct {
	stmts []ir.Stmt
}

// NewBlockBuilder creates an empty block builder.
func NewBlockBuilder() *BlockBuilder { return &BlockBuilder{} }

// Emit appends stmt to the block under construction.
func (b *BlockBuilder) Emit(stmt ir.Stmt) { b.stmts = append(b.stmts, stmt) }

// Stmts returns the accumulated statement list.
func (b *BlockBuilder) Stmts() []ir.Stmt { return b.stmts }

// BlockStack is a stack of BlockBuilders, one per block currently being
// rewritten (the enclosing block, plus the branch/loop-body block a
// nested rewrite is working in).
type BlockStack struct {
	names *ir.NameSupply
	stack []*BlockBuilder
}

// NewBlockStack creates a block stack backed by the given fresh-name
// supply.
func NewBlockStack(names *ir.NameSupply) *BlockStack {
	return &BlockStack{names: names}
}

// Push begins a new block, returning its builder.
func (s *BlockStack) Push() *BlockBuilder {
	b := NewBlockBuilder()
	s.stack = append(s.stack, b)
	return b
}

// Pop closes the innermost block and returns its statements.
func (s *BlockStack) Pop() []ir.Stmt {
	b := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return b.Stmts()
}

// Current returns the innermost open block builder.
func (s *BlockStack) Current() *BlockBuilder {
	return s.stack[len(s.stack)-1]
}

// AssignTemp emits `tmp := rhs` into the current block and returns a
// Var referencing tmp, typed the same as rhs. This is the shared
// hoisting primitive used by argument normalization, attribute-base
// hoisting, and φ/loop-condition hoisting (those last two push a
// specific branch block first so the temp lands on the correct control
// path instead of the enclosing one).
func (s *BlockStack) AssignTemp(base string, rhs ir.Expr) *ir.Var {
	name := s.names.Fresh(base)
	v := &ir.Var{Name: name}
	v.SetType(rhs.Type())
	s.Current().Emit(&ir.Assign{Lhs: v, Rhs: rhs})
	return v
}

// AssignTempIn emits `tmp := rhs` into an arbitrary (already-pushed)
// block builder, for hoisting into a block other than the current one.
func AssignTempIn(names *ir.NameSupply, b *BlockBuilder, base string, rhs ir.Expr) *ir.Var {
	name := names.Fresh(base)
	v := &ir.Var{Name: name}
	v.SetType(rhs.Type())
	b.Emit(&ir.Assign{Lhs: v, Rhs: rhs})
	return v
}

// IsSimple reports whether e is already a Var or Const — the two
// expression forms φ-merge branch values and loop conditions must
// reduce to, and the only forms argument normalization leaves
// un-hoisted.
func IsSimple(e ir.Expr) bool {
	switch e.(type) {
	case *ir.Var, *ir.Const:
		return true
	default:
		return false
	}
}

// BoolType is the ground type loop conditions and φ-collapsed boolean
// temporaries carry.
var BoolType types.Type = types.TBool
