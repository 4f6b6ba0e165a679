// Package ir is the untyped/typed intermediate representation shared by
// every compiler pass: tagged expression and statement node variants
// dispatched through a visitor (the same Accept/Visit shape the
// teacher's parser AST uses), function records, and the three
// process-wide registries (untyped functions, typed-function cache,
// optimized-function cache) guarded by one mutex.
package ir

import "arrayjit/internal/types"

// Expr is satisfied by every expression node. Once a function has been
// specialized, every Expr also carries a concrete Type (see typeBase).
type Expr interface {
	Accept(v ExprVisitor) any
	Type() types.Type
	SetType(t types.Type)
}

type typeBase struct {
	typ types.Type
}

func (t *typeBase) Type() types.Type    { return t.typ }
func (t *typeBase) SetType(ty types.Type) { t.typ = ty }

// Const is a literal scalar or boolean value.
type Const struct {
	typeBase
	Value any
}

func (c *Const) Accept(v ExprVisitor) any { return v.VisitConst(c) }

// Var references a bound SSA name.
type Var struct {
	typeBase
	Name string
}

func (e *Var) Accept(v ExprVisitor) any { return v.VisitVar(e) }

// PrimCall applies a total primitive operation to its arguments.
type PrimCall struct {
	typeBase
	Prim Prim
	Args []Expr
}

func (e *PrimCall) Accept(v ExprVisitor) any { return v.VisitPrimCall(e) }

// Cast converts value to Target, recorded both as the node's Type and
// here for clarity at call sites that inspect casts specifically.
type Cast struct {
	typeBase
	Value  Expr
	Target types.Type
}

func (e *Cast) Accept(v ExprVisitor) any { return v.VisitCast(e) }

// Tuple constructs a fixed-arity tuple value.
type Tuple struct {
	typeBase
	Elts []Expr
}

func (e *Tuple) Accept(v ExprVisitor) any { return v.VisitTuple(e) }

// TupleProj projects the Index'th element out of a tuple.
type TupleProj struct {
	typeBase
	TupleExpr Expr
	Index     int
}

func (e *TupleProj) Accept(v ExprVisitor) any { return v.VisitTupleProj(e) }

// Struct constructs a value of a named-field layout given by its Type.
type Struct struct {
	typeBase
	Args []Expr
}

func (e *Struct) Accept(v ExprVisitor) any { return v.VisitStruct(e) }

// Attribute projects a named field out of a struct value.
type Attribute struct {
	typeBase
	Value Expr
	Field string
}

func (e *Attribute) Accept(v ExprVisitor) any { return v.VisitAttribute(e) }

// Array constructs an array literal from its elements.
type Array struct {
	typeBase
	Elts []Expr
}

func (e *Array) Accept(v ExprVisitor) any { return v.VisitArray(e) }

// ArrayView is a strided view over underlying array data: a data
// pointer expression, a shape tuple, a strides tuple, a byte/element
// offset, and the total element count.
type ArrayView struct {
	typeBase
	Data       Expr
	Shape      Expr
	Strides    Expr
	Offset     Expr
	TotalElts  Expr
}

func (e *ArrayView) Accept(v ExprVisitor) any { return v.VisitArrayView(e) }

// Index applies an index or slice expression to an array/view value.
type Index struct {
	typeBase
	Value Expr
	Idx   Expr
}

func (e *Index) Accept(v ExprVisitor) any { return v.VisitIndex(e) }

// Slice is a `start:stop:step` slice expression.
type Slice struct {
	typeBase
	Start, Stop, Step Expr
}

func (e *Slice) Accept(v ExprVisitor) any { return v.VisitSlice(e) }

// Closure bundles a reference to an (untyped or typed) function by name
// with a set of captured argument expressions.
type Closure struct {
	typeBase
	FnName   string
	Captured []Expr
}

func (e *Closure) Accept(v ExprVisitor) any { return v.VisitClosure(e) }

// ClosureElt projects the Index'th captured value out of a closure.
type ClosureElt struct {
	typeBase
	ClosureExpr Expr
	Index       int
}

func (e *ClosureElt) Accept(v ExprVisitor) any { return v.VisitClosureElt(e) }

// Call invokes callee (a function reference, a closure value, or,
// post-specialization, a typed function) with args.
type Call struct {
	typeBase
	Callee Expr
	Args   []Expr
	// TypedCallee is set once a Call's callee has been resolved to a
	// concrete typed function, by internal/specialize when it infers the
	// Call; Simplify's rewrites carry it over unchanged.
	TypedCallee *TypedFn
}

func (e *Call) Accept(v ExprVisitor) any { return v.VisitCall(e) }

// AdverbKind tags which data-parallel adverb a node represents.
type AdverbKind int

const (
	AdverbMap AdverbKind = iota
	AdverbAllPairs
	AdverbReduce
	AdverbScan
)

func (k AdverbKind) String() string {
	switch k {
	case AdverbMap:
		return "Map"
	case AdverbAllPairs:
		return "AllPairs"
	case AdverbReduce:
		return "Reduce"
	case AdverbScan:
		return "Scan"
	default:
		return "UnknownAdverb"
	}
}

// Map applies Fn elementwise to Args along Axis.
type Map struct {
	typeBase
	Fn   Expr
	Args []Expr
	Axis int
}

func (e *Map) Accept(v ExprVisitor) any { return v.VisitMap(e) }

// AllPairs applies Fn to every pair drawn from X and Y along Axis.
// internal/adverb builds it as a single AllPairs node; it is not
// rewritten into nested Maps.
type AllPairs struct {
	typeBase
	Fn     Expr
	X, Y   Expr
	Axis   int
}

func (e *AllPairs) Accept(v ExprVisitor) any { return v.VisitAllPairs(e) }

// Reduce folds Combine over Args along Axis starting from Init (which
// may be nil, meaning "use the first element").
type Reduce struct {
	typeBase
	Fn      Expr
	Combine Expr
	Args    []Expr
	Init    Expr
	Axis    int
}

func (e *Reduce) Accept(v ExprVisitor) any { return v.VisitReduce(e) }

// Scan folds Combine over Args along Axis starting from Init, emitting
// one output per input position via Emit (the identity emit function
// yields a standard prefix scan).
type Scan struct {
	typeBase
	Fn      Expr
	Combine Expr
	Emit    Expr
	Args    []Expr
	Init    Expr
	Axis    int
}

func (e *Scan) Accept(v ExprVisitor) any { return v.VisitScan(e) }

// ExprVisitor dispatches once per expression node class, replacing
// per-node dynamic method dispatch with a single tagged-variant match
// (see DESIGN.md, "multiple dispatch on IR nodes").
type ExprVisitor interface {
	VisitConst(e *Const) any
	VisitVar(e *Var) any
	VisitPrimCall(e *PrimCall) any
	VisitCast(e *Cast) any
	VisitTuple(e *Tuple) any
	VisitTupleProj(e *TupleProj) any
	VisitStruct(e *Struct) any
	VisitAttribute(e *Attribute) any
	VisitArray(e *Array) any
	VisitArrayView(e *ArrayView) any
	VisitIndex(e *Index) any
	VisitSlice(e *Slice) any
	VisitClosure(e *Closure) any
	VisitClosureElt(e *ClosureElt) any
	VisitCall(e *Call) any
	VisitMap(e *Map) any
	VisitAllPairs(e *AllPairs) any
	VisitReduce(e *Reduce) any
	VisitScan(e *Scan) any
}
