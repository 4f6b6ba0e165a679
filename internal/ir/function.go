package ir

import "arrayjit/internal/types"

// UntypedFn is a function record before specialization: a name, its
// formal-argument descriptor, its body, and the set of non-local names
// it captures (its free variables, supplied by the untyped-IR
// producer). Untyped functions are interned at construction and never
// mutated thereafter.
type UntypedFn struct {
	Name        string
	FormalArgs  *FormalArgs
	Body        []Stmt
	NonLocals   []string
}

// TypedFn is a function record after specialization: it keeps an
// UntypedFn's name and body (not its FormalArgs or NonLocals) and
// carries the concrete argument types it was
// specialized for, its inferred return type, and the SSA argument names
// bound to each formal.
type TypedFn struct {
	Name       string
	UntypedName string
	ArgTypes   []types.Type
	ArgNames   []string
	ReturnType types.Type
	Body       []Stmt
}

// TypedKey identifies a typed-function cache entry: the untyped
// function's name plus the ordered argument-type tuple it was
// specialized for.
type TypedKey struct {
	UntypedName string
	ArgTypeKey  string
}

// NewTypedKey builds a TypedKey from a name and argument types.
func NewTypedKey(name string, argTypes []types.Type) TypedKey {
	return TypedKey{UntypedName: name, ArgTypeKey: types.Key(argTypes)}
}
