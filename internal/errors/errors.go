// Package errors defines the compiler core's own error kinds: the
// fatal conditions a pass can raise, each carrying enough context for a
// diagnostic. All of them abort the current compilation; none are ever
// swallowed, and none corrupt the caches in internal/ir.Registry (a
// failing pass's partial IR is simply discarded by its caller).
package errors

import (
	"fmt"
	"strings"
)

// Kind tags which of the core's fatal error categories occurred.
type Kind string

const (
	// NameNotFound: a referenced variable has no binding in any
	// enclosing scope. Raised by the IR producer's name resolution or
	// by Simplify when an SSA invariant is violated.
	NameNotFound Kind = "NameNotFound"
	// TypeError / InferenceError: unification failure during
	// specialization. The typed-function cache is not populated.
	TypeError Kind = "TypeError"
	// ValueMismatch: two abstract shape values combined incompatibly;
	// indicates an analysis bug or malformed IR.
	ValueMismatch Kind = "ValueMismatch"
	// AssertionFailure: an SSA or φ-merge invariant violation, or a
	// tuple-projection index out of range. Caught only at the pipeline
	// boundary to emit a diagnostic.
	AssertionFailure Kind = "AssertionFailure"
)

// StackFrame is one frame in a compilation call stack: the chain of
// specializations that led to the function where the error occurred.
type StackFrame struct {
	Function string
	Node     string
}

// CompileError is a fatal compiler-core error: a kind, a message, the
// diagnostic name of the offending node (if any), and an optional
// specialization call stack.
type CompileError struct {
	Kind      Kind
	Message   string
	Node      string
	CallStack []StackFrame
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Node != "" {
		sb.WriteString(fmt.Sprintf(" (at %s)", e.Node))
	}
	if len(e.CallStack) > 0 {
		sb.WriteString("\nspecialization stack:\n")
		for _, frame := range e.CallStack {
			if frame.Node != "" {
				sb.WriteString(fmt.Sprintf("  in %s (%s)\n", frame.Function, frame.Node))
			} else {
				sb.WriteString(fmt.Sprintf("  in %s\n", frame.Function))
			}
		}
	}
	return sb.String()
}

// NewNameNotFound reports a reference to an unbound name.
func NewNameNotFound(name string) *CompileError {
	return &CompileError{Kind: NameNotFound, Message: fmt.Sprintf("name not found: %s", name), Node: name}
}

// NewTypeError reports a unification/rule-table failure during
// specialization, naming the offending node for diagnostics.
func NewTypeError(node, reason string) *CompileError {
	return &CompileError{Kind: TypeError, Message: reason, Node: node}
}

// NewValueMismatch reports two abstract shape values that could not be
// combined.
func NewValueMismatch(left, right fmt.Stringer) *CompileError {
	return &CompileError{
		Kind:    ValueMismatch,
		Message: fmt.Sprintf("cannot combine %s with %s", left, right),
	}
}

// NewAssertionFailure reports a violated SSA or φ-merge invariant.
func NewAssertionFailure(node, reason string) *CompileError {
	return &CompileError{Kind: AssertionFailure, Message: reason, Node: node}
}

// WithStack attaches a specialization call stack to e and returns e for
// chaining.
func (e *CompileError) WithStack(stack []StackFrame) *CompileError {
	e.CallStack = stack
	return e
}

// AddFrame appends a single specialization stack frame.
func (e *CompileError) AddFrame(function, node string) *CompileError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Node: node})
	return e
}
