package ir

import "fmt"

// FormalArgs is the formal-argument descriptor of a function: an
// ordered list of positional parameter names, an optional variadic
// tail, and a mapping from keyword name to default expression. Names
// must be unique within a descriptor.
type FormalArgs struct {
	Positional []string
	Variadic   string // empty if none
	Defaults   map[string]Expr
}

// NewFormalArgs builds a FormalArgs from positional names, validating
// the uniqueness invariant.
func NewFormalArgs(positional []string) (*FormalArgs, error) {
	seen := make(map[string]bool, len(positional))
	for _, n := range positional {
		if seen[n] {
			return nil, fmt.Errorf("ir: duplicate formal argument name %q", n)
		}
		seen[n] = true
	}
	return &FormalArgs{Positional: positional, Defaults: make(map[string]Expr)}, nil
}

// WithVariadic sets the variadic tail name, validating uniqueness.
func (f *FormalArgs) WithVariadic(name string) (*FormalArgs, error) {
	for _, n := range f.Positional {
		if n == name {
			return nil, fmt.Errorf("ir: variadic name %q collides with positional arg", name)
		}
	}
	f.Variadic = name
	return f, nil
}

// WithDefault attaches a keyword default expression.
func (f *FormalArgs) WithDefault(name string, expr Expr) *FormalArgs {
	f.Defaults[name] = expr
	return f
}

// Arity returns the number of positional formals.
func (f *FormalArgs) Arity() int { return len(f.Positional) }

// ActualArgs is the bundle of values (or, after deriving, types) passed
// at a call site: ordered positional values plus a keyword map.
type ActualArgs[T any] struct {
	Positional []T
	Keywords   map[string]T
}

// NewActualArgs builds an ActualArgs from positional values.
func NewActualArgs[T any](positional []T) *ActualArgs[T] {
	return &ActualArgs[T]{Positional: positional, Keywords: make(map[string]T)}
}

// Transform returns a new bundle with f applied to every value,
// preserving positional order and keyword names. This is how a
// value-bundle becomes a type-bundle ahead of specialization.
func Transform[T, U any](a *ActualArgs[T], f func(T) U) *ActualArgs[U] {
	out := &ActualArgs[U]{
		Positional: make([]U, len(a.Positional)),
		Keywords:   make(map[string]U, len(a.Keywords)),
	}
	for i, v := range a.Positional {
		out.Positional[i] = f(v)
	}
	for k, v := range a.Keywords {
		out.Keywords[k] = f(v)
	}
	return out
}

// Bind resolves an ActualArgs bundle against a FormalArgs descriptor,
// producing an ordered value vector (positional args first, then
// keyword-or-default values for any remaining formals) or a diagnostic
// error on missing/extra keys.
func Bind[T any](formals *FormalArgs, actuals *ActualArgs[T], evalDefault func(Expr) T) ([]T, error) {
	n := formals.Arity()
	if len(actuals.Positional) > n && formals.Variadic == "" {
		return nil, fmt.Errorf("ir: too many positional arguments: got %d, want at most %d", len(actuals.Positional), n)
	}

	out := make([]T, 0, n)
	out = append(out, actuals.Positional...)

	for i := len(actuals.Positional); i < n; i++ {
		name := formals.Positional[i]
		if v, ok := actuals.Keywords[name]; ok {
			out = append(out, v)
			continue
		}
		if expr, ok := formals.Defaults[name]; ok {
			out = append(out, evalDefault(expr))
			continue
		}
		return nil, fmt.Errorf("ir: missing required argument %q", name)
	}

	consumed := make(map[string]bool, len(actuals.Keywords))
	for i := len(actuals.Positional); i < n; i++ {
		consumed[formals.Positional[i]] = true
	}
	for k := range actuals.Keywords {
		if !consumed[k] {
			isFormal := false
			for _, p := range formals.Positional {
				if p == k {
					isFormal = true
					break
				}
			}
			if !isFormal {
				return nil, fmt.Errorf("ir: unexpected keyword argument %q", k)
			}
		}
	}

	return out, nil
}
