package ir

import (
	"fmt"
	"sync"
)

// Registry holds the three process-wide tables the compiler core
// shares across compilations: the untyped-function registry, the
// typed-function cache, and the optimized-function cache, all guarded
// by a single mutex per §5/§9: concurrent compilations of distinct
// functions are permitted, but every registry read or write takes the
// lock.
type Registry struct {
	mu sync.Mutex

	untyped   map[string]*UntypedFn
	typed     map[TypedKey]*TypedFn
	optimized map[string]*TypedFn // keyed by the pre-optimization typed fn's Name
}

// NewRegistry creates an empty set of registries.
func NewRegistry() *Registry {
	return &Registry{
		untyped:   make(map[string]*UntypedFn),
		typed:     make(map[TypedKey]*TypedFn),
		optimized: make(map[string]*TypedFn),
	}
}

// RegisterUntyped interns fn by name. Registration is append-only: a
// second registration under the same name is rejected rather than
// silently mutating an already-interned function (untyped functions are
// immutable once registered).
func (r *Registry) RegisterUntyped(fn *UntypedFn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.untyped[fn.Name]; exists {
		return fmt.Errorf("ir: untyped function %q already registered", fn.Name)
	}
	r.untyped[fn.Name] = fn
	return nil
}

// Untyped looks up an interned untyped function by name.
func (r *Registry) Untyped(name string) (*UntypedFn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.untyped[name]
	return fn, ok
}

// Typed looks up a cached specialization.
func (r *Registry) Typed(key TypedKey) (*TypedFn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.typed[key]
	return fn, ok
}

// StoreTyped populates the typed-function cache. Specialization
// failures must never reach this call (see internal/specialize.Specialize):
// the cache is never populated with a partial/invalid result.
func (r *Registry) StoreTyped(key TypedKey, fn *TypedFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typed[key] = fn
}

// Optimized looks up the optimized-function cache, keyed by the
// pre-optimization typed function's name.
func (r *Registry) Optimized(name string) (*TypedFn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.optimized[name]
	return fn, ok
}

// StoreOptimized populates the optimized-function cache.
func (r *Registry) StoreOptimized(name string, fn *TypedFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.optimized[name] = fn
}

// Lock/Unlock expose the registry's mutex directly for callers (the
// pipeline driver, the specializer) that need to perform a
// read-check-write sequence atomically across more than one of the
// three tables — e.g. "look up Typed, and on miss, run inference and
// StoreTyped" must not race with a concurrent compilation of the same
// key.
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// UntypedLocked is the lock-free counterpart of Untyped, for callers
// already holding the mutex (specialize's Call/Closure resolution, which
// runs nested inside specializeLocked and would otherwise deadlock
// re-acquiring a non-reentrant sync.Mutex).
func (r *Registry) UntypedLocked(name string) (*UntypedFn, bool) {
	fn, ok := r.untyped[name]
	return fn, ok
}

// TypedLocked and StoreTypedLocked are the lock-free counterparts of
// Typed/StoreTyped for use between Lock/Unlock.
func (r *Registry) TypedLocked(key TypedKey) (*TypedFn, bool) {
	fn, ok := r.typed[key]
	return fn, ok
}

func (r *Registry) StoreTypedLocked(key TypedKey, fn *TypedFn) {
	r.typed[key] = fn
}

func (r *Registry) OptimizedLocked(name string) (*TypedFn, bool) {
	fn, ok := r.optimized[name]
	return fn, ok
}

func (r *Registry) StoreOptimizedLocked(name string, fn *TypedFn) {
	r.optimized[name] = fn
}
