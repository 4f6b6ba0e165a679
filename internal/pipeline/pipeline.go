// Package pipeline drives the optimization stage that turns a freshly
// specialized typed function into its cached, optimized form: repeated
// rounds of [Simplify, Inliner, Simplify] run to a fixpoint, with the
// result memoized in the optimized-function cache so a second compilation
// of the same typed function is a cache hit.
package pipeline

import (
	"fmt"
	"time"

	"arrayjit/internal/diagnostics"
	"arrayjit/internal/inline"
	"arrayjit/internal/ir"
	"arrayjit/internal/simplify"
)

// Config controls a single Optimize call. It is deliberately small and
// stdlib-only: five fields don't warrant a config-file library (viper,
// koanf, etc. all solve "parse a tree of settings from a file", which
// nothing here needs — a caller constructs a Config literal directly).
type Config struct {
	// OptTile has no effect on this package's own rewrite rounds; it is
	// threaded through so one Config travels the whole specialize ->
	// optimize -> lower path. internal/adverb passes it on as
	// backend.LowerOptions.OptTile, which the backend does not read.
	OptTile bool
	// Copy forces Optimize to skip the optimized-function cache and
	// produce a fresh rewrite even on a hit — used by tests that need to
	// inspect two independently-produced copies of the same rewrite.
	Copy bool
	// CachePath names an internal/cache persistence file. Neither this
	// package nor internal/adverb reads it; cmd/arrayjit opens its store
	// from its own -cache flag.
	CachePath string
	// Verbose is not read by Optimize: per-round IR dumps depend only on
	// Logger. cmd/arrayjit uses it to decide whether to print LLVM text.
	Verbose bool
	// Logger receives per-round dumps and a final stage-timing line. Nil
	// disables all diagnostic output (the zero Config still optimizes
	// correctly; logging is observational only).
	Logger *diagnostics.Logger
}

// MaxRounds bounds how many [Simplify, Inliner, Simplify] rounds Optimize
// will run before giving up on reaching a fixpoint. Each round either
// shrinks the body (inlining + dead-code elision) or leaves it unchanged;
// in practice one or two rounds suffice, but pathological mutual-recursion
// chains could in principle oscillate, so this is a hard backstop.
const MaxRounds = 16

// ExplicitInline names callees Optimize's Inliner stage must always
// inline regardless of size. No caller in this module passes a non-nil
// set: internal/adverb's lowering path passes nil.
type ExplicitInline map[string]bool

// Optimize runs fn's body through the rewrite pipeline to a fixpoint and
// returns the optimized copy, consulting and populating registry's
// optimized-function cache keyed by fn.Name. The registry's single mutex
// is held for the whole optimization (per §5's single process-wide
// compilation mutex), so two goroutines racing to optimize the same
// function never duplicate the work or return two different bodies for
// the same cache key.
func Optimize(registry *ir.Registry, fn *ir.TypedFn, names *ir.NameSupply, marks ExplicitInline, cfg Config) (*ir.TypedFn, error) {
	registry.Lock()
	defer registry.Unlock()

	if !cfg.Copy {
		if cached, ok := registry.OptimizedLocked(fn.Name); ok {
			return cached, nil
		}
	}

	started := time.Now()
	body := fn.Body
	inliner := inline.New(names, marks)

	for round := 0; round < MaxRounds; round++ {
		roundChanged := false

		current := &ir.TypedFn{
			Name: fn.Name, UntypedName: fn.UntypedName,
			ArgTypes: fn.ArgTypes, ArgNames: fn.ArgNames,
			ReturnType: fn.ReturnType, Body: body,
		}
		s1 := simplify.New(current, names)
		out, changed, err := s1.Run(body)
		if err != nil {
			return nil, err
		}
		if changed {
			roundChanged = true
			body = out
		}

		out, changed, err = inliner.Run(body)
		if err != nil {
			return nil, err
		}
		if changed {
			roundChanged = true
			body = out
		}

		current = &ir.TypedFn{
			Name: fn.Name, UntypedName: fn.UntypedName,
			ArgTypes: fn.ArgTypes, ArgNames: fn.ArgNames,
			ReturnType: fn.ReturnType, Body: body,
		}
		s2 := simplify.New(current, names)
		out, changed, err = s2.Run(body)
		if err != nil {
			return nil, err
		}
		if changed {
			roundChanged = true
			body = out
		}

		if cfg.Logger != nil {
			cfg.Logger.Dump(fmt.Sprintf("round %d body", round), body)
		}

		if !roundChanged {
			break
		}
	}

	optimized := &ir.TypedFn{
		Name:        fn.Name,
		UntypedName: fn.UntypedName,
		ArgTypes:    fn.ArgTypes,
		ArgNames:    fn.ArgNames,
		ReturnType:  fn.ReturnType,
		Body:        body,
	}
	registry.StoreOptimizedLocked(fn.Name, optimized)
	if cfg.Logger != nil {
		cfg.Logger.Stage("optimize "+fn.Name, time.Since(started))
	}
	return optimized, nil
}
