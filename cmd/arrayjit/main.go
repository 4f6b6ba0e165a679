// cmd/arrayjit/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"arrayjit/internal/adverb"
	"arrayjit/internal/backend"
	"arrayjit/internal/cache"
	"arrayjit/internal/diagnostics"
	"arrayjit/internal/ir"
	"arrayjit/internal/pipeline"
	"arrayjit/internal/specialize"
	"arrayjit/internal/types"
)

const version = "0.1.0"

// commandAliases gives every subcommand a one-letter shortcut, matching
// the teacher's cmd/sentra convention of aliasing common commands rather
// than relying on a flag-parsing library to do it.
var commandAliases = map[string]string{
	"d": "demo",
	"c": "cache-stats",
	"v": "version",
	"h": "help",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("arrayjit %s\n", version)
	case "demo":
		runDemo(args[1:])
	case "cache-stats":
		runCacheStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "arrayjit: unrecognized command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Print(`arrayjit - array-parallel JIT compiler core

Usage:
  arrayjit demo [-cache path] [-v] [-color] [-tile]
      Specializes, optimizes, and lowers a small built-in set of
      functions exercising the scalar pipeline and the map and reduce
      adverbs, printing typed IR summaries, cache statistics, and
      (with -v) LLVM IR.

  arrayjit cache-stats -cache path
      Reports the digest count recorded in a persisted specialization
      cache without running any compilation.

  arrayjit version
      Prints the build version.
`)
}

// parseFlags does a minimal manual scan over a flag set, in the
// teacher's own no-flag-package style (cmd/sentra never imports the
// stdlib flag package either): recognized flags are consumed in any
// order, anything else is ignored.
func parseFlags(args []string) (cachePath string, verbose, color, tile bool) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-cache":
			if i+1 < len(args) {
				cachePath = args[i+1]
				i++
			}
		case "-v", "-verbose":
			verbose = true
		case "-color":
			color = true
		case "-tile":
			tile = true
		}
	}
	return
}

// newLogger builds the process logger. color is accepted as a flag for
// parity with common CLI conventions but never forces escape codes onto
// a non-terminal destination — diagnostics.New always auto-detects via
// go-isatty instead.
func newLogger(verbose, _ bool) *diagnostics.Logger {
	min := diagnostics.LevelInfo
	if verbose {
		min = diagnostics.LevelDebug
	}
	return diagnostics.New(os.Stdout, min).WithVerbose(verbose)
}

func runDemo(args []string) {
	cachePath, verbose, color, tile := parseFlags(args)
	logger := newLogger(verbose, color)

	store, err := openStore(cachePath)
	if err != nil {
		log.Fatalf("arrayjit: %v", err)
	}
	defer store.Close()

	registry := ir.NewRegistry()
	names := ir.NewNameSupply()
	be := backend.NewLLVMBackend()
	cfg := pipeline.Config{OptTile: tile, CachePath: cachePath, Verbose: verbose, Logger: logger}

	registerDemoFunctions(registry)

	ctx := context.Background()
	runScalarDemo(ctx, logger, store, registry, names, cfg)
	runAdverbDemo(logger, registry, names, be, cfg)

	stats(ctx, logger, store)
}

func runCacheStats(args []string) {
	cachePath, _, _, _ := parseFlags(args)
	if cachePath == "" {
		fmt.Fprintln(os.Stderr, "arrayjit: cache-stats requires -cache <path>")
		os.Exit(1)
	}
	store, err := cache.Open(cachePath)
	if err != nil {
		log.Fatalf("arrayjit: %v", err)
	}
	defer store.Close()

	logger := newLogger(false, false)
	stats(context.Background(), logger, store)
}

func openStore(path string) (*cache.Store, error) {
	if path == "" {
		return cache.Disabled(), nil
	}
	return cache.Open(path)
}

func stats(ctx context.Context, logger *diagnostics.Logger, store *cache.Store) {
	count, err := store.Count(ctx)
	if err != nil {
		logger.Errorf("cache stats: %v", err)
		return
	}
	logger.CacheStats(count, "")
}

// registerDemoFunctions interns the handful of untyped functions the
// demo specializes and adverb-applies: an identity-like increment and
// a commutative sum used as a Reduce combine function.
func registerDemoFunctions(registry *ir.Registry) {
	mustRegister(registry, "increment", []string{"x"}, []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "x"}, &ir.Const{Value: int32(1)},
		}}},
	})
	mustRegister(registry, "sum", []string{"a", "b"}, []ir.Stmt{
		&ir.Return{Value: &ir.PrimCall{Prim: ir.PrimAdd, Args: []ir.Expr{
			&ir.Var{Name: "a"}, &ir.Var{Name: "b"},
		}}},
	})
}

func mustRegister(registry *ir.Registry, name string, formals []string, body []ir.Stmt) {
	fa, err := ir.NewFormalArgs(formals)
	if err != nil {
		log.Fatalf("arrayjit: building formals for %s: %v", name, err)
	}
	if err := registry.RegisterUntyped(&ir.UntypedFn{Name: name, FormalArgs: fa, Body: body}); err != nil {
		log.Fatalf("arrayjit: registering %s: %v", name, err)
	}
}

func runScalarDemo(ctx context.Context, logger *diagnostics.Logger, store *cache.Store, registry *ir.Registry, names *ir.NameSupply, cfg pipeline.Config) {
	untyped, _ := registry.Untyped("increment")

	started := time.Now()
	typed, warm, err := specialize.SpecializeRecorded(ctx, store, registry, untyped, []types.Type{types.TInt32}, names)
	if err != nil {
		logger.Errorf("specializing increment(Int32): %v", err)
		return
	}
	logger.Infof("increment(Int32) specialized as %s (cache %s) in %s", typed.Name, warmLabel(warm), time.Since(started))

	optimized, err := pipeline.Optimize(registry, typed, names, nil, cfg)
	if err != nil {
		logger.Errorf("optimizing %s: %v", typed.Name, err)
		return
	}
	logger.Dump("optimized increment", optimized)
}

func runAdverbDemo(logger *diagnostics.Logger, registry *ir.Registry, names *ir.NameSupply, be backend.Backend, cfg pipeline.Config) {
	synth := adverb.New(registry, names, be, cfg)

	elt := types.Array{Rank: 1, Elt: types.TInt32}
	mapPlan, err := synth.Plan(adverb.Map, "increment", "", []types.Type{elt})
	if err != nil {
		logger.Errorf("map(increment) work function: %v", err)
	} else {
		logger.Infof("map(increment) work function: %s, args struct %s", mapPlan.WorkFn.Name, mapPlan.ArgsType)
	}

	reducePlan, err := synth.Plan(adverb.Reduce, "increment", "sum", []types.Type{elt})
	if err != nil {
		logger.Errorf("reduce(increment, sum) work function: %v", err)
	} else {
		logger.Infof("reduce(increment, sum) work function: %s, args struct %s", reducePlan.WorkFn.Name, reducePlan.ArgsType)
	}

	artifact, err := synth.Lower(adverb.Map, "increment", "", []types.Type{elt})
	if err != nil {
		logger.Errorf("lowering map(increment): %v", err)
		return
	}
	logger.Infof("lowered map(increment) to artifact %s", artifact.ID)
	if cfg.Verbose {
		fmt.Println(artifact.LLVMText)
	}
}

func warmLabel(warm bool) string {
	if warm {
		return "warm"
	}
	return "cold"
}
