package transform

import "arrayjit/internal/ir"

// Pass is one rewrite stage in an optimization pipeline: it consumes a
// typed function's body and produces a rewritten body, reporting
// whether it changed anything so a driver can iterate passes to a
// fixpoint instead of guessing a fixed number of rounds.
type Pass interface {
	Name() string
	Run(body []ir.Stmt) (out []ir.Stmt, changed bool, err error)
}

// RunToFixpoint applies passes in order, repeating the whole sequence
// until a full round leaves body unchanged or maxRounds is hit. It is
// the same round structure internal/pipeline.Optimize uses for its
// `[Simplify, Inliner, Simplify]` composition (Optimize runs its own
// loop and does not call this function): each stage can unlock further
// rewrites in an earlier one (inlining exposes new constants to fold), so a single
// pass over the list is not sufficient in general.
func RunToFixpoint(passes []Pass, body []ir.Stmt, maxRounds int) ([]ir.Stmt, error) {
	for round := 0; round < maxRounds; round++ {
		roundChanged := false
		for _, p := range passes {
			out, changed, err := p.Run(body)
			if err != nil {
				return nil, err
			}
			if changed {
				roundChanged = true
				body = out
			}
		}
		if !roundChanged {
			break
		}
	}
	return body, nil
}
