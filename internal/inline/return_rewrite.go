package inline

import (
	"arrayjit/internal/ir"
	"arrayjit/internal/transform"
)

// returnRewriter turns every Return in a body into an assignment to
// dest, the caller-chosen destination for the call site being inlined.
// dest is nil when the call site being inlined was itself a bare
// Return's value rather than an Assign's rhs; in that case every Return
// in the callee's body stays a Return, since splicing the callee's
// statements in place of the original Return preserves its early-exit
// semantics along every path. Callers only reach this rewriter after
// Inliner.inlinable has confirmed every Return in body is in tail
// position, so turning a Return into an Assign never strands statements
// after it that should have been skipped.
type returnRewriter struct {
	transform.ExprBase
	transform.StmtBase
	dest ir.Expr
}

func (r *returnRewriter) VisitReturn(s *ir.Return) any {
	if s.Value == nil {
		return s
	}
	v := s.Value.Accept(r).(ir.Expr)
	if r.dest == nil {
		return &ir.Return{Value: v}
	}
	return &ir.Assign{Lhs: r.dest, Rhs: v}
}

// rewriteReturns replaces every Return(v) in body with Assign(dest, v),
// or leaves Returns as Returns when dest is nil.
func rewriteReturns(body []ir.Stmt, dest ir.Expr) []ir.Stmt {
	r := &returnRewriter{dest: dest}
	r.ExprBase.Self = r
	r.StmtBase.ExprSelf = r
	r.StmtBase.StmtSelf = r
	return r.StmtBase.RewriteBlock(body)
}
