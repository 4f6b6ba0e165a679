package ir

import "golang.org/x/exp/slices"

// Stmt is satisfied by every statement node.
type Stmt interface {
	Accept(v StmtVisitor) any
}

// Merge is the φ-merge map attached to an If or While: for each
// variable live across the join, the pair of values contributed by the
// two incoming control-flow edges. For If, (left, right) is
// (then-branch value, else-branch value); for While, (pre-loop value,
// back-edge value).
type Merge map[string][2]Expr

// Branch returns the merge's left (index 0) or right (index 1) value
// for name.
func (m Merge) Branch(name string, i int) Expr {
	pair, ok := m[name]
	if !ok {
		return nil
	}
	return pair[i]
}

// Names returns the φ-merge's variable domain in a stable order so
// passes that iterate it produce deterministic output. Map iteration
// order in Go is randomized, which would otherwise make two runs of the
// same optimization emit structurally-equal-but-differently-ordered
// merges.
func (m Merge) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Assignable is satisfied by expressions that may appear as an Assign's
// lhs: Var, Index, Attribute, or a Tuple of the same, recursively
// (destructuring assignment).
type Assignable = Expr

// Assign binds the evaluation of Rhs to Lhs.
type Assign struct {
	Lhs Assignable
	Rhs Expr
}

func (s *Assign) Accept(v StmtVisitor) any { return v.VisitAssign(s) }

// If is a two-way branch with a φ-merge of the names live across the
// join.
type If struct {
	Cond                   Expr
	ThenBlock, ElseBlock   []Stmt
	MergeMap               Merge
}

func (s *If) Accept(v StmtVisitor) any { return v.VisitIf(s) }

// While is a pre-test loop with a φ-merge of loop-carried names:
// MergeMap[name] = (pre_loop_value, back_edge_value).
type While struct {
	Cond     Expr
	Body     []Stmt
	MergeMap Merge
}

func (s *While) Accept(v StmtVisitor) any { return v.VisitWhile(s) }

// Return exits the enclosing function with Value (which may be nil for
// a bare return).
type Return struct {
	Value Expr
}

func (s *Return) Accept(v StmtVisitor) any { return v.VisitReturn(s) }

// StmtVisitor dispatches once per statement node class.
type StmtVisitor interface {
	VisitAssign(s *Assign) any
	VisitIf(s *If) any
	VisitWhile(s *While) any
	VisitReturn(s *Return) any
}
