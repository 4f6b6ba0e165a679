package shape

import "testing"

func sameValue(t *testing.T, got, want Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCombineCommutative(t *testing.T) {
	pairs := []struct{ a, b Value }{
		{Const{Value: 3}, Const{Value: 3}},
		{Const{Value: 3}, UnknownScalar},
		{Const{Value: 3}, Unknown},
		{UnknownScalar, Unknown},
		{Var{Num: 1}, Var{Num: 1}},
		{Var{Num: 1}, UnknownScalar},
	}
	for _, p := range pairs {
		ab := p.a.Combine(p.b)
		ba := p.b.Combine(p.a)
		if !ab.Equal(ba) {
			t.Errorf("Combine not commutative for %s, %s: %s vs %s", p.a, p.b, ab, ba)
		}
	}
}

func TestCombineIdempotent(t *testing.T) {
	vs := []Value{
		Unknown,
		UnknownScalar,
		Const{Value: 7},
		Var{Num: 2},
		NewShape(2, 3),
		Binop{Op: BinAdd, X: Const{Value: 1}, Y: Var{Num: 0}},
	}
	for _, v := range vs {
		got := v.Combine(v)
		if !got.Equal(v) {
			t.Errorf("Combine(%s, %s) = %s, want %s (idempotent)", v, v, got, v)
		}
	}
}

func TestCombineAssociative(t *testing.T) {
	triples := [][3]Value{
		{Const{Value: 5}, Unknown, UnknownScalar},
		{Const{Value: 5}, Const{Value: 5}, Unknown},
		{NewShape(2, 3), Unknown, Unknown},
	}
	for _, tr := range triples {
		a, b, c := tr[0], tr[1], tr[2]
		left := a.Combine(b).Combine(c)
		right := a.Combine(b.Combine(c))
		if !left.Equal(right) {
			t.Errorf("Combine not associative for %s, %s, %s: %s vs %s", a, b, c, left, right)
		}
	}
}

func TestUnknownIsIdentity(t *testing.T) {
	vs := []Value{
		UnknownScalar,
		Const{Value: 42},
		Var{Num: 3},
		NewShape(1, 2, 3),
		Binop{Op: BinMul, X: Const{Value: 2}, Y: Var{Num: 1}},
	}
	for _, v := range vs {
		sameValue(t, Unknown.Combine(v), v)
		sameValue(t, v.Combine(Unknown), v)
	}
}

func TestCombineMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Combine of incompatible categories to panic")
		}
	}()
	NewShape(1, 2).Combine(Tuple{Elts: []Value{Const{Value: 1}}})
}

func TestConstCombineWidensToUnknownScalarOnMismatch(t *testing.T) {
	got := Const{Value: 1}.Combine(Const{Value: 2})
	if !got.Equal(UnknownScalar) {
		t.Fatalf("Combine(Const(1), Const(2)) = %s, want UnknownScalar", got)
	}
}

func TestLowerRankThenIncreaseRank(t *testing.T) {
	s := NewShape(2, 3, 4)
	lowered := LowerRank(s, 1)
	got, ok := lowered.(Shape)
	if !ok || got.Rank() != 2 {
		t.Fatalf("LowerRank(Shape(2,3,4), axis=1) = %s, want a rank-2 Shape", lowered)
	}

	raised := IncreaseRank(lowered, 1, Const{Value: 3})
	sameValue(t, raised, NewShape(2, 3, 4))
}

func TestCombineListIdentityIsUnknown(t *testing.T) {
	got := CombineList(nil)
	sameValue(t, got, Unknown)
}
