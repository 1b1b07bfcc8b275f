package backend

import "testing"

func TestAddQuadraticSelfPairFoldsToLinear(t *testing.T) {
	p := NewPolynomial()
	p.AddQuadratic("x", "x", 3)
	if len(p.Quadratic) != 0 {
		t.Fatalf("expected self-pair to fold into Linear, got Quadratic=%v", p.Quadratic)
	}
	if p.Linear["x"] != 3 {
		t.Fatalf("expected Linear[x]=3, got %v", p.Linear["x"])
	}
}

func TestQuadKeyOrderIndependent(t *testing.T) {
	p := NewPolynomial()
	p.AddQuadratic("b", "a", 2)
	p.AddQuadratic("a", "b", 5)
	if len(p.Quadratic) != 1 {
		t.Fatalf("expected both calls to hit the same canonical key, got %d entries", len(p.Quadratic))
	}
	if p.Quadratic[quadKey("a", "b")] != 7 {
		t.Fatalf("expected accumulated coefficient 7, got %v", p.Quadratic[quadKey("a", "b")])
	}
}

func TestMultiplyDegreeOverflow(t *testing.T) {
	xy := NewPolynomial()
	xy.AddQuadratic("x", "y", 1)
	z := VarPoly("z")
	if _, ok := Multiply(xy, z); ok {
		t.Fatalf("expected degree-3 product to be rejected")
	}
}

func TestMultiplyConstantAlwaysOK(t *testing.T) {
	xy := NewPolynomial()
	xy.AddQuadratic("x", "y", 1)
	out, ok := Multiply(Constant(2), xy)
	if !ok {
		t.Fatalf("constant * quadratic must always succeed")
	}
	if out.Quadratic[quadKey("x", "y")] != 2 {
		t.Fatalf("expected scaled coefficient 2, got %v", out.Quadratic[quadKey("x", "y")])
	}
}

func TestMultiplyLinearTimesLinear(t *testing.T) {
	x := VarPoly("x")
	y := VarPoly("y")
	out, ok := Multiply(x, y)
	if !ok {
		t.Fatalf("linear * linear must stay degree 2")
	}
	if out.Quadratic[quadKey("x", "y")] != 1 {
		t.Fatalf("expected x*y coefficient 1, got %v", out.Quadratic[quadKey("x", "y")])
	}
}

func TestEvalMissingVarTreatedAsZero(t *testing.T) {
	p := Add(VarPoly("x"), VarPoly("y"), 1)
	got := p.Eval(map[string]float64{"x": 1})
	if got != 1 {
		t.Fatalf("expected missing y to contribute 0, got %v", got)
	}
}

func TestCQMConstraintSatisfiedTolerance(t *testing.T) {
	c := CQMConstraint{Poly: VarPoly("x"), Sense: SenseEq, RHS: 1}
	if !c.Satisfied(map[string]float64{"x": 1}) {
		t.Fatalf("expected exact match to satisfy an equality row")
	}
	if c.Satisfied(map[string]float64{"x": 0}) {
		t.Fatalf("expected 0 != 1 to violate the equality row")
	}
}
