package qsol_test

import (
	"context"
	"testing"

	"github.com/qsol-lang/qsol/internal/config"
	qmodel "github.com/qsol-lang/qsol/internal/model"
	"github.com/qsol-lang/qsol/pkg/qsol"
)

// TestExactKSubset is seed test 1 (spec §8): selecting exactly 2 of 4 items,
// minimizing the count, should compile to a single user equality row and no
// structural laws (no Mapping find in this problem).
func TestExactKSubset(t *testing.T) {
	source := `
problem P {
  set Items;
  find Pick : Subset(Items);
  must sum(if Pick.has(i) then 1 else 0 for i in Items) = 2;
  minimize sum(if Pick.has(i) then 1 else 0 for i in Items);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets:    map[string][]string{"Items": {"i1", "i2", "i3", "i4"}},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if compiled.Stats.NumVariables < 4 {
		t.Fatalf("expected at least 4 primary variables, got %d", compiled.Stats.NumVariables)
	}
	if len(compiled.CQM.MappingLaws) != 0 {
		t.Fatalf("expected zero structural laws for a Subset find, got %d", len(compiled.CQM.MappingLaws))
	}
	if len(compiled.CQM.Constraints) != 1 {
		t.Fatalf("expected exactly one CQM row for the single must equality, got %d", len(compiled.CQM.Constraints))
	}
}

// TestGraphThreeColoringTriangle is seed test 2 (spec §8): a Mapping find
// produces one structural one-hot row per vertex.
func TestGraphThreeColoringTriangle(t *testing.T) {
	source := `
problem P {
  set V;
  set C;
  find ColorOf : Mapping(V->C);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets: map[string][]string{
			"V": {"N1", "N2", "N3"},
			"C": {"Red", "Green", "Blue"},
		},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if len(compiled.CQM.MappingLaws) != 3 {
		t.Fatalf("expected 3 structural one-hot rows (one per vertex), got %d", len(compiled.CQM.MappingLaws))
	}
}

// TestKnapsackCompiles is seed test 4 (spec §8): a weighted selection with a
// capacity constraint compiles to a non-trivial, feasible-shape CQM.
func TestKnapsackCompiles(t *testing.T) {
	source := `
problem P {
  set I;
  param Value(I) : Int;
  param Weight(I) : Int;
  param Capacity : Int;
  find Pick : Subset(I);
  must sum(if Pick.has(i) then Weight[i] else 0 for i in I) <= Capacity;
  maximize sum(if Pick.has(i) then Value[i] else 0 for i in I);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets:    map[string][]string{"I": {"i1", "i2", "i3"}},
		Params: map[string]interface{}{
			"Value":    map[string]interface{}{"i1": 3, "i2": 5, "i3": 4},
			"Weight":   map[string]interface{}{"i1": 2, "i2": 3, "i3": 4},
			"Capacity": 5,
		},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if compiled.CQM.Objective.Degree() == 0 {
		t.Fatalf("expected a non-constant objective reflecting Value[i]")
	}
	if len(compiled.CQM.Constraints) == 0 {
		t.Fatalf("expected at least one CQM row for the capacity constraint")
	}
}

// TestMaxCutTriangle is seed test 3 (spec §8): MaxCut on K3 with unit
// weights compiles to a non-constant cut-counting objective.
func TestMaxCutTriangle(t *testing.T) {
	source := `
problem P {
  set V;
  set E;
  param U(E) : Elem(V);
  param W(E) : Elem(V);
  find S : Subset(V);
  maximize sum(if S.has(U[e]) != S.has(W[e]) then 1 else 0 for e in E);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets: map[string][]string{
			"V": {"N1", "N2", "N3"},
			"E": {"e1", "e2", "e3"},
		},
		Params: map[string]interface{}{
			"U": map[string]interface{}{"e1": "N1", "e2": "N2", "e3": "N3"},
			"W": map[string]interface{}{"e1": "N2", "e2": "N3", "e3": "N1"},
		},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if compiled.CQM.Objective.Degree() == 0 {
		t.Fatalf("expected a non-constant cut-counting objective")
	}
}

// TestMinBisectionFourCycle is seed test 5 (spec §8): a 4-cycle bisection
// uses the `count(v in V where c)*2 = size(V)` shorthand that Comment 1
// fixed -- this is the exact source spec.md names for that shorthand.
func TestMinBisectionFourCycle(t *testing.T) {
	source := `
problem P {
  set V;
  set E;
  param U(E) : Elem(V);
  param W(E) : Elem(V);
  find Side : Subset(V);
  must count(v in V where Side.has(v))*2 = size(V);
  minimize sum(if Side.has(U[e]) != Side.has(W[e]) then 1 else 0 for e in E);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets: map[string][]string{
			"V": {"v1", "v2", "v3", "v4"},
			"E": {"e1", "e2", "e3", "e4"},
		},
		Params: map[string]interface{}{
			"U": map[string]interface{}{"e1": "v1", "e2": "v2", "e3": "v3", "e4": "v4"},
			"W": map[string]interface{}{"e1": "v2", "e2": "v3", "e3": "v4", "e4": "v1"},
		},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if len(compiled.CQM.Constraints) == 0 {
		t.Fatalf("expected the bisection-size equality to produce at least one CQM row")
	}
}

// TestExactlyOneViaStdlibMacro is seed test 6 (spec §8): the stdlib.card
// `exactly` macro desugars to a plain cardinality equality.
func TestExactlyOneViaStdlibMacro(t *testing.T) {
	source := `
use stdlib.card;

problem P {
  set Items;
  find Pick : Subset(Items);
  must exactly(2, Pick.has(i) for i in Items);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets:    map[string][]string{"Items": {"i1", "i2", "i3"}},
	}
	compiled, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	requireNoErrors(t, diags)
	if len(compiled.CQM.Constraints) != 1 {
		t.Fatalf("expected exactly(2, ...) to desugar to a single cardinality row, got %d", len(compiled.CQM.Constraints))
	}
	row := compiled.CQM.Constraints[0]
	if row.RHS != 2 {
		t.Fatalf("expected the desugared row's RHS to be 2, got %v", row.RHS)
	}
}

// TestMissingSemicolonIsParseDiagnostic covers the first negative seed test
// (spec §8): a missing `;` must report QSOL1001.
func TestMissingSemicolonIsParseDiagnostic(t *testing.T) {
	source := `
problem P {
  set Items;
  find Pick : Subset(Items);
  must sum(if Pick.has(i) then 1 else 0 for i in Items) = 2
  minimize sum(if Pick.has(i) then 1 else 0 for i in Items);
}
`
	_, diags := qsol.Compile(context.Background(), source)
	if !hasCode(diags, qmodel.CodeParse) {
		t.Fatalf("expected %s for a missing semicolon, got %v", qmodel.CodeParse, diags)
	}
}

// TestScenarioMissingDeclaredSetIsDiagnosed covers a negative seed test
// (spec §8): a scenario lacking a declared set reports QSOL2201.
func TestScenarioMissingDeclaredSetIsDiagnosed(t *testing.T) {
	source := `
problem P {
  set V;
  find S : Subset(V);
}
`
	payload := &config.ScenarioPayload{Problem: "P"}
	_, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	if !hasCode(diags, qmodel.CodeScenarioData) {
		t.Fatalf("expected %s for a scenario missing a declared set, got %v", qmodel.CodeScenarioData, diags)
	}
}

// TestStrictCubicObjectiveIsUnsupportedShape covers the last negative seed
// test (spec §8): a degree-3 objective term reports QSOL3001.
func TestStrictCubicObjectiveIsUnsupportedShape(t *testing.T) {
	source := `
problem P {
  set Items;
  find Pick : Subset(Items);
  minimize sum(if Pick.has(i) then 1 else 0 for i in Items) *
           sum(if Pick.has(i) then 1 else 0 for i in Items) *
           sum(if Pick.has(i) then 1 else 0 for i in Items);
}
`
	payload := &config.ScenarioPayload{
		Problem: "P",
		Sets:    map[string][]string{"Items": {"i1", "i2"}},
	}
	_, diags := qsol.Compile(context.Background(), source, qsol.WithScenario(payload))
	if !hasCode(diags, qmodel.CodeUnsupportedShape) {
		t.Fatalf("expected %s for a cubic objective term, got %v", qmodel.CodeUnsupportedShape, diags)
	}
}

// TestMethodCallArityMismatchIsShapeError covers a negative seed test (spec
// §8): `Pick.has(x,y)` reports QSOL2101 ("arity"), not QSOL1001 -- arity is
// a shape error, checked once resolve knows Pick is a Subset find, not a
// grammar error caught mid-parse.
func TestMethodCallArityMismatchIsShapeError(t *testing.T) {
	source := `
problem P {
  set Items;
  find Pick : Subset(Items);
  must forall x in Items: exists y in Items: Pick.has(x, y);
}
`
	_, diags := qsol.Compile(context.Background(), source)
	if !hasCode(diags, qmodel.CodeShape) {
		t.Fatalf("expected %s for Pick.has(x,y)'s arity mismatch, got %v", qmodel.CodeShape, diags)
	}
	if hasCode(diags, qmodel.CodeParse) {
		t.Fatalf("arity mismatch must not also be reported as a parse error, got %v", diags)
	}
}

// TestIndexedParamUsedAsMacroCallIsShapeError covers a negative seed test
// (spec §8): `Cost(i,j)` on a declared indexed param reports QSOL2101.
func TestIndexedParamUsedAsMacroCallIsShapeError(t *testing.T) {
	source := `
problem P {
  set I;
  set J;
  param Cost(I, J) : Int;
  find Pick : Subset(I);
  must forall i in I: exists j in J: Cost(i, j) > 0;
}
`
	_, diags := qsol.Compile(context.Background(), source)
	if !hasCode(diags, qmodel.CodeShape) {
		t.Fatalf("expected %s for Cost(i,j) on an indexed param, got %v", qmodel.CodeShape, diags)
	}
}

// TestCyclicUnknownNestingIsShapeError covers the last negative seed test
// (spec §8): a cyclic chain of `unknown` definitions nesting each other via
// rep fields reports QSOL2101 instead of recursing forever.
func TestCyclicUnknownNestingIsShapeError(t *testing.T) {
	source := `
unknown A(S) {
  rep { find x : B(S); }
}
unknown B(S) {
  rep { find y : A(S); }
}

problem P {
  set V;
  find Z : A(V);
}
`
	_, diags := qsol.Compile(context.Background(), source)
	if !hasCode(diags, qmodel.CodeShape) {
		t.Fatalf("expected %s for a cyclic unknown nesting, got %v", qmodel.CodeShape, diags)
	}
}

func requireNoErrors(t *testing.T, diags []qmodel.Diagnostic) {
	t.Helper()
	for _, d := range diags {
		if d.Severity == qmodel.SevError {
			t.Fatalf("unexpected error diagnostic: %s", d.Error())
		}
	}
}

func hasCode(diags []qmodel.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}
