package backend

import (
	"testing"

	"github.com/qsol-lang/qsol/internal/ground"
	"github.com/qsol-lang/qsol/internal/model"
)

func varRef(label string) *model.VarRef { return &model.VarRef{Label: label} }

func intLit(v string) *model.IntLit { return &model.IntLit{Value: v} }

func eq(l, r model.Expr) *model.BinaryOp  { return &model.BinaryOp{Left: l, Op: model.TK_Eq, Right: r} }
func and(l, r model.Expr) *model.BinaryOp { return &model.BinaryOp{Left: l, Op: model.TK_And, Right: r} }
func plus(l, r model.Expr) *model.BinaryOp {
	return &model.BinaryOp{Left: l, Op: model.TK_Plus, Right: r}
}

func TestBuildFlattensTopLevelAndIntoSeparateRows(t *testing.T) {
	prob := &ground.Program{
		Vars: []ground.Var{{Label: "x", Meaning: "X"}, {Label: "y", Meaning: "Y"}},
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: and(eq(varRef("x"), intLit("1")), eq(varRef("y"), intLit("1")))},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(cqm.Constraints) != 2 {
		t.Fatalf("expected flattenAnd to split the conjunction into 2 direct rows, got %d: %+v", len(cqm.Constraints), cqm.Constraints)
	}
	for _, c := range cqm.Constraints {
		if len(c.Poly.Quadratic) != 0 {
			t.Fatalf("expected a plain equality row to stay linear, got quadratic terms: %v", c.Poly.Quadratic)
		}
	}
}

func TestBuildNestedAndStillUsesIndicatorGadget(t *testing.T) {
	prob := &ground.Program{
		Vars: []ground.Var{{Label: "x", Meaning: "X"}, {Label: "y", Meaning: "Y"}},
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: &model.UnaryOp{Op: model.TK_Not, Operand: and(varRef("x"), varRef("y"))}},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	// not(and(x,y)) is not itself a conjunction at the top level, so it
	// must go through encodeBool's gadget composition, which introduces
	// more than one aux-defining row.
	if len(cqm.Constraints) < 2 {
		t.Fatalf("expected gadget composition to emit multiple rows, got %d", len(cqm.Constraints))
	}
}

func TestBuildMappingLawOneHot(t *testing.T) {
	prob := &ground.Program{
		Vars: []ground.Var{{Label: "x1"}, {Label: "x2"}},
		MappingLaws: []ground.MappingLaw{
			{FindName: "F", A: "v1", Vars: []string{"x1", "x2"}},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(cqm.Constraints) != 1 {
		t.Fatalf("expected exactly one one-hot row, got %d", len(cqm.Constraints))
	}
	row := cqm.Constraints[0]
	if row.Sense != SenseEq || row.RHS != 1 {
		t.Fatalf("expected sum(x1,x2) == 1, got sense=%v rhs=%v", row.Sense, row.RHS)
	}
	if row.Poly.Linear["x1"] != 1 || row.Poly.Linear["x2"] != 1 {
		t.Fatalf("expected both vars with coefficient 1, got %v", row.Poly.Linear)
	}
	caps := cqm.RequiredCapabilities()
	if !containsStr(caps, "unknown.mapping.v1") {
		t.Fatalf("expected unknown.mapping.v1 capability, got %v", caps)
	}
}

func TestRequiredCapabilitiesTagsComparisonKind(t *testing.T) {
	prob := &ground.Program{
		Vars:      []ground.Var{{Label: "x"}, {Label: "y"}},
		Objective: plus(varRef("x"), varRef("y")),
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: eq(varRef("x"), intLit("1"))},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	caps := cqm.RequiredCapabilities()
	if !containsStr(caps, "constraint.compare.eq.v1") {
		t.Fatalf("expected eq capability tagged, got %v", caps)
	}
	if !containsStr(caps, "objective.sum.v1") {
		t.Fatalf("expected objective.sum.v1 tagged for a degree>0 objective, got %v", caps)
	}
}

func TestToBQMPenaltyScaleFormula(t *testing.T) {
	prob := &ground.Program{
		Vars:      []ground.Var{{Label: "x"}},
		Objective: varRef("x"),
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: eq(varRef("x"), intLit("1"))},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	bqm := ToBQM(cqm)
	want := 10*cqm.Objective.AbsCoeffSum() + 10
	if bqm.PenaltyScale != want {
		t.Fatalf("expected PenaltyScale=%v, got %v", want, bqm.PenaltyScale)
	}
	// x=1 satisfies the hard constraint, so the penalty term must vanish
	// and the BQM's energy must equal the objective's.
	energy := bqm.Poly.Eval(map[string]float64{"x": 1})
	if energy != 1 {
		t.Fatalf("expected feasible assignment to cost exactly the objective value 1, got %v", energy)
	}
	// x=0 violates the hard constraint: energy must be dominated by the
	// penalty scale, not just the objective.
	violated := bqm.Poly.Eval(map[string]float64{"x": 0})
	if violated < want-1 {
		t.Fatalf("expected infeasible assignment to be penalized by ~PenaltyScale, got %v", violated)
	}
}

func TestVarMapExcludesAuxVars(t *testing.T) {
	prob := &ground.Program{
		Vars: []ground.Var{{Label: "x", Meaning: "X is set"}},
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: &model.UnaryOp{Op: model.TK_Not, Operand: varRef("x")}},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	bqm := ToBQM(cqm)
	if _, ok := bqm.VarMap["x"]; !ok {
		t.Fatalf("expected primary var x in varmap")
	}
	for label := range bqm.VarMap {
		if len(label) >= 4 && label[:4] == "aux:" {
			t.Fatalf("varmap must not contain aux vars, found %q", label)
		}
	}
}

func TestToBQMInequalitySlackAvoidsOverPenalizingGenuineSlack(t *testing.T) {
	// x+y <= 2 (the capacity-row form the Knapsack seed test
	// produces): an assignment that doesn't
	// saturate the bound has genuine slack and must be able to cost
	// exactly the objective value, not PenaltyScale-dominated.
	poly := Add(VarPoly("x"), VarPoly("y"), 1)
	cqm := &CQM{
		Objective: poly.Clone(),
		Constraints: []CQMConstraint{
			{Label: "cap", Poly: poly.Clone(), Sense: SenseLe, RHS: 2},
		},
	}
	bqm := ToBQM(cqm)

	found := false
	for _, bits := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		sample := map[string]float64{"x": 1, "y": 0, "slack_0_0": bits[0], "slack_0_1": bits[1]}
		if bqm.Poly.Eval(sample) == 1 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected some slack bit assignment to let the non-saturating feasible sample x=1,y=0 cost exactly the objective value 1")
	}

	// x=1,y=1 saturates the bound exactly (no slack available): slack=0
	// must already make the row hold with equality.
	saturated := bqm.Poly.Eval(map[string]float64{"x": 1, "y": 1, "slack_0_0": 0, "slack_0_1": 0})
	if saturated != 2 {
		t.Fatalf("expected the bound-saturating feasible assignment to cost exactly the objective value 2, got %v", saturated)
	}
}

func TestToBQMInequalitySlackVarsExcludedFromVarMap(t *testing.T) {
	prob := &ground.Program{
		Vars: []ground.Var{{Label: "x", Meaning: "X"}, {Label: "y", Meaning: "Y"}},
		Constraints: []ground.Constraint{
			{Weight: model.WeightMust, Expr: &model.BinaryOp{Left: varRef("x"), Op: model.TK_Le, Right: varRef("y")}},
		},
	}
	cqm, diags := Build(prob)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	bqm := ToBQM(cqm)
	for label := range bqm.VarMap {
		if len(label) >= 6 && label[:6] == "slack_" {
			t.Fatalf("varmap must not contain slack vars, found %q", label)
		}
	}
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
