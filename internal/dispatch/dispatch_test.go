package dispatch

import (
	"context"
	"testing"

	"github.com/qsol-lang/qsol/internal/backend"
)

type fakeRuntime struct {
	samples []RawSample
	err     error
}

func (f fakeRuntime) Run(ctx context.Context, bqm *backend.BQM, options map[string]string) ([]RawSample, error) {
	return f.samples, f.err
}

func buildTestBQM() (*backend.CQM, *backend.BQM) {
	poly := backend.VarPoly("x")
	cqm := &backend.CQM{
		Vars: nil,
		Objective: poly,
		Constraints: []backend.CQMConstraint{
			{Label: "must", Poly: backend.VarPoly("x"), Sense: backend.SenseEq, RHS: 1},
		},
	}
	bqm := &backend.BQM{
		Vars:   []string{"x"},
		Poly:   poly,
		VarMap: map[string]string{"x": "X is set"},
	}
	return cqm, bqm
}

func TestRunFiltersInfeasibleAndRanksByEnergy(t *testing.T) {
	cqm, bqm := buildTestBQM()
	rt := fakeRuntime{samples: []RawSample{
		{Sample: map[string]int{"x": 0}, Energy: -5}, // infeasible: x must == 1
		{Sample: map[string]int{"x": 1}, Energy: 3},
		{Sample: map[string]int{"x": 1}, Energy: 3}, // duplicate
	}}
	result, diag := Run(context.Background(), rt, cqm, bqm, "rt1", "be1", WithSolutions(5))
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %v", diag)
	}
	if len(result.Solutions) != 1 {
		t.Fatalf("expected dedupe+filter to leave exactly 1 solution, got %d", len(result.Solutions))
	}
	if result.Energy != 3 {
		t.Fatalf("expected best energy 3, got %v", result.Energy)
	}
	if len(result.SelectedAssignments) != 1 || result.SelectedAssignments[0].Label != "x" {
		t.Fatalf("expected x=1 decoded as a selected assignment, got %+v", result.SelectedAssignments)
	}
}

func TestRunThresholdFailed(t *testing.T) {
	cqm, bqm := buildTestBQM()
	rt := fakeRuntime{samples: []RawSample{
		{Sample: map[string]int{"x": 1}, Energy: 100},
	}}
	lo, hi := 0.0, 10.0
	result, diag := Run(context.Background(), rt, cqm, bqm, "rt1", "be1", WithEnergyRange(&lo, &hi))
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %v", diag)
	}
	if result.Status != "threshold_failed" {
		t.Fatalf("expected threshold_failed status, got %q", result.Status)
	}
}

func TestRunRuntimeErrorProducesDiagnostic(t *testing.T) {
	cqm, bqm := buildTestBQM()
	rt := fakeRuntime{err: context.DeadlineExceeded}
	_, diag := Run(context.Background(), rt, cqm, bqm, "rt1", "be1")
	if diag == nil {
		t.Fatalf("expected a diagnostic when the runtime fails")
	}
}

func TestCanonicalKeyStableAcrossMapIteration(t *testing.T) {
	s := RawSample{Sample: map[string]int{"b": 1, "a": 0, "c": 1}}
	k1 := canonicalKey(s)
	k2 := canonicalKey(s)
	if k1 != k2 {
		t.Fatalf("expected canonicalKey to be stable, got %q vs %q", k1, k2)
	}
	if k1 != "a=0;b=1;c=1;" {
		t.Fatalf("expected sorted label=value pairs, got %q", k1)
	}
}
