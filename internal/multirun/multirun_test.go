package multirun

import (
	"context"
	"errors"
	"testing"

	"github.com/qsol-lang/qsol/internal/dispatch"
)

func job(name string, assignments []dispatch.SelectedAssignment, err error) ScenarioJob {
	return ScenarioJob{
		Name: name,
		Run: func(ctx context.Context) (*dispatch.StandardRunResult, error) {
			if err != nil {
				return nil, err
			}
			return &dispatch.StandardRunResult{SelectedAssignments: assignments}, nil
		},
	}
}

func TestRunJoinsInDeclarationOrder(t *testing.T) {
	jobs := []ScenarioJob{
		job("b", []dispatch.SelectedAssignment{{Label: "y"}}, nil),
		job("a", []dispatch.SelectedAssignment{{Label: "x"}}, nil),
	}
	batch, err := Run(context.Background(), jobs, 2, BestEffort, MergeNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Results[0].Name != "b" || batch.Results[1].Name != "a" {
		t.Fatalf("expected declaration-order join regardless of completion order, got %+v", batch.Results)
	}
}

func TestMergeUnion(t *testing.T) {
	jobs := []ScenarioJob{
		job("s1", []dispatch.SelectedAssignment{{Label: "x", Value: 1}}, nil),
		job("s2", []dispatch.SelectedAssignment{{Label: "y", Value: 1}}, nil),
	}
	batch, err := Run(context.Background(), jobs, 0, BestEffort, MergeUnion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Merged) != 2 {
		t.Fatalf("expected union of 2 distinct labels, got %+v", batch.Merged)
	}
}

func TestMergeIntersectionKeepsOnlyCommonLabels(t *testing.T) {
	jobs := []ScenarioJob{
		job("s1", []dispatch.SelectedAssignment{{Label: "x"}, {Label: "y"}}, nil),
		job("s2", []dispatch.SelectedAssignment{{Label: "y"}}, nil),
	}
	batch, err := Run(context.Background(), jobs, 0, BestEffort, MergeIntersection)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Merged) != 1 || batch.Merged[0].Label != "y" {
		t.Fatalf("expected intersection to keep only label y, got %+v", batch.Merged)
	}
}

func TestFailFastPropagatesError(t *testing.T) {
	jobs := []ScenarioJob{
		job("ok", nil, nil),
		job("bad", nil, errors.New("boom")),
	}
	_, err := Run(context.Background(), jobs, 0, FailFast, MergeNone)
	if err == nil {
		t.Fatalf("expected FailFast to propagate the scenario error")
	}
}

func TestBestEffortDoesNotPropagateError(t *testing.T) {
	jobs := []ScenarioJob{
		job("ok", nil, nil),
		job("bad", nil, errors.New("boom")),
	}
	batch, err := Run(context.Background(), jobs, 0, BestEffort, MergeNone)
	if err != nil {
		t.Fatalf("expected BestEffort to swallow the scenario error at the Run level, got %v", err)
	}
	if batch.Results[1].Err == nil {
		t.Fatalf("expected the failed scenario's error to still be recorded in its ScenarioResult")
	}
}
