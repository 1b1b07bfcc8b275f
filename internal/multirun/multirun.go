// Package multirun runs the same compiled model against several scenario
// payloads concurrently and merges the decoded results (spec §5 "a
// multi-scenario solve may run per-scenario pipelines in parallel, with a
// bounded worker pool; results are joined and merged at the end"; spec §9
// "Multi-scenario execution").
//
// Grounded on golang.org/x/sync/errgroup's SetLimit bounded-concurrency
// idiom (contributed by theRebelliousNerd-codenerd, which depends on
// golang.org/x/sync), with deterministic declaration-order joining rather
// than completion-order joining.
package multirun

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/qsol-lang/qsol/internal/dispatch"
)

// MergePolicy selects how per-scenario results are combined.
type MergePolicy int

const (
	// MergeNone returns every scenario's result unmerged.
	MergeNone MergePolicy = iota
	// MergeIntersection keeps only the selected-assignment labels present in
	// every successful scenario's best solution. It compares labels, not
	// whole samples; solutions ranked below each scenario's best are not
	// considered.
	MergeIntersection
	// MergeUnion keeps every selected-assignment label from any successful
	// scenario's best solution; solutions ranked below each scenario's best
	// are not considered.
	MergeUnion
)

// FailurePolicy controls whether a single scenario's runtime error fails
// the whole batch (spec §5: "non-fatal ... only if failure_policy =
// best-effort").
type FailurePolicy int

const (
	FailFast FailurePolicy = iota
	BestEffort
)

// ScenarioJob is one scenario's fully-prepared pipeline invocation: a thunk
// because each scenario's CompiledModel/Runtime/options differ, but the
// orchestration logic (bounded concurrency, ordered join, merge) is
// identical for all of them.
type ScenarioJob struct {
	Name string
	Run  func(ctx context.Context) (*dispatch.StandardRunResult, error)
}

// ScenarioResult pairs a job's name with its outcome; Err is set (and
// Result nil) when the scenario's pipeline failed.
type ScenarioResult struct {
	Name   string
	Result *dispatch.StandardRunResult
	Err    error
}

// Batch is the joined, declaration-ordered outcome of running every job.
type Batch struct {
	Results []ScenarioResult
	Merged  []dispatch.SelectedAssignment
}

// Run executes jobs with at most maxWorkers concurrently, joins results back
// into jobs' declaration order (not completion order, per spec §5), and
// applies the requested merge policy over each scenario's best assignments.
func Run(ctx context.Context, jobs []ScenarioJob, maxWorkers int, failurePolicy FailurePolicy, merge MergePolicy) (*Batch, error) {
	results := make([]ScenarioResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if maxWorkers > 0 {
		g.SetLimit(maxWorkers)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := job.Run(gctx)
			results[i] = ScenarioResult{Name: job.Name, Result: res, Err: err}
			if err != nil && failurePolicy == FailFast {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Batch{Results: results, Merged: mergeResults(results, merge)}, nil
}

func mergeResults(results []ScenarioResult, policy MergePolicy) []dispatch.SelectedAssignment {
	if policy == MergeNone {
		return nil
	}

	perScenario := make([][]dispatch.SelectedAssignment, 0, len(results))
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		perScenario = append(perScenario, r.Result.SelectedAssignments)
	}
	if len(perScenario) == 0 {
		return nil
	}

	switch policy {
	case MergeUnion:
		seen := map[string]dispatch.SelectedAssignment{}
		for _, assignments := range perScenario {
			for _, a := range assignments {
				seen[a.Label] = a
			}
		}
		return sortedAssignments(seen)
	case MergeIntersection:
		counts := map[string]int{}
		byLabel := map[string]dispatch.SelectedAssignment{}
		for _, assignments := range perScenario {
			local := map[string]bool{}
			for _, a := range assignments {
				if local[a.Label] {
					continue
				}
				local[a.Label] = true
				counts[a.Label]++
				byLabel[a.Label] = a
			}
		}
		kept := map[string]dispatch.SelectedAssignment{}
		for label, n := range counts {
			if n == len(perScenario) {
				kept[label] = byLabel[label]
			}
		}
		return sortedAssignments(kept)
	}
	return nil
}

func sortedAssignments(m map[string]dispatch.SelectedAssignment) []dispatch.SelectedAssignment {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]dispatch.SelectedAssignment, 0, len(labels))
	for _, l := range labels {
		out = append(out, m[l])
	}
	return out
}
