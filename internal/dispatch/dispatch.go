// Package dispatch implements Runtime Dispatch and Result Ranking (spec
// §4.12): invoking a runtime plugin with a compiled model and runtime
// options, then filtering, deduplicating, sorting, thresholding, and
// decoding the raw samples it returns into a StandardRunResult.
//
// API shape (RunOption functional options) grounded on
// pkg/rage/rage.go's StateOption/WithModule convention; the post-processing
// pipeline is a plain sequential slice pipeline per spec §4.12 and spec §5
// ("concurrency is reserved for the multi-scenario runner").
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qsol-lang/qsol/internal/backend"
	"github.com/qsol-lang/qsol/internal/model"
)

// RawSample is one solution a runtime plugin reports.
type RawSample struct {
	Sample         map[string]int
	Energy         float64
	NumOccurrences int
}

// Runtime is the protocol a concrete sampler runtime implements (spec §1:
// concrete sampler libraries are an external-collaborator Non-goal; this is
// the protocol surface only).
type Runtime interface {
	Run(ctx context.Context, bqm *backend.BQM, options map[string]string) ([]RawSample, error)
}

// runConfig accumulates RunOption settings.
type runConfig struct {
	solutions      int
	energyMin      *float64
	energyMax      *float64
	runtimeOptions map[string]string
	timeout        time.Duration
	logger         *zap.Logger
}

// RunOption is a functional option configuring Run.
type RunOption func(*runConfig)

// WithSolutions sets how many top-ranked solutions to return (default 1).
func WithSolutions(n int) RunOption {
	return func(c *runConfig) { c.solutions = n }
}

// WithEnergyRange sets the inclusive [min,max] energy threshold window.
func WithEnergyRange(min, max *float64) RunOption {
	return func(c *runConfig) { c.energyMin, c.energyMax = min, max }
}

// WithRuntimeOptions merges caller-supplied runtime options in.
func WithRuntimeOptions(opts map[string]string) RunOption {
	return func(c *runConfig) {
		for k, v := range opts {
			c.runtimeOptions[k] = v
		}
	}
}

// WithTimeout bounds how long the runtime call may run before QSOL5001.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) { c.timeout = d }
}

// WithLogger attaches a zap logger for run-phase diagnostics.
func WithLogger(l *zap.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// SelectedAssignment is one decoded primary binary in a selected solution.
type SelectedAssignment struct {
	Label   string
	Meaning string
	Value   int
}

// StandardRunResult is the run.json shape (spec §6).
type StandardRunResult struct {
	SchemaVersion       string
	Runtime             string
	Backend             string
	Status              string // ok | threshold_failed | scenario_failed | failed
	Energy              float64
	Reads               int
	BestSample          map[string]int
	SelectedAssignments []SelectedAssignment
	TimingMS            int64
	CapabilityReportPath string
	RunID               uuid.UUID
	Solutions           []RawSample
	EnergyThreshold     *[2]float64
	RuntimeOptions      map[string]string
}

const schemaVersion = "1.0"

// Run invokes rt, honors a caller timeout, and post-processes the raw
// samples per spec §4.12: filter to CQM-feasible samples (including
// structural laws, already present as CQM rows), dedupe by canonical sample
// identity, sort by energy ascending with a lexicographic tie-break, take
// the top N, apply the inclusive energy threshold, and decode.
func Run(ctx context.Context, rt Runtime, cqm *backend.CQM, bqm *backend.BQM, runtimeID, backendID string, opts ...RunOption) (*StandardRunResult, *model.Diagnostic) {
	cfg := &runConfig{solutions: 1, runtimeOptions: map[string]string{}}
	for _, o := range opts {
		o(cfg)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := rt.Run(runCtx, bqm, cfg.runtimeOptions)
	elapsed := time.Since(start)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, &model.Diagnostic{Severity: model.SevError, Code: model.CodeRuntimeExecution, Message: fmt.Sprintf("runtime %q exceeded its timeout: %s", runtimeID, err)}
		}
		return nil, &model.Diagnostic{Severity: model.SevError, Code: model.CodeRuntimeExecution, Message: fmt.Sprintf("runtime %q failed: %s", runtimeID, err)}
	}

	feasible := filterFeasible(raw, cqm)
	deduped := dedupe(feasible)
	sortByEnergy(deduped)
	if cfg.solutions > 0 && len(deduped) > cfg.solutions {
		deduped = deduped[:cfg.solutions]
	}

	status := "ok"
	var threshold *[2]float64
	if cfg.energyMin != nil || cfg.energyMax != nil {
		lo, hi := unboundedRange()
		if cfg.energyMin != nil {
			lo = *cfg.energyMin
		}
		if cfg.energyMax != nil {
			hi = *cfg.energyMax
		}
		threshold = &[2]float64{lo, hi}
		for _, s := range deduped {
			if s.Energy < lo-tolerance() || s.Energy > hi+tolerance() {
				status = "threshold_failed"
				break
			}
		}
	}

	result := &StandardRunResult{
		SchemaVersion:   schemaVersion,
		Runtime:         runtimeID,
		Backend:         backendID,
		Status:          status,
		TimingMS:        elapsed.Milliseconds(),
		RunID:           uuid.New(),
		Solutions:       deduped,
		EnergyThreshold: threshold,
		RuntimeOptions:  cfg.runtimeOptions,
	}
	if len(deduped) > 0 {
		best := deduped[0]
		result.Energy = best.Energy
		result.Reads = best.NumOccurrences
		result.BestSample = best.Sample
		result.SelectedAssignments = decode(best, bqm)
	}

	if cfg.logger != nil {
		cfg.logger.Info("run complete",
			zap.String("run_id", result.RunID.String()),
			zap.String("status", status),
			zap.Int("solutions", len(deduped)),
			zap.Int64("timing_ms", result.TimingMS),
		)
	}
	return result, nil
}

func tolerance() float64 { return 1e-6 }

func unboundedRange() (float64, float64) {
	return -1e18, 1e18
}

// filterFeasible keeps every raw sample satisfying all of cqm's constraint
// rows, including the Mapping one-hot structural laws (already present in
// cqm.Constraints since backend.Build folds them in).
func filterFeasible(raw []RawSample, cqm *backend.CQM) []RawSample {
	out := make([]RawSample, 0, len(raw))
	for _, s := range raw {
		assign := toFloatSample(s.Sample)
		ok := true
		for _, c := range cqm.Constraints {
			if !c.Satisfied(assign) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func toFloatSample(sample map[string]int) map[string]float64 {
	out := make(map[string]float64, len(sample))
	for k, v := range sample {
		out[k] = float64(v)
	}
	return out
}

// canonicalKey renders a sample's variable assignment in stable
// (sorted-label) form, the canonical sample identity spec §4.12 dedupes and
// tie-breaks on.
func canonicalKey(s RawSample) string {
	labels := make([]string, 0, len(s.Sample))
	for l := range s.Sample {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(l)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(s.Sample[l]))
		b.WriteByte(';')
	}
	return b.String()
}

func dedupe(samples []RawSample) []RawSample {
	seen := map[string]bool{}
	out := make([]RawSample, 0, len(samples))
	for _, s := range samples {
		key := canonicalKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func sortByEnergy(samples []RawSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Energy != samples[j].Energy {
			return samples[i].Energy < samples[j].Energy
		}
		return canonicalKey(samples[i]) < canonicalKey(samples[j])
	})
}

// decode lists every primary binary set to 1 in s, using bqm.VarMap (which
// already excludes aux:/slack_ internal variables).
func decode(s RawSample, bqm *backend.BQM) []SelectedAssignment {
	labels := make([]string, 0, len(bqm.VarMap))
	for l := range bqm.VarMap {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var out []SelectedAssignment
	for _, l := range labels {
		if s.Sample[l] != 1 {
			continue
		}
		out = append(out, SelectedAssignment{Label: l, Meaning: bqm.VarMap[l], Value: 1})
	}
	return out
}
